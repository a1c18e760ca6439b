package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	obslogger "github.com/smallbiznis/pitchdeck/internal/observability/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors reports request binding failures.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

const (
	errorTypeValidation = "validation_error"
	errorTypeInternal   = "internal_error"
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status >= http.StatusInternalServerError {
			obslogger.FromContext(c.Request.Context()).Error("request failed", zap.Error(lastErr.Err))
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

// bindingError converts gin binding failures into field-level validation errors.
func bindingError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalidRequestError()
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   toSnakeCase(fe.Field()),
			Code:    fe.Tag(),
			Message: "invalid value",
		})
	}
	return &ValidationErrors{Errors: out}
}

func toSnakeCase(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		upper := r >= 'A' && r <= 'Z'
		if upper {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
		prevLower = !upper
	}
	return b.String()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    errorTypeValidation,
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound, errorPayload{
			Type:    string(apperrors.KindNotFound),
			Message: "not found",
		}
	}

	appErr, ok := apperrors.As(err)
	if !ok || appErr.Kind == apperrors.KindUnexpected {
		return http.StatusInternalServerError, errorPayload{
			Type:    errorTypeInternal,
			Message: "internal server error",
		}
	}

	payload := errorPayload{
		Type:    string(appErr.Kind),
		Message: appErr.Message,
		Errors: []ValidationError{
			{Code: appErr.Code, Message: appErr.Message},
		},
	}
	return statusForKind(appErr.Kind), payload
}

func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidationFailed:
		return http.StatusBadRequest
	case apperrors.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperrors.KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case apperrors.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// classifyErrorForLog returns the error_type and error_code fields of the request log line.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if vErr := asValidationErrors(err); vErr != nil {
		code := "invalid_request"
		if len(vErr.Errors) > 0 {
			code = vErr.Errors[0].Code
		}
		return errorTypeValidation, code
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return string(apperrors.KindNotFound), "record_not_found"
	}
	if appErr, ok := apperrors.As(err); ok {
		return string(appErr.Kind), appErr.Code
	}
	return errorTypeInternal, "unexpected"
}
