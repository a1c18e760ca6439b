package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/pitchdeck/internal/auditcontext"
	obscontext "github.com/smallbiznis/pitchdeck/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const HeaderRequestID = "X-Request-Id"

// Probe routes are logged at debug level only.
var quietRoutes = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps a handler error to its response type and code.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware tags the request with an id, seeds the audit metadata and
// writes one access line when the handler chain returns.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx = auditcontext.WithRequestID(ctx, requestID)
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := append(accessFields(c, route, status, time.Since(start)), errorFields(c, cfg)...)

		FromContext(c.Request.Context()).Check(accessLevel(route, status), "http_request").Write(fields...)
	}
}

func accessFields(c *gin.Context, route string, status int, elapsed time.Duration) []zap.Field {
	return []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("route", route),
		zap.Int("status", status),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
		zap.Int("bytes_out", max(c.Writer.Size(), 0)),
	}
}

func errorFields(c *gin.Context, cfg MiddlewareConfig) []zap.Field {
	last := c.Errors.Last()
	if last == nil || cfg.ErrorClassifier == nil {
		return nil
	}
	errorType, errorCode := cfg.ErrorClassifier(last.Err)
	fields := []zap.Field{
		zap.String("error_type", errorType),
		zap.String("error_code", errorCode),
	}
	if cfg.Debug {
		fields = append(fields, zap.Error(last.Err))
	}
	return fields
}

func accessLevel(route string, status int) zapcore.Level {
	if _, quiet := quietRoutes[route]; quiet {
		return zapcore.DebugLevel
	}
	if status >= http.StatusInternalServerError {
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// requestIDFor keeps a caller supplied X-Request-Id and mints one otherwise.
func requestIDFor(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Header(HeaderRequestID, id)
	return id
}
