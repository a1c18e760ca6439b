package tracing

import (
	"errors"
	"strings"

	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"go.opentelemetry.io/otel/attribute"
)

var blockedAttributeFragments = []string{"email", "password", "token", "secret", "cookie", "authorization"}

// SafeAttributes drops attributes whose keys could carry credentials or personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(string(attr.Key))
		blocked := false
		for _, fragment := range blockedAttributeFragments {
			if strings.Contains(key, fragment) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError reduces err to a message that is safe to export.
// Domain errors keep their code; anything else is reported generically.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.As(err); ok {
		return errors.New(string(appErr.Kind) + ": " + appErr.Code)
	}
	return errors.New("internal error")
}
