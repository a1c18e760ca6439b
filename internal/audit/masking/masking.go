// Package masking redacts personal data before it is written to the audit trail.
package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = map[string]struct{}{
	"email":    {},
	"password": {},
	"token":    {},
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	local, domain, ok := strings.Cut(trimmed, "@")
	if !ok || local == "" {
		return maskToken
	}
	return local[:1] + maskToken + "@" + domain
}

// MaskMetadata returns a copy of input with sensitive keys redacted.
func MaskMetadata(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		masked[trimmedKey] = maskValue(trimmedKey, value)
	}
	if len(masked) == 0 {
		return nil
	}
	return masked
}

func maskValue(key string, value any) any {
	switch cast := value.(type) {
	case string:
		if !isSensitive(key) {
			return cast
		}
		if strings.Contains(strings.ToLower(key), "email") {
			return MaskEmail(cast)
		}
		return maskToken
	case map[string]any:
		return MaskMetadata(cast)
	default:
		return value
	}
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return true
		}
	}
	return false
}
