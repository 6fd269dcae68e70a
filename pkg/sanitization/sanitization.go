package sanitization

import (
	"fmt"
	"strings"
)

const redactedValue = "[REDACTED]"

const (
	emptyMaskedValue = "(empty)"
	maskedValue      = "***masked***"
)

// SanitizationType defines how to sanitize a field.
type SanitizationType int

const (
	FullyRedact SanitizationType = iota
	PartialMask
)

// SensitiveFields defines fields that require explicit sanitization behavior.
//
// Keys are lowercased; header names are matched in their canonical lower-case form.
var SensitiveFields = map[string]SanitizationType{
	"authorization":        FullyRedact,
	"cookie":               FullyRedact,
	"set-cookie":           FullyRedact,
	"x-amz-security-token": FullyRedact,
	"password":             FullyRedact,
	"secret":               FullyRedact,

	"x-api-key":    PartialMask,
	"x-public-id":  PartialMask,
	"aws_account":  PartialMask,
	"account":      PartialMask,
	"account_id":   PartialMask,
	"x-amz-date":   PartialMask,
	"x-amz-target": PartialMask,
}

// SanitizeLogString removes control characters that could enable log forging.
func SanitizeLogString(value string) string {
	if value == "" {
		return value
	}
	value = strings.ReplaceAll(value, "\r", "")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

// SanitizeFieldValue sanitizes a field value based on its key name.
func SanitizeFieldValue(key string, value any) any {
	keyLower := strings.ToLower(strings.TrimSpace(key))
	if keyLower == "" {
		return sanitizeValue(value)
	}

	if typ, ok := SensitiveFields[keyLower]; ok {
		if typ == PartialMask {
			if s, isString := value.(string); isString {
				return MaskFirstLast4(s)
			}
		}
		return redactedValue
	}

	for _, substr := range []string{"secret", "token", "password", "credential"} {
		if strings.Contains(keyLower, substr) {
			return redactedValue
		}
	}

	return sanitizeValue(value)
}

// MaskFirstLast keeps the first prefixLen and last suffixLen characters and masks the middle.
func MaskFirstLast(value string, prefixLen, suffixLen int) string {
	if value == "" {
		return emptyMaskedValue
	}
	if prefixLen < 0 || suffixLen < 0 {
		return maskedValue
	}
	if len(value) <= prefixLen+suffixLen {
		return maskedValue
	}
	return value[:prefixLen] + "***" + value[len(value)-suffixLen:]
}

func MaskFirstLast4(value string) string {
	return MaskFirstLast(value, 4, 4)
}

// SanitizeHeaders returns a copy of headers with sensitive values masked, suitable
// for debug logging of proxied requests.
func SanitizeHeaders(headers map[string][]string) map[string]any {
	out := make(map[string]any, len(headers))
	for k, values := range headers {
		key := strings.ToLower(k)
		if len(values) == 1 {
			out[key] = SanitizeFieldValue(key, values[0])
			continue
		}
		masked := make([]any, len(values))
		for i, v := range values {
			masked[i] = SanitizeFieldValue(key, v)
		}
		out[key] = masked
	}
	return out
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case string:
		return SanitizeLogString(typed)
	case []byte:
		return SanitizeLogString(string(typed))
	case int, int32, int64, uint, uint32, uint64, float32, float64, bool:
		return typed
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = SanitizeFieldValue(k, v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = sanitizeValue(typed[i])
		}
		return out
	case []string:
		out := make([]string, len(typed))
		for i := range typed {
			out[i] = SanitizeLogString(typed[i])
		}
		return out
	default:
		return SanitizeLogString(fmt.Sprintf("%v", typed))
	}
}
