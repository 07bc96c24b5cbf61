package diagnostics

import (
	"strings"
	"unicode/utf8"
)

const (
	maxAttributeLength = 256
	redactedValue      = "***"
	truncationMarker   = "..."
)

// sensitiveKeyFragments mark attribute keys whose values never leave the hub.
// Connection values and recipients are included since automations carry user
// data through them.
var sensitiveKeyFragments = []string{
	"authorization",
	"password",
	"secret",
	"token",
	"apikey",
	"api_key",
	"cookie",
	"email",
	"phone",
}

// IsSensitiveKey reports whether key names a value that must be masked.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// Redact returns a copy of attrs with sensitive values masked and long values
// shortened. Empty input yields nil.
func Redact(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for key, value := range attrs {
		switch {
		case IsSensitiveKey(key):
			out[key] = redactedValue
		default:
			out[key] = Shorten(value, maxAttributeLength)
		}
	}
	return out
}

// Shorten cuts value to at most limit bytes without splitting a rune and
// appends a marker when anything was removed.
func Shorten(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	cut := limit - len(truncationMarker)
	if cut <= 0 {
		cut = limit
	}
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	if cut == limit {
		return value[:cut]
	}
	return value[:cut] + truncationMarker
}
