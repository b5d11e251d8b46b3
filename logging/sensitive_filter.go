package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces any value judged sensitive.
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns match credentials that may show up inside backend
// settings, error messages from remote APIs, or request URLs.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`),          // OpenAI keys
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),   // Authorization headers
	regexp.MustCompile(`(?i)(api_key\s*[:=]\s*[^\s,;&]{8,})`),  // api_key=...
	regexp.MustCompile(`(?i)(apikey\s*[:=]\s*[^\s,;&]{8,})`),   // apikey=...
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;&]{8,})`), // password=...
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;&]{8,})`),    // token=...
	regexp.MustCompile(`(?i)(https?://[^:/\s]+:[^@/\s]+@)`),    // basic auth in URLs
}

// sensitiveKeys are substrings of field or setting names whose values are
// never logged or echoed back to clients.
var sensitiveKeys = []string{
	"OPENAI_API_KEY",
	"API_KEY",
	"APIKEY",
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"SESSION_ID",
}

// RedactSensitiveData replaces every credential-looking substring of value.
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}
	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// IsSensitiveField reports whether a field or setting name denotes a secret.
//
//	IsSensitiveField("api_key")  // true
//	IsSensitiveField("address")  // false
func IsSensitiveField(fieldName string) bool {
	upper := strings.ToUpper(fieldName)
	for _, key := range sensitiveKeys {
		if strings.Contains(upper, key) {
			return true
		}
	}
	return false
}

// RedactField returns the placeholder for sensitive names, otherwise the
// value with embedded credentials stripped.
func RedactField(fieldName, fieldValue string) string {
	if IsSensitiveField(fieldName) {
		return RedactedPlaceholder
	}
	return RedactSensitiveData(fieldValue)
}
