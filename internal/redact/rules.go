// Package redact strips credentials and secret-shaped values from tool
// configuration before it is rendered for indexing. Redaction is a hard
// invariant of the indexing pipeline: indexed content must never contain
// credentials, however deeply nested in the source config.
package redact

import "regexp"

// sensitiveKeyPatterns match configuration key names that must be
// dropped outright. The word-boundary forms catch suffix styles like
// api_key and auth-header without tripping on words that merely contain
// the letters (keyboard, monkey).
var sensitiveKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password|passwd|secret|credential|connection[-_]?string|oauth`),
	regexp.MustCompile(`(?i)(^|[_-])(token|key|auth|apikey)([_-]|$)`),
	// header names that carry credentials
	regexp.MustCompile(`(?i)^(authorization|proxy-authorization|cookie|set-cookie|x-api-key|x-auth[-\w]*)$`),
}

// sensitiveValuePatterns match secret-shaped values regardless of the
// key that carries them.
var sensitiveValuePatterns = []*regexp.Regexp{
	// bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+\S+$`),
	// connection URIs with embedded credentials
	regexp.MustCompile(`(?i)^(?:postgres|postgresql|mysql|mongodb|redis|amqp)://[^:/\s]+:[^@\s]+@\S+$`),
	// known API key prefixes
	regexp.MustCompile(`^sk-[A-Za-z0-9]{20,}$`),
	regexp.MustCompile(`^(?:sk|pk|rk)_(?:live|test)_[A-Za-z0-9]{16,}$`),
	regexp.MustCompile(`^gh[pousr]_[A-Za-z0-9]{20,}$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	// long undifferentiated base64 or hex blobs
	regexp.MustCompile(`^[A-Za-z0-9+/=_-]{40,}$`),
	regexp.MustCompile(`^[A-Fa-f0-9]{32,}$`),
}

// textValuePatterns are the value shapes that can appear embedded in
// free text rather than as a whole value.
var textValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]{8,}`),
	regexp.MustCompile(`(?i)(?:postgres|postgresql|mysql|mongodb|redis|amqp)://[^:/\s]+:[^@\s]+@\S+`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`(?:sk|pk|rk)_(?:live|test)_[A-Za-z0-9]{16,}`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
}

// IsSensitiveKey reports whether a configuration key name must be
// stripped.
func IsSensitiveKey(key string) bool {
	for _, re := range sensitiveKeyPatterns {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether a whole string value looks like a
// secret.
func IsSensitiveValue(value string) bool {
	for _, re := range sensitiveValuePatterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}
