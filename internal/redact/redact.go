package redact

// Placeholder replaces secret-shaped values that survive key stripping.
const Placeholder = "[REDACTED]"

// Config walks a tool configuration and removes sensitive material.
// Keys matching a sensitive-name pattern are dropped entirely; values
// matching a secret shape are replaced with Placeholder. A "headers"
// section is itself retained (the key name is not sensitive), while
// individual sensitive header names and values inside it are stripped
// by the recursive walk. The input is never mutated.
func Config(config map[string]any) map[string]any {
	if config == nil {
		return nil
	}
	out := make(map[string]any, len(config))
	for key, value := range config {
		if IsSensitiveKey(key) {
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch v := value.(type) {
	case string:
		if IsSensitiveValue(v) {
			return Placeholder
		}
		return v
	case map[string]any:
		return Config(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}

// Text scrubs secret-shaped substrings out of free text. It is applied
// to rendered document content as a second line of defense behind
// Config.
func Text(text string) string {
	for _, re := range textValuePatterns {
		text = re.ReplaceAllString(text, Placeholder)
	}
	return text
}
