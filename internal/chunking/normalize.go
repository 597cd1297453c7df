package chunking

import "strings"

// Normalize prepares raw content for chunking: line endings become LF,
// runs of spaces and tabs collapse to a single space, and leading and
// trailing whitespace is trimmed. Chunk offsets are always relative to
// the normalized text.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	inRun := false
	for _, r := range text {
		if r == ' ' || r == '\t' {
			if !inRun {
				b.WriteByte(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}

	return strings.TrimSpace(b.String())
}
