package chunking

import (
	"regexp"
	"strings"
)

var sectionMarkers = []*regexp.Regexp{
	regexp.MustCompile(`^\d+[.)]\s`),           // 1. or 1)
	regexp.MustCompile(`^[A-Za-z][.)]\s`),      // a. or A)
	regexp.MustCompile(`^[-*•]\s`),             // bullets
	regexp.MustCompile(`^#{1,6}\s`),            // markdown headings
	regexp.MustCompile(`^[A-Z][A-Z0-9 ,:&-]{3,}$`), // all-caps heading line
}

// isSectionMarker reports whether a line looks like the start of a new
// section (numbered, lettered, bulleted or heading).
func isSectionMarker(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, re := range sectionMarkers {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// chunkSemantic is paragraph chunking with section-marker detection: a
// marker forces a chunk boundary only once the accumulated chunk already
// meets MinChunkSize, so markers never produce pathologically tiny chunks.
func chunkSemantic(norm string, cfg Config) []span {
	return accumulateParagraphs(norm, cfg, func(p span, accumulated int) bool {
		return accumulated >= cfg.MinChunkSize && isSectionMarker(firstLine(norm[p.start:p.end]))
	})
}
