package chunking

// chunkFixed slides a window of ChunkSize characters over the text,
// advancing by ChunkSize-ChunkOverlap each step. With PreserveWords the
// window backs off to the last space at or after MinChunkSize so words
// are not split. Forward progress is guaranteed even when overlap
// reaches or exceeds the window size.
func chunkFixed(norm string, cfg Config) []span {
	runes, offs := runeIndex(norm)

	var spans []span
	start := 0
	for start < len(runes) {
		end := start + cfg.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if cfg.PreserveWords && !isBreak(runes[end]) && !isBreak(runes[end-1]) {
			floor := start + cfg.MinChunkSize
			for j := end - 1; j >= floor; j-- {
				if isBreak(runes[j]) {
					end = j
					break
				}
			}
		}

		spans = append(spans, span{offs[start], offs[end]})
		if end >= len(runes) {
			break
		}

		next := end - cfg.ChunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return spans
}

func isBreak(r rune) bool {
	return r == ' ' || r == '\n'
}

// runeIndex decodes norm into runes alongside each rune's byte offset,
// with a final sentinel entry of len(norm).
func runeIndex(norm string) ([]rune, []int) {
	runes := make([]rune, 0, len(norm))
	offs := make([]int, 0, len(norm)+1)
	for i, r := range norm {
		offs = append(offs, i)
		runes = append(runes, r)
	}
	offs = append(offs, len(norm))
	return runes, offs
}
