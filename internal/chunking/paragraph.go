package chunking

// splitParagraphs splits on blank-line boundaries. A boundary is any
// whitespace gap containing at least two newlines.
func splitParagraphs(norm string) []span {
	var out []span
	start := 0
	i := 0
	for i < len(norm) {
		if norm[i] != '\n' {
			i++
			continue
		}
		j := i
		newlines := 0
		for j < len(norm) && (norm[j] == '\n' || norm[j] == ' ') {
			if norm[j] == '\n' {
				newlines++
			}
			j++
		}
		if newlines >= 2 {
			if i > start {
				out = append(out, span{start, i})
			}
			start = j
		}
		i = j
	}
	if start < len(norm) {
		out = append(out, span{start, len(norm)})
	}
	return out
}

// chunkParagraph accumulates whole paragraphs up to MaxChunkSize. A
// single paragraph exceeding MaxChunkSize is re-chunked by the sentence
// strategy and spliced in place with absolute offsets preserved.
func chunkParagraph(norm string, cfg Config) []span {
	return accumulateParagraphs(norm, cfg, nil)
}

// accumulateParagraphs is the shared paragraph-grouping loop. boundary,
// when non-nil, can force a flush before a paragraph is appended.
func accumulateParagraphs(norm string, cfg Config, boundary func(p span, accumulated int) bool) []span {
	paras := splitParagraphs(norm)

	var out []span
	var cur *span
	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for _, p := range paras {
		if p.end-p.start > cfg.MaxChunkSize {
			flush()
			for _, s := range chunkSentence(norm[p.start:p.end], cfg) {
				out = append(out, span{p.start + s.start, p.start + s.end})
			}
			continue
		}
		if cur != nil {
			forced := boundary != nil && boundary(p, cur.end-cur.start)
			if forced || p.end-cur.start > cfg.MaxChunkSize {
				flush()
			}
		}
		if cur == nil {
			c := p
			cur = &c
		} else {
			cur.end = p.end
		}
	}
	flush()
	return out
}
