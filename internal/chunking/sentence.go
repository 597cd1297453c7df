package chunking

import "unicode"

// splitSentences returns spans of individual sentences. A sentence ends
// at a run of sentence-ending punctuation followed by whitespace and a
// capital letter, or at the end of the text.
func splitSentences(norm string) []span {
	runes, offs := runeIndex(norm)
	var out []span
	start := 0
	i := 0
	for i < len(runes) {
		if !isSentenceEnd(runes[i]) {
			i++
			continue
		}
		j := i
		for j+1 < len(runes) && isSentenceEnd(runes[j+1]) {
			j++
		}
		k := j + 1
		for k < len(runes) && unicode.IsSpace(runes[k]) {
			k++
		}
		if k == len(runes) || (k > j+1 && unicode.IsUpper(runes[k])) {
			out = append(out, span{offs[start], offs[j+1]})
			start = k
			i = k
			continue
		}
		i = j + 1
	}
	if start < len(runes) {
		out = append(out, span{offs[start], len(norm)})
	}
	return out
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// chunkSentence greedily accumulates whole sentences until adding the
// next one would exceed MaxChunkSize. With overlap enabled the last
// sentence of a flushed chunk is carried into the next chunk. A trailing
// remainder smaller than MinChunkSize is merged into the previous chunk.
func chunkSentence(norm string, cfg Config) []span {
	sents := splitSentences(norm)
	if len(sents) == 0 {
		return nil
	}

	var out []span
	cur := sents[0]
	last := sents[0]
	for _, s := range sents[1:] {
		if s.end-cur.start > cfg.MaxChunkSize {
			out = append(out, cur)
			if cfg.ChunkOverlap > 0 {
				cur = span{last.start, s.end}
			} else {
				cur = s
			}
		} else {
			cur.end = s.end
		}
		last = s
	}

	if len(out) > 0 && cur.end-cur.start < cfg.MinChunkSize {
		out[len(out)-1].end = cur.end
	} else {
		out = append(out, cur)
	}
	return out
}
