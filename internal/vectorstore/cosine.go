package vectorstore

import "math"

// CosineSimilarity computes the cosine of the angle between two vectors:
// dot product over the product of L2 norms. It returns 0 when the
// dimensions differ or either vector has zero norm. This is the
// correctness reference for the native index path.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// RankBySimilarity scores docs against the query, applies the threshold,
// sorts descending and truncates to limit. It is the shared in-process
// ranking used by the fallback search path.
func RankBySimilarity(docs []IndexedDocument, query []float32, opts SearchOptions) []SearchResult {
	results := make([]SearchResult, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(query, doc.Embedding)
		if sim < opts.Threshold {
			continue
		}
		results = append(results, SearchResult{Document: doc, Similarity: sim})
	}

	// insertion sort keeps equal scores in input order
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Similarity > results[j-1].Similarity; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// MatchesFilter reports whether a document passes the search filter.
func MatchesFilter(doc IndexedDocument, f SearchFilter) bool {
	if f.SourceType != nil && doc.SourceType != *f.SourceType {
		return false
	}
	if f.Domain != nil && doc.Domain != *f.Domain {
		return false
	}
	return true
}
