package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

// MockProvider produces deterministic pseudo-random unit vectors seeded
// from a hash of the input text. The same text always maps to the same
// vector, which makes indexing pipelines reproducible in tests and
// local development without a model backend.
type MockProvider struct {
	model     string
	dimension int
}

var _ Provider = (*MockProvider)(nil)

func NewMockProvider(model string, dimension int) *MockProvider {
	return &MockProvider{model: model, dimension: dimension}
}

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.embed(text)
	}
	return out, nil
}

func (m *MockProvider) embed(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := float64(h.Sum64() % 100000)

	vec := make([]float32, m.dimension)
	var norm float64
	for i := range vec {
		v := math.Sin(seed*float64(i+1))*0.1 + 0.01
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (m *MockProvider) ModelName() string { return m.model }
func (m *MockProvider) Dimension() int    { return m.dimension }
func (m *MockProvider) Close() error      { return nil }
