package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

func embedServer(t *testing.T, handler func(inputs []string) []wireItem) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := map[string]any{"data": handler(req.Inputs)}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestHTTPProviderReordersResults(t *testing.T) {
	srv := embedServer(t, func(inputs []string) []wireItem {
		// deliberately reversed wire order
		items := make([]wireItem, 0, len(inputs))
		for i := len(inputs) - 1; i >= 0; i-- {
			items = append(items, wireItem{Index: i, Embedding: []float32{float32(i)}})
		}
		return items
	})
	defer srv.Close()

	cfg := Config{Provider: ProviderHTTP, BaseURL: srv.URL, Dimension: 1, BatchSize: 16}
	cfg.ApplyDefaults()
	p, err := NewHTTPProvider(cfg)
	require.NoError(t, err)

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
}

func TestHTTPProviderBatches(t *testing.T) {
	var requests atomic.Int32
	srv := embedServer(t, func(inputs []string) []wireItem {
		requests.Add(1)
		assert.LessOrEqual(t, len(inputs), 2)
		items := make([]wireItem, len(inputs))
		for i := range inputs {
			items[i] = wireItem{Index: i, Embedding: []float32{1}}
		}
		return items
	})
	defer srv.Close()

	cfg := Config{Provider: ProviderHTTP, BaseURL: srv.URL, Dimension: 1, BatchSize: 2}
	cfg.ApplyDefaults()
	p, err := NewHTTPProvider(cfg)
	require.NoError(t, err)

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, int32(3), requests.Load())
}

func TestHTTPProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := Config{Provider: ProviderHTTP, BaseURL: srv.URL, Dimension: 1, BatchSize: 4}
	cfg.ApplyDefaults()
	p, err := NewHTTPProvider(cfg)
	require.NoError(t, err)

	_, err = p.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestHTTPProviderCountMismatch(t *testing.T) {
	srv := embedServer(t, func(inputs []string) []wireItem {
		return []wireItem{{Index: 0, Embedding: []float32{1}}}
	})
	defer srv.Close()

	cfg := Config{Provider: ProviderHTTP, BaseURL: srv.URL, Dimension: 1, BatchSize: 4}
	cfg.ApplyDefaults()
	p, err := NewHTTPProvider(cfg)
	require.NoError(t, err)

	_, err = p.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestHTTPProviderSendsAuth(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []wireItem{{Index: 0, Embedding: []float32{1}}},
		})
	}))
	defer srv.Close()

	cfg := Config{Provider: ProviderHTTP, BaseURL: srv.URL, APIKey: "test-key", Dimension: 1, BatchSize: 4}
	cfg.ApplyDefaults()
	p, err := NewHTTPProvider(cfg)
	require.NoError(t, err)

	_, err = p.EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth.Load())
}
