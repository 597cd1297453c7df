package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EmbedResult is one embedded text. Cached reports whether the vector
// was served from the content-hash cache without a provider call.
type EmbedResult struct {
	Vector []float32
	Cached bool
}

// CacheStats is a snapshot of the gateway cache counters.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// Gateway fronts a Provider with an in-memory content-hash cache and a
// retry policy. The cache is keyed by SHA-256 of the input text and is
// unbounded within the process lifetime; a hit skips the provider
// entirely. Provider failures are retried with exponential backoff
// before the last error is propagated.
type Gateway struct {
	provider   Provider
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
	tracer     trace.Tracer

	mu     sync.Mutex
	cache  map[string][]float32
	hits   uint64
	misses uint64
}

// NewGateway wraps the provider with caching and retry behavior.
func NewGateway(provider Provider, cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	return &Gateway{
		provider:   provider,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
		tracer:     otel.Tracer("indexd.embeddings"),
		cache:      make(map[string][]float32),
	}
}

// Embed returns the vector for a single text.
func (g *Gateway) Embed(ctx context.Context, text string) (EmbedResult, error) {
	if text == "" {
		return EmbedResult{}, ErrEmptyInput
	}
	results, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return EmbedResult{}, err
	}
	return results[0], nil
}

// EmbedBatch embeds texts in order. Cached entries are returned without
// touching the provider; the remainder is embedded in one provider
// batch (the provider applies its own wire batch size).
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([]EmbedResult, error) {
	ctx, span := g.tracer.Start(ctx, "embeddings.embed_batch",
		trace.WithAttributes(attribute.Int("batch.size", len(texts))))
	defer span.End()

	if len(texts) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil, nil
	}

	results := make([]EmbedResult, len(texts))
	keys := make([]string, len(texts))

	// pendingByKey collapses duplicate texts within one batch to a
	// single provider input.
	pendingByKey := make(map[string][]int)
	var pendingKeys []string
	var pendingTexts []string

	g.mu.Lock()
	for i, text := range texts {
		key := cacheKey(text)
		keys[i] = key
		if vec, ok := g.cache[key]; ok {
			g.hits++
			results[i] = EmbedResult{Vector: vec, Cached: true}
			continue
		}
		g.misses++
		if _, seen := pendingByKey[key]; !seen {
			pendingKeys = append(pendingKeys, key)
			pendingTexts = append(pendingTexts, text)
		}
		pendingByKey[key] = append(pendingByKey[key], i)
	}
	g.mu.Unlock()

	span.SetAttributes(attribute.Int("cache.misses", len(pendingTexts)))

	if len(pendingTexts) > 0 {
		vecs, err := g.embedWithRetry(ctx, pendingTexts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		g.mu.Lock()
		for j, key := range pendingKeys {
			g.cache[key] = vecs[j]
			for _, i := range pendingByKey[key] {
				results[i] = EmbedResult{Vector: vecs[j]}
			}
		}
		g.mu.Unlock()
	}

	span.SetStatus(codes.Ok, "")
	return results, nil
}

// embedWithRetry calls the provider, retrying transient failures with
// exponential backoff (retryDelay doubles per attempt).
func (g *Gateway) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := g.retryDelay * time.Duration(1<<(attempt-1))
			g.logger.Warn("retrying embedding batch",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		vecs, err := g.provider.EmbedBatch(ctx, texts)
		if err != nil {
			lastErr = err
			continue
		}
		if len(vecs) != len(texts) {
			lastErr = fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vecs), len(texts))
			continue
		}
		return vecs, nil
	}
	return nil, fmt.Errorf("embedding failed after %d retries: %w", g.maxRetries, lastErr)
}

// ClearCache drops every cached vector and resets the hit/miss counters.
func (g *Gateway) ClearCache() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache = make(map[string][]float32)
	g.hits = 0
	g.misses = 0
}

// Stats returns a snapshot of the cache counters.
func (g *Gateway) Stats() CacheStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return CacheStats{Hits: g.hits, Misses: g.misses, Size: len(g.cache)}
}

// ModelName reports the underlying provider's model.
func (g *Gateway) ModelName() string { return g.provider.ModelName() }

// Dimension reports the underlying provider's vector dimension.
func (g *Gateway) Dimension() int { return g.provider.Dimension() }

// Close releases the underlying provider.
func (g *Gateway) Close() error { return g.provider.Close() }

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
