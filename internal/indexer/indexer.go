package indexer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/embeddings"
	"github.com/fyrsmithlabs/indexd/internal/vectorstore"
)

// Pipeline is the shared machinery behind every source indexer: chunk,
// embed, upsert, with fingerprint-based skip and per-item failure
// accounting.
type Pipeline struct {
	engine     *chunking.Engine
	gateway    *embeddings.Gateway
	store      vectorstore.Store
	watermarks WatermarkStore
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewPipeline wires the chunking engine, embedding gateway, document
// store and watermark store together.
func NewPipeline(engine *chunking.Engine, gateway *embeddings.Gateway, store vectorstore.Store, watermarks WatermarkStore, logger *zap.Logger) (*Pipeline, error) {
	if engine == nil {
		return nil, fmt.Errorf("chunking engine is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("embedding gateway is required")
	}
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if watermarks == nil {
		return nil, fmt.Errorf("watermark store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		engine:     engine,
		gateway:    gateway,
		store:      store,
		watermarks: watermarks,
		logger:     logger,
		tracer:     otel.Tracer("indexd.indexer"),
	}, nil
}

// Store exposes the underlying document store for admin operations.
func (p *Pipeline) Store() vectorstore.Store { return p.store }

// supportsTenant reports whether the tenant ID has a valid shape
// (including the empty global scope).
func (p *Pipeline) supportsTenant(tenantID string) bool {
	return vectorstore.ValidateTenantID(tenantID) == nil
}

// indexDocuments runs the chunk-embed-upsert pipeline over a batch of
// converted documents. Per-item failures are counted and logged, never
// propagated: the goal is maximal forward progress per run.
func (p *Pipeline) indexDocuments(ctx context.Context, tenantID string, sourceType chunking.SourceType, docs []chunking.SourceDocument, force bool) IndexingResult {
	ctx, span := p.tracer.Start(ctx, "indexer.index_documents",
		trace.WithAttributes(
			attribute.String("source_type", string(sourceType)),
			attribute.String("tenant", vectorstore.ScopeKey(tenantID)),
			attribute.Int("documents", len(docs))))
	defer span.End()

	start := time.Now()
	result := IndexingResult{SourceType: sourceType, TenantID: tenantID}

	for _, doc := range docs {
		fingerprint := Fingerprint(doc.Content, doc.Metadata, doc.Version)

		if !force {
			stored, err := p.store.GetSourceFingerprint(ctx, tenantID, sourceType, doc.SourceID)
			if err != nil {
				p.logger.Warn("fingerprint lookup failed",
					zap.String("source_id", doc.SourceID), zap.Error(err))
			} else if stored != "" && stored == fingerprint {
				result.DocumentsProcessed++
				result.ChunksSkipped++
				continue
			}
		}

		chunks, err := p.engine.Chunk(doc)
		if err != nil {
			result.DocumentsFailed++
			p.logger.Error("chunking failed",
				zap.String("source_type", string(sourceType)),
				zap.String("source_id", doc.SourceID),
				zap.Error(err))
			continue
		}
		if len(chunks) == 0 {
			result.DocumentsProcessed++
			continue
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		embedded, err := p.gateway.EmbedBatch(ctx, texts)
		if err != nil {
			result.DocumentsFailed++
			result.ChunksFailed += len(chunks)
			p.logger.Error("embedding failed",
				zap.String("source_type", string(sourceType)),
				zap.String("source_id", doc.SourceID),
				zap.Int("chunks", len(chunks)),
				zap.Error(err))
			continue
		}

		indexed := make([]vectorstore.IndexedDocument, len(chunks))
		for i, c := range chunks {
			indexed[i] = vectorstore.IndexedDocument{
				DocumentChunk:      c,
				TenantID:           tenantID,
				Embedding:          embedded[i].Vector,
				EmbeddingModel:     p.gateway.ModelName(),
				EmbeddingDimension: p.gateway.Dimension(),
				Fingerprint:        fingerprint,
			}
		}

		// A changed document may chunk into fewer pieces than before;
		// clearing the previous chunk set keeps superseded high-index
		// chunks out of retrieval.
		if _, err := p.store.DeleteBySource(ctx, tenantID, sourceType, doc.SourceID); err != nil {
			result.DocumentsFailed++
			result.ChunksFailed += len(chunks)
			p.logger.Error("clearing previous chunks failed",
				zap.String("source_type", string(sourceType)),
				zap.String("source_id", doc.SourceID),
				zap.Error(err))
			continue
		}

		written, err := p.store.UpsertChunks(ctx, tenantID, indexed)
		if err != nil {
			result.DocumentsFailed++
			result.ChunksFailed += len(chunks)
			p.logger.Error("upsert failed",
				zap.String("source_type", string(sourceType)),
				zap.String("source_id", doc.SourceID),
				zap.Error(err))
			continue
		}

		result.DocumentsProcessed++
		result.ChunksIndexed += written
	}

	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("chunks.indexed", result.ChunksIndexed),
		attribute.Int("chunks.skipped", result.ChunksSkipped),
		attribute.Int("documents.failed", result.DocumentsFailed))
	span.SetStatus(codes.Ok, "")
	return result
}

// advanceWatermark moves the watermark to maxSeen if, and only if, the
// pass had no failures. Never advancing on partial failure guarantees
// at-least-once reprocessing of the failed window on the next run.
func (p *Pipeline) advanceWatermark(ctx context.Context, tenantID string, sourceType chunking.SourceType, result *IndexingResult, maxSeen time.Time) error {
	if result.DocumentsFailed > 0 || result.ChunksFailed > 0 {
		p.logger.Warn("watermark held back due to failures",
			zap.String("source_type", string(sourceType)),
			zap.Int("documents_failed", result.DocumentsFailed))
		return nil
	}
	if maxSeen.IsZero() {
		return nil
	}
	scope := vectorstore.ScopeKey(tenantID)
	if err := p.watermarks.SetWatermark(ctx, scope, sourceType, maxSeen); err != nil {
		return fmt.Errorf("advancing watermark: %w", err)
	}
	result.Watermark = maxSeen
	return nil
}

// watermarkFor reads the current watermark for a tenant scope.
func (p *Pipeline) watermarkFor(ctx context.Context, tenantID string, sourceType chunking.SourceType) (time.Time, error) {
	return p.watermarks.GetWatermark(ctx, vectorstore.ScopeKey(tenantID), sourceType)
}

// removeDocument deletes all chunks of one source document.
func (p *Pipeline) removeDocument(ctx context.Context, tenantID string, sourceType chunking.SourceType, sourceID string) (bool, error) {
	count, err := p.store.DeleteBySource(ctx, tenantID, sourceType, sourceID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// fetchFunc lists converted documents newer than a timestamp along with
// the maximum record timestamp seen and the count of records that could
// not be fetched or converted. A non-zero count holds the watermark so
// the affected window is retried on the next run.
type fetchFunc func(ctx context.Context, tenantID string, newerThan time.Time) ([]chunking.SourceDocument, time.Time, int, error)

// runIncremental is the shared incremental pass: read watermark, fetch
// strictly-newer records, index, advance watermark on full success.
func (p *Pipeline) runIncremental(ctx context.Context, tenantID string, sourceType chunking.SourceType, fetch fetchFunc) (IndexingResult, error) {
	if !p.supportsTenant(tenantID) {
		return IndexingResult{}, fmt.Errorf("%w: %q", ErrInvalidTenant, tenantID)
	}
	watermark, err := p.watermarkFor(ctx, tenantID, sourceType)
	if err != nil {
		return IndexingResult{}, fmt.Errorf("reading watermark: %w", err)
	}
	docs, maxSeen, fetchFailed, err := fetch(ctx, tenantID, watermark)
	if err != nil {
		return IndexingResult{}, fmt.Errorf("listing %s records: %w", sourceType, err)
	}
	result := p.indexDocuments(ctx, tenantID, sourceType, docs, false)
	result.DocumentsFailed += fetchFailed
	if err := p.advanceWatermark(ctx, tenantID, sourceType, &result, maxSeen); err != nil {
		return result, err
	}
	return result, nil
}

// runFull reindexes everything. With force the existing documents of
// this source type are deleted first and fingerprint skipping is
// bypassed.
func (p *Pipeline) runFull(ctx context.Context, tenantID string, sourceType chunking.SourceType, force bool, fetch fetchFunc) (IndexingResult, error) {
	if !p.supportsTenant(tenantID) {
		return IndexingResult{}, fmt.Errorf("%w: %q", ErrInvalidTenant, tenantID)
	}
	if force {
		if _, err := p.store.DeleteBySourceType(ctx, tenantID, sourceType); err != nil {
			return IndexingResult{}, fmt.Errorf("clearing %s documents: %w", sourceType, err)
		}
	}
	docs, maxSeen, fetchFailed, err := fetch(ctx, tenantID, time.Time{})
	if err != nil {
		return IndexingResult{}, fmt.Errorf("listing %s records: %w", sourceType, err)
	}
	result := p.indexDocuments(ctx, tenantID, sourceType, docs, force)
	result.DocumentsFailed += fetchFailed
	if err := p.advanceWatermark(ctx, tenantID, sourceType, &result, maxSeen); err != nil {
		return result, err
	}
	return result, nil
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
