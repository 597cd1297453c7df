package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

// ChromemConfig holds configuration for the embedded chromem index.
type ChromemConfig struct {
	Path           string `koanf:"path"`
	Compress       bool   `koanf:"compress"`
	CollectionName string `koanf:"collection_name"`
}

func (c *ChromemConfig) ApplyDefaults() {
	if c.CollectionName == "" {
		c.CollectionName = "indexd_documents"
	}
}

// ChromemIndex is an embedded VectorIndex for deployments without a
// Qdrant server. An empty Path keeps the index in memory.
type ChromemIndex struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	mu         sync.Mutex
	collection *chromem.Collection
}

var _ VectorIndex = (*ChromemIndex)(nil)

var chromemTracer = otel.Tracer("indexd.vectorstore.chromem")

// NewChromemIndex opens (or creates) the chromem database and collection.
func NewChromemIndex(config ChromemConfig, logger *zap.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	var db *chromem.DB
	var err error
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db: %w", err)
		}
	}

	idx := &ChromemIndex{db: db, config: config, logger: logger}
	if _, err := idx.getCollection(); err != nil {
		return nil, err
	}
	return idx, nil
}

// noEmbed rejects any implicit embedding: all vectors are precomputed
// by the embedding gateway.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errors.New("implicit embedding not supported")
}

func (c *ChromemIndex) getCollection() (*chromem.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collection != nil {
		return c.collection, nil
	}
	collection, err := c.db.GetOrCreateCollection(c.config.CollectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", c.config.CollectionName, err)
	}
	c.collection = collection
	return collection, nil
}

func (c *ChromemIndex) UpsertPoints(ctx context.Context, docs []IndexedDocument) error {
	ctx, span := chromemTracer.Start(ctx, "chromem.upsert_points")
	defer span.End()
	span.SetAttributes(attribute.Int("points.count", len(docs)))

	if len(docs) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	collection, err := c.getCollection()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        pointID(doc),
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata: map[string]string{
				"tenant_id":    ScopeKey(doc.TenantID),
				"source_type":  string(doc.SourceType),
				"source_id":    doc.SourceID,
				"chunk_id":     doc.ChunkID,
				"chunk_index":  strconv.Itoa(doc.ChunkIndex),
				"total_chunks": strconv.Itoa(doc.TotalChunks),
				"title":        doc.Title,
				"domain":       doc.Domain,
				"version":      doc.Version,
				"content_hash": doc.ContentHash,
			},
		}
	}

	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *ChromemIndex) DeletePoints(ctx context.Context, tenantID string, sourceType *chunking.SourceType, sourceID *string) error {
	ctx, span := chromemTracer.Start(ctx, "chromem.delete_points")
	defer span.End()

	collection, err := c.getCollection()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	where := map[string]string{"tenant_id": ScopeKey(tenantID)}
	if sourceType != nil {
		where["source_type"] = string(*sourceType)
	}
	if sourceID != nil {
		where["source_id"] = *sourceID
	}

	if err := collection.Delete(ctx, where, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting points: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *ChromemIndex) Search(ctx context.Context, tenantID string, query []float32, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "chromem.search",
		trace.WithAttributes(attribute.Int("limit", opts.Limit)))
	defer span.End()

	collection, err := c.getCollection()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	where := map[string]string{"tenant_id": ScopeKey(tenantID)}
	if opts.Filter.SourceType != nil {
		where["source_type"] = string(*opts.Filter.SourceType)
	}
	if opts.Filter.Domain != nil {
		where["domain"] = *opts.Filter.Domain
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	// chromem rejects nResults larger than the collection size
	if count := collection.Count(); limit > count {
		limit = count
	}
	if limit == 0 {
		span.SetStatus(codes.Ok, "")
		return nil, nil
	}

	hits, err := collection.QueryEmbedding(ctx, query, limit, where, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < opts.Threshold {
			continue
		}
		results = append(results, SearchResult{
			Document:   docFromChromem(tenantID, hit),
			Similarity: hit.Similarity,
		})
	}
	span.SetStatus(codes.Ok, "")
	return results, nil
}

func (c *ChromemIndex) Close() error { return nil }

func docFromChromem(tenantID string, hit chromem.Result) IndexedDocument {
	meta := hit.Metadata
	chunkIndex, _ := strconv.Atoi(meta["chunk_index"])
	totalChunks, _ := strconv.Atoi(meta["total_chunks"])
	return IndexedDocument{
		DocumentChunk: chunking.DocumentChunk{
			ChunkID:     meta["chunk_id"],
			ChunkIndex:  chunkIndex,
			TotalChunks: totalChunks,
			Content:     hit.Content,
			SourceType:  chunking.SourceType(meta["source_type"]),
			SourceID:    meta["source_id"],
			Title:       meta["title"],
			Domain:      meta["domain"],
			Version:     meta["version"],
		},
		TenantID:    tenantID,
		Embedding:   hit.Embedding,
		ContentHash: meta["content_hash"],
	}
}
