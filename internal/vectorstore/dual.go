package vectorstore

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

// IndexProvider selects the native vector index backend.
const (
	IndexNone    = "none"
	IndexQdrant  = "qdrant"
	IndexChromem = "chromem"
)

// DualConfig wires the record store to an optional native index. Native
// search is an explicit capability declaration, never a runtime probe:
// deployments that know their backend supports vector distance set
// NativeSearch, everything else uses the in-process cosine path.
type DualConfig struct {
	IndexProvider string        `koanf:"index_provider"`
	NativeSearch  bool          `koanf:"native_search"`
	Qdrant        QdrantConfig  `koanf:"qdrant"`
	Chromem       ChromemConfig `koanf:"chromem"`
}

func (c *DualConfig) ApplyDefaults() {
	if c.IndexProvider == "" {
		c.IndexProvider = IndexNone
	}
	c.Qdrant.ApplyDefaults()
	c.Chromem.ApplyDefaults()
}

func (c *DualConfig) Validate() error {
	switch c.IndexProvider {
	case IndexNone, IndexQdrant, IndexChromem:
	default:
		return fmt.Errorf("unknown index provider %q", c.IndexProvider)
	}
	if c.NativeSearch && c.IndexProvider == IndexNone {
		return fmt.Errorf("native_search requires an index provider")
	}
	return nil
}

// NewIndex constructs the configured native index, or nil for none.
func NewIndex(cfg DualConfig, logger *zap.Logger) (VectorIndex, error) {
	switch cfg.IndexProvider {
	case IndexNone:
		return nil, nil
	case IndexQdrant:
		return NewQdrantIndex(cfg.Qdrant, logger)
	case IndexChromem:
		return NewChromemIndex(cfg.Chromem, logger)
	default:
		return nil, fmt.Errorf("unknown index provider %q", cfg.IndexProvider)
	}
}

// DualStore is a Store that writes through to a record store and
// mirrors writes into a native vector index. Searches prefer the native
// index when enabled and fall back to the record store's in-process
// cosine path on error; the two paths agree within floating-point
// tolerance.
type DualStore struct {
	record Store
	index  VectorIndex
	native bool
	logger *zap.Logger
	tracer trace.Tracer
}

var _ Store = (*DualStore)(nil)

// NewDualStore combines the record store with an optional native index.
// index may be nil, in which case every search uses the fallback path.
func NewDualStore(record Store, index VectorIndex, cfg DualConfig, logger *zap.Logger) (*DualStore, error) {
	if record == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DualStore{
		record: record,
		index:  index,
		native: cfg.NativeSearch && index != nil,
		logger: logger,
		tracer: otel.Tracer("indexd.vectorstore.dual"),
	}, nil
}

func (d *DualStore) UpsertChunks(ctx context.Context, tenantID string, docs []IndexedDocument) (int, error) {
	count, err := d.record.UpsertChunks(ctx, tenantID, docs)
	if err != nil {
		return 0, err
	}
	if d.index != nil {
		// The record store computes content hashes internally, so the
		// mirror fills them on copies rather than mutating the
		// caller's slice.
		mirror := make([]IndexedDocument, len(docs))
		copy(mirror, docs)
		for i := range mirror {
			mirror[i].TenantID = tenantID
			if mirror[i].ContentHash == "" {
				mirror[i].ContentHash = HashContent(mirror[i].Content)
			}
		}
		if err := d.index.UpsertPoints(ctx, mirror); err != nil {
			return 0, fmt.Errorf("mirroring to index: %w", err)
		}
	}
	return count, nil
}

func (d *DualStore) GetSourceFingerprint(ctx context.Context, tenantID string, sourceType chunking.SourceType, sourceID string) (string, error) {
	return d.record.GetSourceFingerprint(ctx, tenantID, sourceType, sourceID)
}

func (d *DualStore) DeleteBySource(ctx context.Context, tenantID string, sourceType chunking.SourceType, sourceID string) (int, error) {
	count, err := d.record.DeleteBySource(ctx, tenantID, sourceType, sourceID)
	if err != nil {
		return 0, err
	}
	if d.index != nil {
		if err := d.index.DeletePoints(ctx, tenantID, &sourceType, &sourceID); err != nil {
			return 0, fmt.Errorf("mirroring delete to index: %w", err)
		}
	}
	return count, nil
}

func (d *DualStore) DeleteBySourceType(ctx context.Context, tenantID string, sourceType chunking.SourceType) (int, error) {
	count, err := d.record.DeleteBySourceType(ctx, tenantID, sourceType)
	if err != nil {
		return 0, err
	}
	if d.index != nil {
		if err := d.index.DeletePoints(ctx, tenantID, &sourceType, nil); err != nil {
			return 0, fmt.Errorf("mirroring delete to index: %w", err)
		}
	}
	return count, nil
}

func (d *DualStore) DeleteByTenant(ctx context.Context, tenantID string) (int, error) {
	count, err := d.record.DeleteByTenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if d.index != nil {
		if err := d.index.DeletePoints(ctx, tenantID, nil, nil); err != nil {
			return 0, fmt.Errorf("mirroring delete to index: %w", err)
		}
	}
	return count, nil
}

func (d *DualStore) SimilaritySearch(ctx context.Context, tenantID string, query []float32, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := d.tracer.Start(ctx, "vectorstore.similarity_search",
		trace.WithAttributes(
			attribute.Bool("native", d.native),
			attribute.Int("limit", opts.Limit)))
	defer span.End()

	if err := ValidateTenantID(tenantID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if d.native {
		results, err := d.index.Search(ctx, tenantID, query, opts)
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return results, nil
		}
		d.logger.Warn("native search failed, using fallback path",
			zap.String("tenant_id", ScopeKey(tenantID)),
			zap.Error(err))
		span.RecordError(err)
	}

	results, err := d.record.SimilaritySearch(ctx, tenantID, query, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return results, nil
}

func (d *DualStore) Close() error {
	var firstErr error
	if d.index != nil {
		if err := d.index.Close(); err != nil {
			firstErr = err
		}
	}
	if err := d.record.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
