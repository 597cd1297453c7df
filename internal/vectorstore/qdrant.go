package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

// QdrantConfig holds configuration for the Qdrant gRPC index.
type QdrantConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	APIKey         string        `koanf:"api_key"`
	UseTLS         bool          `koanf:"use_tls"`
	CollectionName string        `koanf:"collection_name"`
	VectorSize     int           `koanf:"vector_size"`
	MaxRetries     int           `koanf:"max_retries"`
	RetryBackoff   time.Duration `koanf:"retry_backoff"`
	MaxMessageSize int           `koanf:"max_message_size"`
}

func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.CollectionName == "" {
		c.CollectionName = "indexd_documents"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

func (c *QdrantConfig) Validate() error {
	if !collectionNamePattern.MatchString(c.CollectionName) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, c.CollectionName)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector_size must be positive", ErrInvalidDimension)
	}
	return nil
}

// QdrantIndex is a VectorIndex backed by Qdrant's gRPC API with cosine
// distance. Point IDs are deterministic UUIDs derived from the document
// identity key, so re-upserts overwrite in place.
type QdrantIndex struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

var _ VectorIndex = (*QdrantIndex)(nil)

var qdrantTracer = otel.Tracer("indexd.vectorstore.qdrant")

// NewQdrantIndex connects to Qdrant and ensures the collection exists.
func NewQdrantIndex(config QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	idx := &QdrantIndex{client: client, config: config, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := idx.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.config.CollectionName)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.config.CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.config.VectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}

// pointID derives a stable UUID from the document identity key.
func pointID(doc IndexedDocument) string {
	key := ScopeKey(doc.TenantID) + "/" + string(doc.SourceType) + "/" + doc.SourceID + "/" + doc.ChunkID
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func (q *QdrantIndex) UpsertPoints(ctx context.Context, docs []IndexedDocument) error {
	ctx, span := qdrantTracer.Start(ctx, "qdrant.upsert_points")
	defer span.End()
	span.SetAttributes(attribute.Int("points.count", len(docs)))

	if len(docs) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		payload := map[string]*qdrant.Value{
			"tenant_id":    qdrantString(ScopeKey(doc.TenantID)),
			"source_type":  qdrantString(string(doc.SourceType)),
			"source_id":    qdrantString(doc.SourceID),
			"chunk_id":     qdrantString(doc.ChunkID),
			"chunk_index":  {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(doc.ChunkIndex)}},
			"total_chunks": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(doc.TotalChunks)}},
			"content":      qdrantString(doc.Content),
			"title":        qdrantString(doc.Title),
			"domain":       qdrantString(doc.Domain),
			"version":      qdrantString(doc.Version),
			"content_hash": qdrantString(doc.ContentHash),
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(doc)),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: payload,
		}
	}

	err := q.retry(ctx, "upsert", func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.config.CollectionName,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (q *QdrantIndex) DeletePoints(ctx context.Context, tenantID string, sourceType *chunking.SourceType, sourceID *string) error {
	ctx, span := qdrantTracer.Start(ctx, "qdrant.delete_points")
	defer span.End()

	conditions := []*qdrant.Condition{matchKeyword("tenant_id", ScopeKey(tenantID))}
	if sourceType != nil {
		conditions = append(conditions, matchKeyword("source_type", string(*sourceType)))
	}
	if sourceID != nil {
		conditions = append(conditions, matchKeyword("source_id", *sourceID))
	}

	err := q.retry(ctx, "delete", func() error {
		_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: q.config.CollectionName,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: &qdrant.Filter{Must: conditions},
				},
			},
			Wait: qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, tenantID string, query []float32, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "qdrant.search",
		trace.WithAttributes(attribute.Int("limit", opts.Limit)))
	defer span.End()

	conditions := []*qdrant.Condition{matchKeyword("tenant_id", ScopeKey(tenantID))}
	if opts.Filter.SourceType != nil {
		conditions = append(conditions, matchKeyword("source_type", string(*opts.Filter.SourceType)))
	}
	if opts.Filter.Domain != nil {
		conditions = append(conditions, matchKeyword("domain", *opts.Filter.Domain))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	var points []*qdrant.ScoredPoint
	err := q.retry(ctx, "query", func() error {
		res, err := q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: q.config.CollectionName,
			Query:          qdrant.NewQuery(query...),
			Limit:          qdrant.PtrOf(uint64(limit)),
			ScoreThreshold: qdrant.PtrOf(opts.Threshold),
			Filter:         &qdrant.Filter{Must: conditions},
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, SearchResult{
			Document:   docFromPayload(tenantID, p.Payload),
			Similarity: p.Score,
		})
	}
	span.SetStatus(codes.Ok, "")
	return results, nil
}

func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// retry runs op with exponential backoff on transient gRPC errors.
func (q *QdrantIndex) retry(ctx context.Context, name string, op func() error) error {
	backoff := q.config.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= q.config.MaxRetries; attempt++ {
		if attempt > 0 {
			q.logger.Warn("retrying qdrant operation",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		err := op()
		if err == nil {
			return nil
		}
		if !isTransientGRPCError(err) {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		lastErr = err
	}
	return fmt.Errorf("%s failed after %d retries: %w", name, q.config.MaxRetries, lastErr)
}

func isTransientGRPCError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.ResourceExhausted, grpccodes.Aborted:
		return true
	}
	return false
}

func qdrantString(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func matchKeyword(field, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   field,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

// docFromPayload rebuilds an IndexedDocument from a point payload.
func docFromPayload(tenantID string, payload map[string]*qdrant.Value) IndexedDocument {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
				return s.StringValue
			}
		}
		return ""
	}
	num := func(key string) int {
		if v, ok := payload[key]; ok {
			switch k := v.Kind.(type) {
			case *qdrant.Value_IntegerValue:
				return int(k.IntegerValue)
			case *qdrant.Value_StringValue:
				n, _ := strconv.Atoi(k.StringValue)
				return n
			}
		}
		return 0
	}

	return IndexedDocument{
		DocumentChunk: chunking.DocumentChunk{
			ChunkID:     str("chunk_id"),
			ChunkIndex:  num("chunk_index"),
			TotalChunks: num("total_chunks"),
			Content:     str("content"),
			SourceType:  chunking.SourceType(str("source_type")),
			SourceID:    str("source_id"),
			Title:       str("title"),
			Domain:      str("domain"),
			Version:     str("version"),
		},
		TenantID:    tenantID,
		ContentHash: str("content_hash"),
	}
}
