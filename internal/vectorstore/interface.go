// Package vectorstore provides tenant-isolated persistence of document
// chunks and their embedding vectors, with similarity search over a
// native vector index or a pure-computation fallback.
package vectorstore

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

var (
	ErrInvalidTenant     = errors.New("invalid tenant ID")
	ErrEmptyDocuments    = errors.New("no documents provided")
	ErrInvalidDimension  = errors.New("invalid embedding dimension")
	ErrNotFound          = errors.New("document not found")
	ErrStoreUnavailable  = errors.New("vector store unavailable")
	ErrInvalidCollection = errors.New("invalid collection name")
)

// IndexedDocument is a persisted chunk plus its embedding vector.
// TenantID is empty for global content. Uniqueness is on
// (TenantID, SourceType, SourceID, ChunkID); re-indexing the same
// identity upserts in place.
type IndexedDocument struct {
	chunking.DocumentChunk

	TenantID           string
	Embedding          []float32
	EmbeddingModel     string
	EmbeddingDimension int
	ContentHash        string
	Fingerprint        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SearchFilter narrows a similarity search. Nil fields match everything.
type SearchFilter struct {
	SourceType *chunking.SourceType
	Domain     *string
}

// SearchOptions controls ranking and truncation.
type SearchOptions struct {
	Limit     int
	Threshold float32
	Filter    SearchFilter
}

// SearchResult is one ranked hit.
type SearchResult struct {
	Document   IndexedDocument
	Similarity float32
}

// Store is the tenant-isolated document store. Every operation is scoped
// by tenant equality at the data layer; tenantID == "" addresses global
// content only. Deletes return the number of rows removed; a miss is
// zero, not an error.
type Store interface {
	// UpsertChunks inserts or updates documents by identity key and
	// returns the count written. The store computes and records each
	// chunk's content hash.
	UpsertChunks(ctx context.Context, tenantID string, docs []IndexedDocument) (int, error)

	// GetSourceFingerprint returns the stored fingerprint for a source
	// document, or "" when the source is not indexed.
	GetSourceFingerprint(ctx context.Context, tenantID string, sourceType chunking.SourceType, sourceID string) (string, error)

	DeleteBySource(ctx context.Context, tenantID string, sourceType chunking.SourceType, sourceID string) (int, error)
	DeleteBySourceType(ctx context.Context, tenantID string, sourceType chunking.SourceType) (int, error)
	DeleteByTenant(ctx context.Context, tenantID string) (int, error)

	// SimilaritySearch returns documents ranked by cosine similarity
	// descending, filtered to similarity >= Threshold and truncated to
	// Limit.
	SimilaritySearch(ctx context.Context, tenantID string, query []float32, opts SearchOptions) ([]SearchResult, error)

	Close() error
}

// VectorIndex is the narrow capability interface of a native
// vector-distance backend. It mirrors a subset of Store writes and
// serves ranked search; the record store remains the system of record.
type VectorIndex interface {
	UpsertPoints(ctx context.Context, docs []IndexedDocument) error

	// DeletePoints removes points matching tenant plus the optional
	// source-type and source-ID narrowing.
	DeletePoints(ctx context.Context, tenantID string, sourceType *chunking.SourceType, sourceID *string) error

	Search(ctx context.Context, tenantID string, query []float32, opts SearchOptions) ([]SearchResult, error)

	Close() error
}
