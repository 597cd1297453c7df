package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

// PolicyIndexer indexes policy documents.
type PolicyIndexer struct {
	*Pipeline
	source PolicySource
}

var _ SourceIndexer = (*PolicyIndexer)(nil)

func NewPolicyIndexer(pipeline *Pipeline, source PolicySource) *PolicyIndexer {
	return &PolicyIndexer{Pipeline: pipeline, source: source}
}

func (x *PolicyIndexer) SourceType() chunking.SourceType { return chunking.SourcePolicyDoc }

func (x *PolicyIndexer) SupportsTenant(tenantID string) bool { return x.supportsTenant(tenantID) }

func (x *PolicyIndexer) IndexIncremental(ctx context.Context, tenantID string) (IndexingResult, error) {
	if x.source == nil {
		return IndexingResult{}, fmt.Errorf("%w for policy docs", ErrNoSource)
	}
	return x.runIncremental(ctx, tenantID, x.SourceType(), x.fetch)
}

func (x *PolicyIndexer) IndexFull(ctx context.Context, tenantID string, forceReindex bool) (IndexingResult, error) {
	if x.source == nil {
		return IndexingResult{}, fmt.Errorf("%w for policy docs", ErrNoSource)
	}
	return x.runFull(ctx, tenantID, x.SourceType(), forceReindex, x.fetch)
}

func (x *PolicyIndexer) fetch(ctx context.Context, tenantID string, newerThan time.Time) ([]chunking.SourceDocument, time.Time, int, error) {
	records, err := x.source.ListPolicyDocs(ctx, tenantID, newerThan)
	if err != nil {
		return nil, time.Time{}, 0, err
	}
	docs := make([]chunking.SourceDocument, 0, len(records))
	var maxSeen time.Time
	for _, rec := range records {
		docs = append(docs, convertPolicyDoc(rec))
		maxSeen = maxTime(maxSeen, rec.UpdatedAt)
	}
	return docs, maxSeen, 0, nil
}

// IndexPolicyDocs indexes an explicit batch outside the watermark loop,
// for synchronous admin-triggered use.
func (x *PolicyIndexer) IndexPolicyDocs(ctx context.Context, tenantID string, records []PolicyDoc) (IndexingResult, error) {
	if !x.supportsTenant(tenantID) {
		return IndexingResult{}, fmt.Errorf("%w: %q", ErrInvalidTenant, tenantID)
	}
	docs := make([]chunking.SourceDocument, 0, len(records))
	for _, rec := range records {
		docs = append(docs, convertPolicyDoc(rec))
	}
	return x.indexDocuments(ctx, tenantID, x.SourceType(), docs, false), nil
}

func (x *PolicyIndexer) RemoveDocument(ctx context.Context, tenantID, sourceID string) (bool, error) {
	return x.removeDocument(ctx, tenantID, x.SourceType(), sourceID)
}
