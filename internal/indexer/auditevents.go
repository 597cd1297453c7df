package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

// AuditIndexer indexes audit trail events. Events emitted outside any
// tenant context are indexed globally with an empty tenant ID and
// tracked under their own watermark scope.
type AuditIndexer struct {
	*Pipeline
	source AuditSource
}

var _ SourceIndexer = (*AuditIndexer)(nil)

func NewAuditIndexer(pipeline *Pipeline, source AuditSource) *AuditIndexer {
	return &AuditIndexer{Pipeline: pipeline, source: source}
}

func (x *AuditIndexer) SourceType() chunking.SourceType {
	return chunking.SourceAuditEvent
}

// SupportsTenant reports true for the global scope too: audit events
// are the one source that exists outside tenant boundaries.
func (x *AuditIndexer) SupportsTenant(tenantID string) bool { return x.supportsTenant(tenantID) }

func (x *AuditIndexer) IndexIncremental(ctx context.Context, tenantID string) (IndexingResult, error) {
	if x.source == nil {
		return IndexingResult{}, fmt.Errorf("%w for audit events", ErrNoSource)
	}
	return x.runIncremental(ctx, tenantID, x.SourceType(), x.fetch)
}

func (x *AuditIndexer) IndexFull(ctx context.Context, tenantID string, forceReindex bool) (IndexingResult, error) {
	if x.source == nil {
		return IndexingResult{}, fmt.Errorf("%w for audit events", ErrNoSource)
	}
	return x.runFull(ctx, tenantID, x.SourceType(), forceReindex, x.fetch)
}

func (x *AuditIndexer) fetch(ctx context.Context, tenantID string, newerThan time.Time) ([]chunking.SourceDocument, time.Time, int, error) {
	events, err := x.source.ListAuditEvents(ctx, tenantID, newerThan)
	if err != nil {
		return nil, time.Time{}, 0, err
	}

	docs := make([]chunking.SourceDocument, 0, len(events))
	var maxSeen time.Time
	for _, e := range events {
		maxSeen = maxTime(maxSeen, e.CreatedAt)
		docs = append(docs, convertAuditEvent(e))
	}
	return docs, maxSeen, 0, nil
}

func (x *AuditIndexer) RemoveDocument(ctx context.Context, tenantID, sourceID string) (bool, error) {
	return x.removeDocument(ctx, tenantID, x.SourceType(), sourceID)
}
