package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

// PlaybookIndexer indexes operational playbooks. Playbooks have no
// discovery query of their own: callers push the set to index through
// IndexPlaybooks, typically on publish. IndexIncremental is therefore
// a no-op that returns an empty result.
type PlaybookIndexer struct {
	*Pipeline
}

var _ SourceIndexer = (*PlaybookIndexer)(nil)

func NewPlaybookIndexer(pipeline *Pipeline) *PlaybookIndexer {
	return &PlaybookIndexer{Pipeline: pipeline}
}

func (x *PlaybookIndexer) SourceType() chunking.SourceType {
	return chunking.SourcePlaybook
}

func (x *PlaybookIndexer) SupportsTenant(tenantID string) bool { return x.supportsTenant(tenantID) }

func (x *PlaybookIndexer) IndexIncremental(ctx context.Context, tenantID string) (IndexingResult, error) {
	if !x.supportsTenant(tenantID) {
		return IndexingResult{}, fmt.Errorf("%w: %q", ErrInvalidTenant, tenantID)
	}
	return IndexingResult{SourceType: x.SourceType(), TenantID: tenantID}, nil
}

func (x *PlaybookIndexer) IndexFull(ctx context.Context, tenantID string, forceReindex bool) (IndexingResult, error) {
	if !x.supportsTenant(tenantID) {
		return IndexingResult{}, fmt.Errorf("%w: %q", ErrInvalidTenant, tenantID)
	}
	if forceReindex {
		if _, err := x.store.DeleteBySourceType(ctx, tenantID, x.SourceType()); err != nil {
			return IndexingResult{}, err
		}
	}
	return IndexingResult{SourceType: x.SourceType(), TenantID: tenantID}, nil
}

// IndexPlaybooks indexes the supplied playbooks for a tenant. Unchanged
// playbooks (same fingerprint) are skipped unless forceReindex is set.
func (x *PlaybookIndexer) IndexPlaybooks(ctx context.Context, tenantID string, playbooks []Playbook, forceReindex bool) (IndexingResult, error) {
	if !x.supportsTenant(tenantID) {
		return IndexingResult{}, fmt.Errorf("%w: %q", ErrInvalidTenant, tenantID)
	}

	docs := make([]chunking.SourceDocument, 0, len(playbooks))
	var maxSeen time.Time
	for _, p := range playbooks {
		maxSeen = maxTime(maxSeen, p.UpdatedAt)
		docs = append(docs, convertPlaybook(p))
	}

	result := x.indexDocuments(ctx, tenantID, x.SourceType(), docs, forceReindex)
	if err := x.advanceWatermark(ctx, tenantID, x.SourceType(), &result, maxSeen); err != nil {
		return result, err
	}
	return result, nil
}

func (x *PlaybookIndexer) RemoveDocument(ctx context.Context, tenantID, sourceID string) (bool, error) {
	return x.removeDocument(ctx, tenantID, x.SourceType(), sourceID)
}
