package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

// ToolIndexer indexes tool registry entries. Tool configuration is
// scrubbed of credentials before any text reaches the chunker, so
// secrets never enter the vector store.
type ToolIndexer struct {
	*Pipeline
	source ToolSource
}

var _ SourceIndexer = (*ToolIndexer)(nil)

func NewToolIndexer(pipeline *Pipeline, source ToolSource) *ToolIndexer {
	return &ToolIndexer{Pipeline: pipeline, source: source}
}

func (x *ToolIndexer) SourceType() chunking.SourceType {
	return chunking.SourceToolRegistry
}

func (x *ToolIndexer) SupportsTenant(tenantID string) bool { return x.supportsTenant(tenantID) }

func (x *ToolIndexer) IndexIncremental(ctx context.Context, tenantID string) (IndexingResult, error) {
	if x.source == nil {
		return IndexingResult{}, fmt.Errorf("%w for tool registry", ErrNoSource)
	}
	return x.runIncremental(ctx, tenantID, x.SourceType(), x.fetch)
}

func (x *ToolIndexer) IndexFull(ctx context.Context, tenantID string, forceReindex bool) (IndexingResult, error) {
	if x.source == nil {
		return IndexingResult{}, fmt.Errorf("%w for tool registry", ErrNoSource)
	}
	return x.runFull(ctx, tenantID, x.SourceType(), forceReindex, x.fetch)
}

func (x *ToolIndexer) fetch(ctx context.Context, tenantID string, newerThan time.Time) ([]chunking.SourceDocument, time.Time, int, error) {
	tools, err := x.source.ListTools(ctx, tenantID, newerThan)
	if err != nil {
		return nil, time.Time{}, 0, err
	}

	docs := make([]chunking.SourceDocument, 0, len(tools))
	var maxSeen time.Time
	for _, t := range tools {
		maxSeen = maxTime(maxSeen, t.UpdatedAt)
		docs = append(docs, convertToolDefinition(t))
	}
	return docs, maxSeen, 0, nil
}

func (x *ToolIndexer) RemoveDocument(ctx context.Context, tenantID, sourceID string) (bool, error) {
	return x.removeDocument(ctx, tenantID, x.SourceType(), sourceID)
}
