package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/vectorstore"
)

type fakeCaseSource struct {
	cases     []CaseRecord
	events    map[string][]CaseEvent
	eventsErr error
}

func (f *fakeCaseSource) ListResolvedCases(ctx context.Context, tenantID string, newerThan time.Time) ([]CaseRecord, error) {
	var out []CaseRecord
	for _, c := range f.cases {
		if c.TenantID == tenantID && c.ResolvedAt.After(newerThan) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCaseSource) CaseEvents(ctx context.Context, tenantID, caseID string) ([]CaseEvent, error) {
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	return f.events[caseID], nil
}

func caseRecord(id string, resolved time.Time) CaseRecord {
	return CaseRecord{
		ID:         id,
		TenantID:   "T1",
		Title:      "Payment gateway timeout spike",
		Domain:     "payments",
		Severity:   "high",
		Summary:    "Checkout requests timed out intermittently for twenty minutes.",
		ResolvedAt: resolved,
		UpdatedAt:  resolved,
	}
}

func TestExceptionIndexerSkipsUnresolved(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := vectorstore.NewMemoryStore()
	pipeline, _ := newTestPipeline(t, store)
	source := &fakeCaseSource{
		cases: []CaseRecord{
			caseRecord("case-1", base),
			caseRecord("case-2", base.Add(time.Minute)),
		},
		events: map[string][]CaseEvent{
			"case-1": {
				{ID: "e1", CaseID: "case-1", Type: "comment", Note: "Investigating."},
				{ID: "e2", CaseID: "case-1", Type: "resolution", Note: "Connection pool exhausted; raised the pool ceiling and added an alert."},
			},
			// case-2 has history but no resolution information at all.
			"case-2": {
				{ID: "e3", CaseID: "case-2", Type: "comment", Note: "Still looking."},
			},
		},
	}
	idx := NewExceptionIndexer(pipeline, source)

	// Only the case with a resolution is indexed; the other is skipped,
	// not failed.
	result, err := idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Zero(t, result.DocumentsFailed)

	// Re-running indexes nothing new.
	result, err = idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	assert.Zero(t, result.DocumentsProcessed)

	// A case resolved after the watermark is picked up on the next run.
	source.cases = append(source.cases, caseRecord("case-3", base.Add(time.Hour)))
	source.events["case-3"] = []CaseEvent{
		{ID: "e4", CaseID: "case-3", Type: "resolution", Note: "Rolled back the faulty deploy."},
	}
	result, err = idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)
}

func TestExceptionIndexerHoldsWatermarkOnEventHistoryError(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := vectorstore.NewMemoryStore()
	pipeline, watermarks := newTestPipeline(t, store)
	source := &fakeCaseSource{
		cases: []CaseRecord{caseRecord("case-1", base)},
		events: map[string][]CaseEvent{
			"case-1": {
				{ID: "e1", CaseID: "case-1", Type: "resolution", Note: "Raised the connection pool ceiling."},
			},
		},
		eventsErr: errors.New("event store unavailable"),
	}
	idx := NewExceptionIndexer(pipeline, source)

	// A failed event-history fetch is counted and holds the watermark;
	// only resolution absence is a benign skip.
	result, err := idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	assert.Zero(t, result.DocumentsProcessed)
	assert.Equal(t, 1, result.DocumentsFailed)
	assert.True(t, result.Watermark.IsZero())

	mark, err := watermarks.GetWatermark(ctx, "T1", chunking.SourceResolvedException)
	require.NoError(t, err)
	assert.True(t, mark.IsZero(), "watermark must not advance past a case whose events failed to load")

	// Once the event store recovers the case is reprocessed.
	source.eventsErr = nil
	result, err = idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Zero(t, result.DocumentsFailed)
	assert.Equal(t, base, result.Watermark)
}

func TestExceptionIndexerHeuristicFallback(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := vectorstore.NewMemoryStore()
	pipeline, _ := newTestPipeline(t, store)
	source := &fakeCaseSource{
		cases: []CaseRecord{caseRecord("case-1", base)},
		events: map[string][]CaseEvent{
			"case-1": {
				{ID: "e1", CaseID: "case-1", Type: "status_change", Payload: map[string]string{
					"resolution_note": "Cleared stale cache entries after the schema migration.",
				}},
			},
		},
	}
	idx := NewExceptionIndexer(pipeline, source)

	result, err := idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, 1, result.DocumentsProcessed)

	query, err := pipeline.gateway.Embed(ctx, "cache migration resolution")
	require.NoError(t, err)
	results, err := store.SimilaritySearch(ctx, "T1", query.Vector, vectorstore.SearchOptions{Limit: 10, Threshold: -1})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	// Heuristic matches are flagged so consumers can weigh them down.
	assert.Equal(t, "heuristic", results[0].Document.Metadata["resolution_source"])
	assert.Contains(t, results[0].Document.Content, "stale cache entries")
}

func TestFindResolution(t *testing.T) {
	t.Run("explicit event wins over payload", func(t *testing.T) {
		note, source := findResolution([]CaseEvent{
			{Type: "status_change", Payload: map[string]string{"resolution": "from payload"}},
			{Type: "resolution", Note: "from event"},
		})
		assert.Equal(t, "from event", note)
		assert.Equal(t, resolutionSourceEvent, source)
	})

	t.Run("payload fallback flagged heuristic", func(t *testing.T) {
		note, source := findResolution([]CaseEvent{
			{Type: "update", Payload: map[string]string{"auto_resolution_summary": "restarted the worker"}},
		})
		assert.Equal(t, "restarted the worker", note)
		assert.Equal(t, resolutionSourceHeuristic, source)
	})

	t.Run("multiple payload keys resolve deterministically", func(t *testing.T) {
		// Key order in the payload map must not change which
		// narrative wins, or fingerprints drift between runs.
		event := CaseEvent{Type: "update", Payload: map[string]string{
			"resolution_note": "from the later key",
			"auto_resolution": "from the earlier key",
		}}
		for i := 0; i < 20; i++ {
			note, source := findResolution([]CaseEvent{event})
			assert.Equal(t, "from the earlier key", note)
			assert.Equal(t, resolutionSourceHeuristic, source)
		}
	})

	t.Run("no resolution", func(t *testing.T) {
		note, source := findResolution([]CaseEvent{{Type: "comment", Note: "nope"}})
		assert.Empty(t, note)
		assert.Empty(t, source)
	})
}
