package indexer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

// eventTypeResolution is the explicit resolution event type; cases
// without one fall back to scanning payloads for a resolution-shaped
// key.
const eventTypeResolution = "resolution"

// ExceptionIndexer indexes resolved exception cases. The resolution
// narrative is recovered from the case's event history; a case with no
// resolution information at all is skipped, not failed.
type ExceptionIndexer struct {
	*Pipeline
	source CaseSource
}

var _ SourceIndexer = (*ExceptionIndexer)(nil)

func NewExceptionIndexer(pipeline *Pipeline, source CaseSource) *ExceptionIndexer {
	return &ExceptionIndexer{Pipeline: pipeline, source: source}
}

func (x *ExceptionIndexer) SourceType() chunking.SourceType {
	return chunking.SourceResolvedException
}

func (x *ExceptionIndexer) SupportsTenant(tenantID string) bool { return x.supportsTenant(tenantID) }

func (x *ExceptionIndexer) IndexIncremental(ctx context.Context, tenantID string) (IndexingResult, error) {
	if x.source == nil {
		return IndexingResult{}, fmt.Errorf("%w for resolved exceptions", ErrNoSource)
	}
	return x.runIncremental(ctx, tenantID, x.SourceType(), x.fetch)
}

func (x *ExceptionIndexer) IndexFull(ctx context.Context, tenantID string, forceReindex bool) (IndexingResult, error) {
	if x.source == nil {
		return IndexingResult{}, fmt.Errorf("%w for resolved exceptions", ErrNoSource)
	}
	return x.runFull(ctx, tenantID, x.SourceType(), forceReindex, x.fetch)
}

func (x *ExceptionIndexer) fetch(ctx context.Context, tenantID string, newerThan time.Time) ([]chunking.SourceDocument, time.Time, int, error) {
	cases, err := x.source.ListResolvedCases(ctx, tenantID, newerThan)
	if err != nil {
		return nil, time.Time{}, 0, err
	}

	docs := make([]chunking.SourceDocument, 0, len(cases))
	var maxSeen time.Time
	var failed int
	for _, c := range cases {
		maxSeen = maxTime(maxSeen, c.ResolvedAt)
		maxSeen = maxTime(maxSeen, c.UpdatedAt)

		// An unavailable event history is a failure, not a skip: it
		// must hold the watermark so the case is retried, unlike the
		// benign absence of resolution information below.
		events, err := x.source.CaseEvents(ctx, tenantID, c.ID)
		if err != nil {
			failed++
			x.logger.Warn("case event history unavailable",
				zap.String("case_id", c.ID), zap.Error(err))
			continue
		}

		resolution, source := findResolution(events)
		if resolution == "" {
			x.logger.Debug("case has no resolution information, skipping",
				zap.String("case_id", c.ID))
			continue
		}
		docs = append(docs, convertResolvedException(c, resolution, source))
	}
	return docs, maxSeen, failed, nil
}

// findResolution recovers the resolution narrative from a case's event
// history: an exact resolution-type event wins; otherwise any event
// whose payload contains a resolution-shaped key is used as a degraded
// fallback and marked as heuristic.
func findResolution(events []CaseEvent) (string, string) {
	for _, e := range events {
		if e.Type == eventTypeResolution && e.Note != "" {
			return e.Note, resolutionSourceEvent
		}
	}
	for _, e := range events {
		// Sorted keys keep the chosen narrative, and therefore the
		// document fingerprint, stable across runs.
		keys := make([]string, 0, len(e.Payload))
		for key := range e.Payload {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if value := e.Payload[key]; strings.Contains(strings.ToLower(key), "resolution") && value != "" {
				return value, resolutionSourceHeuristic
			}
		}
	}
	return "", ""
}

func (x *ExceptionIndexer) RemoveDocument(ctx context.Context, tenantID, sourceID string) (bool, error) {
	return x.removeDocument(ctx, tenantID, x.SourceType(), sourceID)
}
