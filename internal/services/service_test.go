package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/config"
	"github.com/fyrsmithlabs/indexd/internal/embeddings"
	"github.com/fyrsmithlabs/indexd/internal/indexer"
	"github.com/fyrsmithlabs/indexd/internal/rebuild"
	"github.com/fyrsmithlabs/indexd/internal/sqlite"
	"github.com/fyrsmithlabs/indexd/internal/vectorstore"
)

type staticPolicySource struct {
	docs []indexer.PolicyDoc
}

func (s *staticPolicySource) ListPolicyDocs(ctx context.Context, tenantID string, newerThan time.Time) ([]indexer.PolicyDoc, error) {
	var out []indexer.PolicyDoc
	for _, d := range s.docs {
		if d.TenantID == tenantID && d.UpdatedAt.After(newerThan) {
			out = append(out, d)
		}
	}
	return out, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Embeddings: embeddings.Config{Provider: embeddings.ProviderMock, Dimension: 16},
		Storage:    sqlite.Config{DataDir: t.TempDir()},
		Chunking: config.ChunkingConfig{
			Defaults: chunking.Config{Strategy: chunking.StrategyFixed},
			Presets:  chunking.DefaultPresets(),
		},
	}
	cfg.Embeddings.ApplyDefaults()
	cfg.Vector.ApplyDefaults()
	cfg.Chunking.Defaults.ApplyDefaults()
	return cfg
}

func TestServiceEndToEnd(t *testing.T) {
	ctx := context.Background()
	source := &staticPolicySource{docs: []indexer.PolicyDoc{{
		ID:       "pol-1",
		TenantID: "T1",
		Title:    "Change management",
		Content: "Production changes require a reviewed change request. " +
			"Emergency changes are reviewed retroactively within one business day.",
		Domain:    "operations",
		Version:   "2",
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}}

	svc, err := New(testConfig(t), Sources{Policies: source}, nil)
	require.NoError(t, err)
	defer svc.Close()

	jobID, err := svc.Orchestrator().StartRebuild(ctx, "T1", []chunking.SourceType{chunking.SourcePolicyDoc}, false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := svc.Orchestrator().GetStatus(ctx, jobID)
		require.NoError(t, err)
		return status.State == rebuild.JobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	status, err := svc.Orchestrator().GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.DocumentsProcessed)
	assert.Positive(t, status.ChunksIndexed)

	// The indexed content is searchable through the same service.
	query, err := svc.Gateway().Embed(ctx, "change request review")
	require.NoError(t, err)
	results, err := svc.Documents().SimilaritySearch(ctx, "T1", query.Vector, vectorstore.SearchOptions{Limit: 5, Threshold: -1})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Document.Content, "change request")

	// Other tenants see nothing.
	results, err = svc.Documents().SimilaritySearch(ctx, "T2", query.Vector, vectorstore.SearchOptions{Limit: 5, Threshold: -1})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestServiceRegistersOnlyConfiguredSources(t *testing.T) {
	svc, err := New(testConfig(t), Sources{}, nil)
	require.NoError(t, err)
	defer svc.Close()

	// Playbooks are always available; pull-based sources need providers.
	assert.True(t, svc.Indexers().Has(chunking.SourcePlaybook))
	assert.False(t, svc.Indexers().Has(chunking.SourcePolicyDoc))
	assert.False(t, svc.Indexers().Has(chunking.SourceAuditEvent))
}
