package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/embeddings"
	"github.com/fyrsmithlabs/indexd/internal/vectorstore"
)

type fakePolicySource struct {
	docs []PolicyDoc
	err  error
}

func (f *fakePolicySource) ListPolicyDocs(ctx context.Context, tenantID string, newerThan time.Time) ([]PolicyDoc, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []PolicyDoc
	for _, d := range f.docs {
		if d.TenantID == tenantID && d.UpdatedAt.After(newerThan) {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeAuditSource struct {
	events []AuditEvent
}

func (f *fakeAuditSource) ListAuditEvents(ctx context.Context, tenantID string, newerThan time.Time) ([]AuditEvent, error) {
	var out []AuditEvent
	for _, e := range f.events {
		if e.TenantID == tenantID && e.CreatedAt.After(newerThan) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeToolSource struct {
	tools []ToolDefinition
}

func (f *fakeToolSource) ListTools(ctx context.Context, tenantID string, newerThan time.Time) ([]ToolDefinition, error) {
	var out []ToolDefinition
	for _, t := range f.tools {
		if t.TenantID == tenantID && t.UpdatedAt.After(newerThan) {
			out = append(out, t)
		}
	}
	return out, nil
}

// failingStore wraps a MemoryStore and fails every upsert.
type failingStore struct {
	*vectorstore.MemoryStore
}

func (f *failingStore) UpsertChunks(ctx context.Context, tenantID string, docs []vectorstore.IndexedDocument) (int, error) {
	return 0, errors.New("store unavailable")
}

func newTestPipeline(t *testing.T, store vectorstore.Store) (*Pipeline, *MemoryWatermarks) {
	t.Helper()
	engine, err := chunking.NewEngine(chunking.Config{Strategy: chunking.StrategyFixed}, chunking.DefaultPresets(), nil)
	require.NoError(t, err)

	cfg := embeddings.Config{Dimension: 8}
	cfg.ApplyDefaults()
	gateway := embeddings.NewGateway(embeddings.NewMockProvider(cfg.Model, 8), cfg, nil)

	watermarks := NewMemoryWatermarks()
	pipeline, err := NewPipeline(engine, gateway, store, watermarks, nil)
	require.NoError(t, err)
	return pipeline, watermarks
}

func policyDoc(id, tenant string, updated time.Time) PolicyDoc {
	return PolicyDoc{
		ID:       id,
		TenantID: tenant,
		Title:    "Data retention",
		Content: "All customer records must be retained for seven years. " +
			"Backups are rotated monthly and verified quarterly. " +
			"Deletion requests are honored within thirty days of receipt.",
		Domain:    "compliance",
		Version:   "1",
		UpdatedAt: updated,
	}
}

func TestPolicyIndexerIncremental(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := vectorstore.NewMemoryStore()
	pipeline, watermarks := newTestPipeline(t, store)
	source := &fakePolicySource{docs: []PolicyDoc{
		policyDoc("pol-1", "T1", base),
		policyDoc("pol-2", "T1", base.Add(time.Hour)),
	}}
	idx := NewPolicyIndexer(pipeline, source)

	result, err := idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.DocumentsProcessed)
	assert.Zero(t, result.DocumentsFailed)
	assert.Positive(t, result.ChunksIndexed)
	assert.Equal(t, base.Add(time.Hour), result.Watermark)

	mark, err := watermarks.GetWatermark(ctx, vectorstore.ScopeKey("T1"), chunking.SourcePolicyDoc)
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), mark)

	// Second run sees nothing newer than the watermark.
	result, err = idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	assert.Zero(t, result.DocumentsProcessed)
	assert.Zero(t, result.ChunksIndexed)
}

func TestPolicyIndexerSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := vectorstore.NewMemoryStore()
	pipeline, _ := newTestPipeline(t, store)
	source := &fakePolicySource{docs: []PolicyDoc{policyDoc("pol-1", "T1", base)}}
	idx := NewPolicyIndexer(pipeline, source)

	result, err := idx.IndexFull(ctx, "T1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)
	first := store.Count("T1")
	assert.Positive(t, first)

	// Unchanged document: fingerprint matches, nothing is re-embedded.
	result, err = idx.IndexFull(ctx, "T1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Zero(t, result.ChunksIndexed)
	assert.Equal(t, 1, result.ChunksSkipped)
	assert.Equal(t, first, store.Count("T1"))

	// forceReindex bypasses the fingerprint check.
	result, err = idx.IndexFull(ctx, "T1", true)
	require.NoError(t, err)
	assert.Positive(t, result.ChunksIndexed)
	assert.Zero(t, result.ChunksSkipped)
	assert.Equal(t, first, store.Count("T1"))
}

func TestReindexShrunkenDocumentDropsStaleChunks(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := vectorstore.NewMemoryStore()
	pipeline, _ := newTestPipeline(t, store)
	paragraph := strings.Repeat("Customer records are retained for seven years. ", 20)
	doc := policyDoc("pol-1", "T1", base)
	doc.Content = paragraph + "\n\n" + paragraph + "\n\n" + paragraph
	source := &fakePolicySource{docs: []PolicyDoc{doc}}
	idx := NewPolicyIndexer(pipeline, source)

	_, err := idx.IndexFull(ctx, "T1", false)
	require.NoError(t, err)
	first := store.Count("T1")
	require.Greater(t, first, 1)

	// The document shrinks to a single chunk; its old high-index
	// chunks must not survive the re-index.
	doc.Content = "Customer records are retained for seven years."
	doc.Version = "2"
	source.docs = []PolicyDoc{doc}

	result, err := idx.IndexFull(ctx, "T1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, result.ChunksIndexed, store.Count("T1"))
	assert.Less(t, store.Count("T1"), first)

	query, err := pipeline.gateway.Embed(ctx, "records retention")
	require.NoError(t, err)
	results, err := store.SimilaritySearch(ctx, "T1", query.Vector, vectorstore.SearchOptions{Limit: 50, Threshold: -1})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, store.Count("T1"), r.Document.TotalChunks)
	}
}

func TestWatermarkHeldBackOnFailure(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := &failingStore{MemoryStore: vectorstore.NewMemoryStore()}
	pipeline, watermarks := newTestPipeline(t, store)
	source := &fakePolicySource{docs: []PolicyDoc{policyDoc("pol-1", "T1", base)}}
	idx := NewPolicyIndexer(pipeline, source)

	result, err := idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsFailed)
	assert.True(t, result.Watermark.IsZero())

	mark, err := watermarks.GetWatermark(ctx, vectorstore.ScopeKey("T1"), chunking.SourcePolicyDoc)
	require.NoError(t, err)
	assert.True(t, mark.IsZero(), "watermark must not advance past failed documents")
}

func TestWatermarkMonotonic(t *testing.T) {
	ctx := context.Background()
	marks := NewMemoryWatermarks()
	later := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	require.NoError(t, marks.SetWatermark(ctx, "T1", chunking.SourcePolicyDoc, later))
	require.NoError(t, marks.SetWatermark(ctx, "T1", chunking.SourcePolicyDoc, earlier))

	got, err := marks.GetWatermark(ctx, "T1", chunking.SourcePolicyDoc)
	require.NoError(t, err)
	assert.Equal(t, later, got)
}

func TestAuditIndexerGlobalScope(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := vectorstore.NewMemoryStore()
	pipeline, watermarks := newTestPipeline(t, store)
	source := &fakeAuditSource{events: []AuditEvent{
		{ID: "evt-1", TenantID: "", Action: "tenant.created", Actor: "platform", Outcome: "success", Detail: "Tenant T9 provisioned with default quotas.", CreatedAt: base},
		{ID: "evt-2", TenantID: "T1", Action: "policy.updated", Actor: "alice", Outcome: "success", Detail: "Retention policy revised.", CreatedAt: base},
	}}
	idx := NewAuditIndexer(pipeline, source)

	// Global events index under the empty tenant.
	result, err := idx.IndexIncremental(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)

	mark, err := watermarks.GetWatermark(ctx, vectorstore.GlobalScopeKey, chunking.SourceAuditEvent)
	require.NoError(t, err)
	assert.Equal(t, base, mark)

	// Tenant watermarks are tracked independently of the global one.
	mark, err = watermarks.GetWatermark(ctx, "T1", chunking.SourceAuditEvent)
	require.NoError(t, err)
	assert.True(t, mark.IsZero())

	result, err = idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, 1, store.Count(""))
	assert.Equal(t, 1, store.Count("T1"))
}

func TestToolIndexerRedactsConfig(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := vectorstore.NewMemoryStore()
	pipeline, _ := newTestPipeline(t, store)
	source := &fakeToolSource{tools: []ToolDefinition{{
		ID:           "tool-1",
		TenantID:     "T1",
		Name:         "ticket-bridge",
		Description:  "Creates and updates tickets in the downstream tracker.",
		Capabilities: []string{"create_ticket", "update_ticket"},
		Config: map[string]any{
			"base_url": "https://tracker.example.com",
			"api_key":  "sk-verysecretvalue1234567890",
			"auth": map[string]any{
				"password": "hunter2hunter2",
			},
			"timeout_seconds": 30,
		},
		UpdatedAt: base,
	}}}
	idx := NewToolIndexer(pipeline, source)

	result, err := idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)

	query, err := pipeline.gateway.Embed(ctx, "ticket bridge configuration")
	require.NoError(t, err)
	results, err := store.SimilaritySearch(ctx, "T1", query.Vector, vectorstore.SearchOptions{Limit: 50, Threshold: -1})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.NotContains(t, r.Document.Content, "sk-verysecretvalue1234567890")
		assert.NotContains(t, r.Document.Content, "hunter2hunter2")
		assert.Contains(t, r.Document.Content, "tracker.example.com")
	}
}

func TestPlaybookIndexerExternalDrive(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := vectorstore.NewMemoryStore()
	pipeline, _ := newTestPipeline(t, store)
	idx := NewPlaybookIndexer(pipeline)

	// No discovery query: an incremental run on its own indexes nothing.
	result, err := idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)
	assert.Zero(t, result.DocumentsProcessed)

	playbooks := []Playbook{{
		ID:          "pb-1",
		TenantID:    "T1",
		Name:        "Escalation handling",
		Description: "How to triage and escalate a reported exception.",
		Triggers:    []string{"severity >= high"},
		Steps: []PlaybookStep{
			{Title: "Acknowledge", Action: "Confirm receipt with the reporter within 15 minutes."},
			{Title: "Triage", Action: "Classify the exception and assign an owner."},
		},
		UpdatedAt: base,
	}}
	result, err = idx.IndexPlaybooks(ctx, "T1", playbooks, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Positive(t, store.Count("T1"))

	// Re-pushing the same playbook is a fingerprint skip.
	result, err = idx.IndexPlaybooks(ctx, "T1", playbooks, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksSkipped)
	assert.Zero(t, result.ChunksIndexed)
}

func TestRemoveDocument(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := vectorstore.NewMemoryStore()
	pipeline, _ := newTestPipeline(t, store)
	source := &fakePolicySource{docs: []PolicyDoc{policyDoc("pol-1", "T1", base)}}
	idx := NewPolicyIndexer(pipeline, source)

	_, err := idx.IndexIncremental(ctx, "T1")
	require.NoError(t, err)

	removed, err := idx.RemoveDocument(ctx, "T1", "pol-1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Zero(t, store.Count("T1"))

	removed, err = idx.RemoveDocument(ctx, "T1", "pol-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestIndexerRejectsInvalidTenant(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	pipeline, _ := newTestPipeline(t, store)
	idx := NewPolicyIndexer(pipeline, &fakePolicySource{})

	_, err := idx.IndexIncremental(ctx, "bad tenant!")
	assert.ErrorIs(t, err, ErrInvalidTenant)

	_, err = idx.IndexFull(ctx, strings.Repeat("x", 300), false)
	assert.ErrorIs(t, err, ErrInvalidTenant)
}

func TestRegistry(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	pipeline, _ := newTestPipeline(t, store)

	reg := NewRegistry()
	reg.Register(NewPolicyIndexer(pipeline, &fakePolicySource{}))
	reg.Register(NewPlaybookIndexer(pipeline))

	idx, err := reg.Lookup(chunking.SourcePolicyDoc)
	require.NoError(t, err)
	assert.Equal(t, chunking.SourcePolicyDoc, idx.SourceType())

	_, err = reg.Lookup(chunking.SourceType("bogus"))
	assert.ErrorIs(t, err, ErrUnknownSourceType)

	assert.True(t, reg.Has(chunking.SourcePlaybook))
	assert.False(t, reg.Has(chunking.SourceAuditEvent))
	assert.Equal(t, []chunking.SourceType{chunking.SourcePlaybook, chunking.SourcePolicyDoc}, reg.SourceTypes())
}
