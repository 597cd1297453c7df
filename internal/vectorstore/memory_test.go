package vectorstore

import (
	"context"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

func mkDoc(tenantID string, st chunking.SourceType, sourceID string, index int, embedding []float32) IndexedDocument {
	return IndexedDocument{
		DocumentChunk: chunking.DocumentChunk{
			ChunkID:    chunking.ChunkID(sourceID, index),
			ChunkIndex: index,
			Content:    "content of " + sourceID,
			SourceType: st,
			SourceID:   sourceID,
		},
		TenantID:  tenantID,
		Embedding: embedding,
	}
}

func TestValidateTenantID(t *testing.T) {
	valid := []string{"", "tenant-1", "T_2", "abc123", strings.Repeat("a", 255)}
	for _, id := range valid {
		if err := ValidateTenantID(id); err != nil {
			t.Errorf("ValidateTenantID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"tenant 1", "tenant/1", "t.1", strings.Repeat("a", 256), "été"}
	for _, id := range invalid {
		if err := ValidateTenantID(id); err == nil {
			t.Errorf("ValidateTenantID(%q) = nil, want error", id)
		}
	}
}

func TestScopeKey(t *testing.T) {
	if got := ScopeKey(""); got != GlobalScopeKey {
		t.Errorf("ScopeKey(\"\") = %q, want %q", got, GlobalScopeKey)
	}
	if got := ScopeKey("t1"); got != "t1" {
		t.Errorf("ScopeKey(t1) = %q", got)
	}
}

func TestMemoryStoreIdempotentUpsert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	doc := mkDoc("t1", chunking.SourcePolicyDoc, "pol-1", 0, []float32{1, 0})

	n, err := store.UpsertChunks(ctx, "t1", []IndexedDocument{doc})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}

	n, err = store.UpsertChunks(ctx, "t1", []IndexedDocument{doc})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if got := store.Count("t1"); got != 1 {
		t.Errorf("stored docs = %d, want 1", got)
	}

	results, err := store.SimilaritySearch(ctx, "t1", []float32{1, 0}, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Document.ContentHash != HashContent(doc.Content) {
		t.Error("content hash not stored")
	}
}

func TestMemoryStoreTenantIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.UpsertChunks(ctx, "tenant-a", []IndexedDocument{mkDoc("tenant-a", chunking.SourcePolicyDoc, "a1", 0, []float32{1, 0})}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpsertChunks(ctx, "tenant-b", []IndexedDocument{mkDoc("tenant-b", chunking.SourcePolicyDoc, "b1", 0, []float32{1, 0})}); err != nil {
		t.Fatal(err)
	}
	// global content
	if _, err := store.UpsertChunks(ctx, "", []IndexedDocument{mkDoc("", chunking.SourceAuditEvent, "g1", 0, []float32{1, 0})}); err != nil {
		t.Fatal(err)
	}

	results, err := store.SimilaritySearch(ctx, "tenant-a", []float32{1, 0}, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Document.TenantID != "tenant-a" {
			t.Errorf("leaked document from tenant %q", r.Document.TenantID)
		}
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}

	// global documents only visible to explicitly global queries
	globalResults, err := store.SimilaritySearch(ctx, "", []float32{1, 0}, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(globalResults) != 1 || globalResults[0].Document.SourceID != "g1" {
		t.Fatalf("global query results = %v", globalResults)
	}
}

func TestMemoryStoreUpsertOverridesDocTenant(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// document claims tenant-b but is written under tenant-a; the store
	// must pin it to the argument tenant
	doc := mkDoc("tenant-b", chunking.SourcePolicyDoc, "x", 0, []float32{1, 0})
	if _, err := store.UpsertChunks(ctx, "tenant-a", []IndexedDocument{doc}); err != nil {
		t.Fatal(err)
	}

	results, err := store.SimilaritySearch(ctx, "tenant-b", []float32{1, 0}, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatal("document leaked into claimed tenant")
	}
}

func TestMemoryStoreDeletes(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	docs := []IndexedDocument{
		mkDoc("t1", chunking.SourcePolicyDoc, "p1", 0, []float32{1, 0}),
		mkDoc("t1", chunking.SourcePolicyDoc, "p1", 1, []float32{1, 0}),
		mkDoc("t1", chunking.SourcePolicyDoc, "p2", 0, []float32{1, 0}),
		mkDoc("t1", chunking.SourcePlaybook, "pb1", 0, []float32{1, 0}),
	}
	if _, err := store.UpsertChunks(ctx, "t1", docs); err != nil {
		t.Fatal(err)
	}

	n, err := store.DeleteBySource(ctx, "t1", chunking.SourcePolicyDoc, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("DeleteBySource = %d, want 2", n)
	}

	n, err = store.DeleteBySource(ctx, "t1", chunking.SourcePolicyDoc, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("delete of missing source = %d, want 0", n)
	}

	n, err = store.DeleteBySourceType(ctx, "t1", chunking.SourcePolicyDoc)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("DeleteBySourceType = %d, want 1", n)
	}

	n, err = store.DeleteByTenant(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("DeleteByTenant = %d, want 1", n)
	}
	if store.Count("t1") != 0 {
		t.Error("tenant not empty after teardown")
	}
}

func TestMemoryStoreSourceTypeFilter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.UpsertChunks(ctx, "t1", []IndexedDocument{
		mkDoc("t1", chunking.SourcePolicyDoc, "p1", 0, []float32{1, 0}),
		mkDoc("t1", chunking.SourcePlaybook, "pb1", 0, []float32{1, 0}),
	}); err != nil {
		t.Fatal(err)
	}

	st := chunking.SourcePlaybook
	results, err := store.SimilaritySearch(ctx, "t1", []float32{1, 0}, SearchOptions{Limit: 10, Filter: SearchFilter{SourceType: &st}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Document.SourceType != chunking.SourcePlaybook {
		t.Fatalf("filtered results = %+v", results)
	}
}

func TestMemoryStoreRejectsInvalidTenant(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.UpsertChunks(ctx, "bad tenant!", nil); err == nil {
		t.Error("expected tenant validation error")
	}
	if _, err := store.SimilaritySearch(ctx, "bad tenant!", []float32{1}, SearchOptions{}); err == nil {
		t.Error("expected tenant validation error")
	}
}

func TestMemoryStoreFingerprint(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	doc := mkDoc("t1", chunking.SourcePolicyDoc, "p1", 0, []float32{1, 0})
	doc.Fingerprint = "fp-123"
	if _, err := store.UpsertChunks(ctx, "t1", []IndexedDocument{doc}); err != nil {
		t.Fatal(err)
	}

	fp, err := store.GetSourceFingerprint(ctx, "t1", chunking.SourcePolicyDoc, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if fp != "fp-123" {
		t.Errorf("fingerprint = %q, want fp-123", fp)
	}

	fp, err = store.GetSourceFingerprint(ctx, "t1", chunking.SourcePolicyDoc, "absent")
	if err != nil {
		t.Fatal(err)
	}
	if fp != "" {
		t.Errorf("fingerprint of absent source = %q, want empty", fp)
	}
}
