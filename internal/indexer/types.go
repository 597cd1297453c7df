// Package indexer implements the source-specific incremental indexers.
// Each indexer converts one content type into normalized documents,
// feeds them through the chunking engine and embedding gateway, and
// writes to the vector document store, tracking a per-tenant watermark
// for incremental runs.
package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
)

var (
	ErrUnknownSourceType = errors.New("unknown source type")
	ErrInvalidTenant     = errors.New("invalid tenant ID")
	ErrNoSource          = errors.New("no source configured")
)

// IndexingResult reports the outcome of one indexing pass. Item-level
// failures are counted, never escalated: a non-zero DocumentsFailed
// does not make the pass itself an error.
type IndexingResult struct {
	SourceType         chunking.SourceType
	TenantID           string
	DocumentsProcessed int
	DocumentsFailed    int
	ChunksIndexed      int
	ChunksSkipped      int
	ChunksFailed       int
	Watermark          time.Time
	Duration           time.Duration
}

// Merge accumulates another result's counters into r.
func (r *IndexingResult) Merge(other IndexingResult) {
	r.DocumentsProcessed += other.DocumentsProcessed
	r.DocumentsFailed += other.DocumentsFailed
	r.ChunksIndexed += other.ChunksIndexed
	r.ChunksSkipped += other.ChunksSkipped
	r.ChunksFailed += other.ChunksFailed
}

// SourceIndexer is the contract shared by every source type.
type SourceIndexer interface {
	SourceType() chunking.SourceType

	// IndexIncremental indexes records strictly newer than the stored
	// watermark and advances it on full success.
	IndexIncremental(ctx context.Context, tenantID string) (IndexingResult, error)

	// IndexFull reindexes everything; with forceReindex the existing
	// documents of this source type are torn down first and fingerprint
	// skipping is bypassed.
	IndexFull(ctx context.Context, tenantID string, forceReindex bool) (IndexingResult, error)

	// RemoveDocument deletes all chunks of one source document and
	// reports whether anything was removed.
	RemoveDocument(ctx context.Context, tenantID, sourceID string) (bool, error)

	// SupportsTenant validates tenant-ID shape for this indexer.
	SupportsTenant(tenantID string) bool
}

// PolicyDoc is a policy document from the source of truth.
type PolicyDoc struct {
	ID        string
	TenantID  string
	Title     string
	Content   string
	Domain    string
	Version   string
	Metadata  map[string]string
	UpdatedAt time.Time
}

// CaseRecord is a resolved exception case.
type CaseRecord struct {
	ID         string
	TenantID   string
	Title      string
	Domain     string
	Severity   string
	Summary    string
	ResolvedAt time.Time
	UpdatedAt  time.Time
}

// CaseEvent is one entry in a case's event history.
type CaseEvent struct {
	ID        string
	CaseID    string
	Type      string
	Note      string
	Payload   map[string]string
	CreatedAt time.Time
}

// AuditEvent is a governance audit log entry. TenantID is empty for
// platform-global events.
type AuditEvent struct {
	ID        string
	TenantID  string
	Action    string
	Actor     string
	Target    string
	Outcome   string
	Detail    string
	CreatedAt time.Time
}

// ToolDefinition describes a registered tool, including its raw
// configuration. The configuration is redacted before indexing.
type ToolDefinition struct {
	ID           string
	TenantID     string
	Name         string
	Description  string
	Domain       string
	Version      string
	Capabilities []string
	Config       map[string]any
	UpdatedAt    time.Time
}

// Playbook is an operational runbook with ordered steps.
type Playbook struct {
	ID          string
	TenantID    string
	Name        string
	Description string
	Domain      string
	Version     string
	Triggers    []string
	Steps       []PlaybookStep
	UpdatedAt   time.Time
}

// PlaybookStep is one step in a playbook.
type PlaybookStep struct {
	Title  string
	Action string
}
