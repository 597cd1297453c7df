// Package chunking splits normalized document text into overlapping,
// bounded segments using a selectable strategy. Chunking is deterministic:
// the same text and configuration always produce byte-identical chunk
// boundaries.
package chunking

import "fmt"

// SourceType identifies the kind of content a document was derived from.
type SourceType string

const (
	SourcePolicyDoc         SourceType = "policy_doc"
	SourceResolvedException SourceType = "resolved_exception"
	SourceAuditEvent        SourceType = "audit_event"
	SourceToolRegistry      SourceType = "tool_registry"
	SourcePlaybook          SourceType = "playbook"
)

// KnownSourceTypes lists every source type the pipeline can index, in
// canonical order.
var KnownSourceTypes = []SourceType{
	SourcePolicyDoc,
	SourceResolvedException,
	SourceAuditEvent,
	SourceToolRegistry,
	SourcePlaybook,
}

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourcePolicyDoc, SourceResolvedException, SourceAuditEvent, SourceToolRegistry, SourcePlaybook:
		return true
	}
	return false
}

// SourceDocument is one logical unit of content before chunking. It is
// created transiently by an indexer for each content item and never
// persisted directly.
type SourceDocument struct {
	SourceType SourceType
	SourceID   string
	Title      string
	Content    string
	Domain     string
	Version    string
	Metadata   map[string]string
}

// DocumentChunk is a contiguous span of a SourceDocument's normalized
// text. StartPosition and EndPosition are byte offsets into the
// normalized text, not the raw input.
type DocumentChunk struct {
	ChunkID       string
	ChunkIndex    int
	TotalChunks   int
	Content       string
	StartPosition int
	EndPosition   int

	SourceType SourceType
	SourceID   string
	Title      string
	Domain     string
	Version    string
	Metadata   map[string]string
}

// ChunkID derives the stable chunk identifier for a source document and
// chunk index. The identifier survives content changes as long as the
// chunk keeps its index.
func ChunkID(sourceID string, index int) string {
	return fmt.Sprintf("%s-chunk-%d", sourceID, index)
}
