package indexer

import (
	"context"
	"time"
)

// Source-of-truth providers. The core only reads these; writes belong to
// the excluded admin layer. "newerThan" is exclusive: implementations
// return records with a timestamp strictly after it, scoped to the
// tenant (or to truly-global records when tenantID is empty).

// PolicySource lists policy documents.
type PolicySource interface {
	ListPolicyDocs(ctx context.Context, tenantID string, newerThan time.Time) ([]PolicyDoc, error)
}

// CaseSource lists resolved cases and their event histories.
type CaseSource interface {
	ListResolvedCases(ctx context.Context, tenantID string, newerThan time.Time) ([]CaseRecord, error)
	CaseEvents(ctx context.Context, tenantID, caseID string) ([]CaseEvent, error)
}

// AuditSource lists audit events.
type AuditSource interface {
	ListAuditEvents(ctx context.Context, tenantID string, newerThan time.Time) ([]AuditEvent, error)
}

// ToolSource lists tool registry entries.
type ToolSource interface {
	ListTools(ctx context.Context, tenantID string, newerThan time.Time) ([]ToolDefinition, error)
}
