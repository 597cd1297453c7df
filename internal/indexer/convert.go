package indexer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/redact"
)

// Converters render structured records into a single text blob with
// field-labeled lines and attach type-specific metadata. They are pure
// functions and never touch chunking logic.

func convertPolicyDoc(doc PolicyDoc) chunking.SourceDocument {
	var b strings.Builder
	fmt.Fprintf(&b, "Policy: %s\n", doc.Title)
	if doc.Domain != "" {
		fmt.Fprintf(&b, "Domain: %s\n", doc.Domain)
	}
	b.WriteString("\n")
	b.WriteString(doc.Content)

	metadata := make(map[string]string, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	metadata["updated_at"] = doc.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")

	return chunking.SourceDocument{
		SourceType: chunking.SourcePolicyDoc,
		SourceID:   doc.ID,
		Title:      doc.Title,
		Content:    b.String(),
		Domain:     doc.Domain,
		Version:    doc.Version,
		Metadata:   metadata,
	}
}

// resolutionSourceEvent marks a resolution recovered from an explicit
// resolution-type event; resolutionSourceHeuristic marks one recovered
// by the payload-key fallback, which may attach an unrelated event.
const (
	resolutionSourceEvent     = "event"
	resolutionSourceHeuristic = "heuristic"
)

func convertResolvedException(c CaseRecord, resolution string, resolutionSource string) chunking.SourceDocument {
	var b strings.Builder
	fmt.Fprintf(&b, "Exception case: %s\n", c.Title)
	if c.Severity != "" {
		fmt.Fprintf(&b, "Severity: %s\n", c.Severity)
	}
	if c.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", c.Summary)
	}
	fmt.Fprintf(&b, "\nResolution: %s\n", resolution)

	return chunking.SourceDocument{
		SourceType: chunking.SourceResolvedException,
		SourceID:   c.ID,
		Title:      c.Title,
		Content:    b.String(),
		Domain:     c.Domain,
		Metadata: map[string]string{
			"severity":          c.Severity,
			"resolution_source": resolutionSource,
			"resolved_at":       c.ResolvedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		},
	}
}

func convertAuditEvent(e AuditEvent) chunking.SourceDocument {
	var b strings.Builder
	fmt.Fprintf(&b, "Audit event: %s\n", e.Action)
	fmt.Fprintf(&b, "Actor: %s\n", e.Actor)
	if e.Target != "" {
		fmt.Fprintf(&b, "Target: %s\n", e.Target)
	}
	fmt.Fprintf(&b, "Outcome: %s\n", e.Outcome)
	if e.Detail != "" {
		fmt.Fprintf(&b, "\n%s\n", e.Detail)
	}

	return chunking.SourceDocument{
		SourceType: chunking.SourceAuditEvent,
		SourceID:   e.ID,
		Title:      e.Action,
		Content:    b.String(),
		Metadata: map[string]string{
			"action":     e.Action,
			"actor":      e.Actor,
			"outcome":    e.Outcome,
			"created_at": e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		},
	}
}

// convertToolDefinition redacts the tool configuration before rendering.
// Redaction is mandatory: the converter never sees a way around it.
func convertToolDefinition(tool ToolDefinition) chunking.SourceDocument {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool: %s\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", tool.Description)
	}
	if len(tool.Capabilities) > 0 {
		fmt.Fprintf(&b, "Capabilities: %s\n", strings.Join(tool.Capabilities, ", "))
	}
	if len(tool.Config) > 0 {
		b.WriteString("\nConfiguration:\n")
		renderConfig(&b, redact.Config(tool.Config), "")
	}

	return chunking.SourceDocument{
		SourceType: chunking.SourceToolRegistry,
		SourceID:   tool.ID,
		Title:      tool.Name,
		Content:    redact.Text(b.String()),
		Domain:     tool.Domain,
		Version:    tool.Version,
		Metadata: map[string]string{
			"capability_count": strconv.Itoa(len(tool.Capabilities)),
		},
	}
}

// renderConfig writes a redacted config as sorted, indented key: value
// lines.
func renderConfig(b *strings.Builder, config map[string]any, indent string) {
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := config[k].(type) {
		case map[string]any:
			fmt.Fprintf(b, "%s%s:\n", indent, k)
			renderConfig(b, v, indent+"  ")
		case []any:
			encoded, err := json.Marshal(v)
			if err != nil {
				encoded = []byte("[]")
			}
			fmt.Fprintf(b, "%s%s: %s\n", indent, k, encoded)
		default:
			fmt.Fprintf(b, "%s%s: %v\n", indent, k, v)
		}
	}
}

func convertPlaybook(p Playbook) chunking.SourceDocument {
	var b strings.Builder
	fmt.Fprintf(&b, "Playbook: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
	}
	if len(p.Triggers) > 0 {
		fmt.Fprintf(&b, "Triggers: %s\n", strings.Join(p.Triggers, "; "))
	}
	if len(p.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for i, step := range p.Steps {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, step.Title, step.Action)
		}
	}

	return chunking.SourceDocument{
		SourceType: chunking.SourcePlaybook,
		SourceID:   p.ID,
		Title:      p.Name,
		Content:    b.String(),
		Domain:     p.Domain,
		Version:    p.Version,
		Metadata: map[string]string{
			"step_count":    strconv.Itoa(len(p.Steps)),
			"trigger_count": strconv.Itoa(len(p.Triggers)),
		},
	}
}
