// Package export writes JSON and Markdown copies of stored insights to
// the output directory, one pair of files per insight version.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ziadkadry99/member-insights/internal/insight"
)

// Writer emits insight files under dir/<contact_id>/.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

type insightDocument struct {
	ContactID             string           `json:"contact_id"`
	ENIID                 string           `json:"eni_id"`
	Generator             string           `json:"generator"`
	Version               int              `json:"version"`
	Sections              insight.Sections `json:"sections"`
	SourceTypes           []string         `json:"source_types"`
	SourceSubtypes        []string         `json:"source_subtypes"`
	RecordCount           int              `json:"record_count"`
	EstInputTokens        int              `json:"est_input_tokens"`
	EstOutputTokens       int              `json:"est_output_tokens"`
	GenerationTimeSeconds float64          `json:"generation_time_seconds"`
	CreatedAt             string           `json:"created_at"`
}

// WriteInsight writes both representations for one insight version.
func (w *Writer) WriteInsight(ins *insight.StructuredInsight) error {
	contactDir := filepath.Join(w.dir, sanitize(ins.ContactID))
	if err := os.MkdirAll(contactDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	base := fmt.Sprintf("insight_v%03d", ins.Version)

	doc := insightDocument{
		ContactID:             ins.ContactID,
		ENIID:                 ins.ENIID,
		Generator:             ins.Generator,
		Version:               ins.Version,
		Sections:              ins.Sections,
		SourceTypes:           ins.SourceTypes,
		SourceSubtypes:        ins.SourceSubtypes,
		RecordCount:           ins.RecordCount,
		EstInputTokens:        ins.EstInputTokens,
		EstOutputTokens:       ins.EstOutputTokens,
		GenerationTimeSeconds: ins.GenerationTimeSeconds,
		CreatedAt:             ins.CreatedAt.Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling insight: %w", err)
	}
	if err := os.WriteFile(filepath.Join(contactDir, base+".json"), data, 0o644); err != nil {
		return fmt.Errorf("writing insight json: %w", err)
	}

	md := renderMarkdown(ins)
	if err := os.WriteFile(filepath.Join(contactDir, base+".md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("writing insight markdown: %w", err)
	}
	return nil
}

func renderMarkdown(ins *insight.StructuredInsight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Member Summary: %s\n\n", ins.ContactID)
	fmt.Fprintf(&b, "- Version: %d\n", ins.Version)
	fmt.Fprintf(&b, "- Generator: %s\n", ins.Generator)
	fmt.Fprintf(&b, "- Source: %s\n", ins.ENIID)
	fmt.Fprintf(&b, "- Generated: %s\n\n", ins.CreatedAt.Format(time.RFC3339))
	b.WriteString(ins.Sections.Markdown())
	b.WriteString("\n")
	return b.String()
}

// sanitize keeps contact ids safe as directory names.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
