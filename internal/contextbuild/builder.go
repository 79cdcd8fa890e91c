// Package contextbuild assembles the token-budgeted prompt for one
// processing group: prior summary plus static reference text plus as
// many new evidence rows as fit the window.
package contextbuild

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/member-insights/internal/config"
	"github.com/ziadkadry99/member-insights/internal/insight"
	"github.com/ziadkadry99/member-insights/internal/llm"
)

// TokenStats is the budget breakdown for one rendered prompt.
type TokenStats struct {
	BaseTokens          int
	AvailableForNewData int
	NewDataTokensUsed   int
	TotalRenderedTokens int
}

// Bundle is the rendered material for one group. It is rebuilt per
// attempt and never persisted.
type Bundle struct {
	ExistingSummary  string
	TypeContext      string
	SubtypeContext   string
	NewEvidenceBlock string
	RenderedPrompt   string
	RowsUsed         int
	RowsTotal        int
	TokenStats       TokenStats
}

// Input carries everything Build needs for one group.
type Input struct {
	ContactID      string
	SourceType     string
	SourceSubtype  string
	Rows           []insight.EvidenceRow
	PriorSummary   string
	TypeContext    string
	SubtypeContext string
	Template       string
}

// Builder computes prompt budgets from the processing config.
type Builder struct {
	windowTokens  int
	reserveOutput int
	maxNewData    int
	overhead      int
}

// NewBuilder creates a builder with the given budgeting knobs.
func NewBuilder(cfg config.ProcessingConfig) *Builder {
	return &Builder{
		windowTokens:  cfg.ContextWindowTokens,
		reserveOutput: cfg.ReserveOutputTokens,
		maxNewData:    cfg.MaxNewDataTokensPerGroup,
		overhead:      cfg.OverheadTokens,
	}
}

// Build renders the prompt for one group. Rows are taken in input
// order (callers supply newest first) and included whole: a row that
// would overflow the remaining budget stops inclusion, and every row
// after it is excluded too. A base render that already exhausts the
// window degrades to zero included rows rather than an error.
func (b *Builder) Build(in Input) Bundle {
	vars := map[string]string{
		"contact_id":          in.ContactID,
		"source_type":         in.SourceType,
		"source_subtype":      in.SourceSubtype,
		"existing_summary":    in.PriorSummary,
		"type_context":        in.TypeContext,
		"subtype_context":     in.SubtypeContext,
		"new_data_to_process": "",
	}

	baseRender := Render(in.Template, vars)
	baseTokens := llm.EstimateTokens(baseRender)

	available := b.windowTokens - (b.reserveOutput + baseTokens + b.overhead)
	if available > b.maxNewData {
		available = b.maxNewData
	}
	if available < 0 {
		available = 0
	}

	var block strings.Builder
	used := 0
	rowsUsed := 0
	for _, row := range in.Rows {
		rendered := renderRow(row)
		cost := llm.EstimateTokens(rendered)
		if used+cost > available {
			break
		}
		block.WriteString(rendered)
		used += cost
		rowsUsed++
	}

	vars["new_data_to_process"] = block.String()
	prompt := Render(in.Template, vars)

	return Bundle{
		ExistingSummary:  in.PriorSummary,
		TypeContext:      in.TypeContext,
		SubtypeContext:   in.SubtypeContext,
		NewEvidenceBlock: block.String(),
		RenderedPrompt:   prompt,
		RowsUsed:         rowsUsed,
		RowsTotal:        len(in.Rows),
		TokenStats: TokenStats{
			BaseTokens:          baseTokens,
			AvailableForNewData: available,
			NewDataTokensUsed:   used,
			TotalRenderedTokens: llm.EstimateTokens(prompt),
		},
	}
}

// renderRow produces the fixed two-line block for one evidence row: a
// bullet with the description and a citation sub-bullet.
func renderRow(row insight.EvidenceRow) string {
	date := row.LoggedDate
	if date == "" {
		date = "N/A"
	}
	return fmt.Sprintf("- %s\n  - [%s, %s, %s]\n", row.Description, date, row.ENIID, row.SourceType)
}
