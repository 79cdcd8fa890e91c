package contextbuild

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ziadkadry99/member-insights/internal/config"
	"github.com/ziadkadry99/member-insights/internal/insight"
)

func testRows(n int) []insight.EvidenceRow {
	rows := make([]insight.EvidenceRow, n)
	for i := range rows {
		rows[i] = insight.EvidenceRow{
			ENIID:       fmt.Sprintf("ENI-%03d", i),
			ContactID:   "CNT-1",
			Description: strings.Repeat("met at the annual gathering and discussed plans ", 4),
			LoggedDate:  "2026-05-01",
			SourceType:  "airtable_notes",
		}
	}
	return rows
}

func testInput(rows []insight.EvidenceRow) Input {
	return Input{
		ContactID:    "CNT-1",
		SourceType:   "airtable_notes",
		SourceSubtype: "null",
		Rows:         rows,
		PriorSummary: "## Personal\nKnown for a decade.",
		TypeContext:  "Notes logged by the membership team.",
		Template:     DefaultTemplate,
	}
}

func TestBuildRespectsWindowBudget(t *testing.T) {
	cfg := config.ProcessingConfig{
		ContextWindowTokens:      2000,
		ReserveOutputTokens:      500,
		MaxNewDataTokensPerGroup: 10000,
		OverheadTokens:           100,
	}
	b := NewBuilder(cfg)

	bundle := b.Build(testInput(testRows(200)))

	limit := cfg.ContextWindowTokens - cfg.ReserveOutputTokens
	if bundle.TokenStats.TotalRenderedTokens > limit {
		t.Errorf("rendered %d tokens, budget is %d", bundle.TokenStats.TotalRenderedTokens, limit)
	}
	if bundle.RowsUsed >= bundle.RowsTotal {
		t.Errorf("expected truncation: used %d of %d rows", bundle.RowsUsed, bundle.RowsTotal)
	}
	if bundle.TokenStats.NewDataTokensUsed > bundle.TokenStats.AvailableForNewData {
		t.Errorf("used %d new-data tokens, available %d",
			bundle.TokenStats.NewDataTokensUsed, bundle.TokenStats.AvailableForNewData)
	}
}

func TestBuildIncludesContiguousPrefix(t *testing.T) {
	cfg := config.ProcessingConfig{
		ContextWindowTokens:      3000,
		ReserveOutputTokens:      500,
		MaxNewDataTokensPerGroup: 400,
		OverheadTokens:           100,
	}
	b := NewBuilder(cfg)

	rows := testRows(50)
	bundle := b.Build(testInput(rows))

	if bundle.RowsUsed == 0 || bundle.RowsUsed == len(rows) {
		t.Fatalf("want partial inclusion, got %d of %d", bundle.RowsUsed, len(rows))
	}
	// Every included row appears, every excluded row does not.
	for i, row := range rows {
		contains := strings.Contains(bundle.NewEvidenceBlock, row.ENIID)
		if i < bundle.RowsUsed && !contains {
			t.Errorf("row %d should be included", i)
		}
		if i >= bundle.RowsUsed && contains {
			t.Errorf("row %d should be excluded", i)
		}
	}
}

func TestBuildCapsAvailableByGroupMax(t *testing.T) {
	cfg := config.ProcessingConfig{
		ContextWindowTokens:      100000,
		ReserveOutputTokens:      1000,
		MaxNewDataTokensPerGroup: 250,
		OverheadTokens:           500,
	}
	b := NewBuilder(cfg)

	bundle := b.Build(testInput(testRows(100)))
	if bundle.TokenStats.AvailableForNewData != 250 {
		t.Errorf("available = %d, want the per-group cap 250", bundle.TokenStats.AvailableForNewData)
	}
}

func TestBuildZeroBudgetDegradesGracefully(t *testing.T) {
	// 1000 - (800 + base + 500) is negative, so no rows fit.
	cfg := config.ProcessingConfig{
		ContextWindowTokens:      1000,
		ReserveOutputTokens:      800,
		MaxNewDataTokensPerGroup: 10000,
		OverheadTokens:           500,
	}
	b := NewBuilder(cfg)

	bundle := b.Build(testInput(testRows(5)))
	if bundle.TokenStats.AvailableForNewData != 0 {
		t.Errorf("available = %d, want 0", bundle.TokenStats.AvailableForNewData)
	}
	if bundle.RowsUsed != 0 {
		t.Errorf("rows used = %d, want 0", bundle.RowsUsed)
	}
	if bundle.NewEvidenceBlock != "" {
		t.Error("evidence block should be empty at zero budget")
	}
	if bundle.RenderedPrompt == "" {
		t.Error("prompt should still render")
	}
}

func TestBuildEmptyRowsStillRenders(t *testing.T) {
	cfg := config.ProcessingConfig{
		ContextWindowTokens:      10000,
		ReserveOutputTokens:      1000,
		MaxNewDataTokensPerGroup: 5000,
		OverheadTokens:           500,
	}
	b := NewBuilder(cfg)

	in := testInput(nil)
	in.PriorSummary = ""
	bundle := b.Build(in)

	if bundle.RowsTotal != 0 || bundle.RowsUsed != 0 {
		t.Errorf("row counts = %d/%d, want 0/0", bundle.RowsUsed, bundle.RowsTotal)
	}
	if strings.Contains(bundle.RenderedPrompt, "{{new_data_to_process}}") {
		t.Error("placeholder left unsubstituted")
	}
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	out := Render("a {{known}} b {{unknown}}", map[string]string{"known": "X"})
	if out != "a X b {{unknown}}" {
		t.Errorf("Render = %q", out)
	}
}

func TestRenderRowCitation(t *testing.T) {
	row := insight.EvidenceRow{
		ENIID:       "ENI-1",
		Description: "Dinner conversation about expansion plans.",
		SourceType:  "airtable_notes",
	}
	rendered := renderRow(row)
	if !strings.Contains(rendered, "[N/A, ENI-1, airtable_notes]") {
		t.Errorf("missing-date citation wrong: %q", rendered)
	}
}
