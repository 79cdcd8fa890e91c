package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/member-insights/internal/insight"
)

func sampleInsight() *insight.StructuredInsight {
	return &insight.StructuredInsight{
		ID:        "abc",
		ContactID: "CNT-1",
		ENIID:     "COMBINED-airtable_notes-null-CNT-1-2ENI",
		Generator: "structured_insight",
		Version:   3,
		Sections: insight.Sections{
			Personal: "Moved to Denver.",
			Business: "Scaling the ops team.",
		},
		SourceTypes:     []string{"airtable_notes"},
		SourceSubtypes:  []string{"null"},
		RecordCount:     2,
		EstInputTokens:  120,
		EstOutputTokens: 42,
		CreatedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteInsightProducesBothFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	if err := w.WriteInsight(sampleInsight()); err != nil {
		t.Fatalf("WriteInsight: %v", err)
	}

	jsonPath := filepath.Join(dir, "CNT-1", "insight_v003.json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("reading json: %v", err)
	}
	var doc insightDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshalling json: %v", err)
	}
	if doc.Version != 3 || doc.Sections.Personal != "Moved to Denver." {
		t.Errorf("json document = %+v", doc)
	}

	mdPath := filepath.Join(dir, "CNT-1", "insight_v003.md")
	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("reading markdown: %v", err)
	}
	for _, want := range []string{"# Member Summary: CNT-1", "## Business", "Scaling the ops team."} {
		if !strings.Contains(string(md), want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestWriteInsightSanitizesContactDirectory(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	ins := sampleInsight()
	ins.ContactID = "bad/../id"
	if err := w.WriteInsight(ins); err != nil {
		t.Fatalf("WriteInsight: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad____id")); err != nil {
		t.Errorf("sanitized directory missing: %v", err)
	}
}
