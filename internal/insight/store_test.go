package insight

import (
	"context"
	"fmt"
	"testing"

	"github.com/ziadkadry99/member-insights/internal/db"
	"github.com/ziadkadry99/member-insights/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	s, err := NewStore(d, logger.NewNop(), "structured_insight", 16)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestProcessInsightVersionSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 4
	for i := 1; i <= n; i++ {
		sections := Sections{Personal: fmt.Sprintf("iteration %d", i)}
		meta := Metadata{SourceType: "airtable_notes", SourceSubtype: "null", RecordCount: i}

		ins, created := s.ProcessInsight(ctx, "CNT-1", "COMBINED-airtable_notes-null-CNT-1-1ENI", sections, meta)
		if !created {
			t.Fatalf("write %d failed", i)
		}
		if ins.Version != i {
			t.Errorf("write %d: version = %d", i, ins.Version)
		}
		if !ins.IsLatest {
			t.Errorf("write %d: new row should be latest", i)
		}

		// After each write exactly one row is latest and it carries the
		// highest version.
		versions, err := s.ListVersions(ctx, "CNT-1")
		if err != nil {
			t.Fatalf("ListVersions: %v", err)
		}
		if len(versions) != i {
			t.Fatalf("write %d: %d versions stored", i, len(versions))
		}
		latestCount := 0
		for j, v := range versions {
			if v.Version != j+1 {
				t.Errorf("stored versions not gap-free: index %d has version %d", j, v.Version)
			}
			if v.IsLatest {
				latestCount++
				if v.Version != i {
					t.Errorf("latest flag on version %d, want %d", v.Version, i)
				}
			}
		}
		if latestCount != 1 {
			t.Errorf("write %d: %d rows flagged latest", i, latestCount)
		}
	}
}

func TestProcessInsightRecordsCurrentIterationSourcesOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.ProcessInsight(ctx, "CNT-2", "a", Sections{Personal: "x"},
		Metadata{SourceType: "airtable_notes", SourceSubtype: "null"})
	ins, created := s.ProcessInsight(ctx, "CNT-2", "b", Sections{Personal: "y"},
		Metadata{SourceType: "pipedrive", SourceSubtype: "deal"})
	if !created {
		t.Fatal("second write failed")
	}

	if len(ins.SourceTypes) != 1 || ins.SourceTypes[0] != "pipedrive" {
		t.Errorf("source types should hold only this iteration's value, got %v", ins.SourceTypes)
	}
	if len(ins.SourceSubtypes) != 1 || ins.SourceSubtypes[0] != "deal" {
		t.Errorf("source subtypes should hold only this iteration's value, got %v", ins.SourceSubtypes)
	}
}

func TestGetLatestMissingContact(t *testing.T) {
	s := newTestStore(t)

	ins, err := s.GetLatest(context.Background(), "CNT-nope")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if ins != nil {
		t.Error("expected nil for unknown contact")
	}
}

func TestGetLatestUsesCacheAfterWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	written, created := s.ProcessInsight(ctx, "CNT-3", "c", Sections{Business: "consulting"}, Metadata{SourceType: "t", SourceSubtype: "null"})
	if !created {
		t.Fatal("write failed")
	}

	got, err := s.GetLatest(ctx, "CNT-3")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got.ID != written.ID {
		t.Errorf("GetLatest returned %q, want %q", got.ID, written.ID)
	}
	if got.Sections.Business != "consulting" {
		t.Errorf("sections = %+v", got.Sections)
	}
}

func TestGetLatestReadsBackFromDB(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	written, _ := s.ProcessInsight(ctx, "CNT-4", "d",
		Sections{Investing: "seed stage SaaS"},
		Metadata{SourceType: "t", SourceSubtype: "null", EstInputTokens: 120, EstOutputTokens: 40, GenerationTimeSeconds: 1.5})

	// Drop the memoized entry to force a database read.
	s.cache.Remove("CNT-4")

	got, err := s.GetLatest(ctx, "CNT-4")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got == nil || got.ID != written.ID {
		t.Fatal("expected persisted row")
	}
	if got.EstInputTokens != 120 || got.EstOutputTokens != 40 {
		t.Errorf("token metrics not persisted: %+v", got)
	}
	if got.GenerationTimeSeconds != 1.5 {
		t.Errorf("generation time = %v", got.GenerationTimeSeconds)
	}
}

func TestCountInsights(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.ProcessInsight(ctx, "CNT-5", "e", Sections{Personal: "a"}, Metadata{SourceType: "t", SourceSubtype: "null"})
	s.ProcessInsight(ctx, "CNT-5", "f", Sections{Personal: "b"}, Metadata{SourceType: "t", SourceSubtype: "null"})
	s.ProcessInsight(ctx, "CNT-6", "g", Sections{Personal: "c"}, Metadata{SourceType: "t", SourceSubtype: "null"})

	total, latest, err := s.CountInsights(ctx)
	if err != nil {
		t.Fatalf("CountInsights: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if latest != 2 {
		t.Errorf("latest = %d, want 2", latest)
	}
}
