package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/ziadkadry99/member-insights/internal/db"
	"github.com/ziadkadry99/member-insights/internal/insight"
	"github.com/ziadkadry99/member-insights/internal/logger"
)

func newTestConnector(t *testing.T) *SQLiteConnector {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return NewSQLiteConnector(d, logger.NewNop())
}

func seedRows(t *testing.T, c *SQLiteConnector, rows []insight.EvidenceRow) {
	t.Helper()
	if err := c.InsertRows(context.Background(), rows); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
}

func TestCombinationsNullSubtypeFirst(t *testing.T) {
	c := newTestConnector(t)
	seedRows(t, c, []insight.EvidenceRow{
		{ENIID: "e1", ContactID: "CNT-1", Description: "a", SourceType: "airtable_notes", SourceSubtype: "meeting"},
		{ENIID: "e2", ContactID: "CNT-1", Description: "b", SourceType: "airtable_notes", SourceSubtype: "null"},
		{ENIID: "e3", ContactID: "CNT-1", Description: "c", SourceType: "pipedrive", SourceSubtype: "null"},
		{ENIID: "e4", ContactID: "CNT-2", Description: "d", SourceType: "airtable_notes", SourceSubtype: "null"},
	})

	combos, err := c.Combinations(context.Background(), "CNT-1")
	if err != nil {
		t.Fatalf("Combinations: %v", err)
	}

	want := []TypeSubtype{
		{"airtable_notes", "null"},
		{"airtable_notes", "meeting"},
		{"pipedrive", "null"},
	}
	if len(combos) != len(want) {
		t.Fatalf("got %d partitions, want %d: %v", len(combos), len(want), combos)
	}
	for i, w := range want {
		if combos[i] != w {
			t.Errorf("partition %d = %v, want %v", i, combos[i], w)
		}
	}
}

func TestFetchRowsNewestFirstAndExcludesProcessed(t *testing.T) {
	c := newTestConnector(t)
	ctx := context.Background()
	seedRows(t, c, []insight.EvidenceRow{
		{ENIID: "old", ContactID: "CNT-1", Description: "older note", LoggedDate: "2026-01-05", SourceType: "t", SourceSubtype: "null"},
		{ENIID: "new", ContactID: "CNT-1", Description: "newer note", LoggedDate: "2026-03-10", SourceType: "t", SourceSubtype: "null"},
		{ENIID: "done", ContactID: "CNT-1", Description: "consumed", LoggedDate: "2026-04-01", SourceType: "t", SourceSubtype: "null"},
	})
	c.MarkProcessed(ctx, []MarkRecord{{ENIID: "done", ContactID: "CNT-1"}})

	rows, err := c.FetchRows(ctx, "CNT-1", "t", "null")
	if err != nil {
		t.Fatalf("FetchRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].ENIID != "new" || rows[1].ENIID != "old" {
		t.Errorf("rows not newest first: %v, %v", rows[0].ENIID, rows[1].ENIID)
	}
}

func TestMarkProcessedCounts(t *testing.T) {
	c := newTestConnector(t)
	ctx := context.Background()
	seedRows(t, c, []insight.EvidenceRow{
		{ENIID: "e1", ContactID: "CNT-1", Description: "a", SourceType: "t", SourceSubtype: "null"},
	})

	success, fail := c.MarkProcessed(ctx, []MarkRecord{
		{ENIID: "e1", ContactID: "CNT-1", Status: "completed", ProcessorVersion: "1.0.0"},
		{ENIID: "missing", ContactID: "CNT-1"},
	})
	if success != 1 || fail != 1 {
		t.Errorf("success=%d fail=%d, want 1/1", success, fail)
	}

	stats, err := c.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if stats.Completed != 1 || stats.Pending != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCountByStatusThroughInterface(t *testing.T) {
	// Consumers like the status server hold a Connector, not the
	// concrete type; counting must be reachable through the interface.
	var c Connector = newTestConnector(t)
	ctx := context.Background()

	stats, err := c.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus on empty table: %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("empty table stats = %+v", stats)
	}

	seedRows(t, c.(*SQLiteConnector), []insight.EvidenceRow{
		{ENIID: "e1", ContactID: "CNT-1", Description: "a", SourceType: "t", SourceSubtype: "null"},
		{ENIID: "e2", ContactID: "CNT-1", Description: "b", SourceType: "t", SourceSubtype: "null"},
	})
	c.MarkProcessed(ctx, []MarkRecord{{ENIID: "e1", ContactID: "CNT-1"}})

	stats, err = c.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if stats.Pending != 1 || stats.Completed != 1 {
		t.Errorf("stats = %+v, want 1 pending / 1 completed", stats)
	}
}

func TestListPrioritizedContacts(t *testing.T) {
	c := newTestConnector(t)
	ctx := context.Background()
	seedRows(t, c, []insight.EvidenceRow{
		{ENIID: "a1", ContactID: "CNT-A", Description: "x", SourceType: "t", SourceSubtype: "null"},
		{ENIID: "b1", ContactID: "CNT-B", Description: "x", SourceType: "t", SourceSubtype: "null"},
		{ENIID: "b2", ContactID: "CNT-B", Description: "x", SourceType: "t", SourceSubtype: "null"},
	})
	// CNT-B has one consumed row, so it sorts after never-processed CNT-A.
	c.MarkProcessed(ctx, []MarkRecord{{ENIID: "b1", ContactID: "CNT-B"}})

	cutoff := time.Now().Add(time.Hour)
	ids, err := c.ListPrioritizedContacts(ctx, cutoff, 10, 0)
	if err != nil {
		t.Fatalf("ListPrioritizedContacts: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d contacts, want 2: %v", len(ids), ids)
	}
	if ids[0] != "CNT-A" || ids[1] != "CNT-B" {
		t.Errorf("priority order = %v, want [CNT-A CNT-B]", ids)
	}

	// A cutoff in the past excludes recently processed contacts.
	ids, err = c.ListPrioritizedContacts(ctx, time.Now().Add(-time.Hour), 10, 0)
	if err != nil {
		t.Fatalf("ListPrioritizedContacts: %v", err)
	}
	if len(ids) != 1 || ids[0] != "CNT-A" {
		t.Errorf("expected only never-processed contact, got %v", ids)
	}
}

func TestListPrioritizedContactsPaging(t *testing.T) {
	c := newTestConnector(t)
	ctx := context.Background()
	seedRows(t, c, []insight.EvidenceRow{
		{ENIID: "a", ContactID: "CNT-A", Description: "x", SourceType: "t", SourceSubtype: "null"},
		{ENIID: "b", ContactID: "CNT-B", Description: "x", SourceType: "t", SourceSubtype: "null"},
		{ENIID: "c", ContactID: "CNT-C", Description: "x", SourceType: "t", SourceSubtype: "null"},
	})

	cutoff := time.Now().Add(time.Hour)
	page1, err := c.ListPrioritizedContacts(ctx, cutoff, 2, 0)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	page2, err := c.ListPrioritizedContacts(ctx, cutoff, 2, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page1) != 2 || len(page2) != 1 {
		t.Errorf("page sizes = %d, %d; want 2, 1", len(page1), len(page2))
	}
}
