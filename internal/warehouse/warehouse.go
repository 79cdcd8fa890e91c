// Package warehouse reads evidence rows from the interaction store and
// records which ones have been consumed by the pipeline.
package warehouse

import (
	"context"
	"time"

	"github.com/ziadkadry99/member-insights/internal/insight"
)

// TypeSubtype is one (source_type, source_subtype) partition of a
// contact's pending evidence.
type TypeSubtype struct {
	SourceType    string
	SourceSubtype string
}

// MarkRecord identifies one evidence row to flag as consumed.
type MarkRecord struct {
	ENIID            string
	ContactID        string
	Status           string
	ProcessorVersion string
}

// Stats summarizes warehouse row counts by processing status.
type Stats struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Connector is the warehouse contract consumed by the pipeline.
type Connector interface {
	// Connect verifies the warehouse is reachable. Called once at
	// startup; failure is fatal for the run.
	Connect(ctx context.Context) error
	// Combinations lists the distinct (type, subtype) partitions with
	// pending rows for a contact, "null" subtype first within each
	// type.
	Combinations(ctx context.Context, contactID string) ([]TypeSubtype, error)
	// FetchRows returns the pending evidence rows for one partition,
	// newest first by logged date.
	FetchRows(ctx context.Context, contactID, sourceType, sourceSubtype string) ([]insight.EvidenceRow, error)
	// MarkProcessed flags rows as consumed, best effort per row.
	MarkProcessed(ctx context.Context, records []MarkRecord) (success, fail int)
	// ListPrioritizedContacts pages through contacts with pending
	// work: never-processed contacts first, then contacts whose last
	// processing happened before cutoff, oldest first.
	ListPrioritizedContacts(ctx context.Context, cutoff time.Time, limit, offset int) ([]string, error)
	// CountByStatus returns row counts grouped by processing status.
	CountByStatus(ctx context.Context) (Stats, error)
}
