// Package runlog persists batch-run summaries for the stats command
// and the status endpoint.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/member-insights/internal/db"
	"github.com/ziadkadry99/member-insights/internal/pipeline"
)

// Store provides persistence for run summaries.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Record inserts a finished run summary. If the summary has no RunID a
// UUID is generated.
func (s *Store) Record(ctx context.Context, summary pipeline.RunSummary) error {
	if summary.RunID == "" {
		summary.RunID = uuid.New().String()
	}

	errorsJSON, err := json.Marshal(summary.Errors)
	if err != nil {
		return fmt.Errorf("marshalling run errors: %w", err)
	}

	var finished sql.NullString
	if !summary.FinishedAt.IsZero() {
		finished = sql.NullString{String: summary.FinishedAt.UTC().Format(time.DateTime), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_summaries (
			id, generator, started_at, finished_at, contacts_total,
			successful, failed, skipped, evidence_rows,
			est_input_tokens, est_output_tokens, errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID,
		summary.Generator,
		summary.StartedAt.UTC().Format(time.DateTime),
		finished,
		summary.ContactsTotal,
		summary.Successful,
		summary.Failed,
		summary.Skipped,
		summary.EvidenceRows,
		summary.EstInputTokens,
		summary.EstOutputTokens,
		string(errorsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run summary: %w", err)
	}
	return nil
}

// Recent returns the most recent run summaries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]pipeline.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generator, started_at, finished_at, contacts_total,
		       successful, failed, skipped, evidence_rows,
		       est_input_tokens, est_output_tokens, errors
		FROM run_summaries
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run summaries: %w", err)
	}
	defer rows.Close()

	var out []pipeline.RunSummary
	for rows.Next() {
		var (
			summary    pipeline.RunSummary
			started    string
			finished   sql.NullString
			errorsJSON string
		)
		err := rows.Scan(&summary.RunID, &summary.Generator, &started, &finished,
			&summary.ContactsTotal, &summary.Successful, &summary.Failed,
			&summary.Skipped, &summary.EvidenceRows,
			&summary.EstInputTokens, &summary.EstOutputTokens, &errorsJSON)
		if err != nil {
			return nil, err
		}
		summary.StartedAt = parseStoredTime(started)
		if finished.Valid {
			summary.FinishedAt = parseStoredTime(finished.String)
		}
		if err := json.Unmarshal([]byte(errorsJSON), &summary.Errors); err != nil {
			summary.Errors = nil
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// parseStoredTime decodes a timestamp read back from the database.
// Rows are written in the datetime text layout, but the driver may
// hand DATETIME columns back as RFC3339, so both are accepted.
func parseStoredTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// Totals aggregates processing counts across all recorded runs.
func (s *Store) Totals(ctx context.Context) (runs, successful, failed, skipped int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(successful), 0),
		       COALESCE(SUM(failed), 0),
		       COALESCE(SUM(skipped), 0)
		FROM run_summaries`).Scan(&runs, &successful, &failed, &skipped)
	return runs, successful, failed, skipped, err
}
