package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ziadkadry99/member-insights/internal/db"
	"github.com/ziadkadry99/member-insights/internal/insight"
	"github.com/ziadkadry99/member-insights/internal/logger"
)

// SQLiteConnector implements Connector against the eni_records table.
type SQLiteConnector struct {
	db  *db.DB
	log *logger.Logger
}

var _ Connector = (*SQLiteConnector)(nil)

// NewSQLiteConnector creates a connector backed by the given database.
func NewSQLiteConnector(d *db.DB, log *logger.Logger) *SQLiteConnector {
	return &SQLiteConnector{db: d, log: log}
}

func (c *SQLiteConnector) Connect(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("warehouse unreachable: %w", err)
	}
	return nil
}

func (c *SQLiteConnector) Combinations(ctx context.Context, contactID string) ([]TypeSubtype, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT DISTINCT source_type, source_subtype
		FROM eni_records
		WHERE contact_id = ? AND processing_status = 'pending'
		ORDER BY source_type,
		         CASE WHEN source_subtype = 'null' THEN 0 ELSE 1 END,
		         source_subtype`,
		contactID)
	if err != nil {
		return nil, fmt.Errorf("listing partitions for %s: %w", contactID, err)
	}
	defer rows.Close()

	var out []TypeSubtype
	for rows.Next() {
		var ts TypeSubtype
		if err := rows.Scan(&ts.SourceType, &ts.SourceSubtype); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (c *SQLiteConnector) FetchRows(ctx context.Context, contactID, sourceType, sourceSubtype string) ([]insight.EvidenceRow, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT eni_id, contact_id, description, COALESCE(logged_date, ''), source_type, source_subtype
		FROM eni_records
		WHERE contact_id = ? AND source_type = ? AND source_subtype = ?
		  AND processing_status = 'pending'
		ORDER BY logged_date DESC, eni_id`,
		contactID, sourceType, sourceSubtype)
	if err != nil {
		return nil, fmt.Errorf("fetching rows for %s/%s/%s: %w", contactID, sourceType, sourceSubtype, err)
	}
	defer rows.Close()

	var out []insight.EvidenceRow
	for rows.Next() {
		var r insight.EvidenceRow
		if err := rows.Scan(&r.ENIID, &r.ContactID, &r.Description, &r.LoggedDate, &r.SourceType, &r.SourceSubtype); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *SQLiteConnector) MarkProcessed(ctx context.Context, records []MarkRecord) (success, fail int) {
	for _, rec := range records {
		status := rec.Status
		if status == "" {
			status = "completed"
		}
		res, err := c.db.ExecContext(ctx, `
			UPDATE eni_records
			SET processing_status = ?, processor_version = ?, processed_at = ?
			WHERE eni_id = ?`,
			status, rec.ProcessorVersion, time.Now().UTC().Format(time.DateTime), rec.ENIID)
		if err != nil {
			c.log.Warn("failed to mark evidence row processed", "eni_id", rec.ENIID, "error", err)
			fail++
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			c.log.Warn("evidence row not found while marking processed", "eni_id", rec.ENIID)
			fail++
			continue
		}
		success++
	}
	return success, fail
}

func (c *SQLiteConnector) ListPrioritizedContacts(ctx context.Context, cutoff time.Time, limit, offset int) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT contact_id
		FROM eni_records
		GROUP BY contact_id
		HAVING SUM(CASE WHEN processing_status = 'pending' THEN 1 ELSE 0 END) > 0
		   AND (MAX(processed_at) IS NULL OR MAX(processed_at) < ?)
		ORDER BY (MAX(processed_at) IS NULL) DESC, MAX(processed_at) ASC, contact_id ASC
		LIMIT ? OFFSET ?`,
		cutoff.UTC().Format(time.DateTime), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing prioritized contacts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// InsertRows loads evidence rows, skipping ids already present. Used
// by the import path and tests.
func (c *SQLiteConnector) InsertRows(ctx context.Context, rows []insight.EvidenceRow) error {
	for _, r := range rows {
		subtype := r.SourceSubtype
		if subtype == "" {
			subtype = "null"
		}
		_, err := c.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO eni_records
				(eni_id, contact_id, description, logged_date, source_type, source_subtype)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ENIID, r.ContactID, r.Description, r.LoggedDate, r.SourceType, subtype)
		if err != nil {
			return fmt.Errorf("inserting evidence row %s: %w", r.ENIID, err)
		}
	}
	return nil
}

// CountByStatus returns row counts grouped by processing status.
func (c *SQLiteConnector) CountByStatus(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(processing_status = 'pending'), 0),
			COALESCE(SUM(processing_status = 'completed'), 0),
			COALESCE(SUM(processing_status = 'failed'), 0)
		FROM eni_records`).Scan(&s.Pending, &s.Completed, &s.Failed)
	if err != nil {
		return Stats{}, fmt.Errorf("counting warehouse rows: %w", err)
	}
	return s, nil
}
