package insight

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ziadkadry99/member-insights/internal/db"
	"github.com/ziadkadry99/member-insights/internal/logger"
)

// Store persists versioned insights. A bounded LRU keyed by contact id
// memoizes the latest version so long batch runs do not grow memory
// with the number of contacts touched.
type Store struct {
	db        *db.DB
	log       *logger.Logger
	generator string
	cache     *lru.Cache[string, *StructuredInsight]
}

// NewStore creates a store writing rows tagged with the given
// generator name.
func NewStore(d *db.DB, log *logger.Logger, generator string, cacheSize int) (*Store, error) {
	if cacheSize < 1 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, *StructuredInsight](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating insight cache: %w", err)
	}
	return &Store{db: d, log: log, generator: generator, cache: cache}, nil
}

// Generator returns the logical producer name this store writes under.
func (s *Store) Generator() string {
	return s.generator
}

// GetLatest returns the current is_latest row for a contact, or nil if
// none exists.
func (s *Store) GetLatest(ctx context.Context, contactID string) (*StructuredInsight, error) {
	if cached, ok := s.cache.Get(contactID); ok {
		return cached, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, contact_id, eni_id, generator, version, is_latest, sections,
		       source_types, source_subtypes, record_count, total_source_ids,
		       est_input_tokens, est_output_tokens, generation_time_seconds,
		       created_at, updated_at
		FROM structured_insights
		WHERE contact_id = ? AND generator = ? AND is_latest = 1`,
		contactID, s.generator)

	ins, err := scanInsight(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest insight for %s: %w", contactID, err)
	}

	s.cache.Add(contactID, ins)
	return ins, nil
}

// ListVersions returns all stored versions for a contact, oldest first.
func (s *Store) ListVersions(ctx context.Context, contactID string) ([]*StructuredInsight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contact_id, eni_id, generator, version, is_latest, sections,
		       source_types, source_subtypes, record_count, total_source_ids,
		       est_input_tokens, est_output_tokens, generation_time_seconds,
		       created_at, updated_at
		FROM structured_insights
		WHERE contact_id = ? AND generator = ?
		ORDER BY version ASC`,
		contactID, s.generator)
	if err != nil {
		return nil, fmt.Errorf("querying insight versions for %s: %w", contactID, err)
	}
	defer rows.Close()

	var out []*StructuredInsight
	for rows.Next() {
		ins, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

// CountInsights returns total and latest-row counts for the generator.
func (s *Store) CountInsights(ctx context.Context) (total, latest int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_latest), 0) FROM structured_insights WHERE generator = ?`,
		s.generator).Scan(&total, &latest)
	return total, latest, err
}

// ProcessInsight writes a new version for the contact: superseded rows
// have is_latest flipped off first, then the new row is inserted with
// version max+1 (1 when none exists). A failed flip is logged and the
// insert proceeds anyway; new data beats strict bookkeeping when the
// store is flaky. Returns (nil, false) on unrecoverable failure rather
// than an error so one contact's storage trouble cannot abort a batch.
func (s *Store) ProcessInsight(ctx context.Context, contactID, compositeENIID string, sections Sections, meta Metadata) (*StructuredInsight, bool) {
	if err := s.markSuperseded(ctx, contactID); err != nil {
		s.log.Warn("failed to flip is_latest on prior versions, inserting anyway",
			"contact_id", contactID, "error", err)
	}

	version, err := s.nextVersion(ctx, contactID)
	if err != nil {
		s.log.Error("failed to determine next insight version",
			"contact_id", contactID, "error", err)
		return nil, false
	}

	ins := &StructuredInsight{
		ID:                    uuid.NewString(),
		ContactID:             contactID,
		ENIID:                 compositeENIID,
		Generator:             s.generator,
		Version:               version,
		IsLatest:              true,
		Sections:              sections,
		SourceTypes:           []string{meta.SourceType},
		SourceSubtypes:        []string{meta.SourceSubtype},
		RecordCount:           meta.RecordCount,
		TotalSourceIDs:        meta.TotalSourceIDs,
		EstInputTokens:        meta.EstInputTokens,
		EstOutputTokens:       meta.EstOutputTokens,
		GenerationTimeSeconds: meta.GenerationTimeSeconds,
		CreatedAt:             time.Now().UTC(),
		UpdatedAt:             time.Now().UTC(),
	}

	sectionsJSON, _ := json.Marshal(ins.Sections)
	typesJSON, _ := json.Marshal(ins.SourceTypes)
	subtypesJSON, _ := json.Marshal(ins.SourceSubtypes)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO structured_insights
			(id, contact_id, eni_id, generator, version, is_latest, sections,
			 source_types, source_subtypes, record_count, total_source_ids,
			 est_input_tokens, est_output_tokens, generation_time_seconds,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ins.ID, ins.ContactID, ins.ENIID, ins.Generator, ins.Version,
		string(sectionsJSON), string(typesJSON), string(subtypesJSON),
		ins.RecordCount, ins.TotalSourceIDs, ins.EstInputTokens,
		ins.EstOutputTokens, ins.GenerationTimeSeconds,
		ins.CreatedAt.Format(time.DateTime), ins.UpdatedAt.Format(time.DateTime))
	if err != nil {
		s.log.Error("failed to insert insight version",
			"contact_id", contactID, "version", version, "error", err)
		return nil, false
	}

	s.cache.Add(contactID, ins)
	return ins, true
}

func (s *Store) markSuperseded(ctx context.Context, contactID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE structured_insights
		SET is_latest = 0, updated_at = datetime('now')
		WHERE contact_id = ? AND generator = ? AND is_latest = 1`,
		contactID, s.generator)
	return err
}

func (s *Store) nextVersion(ctx context.Context, contactID string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM structured_insights WHERE contact_id = ? AND generator = ?`,
		contactID, s.generator).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanInsight(sc scanner) (*StructuredInsight, error) {
	var ins StructuredInsight
	var sectionsJSON, typesJSON, subtypesJSON string
	var createdAt, updatedAt string
	var isLatest int
	err := sc.Scan(&ins.ID, &ins.ContactID, &ins.ENIID, &ins.Generator,
		&ins.Version, &isLatest, &sectionsJSON, &typesJSON, &subtypesJSON,
		&ins.RecordCount, &ins.TotalSourceIDs, &ins.EstInputTokens,
		&ins.EstOutputTokens, &ins.GenerationTimeSeconds,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	ins.IsLatest = isLatest != 0
	ins.CreatedAt = parseStoredTime(createdAt)
	ins.UpdatedAt = parseStoredTime(updatedAt)
	if err := json.Unmarshal([]byte(sectionsJSON), &ins.Sections); err != nil {
		return nil, fmt.Errorf("decoding sections for %s: %w", ins.ID, err)
	}
	_ = json.Unmarshal([]byte(typesJSON), &ins.SourceTypes)
	_ = json.Unmarshal([]byte(subtypesJSON), &ins.SourceSubtypes)
	return &ins, nil
}

func parseStoredTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
