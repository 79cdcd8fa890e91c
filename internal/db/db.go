package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB with pipeline-specific helpers.
type DB struct {
	*sql.DB
	mu   sync.RWMutex
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full database schema. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS structured_insights (
    id TEXT PRIMARY KEY,
    contact_id TEXT NOT NULL,
    eni_id TEXT NOT NULL,
    generator TEXT NOT NULL,
    version INTEGER NOT NULL,
    is_latest INTEGER NOT NULL DEFAULT 1,
    sections TEXT NOT NULL DEFAULT '{}',
    source_types TEXT NOT NULL DEFAULT '[]',
    source_subtypes TEXT NOT NULL DEFAULT '[]',
    record_count INTEGER NOT NULL DEFAULT 0,
    total_source_ids INTEGER NOT NULL DEFAULT 0,
    est_input_tokens INTEGER NOT NULL DEFAULT 0,
    est_output_tokens INTEGER NOT NULL DEFAULT 0,
    generation_time_seconds REAL NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
    UNIQUE(contact_id, generator, version)
);

CREATE INDEX IF NOT EXISTS idx_insights_contact ON structured_insights(contact_id, generator);
CREATE INDEX IF NOT EXISTS idx_insights_latest ON structured_insights(contact_id, generator, is_latest);

CREATE TABLE IF NOT EXISTS work_claims (
    key TEXT PRIMARY KEY,
    holder TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_expiry ON work_claims(expires_at);

CREATE TABLE IF NOT EXISTS eni_records (
    eni_id TEXT PRIMARY KEY,
    contact_id TEXT NOT NULL,
    description TEXT NOT NULL,
    logged_date TEXT,
    source_type TEXT NOT NULL,
    source_subtype TEXT NOT NULL DEFAULT 'null',
    processing_status TEXT NOT NULL DEFAULT 'pending' CHECK(processing_status IN ('pending','completed','failed')),
    processor_version TEXT,
    processed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_eni_contact ON eni_records(contact_id, source_type, source_subtype);
CREATE INDEX IF NOT EXISTS idx_eni_status ON eni_records(processing_status);
CREATE INDEX IF NOT EXISTS idx_eni_logged ON eni_records(logged_date);

CREATE TABLE IF NOT EXISTS run_summaries (
    id TEXT PRIMARY KEY,
    generator TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    contacts_total INTEGER NOT NULL DEFAULT 0,
    successful INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    evidence_rows INTEGER NOT NULL DEFAULT 0,
    est_input_tokens INTEGER NOT NULL DEFAULT 0,
    est_output_tokens INTEGER NOT NULL DEFAULT 0,
    errors TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON run_summaries(started_at);
`
