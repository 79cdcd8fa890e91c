package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/ziadkadry99/member-insights/internal/db"
)

// SQLiteCoordinator stores claims in the work_claims table. SQLite
// serializes writers, so the upsert below is atomic: two simultaneous
// Acquire calls on the same key cannot both see the expiry predicate
// hold.
type SQLiteCoordinator struct {
	db *db.DB
}

// NewSQLiteCoordinator creates a coordinator backed by the given
// database.
func NewSQLiteCoordinator(d *db.DB) *SQLiteCoordinator {
	return &SQLiteCoordinator{db: d}
}

func (c *SQLiteCoordinator) Acquire(ctx context.Context, key string, ttl time.Duration, holder string) (bool, error) {
	now := time.Now().UnixMilli()
	expires := now + ttl.Milliseconds()

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO work_claims (key, holder, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE work_claims.expires_at < ?`,
		key, holder, expires, now)
	if err != nil {
		return false, fmt.Errorf("acquiring claim %s: %w", key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquiring claim %s: %w", key, err)
	}
	return affected == 1, nil
}

func (c *SQLiteCoordinator) Release(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM work_claims WHERE key = ?`, key); err != nil {
		return fmt.Errorf("releasing claim %s: %w", key, err)
	}
	return nil
}
