// Package claims provides short-lived exclusive locks on work keys so
// that concurrent batch runs do not process the same contact twice.
// Acquisition is a single conditional write against the backing store;
// there is no read-then-write window for two workers to race through.
// Claims are not renewed: work must finish within the TTL or another
// worker may take the key over, which duplicates effort but cannot
// corrupt results since insight writes are versioned.
package claims

import (
	"context"
	"time"
)

// Coordinator grants and releases time-boxed claims on work keys.
type Coordinator interface {
	// Acquire succeeds when no live claim exists for key, or the
	// existing claim has expired. On success the claim is (re)written
	// with expiry now+ttl for the given holder.
	Acquire(ctx context.Context, key string, ttl time.Duration, holder string) (bool, error)
	// Release deletes the claim. Releasing a missing or expired claim
	// is not an error.
	Release(ctx context.Context, key string) error
}
