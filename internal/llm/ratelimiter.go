package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimiter bounds the number of simultaneous upstream calls and
// carries a shared resume-after deadline. When any caller observes a
// rate-limit response it pauses the limiter, and every other caller
// waits out the same deadline before issuing its next request. One
// limiter is shared by all workers of a pipeline instance; independent
// pipelines in the same process each construct their own.
type RateLimiter struct {
	sem chan struct{}

	mu          sync.Mutex
	resumeAfter time.Time
}

// NewRateLimiter creates a limiter allowing at most maxConcurrent
// simultaneous calls.
func NewRateLimiter(maxConcurrent int) *RateLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &RateLimiter{
		sem: make(chan struct{}, maxConcurrent),
	}
}

// Acquire blocks until a call slot is free and any shared pause has
// elapsed. Callers must Release exactly once per successful Acquire.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		wait := r.pauseRemaining()
		if wait <= 0 {
			return nil
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			<-r.sem
			return ctx.Err()
		}
	}
}

// Release frees a call slot.
func (r *RateLimiter) Release() {
	<-r.sem
}

// Pause defers all calls for at least d from now. A later deadline
// already in place is kept.
func (r *RateLimiter) Pause(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(r.resumeAfter) {
		r.resumeAfter = until
	}
}

func (r *RateLimiter) pauseRemaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Until(r.resumeAfter)
}
