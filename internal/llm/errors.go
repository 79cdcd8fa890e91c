package llm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RateLimitError signals that the upstream rejected a call for quota
// reasons. RetryAfter is zero when the server gave no hint.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Message)
}

// IsRateLimit reports whether err is a rate-limit rejection, either a
// typed RateLimitError or a provider error whose text indicates quota
// exhaustion.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota")
}

// RetryAfterHint returns the server-provided retry delay, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter, true
	}
	return 0, false
}
