package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ziadkadry99/member-insights/internal/logger"
)

// Client wraps a Provider with the shared call throttle and a
// retry/backoff policy. All pipeline model calls go through one Client
// so that a rate-limit response from any worker pauses the rest.
type Client struct {
	provider    Provider
	limiter     *RateLimiter
	log         *logger.Logger
	maxRetries  int
	maxTokens   int
	temperature float64
}

// NewClient creates a retrying client. limiter must not be nil.
func NewClient(provider Provider, limiter *RateLimiter, log *logger.Logger, maxRetries, maxTokens int, temperature float64) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		provider:    provider,
		limiter:     limiter,
		log:         log,
		maxRetries:  maxRetries,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Complete sends the prompt and returns the completion, retrying
// transient failures. A rate-limit rejection pauses the shared limiter
// for the server-suggested delay when one is present, otherwise for an
// exponential backoff with jitter, so concurrent callers back off
// together. The error returned after exhausting retries is the last
// failure; callers treat it as "no output this attempt", not as fatal.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (*CompletionResponse, error) {
	req := CompletionRequest{
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: userPrompt},
		},
	}
	if systemPrompt == "" {
		req.Messages = req.Messages[1:]
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		resp, err := c.provider.Complete(ctx, req)
		c.limiter.Release()

		if err == nil {
			if resp.Content == "" {
				lastErr = fmt.Errorf("%s returned empty completion", c.provider.Name())
				continue
			}
			return resp, nil
		}
		lastErr = err

		delay := backoffDelay(attempt)
		if IsRateLimit(err) {
			if hint, ok := RetryAfterHint(err); ok {
				delay = hint
			}
			c.limiter.Pause(delay)
			c.log.Warn("model call rate limited, pausing all callers",
				"provider", c.provider.Name(), "attempt", attempt+1, "delay", delay)
		} else {
			c.log.Warn("model call failed, retrying",
				"provider", c.provider.Name(), "attempt", attempt+1, "delay", delay, "error", err)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("completion failed after %d attempts: %w", c.maxRetries, lastErr)
}

// Name returns the underlying provider name.
func (c *Client) Name() string {
	return c.provider.Name()
}

// backoffDelay returns 2^attempt seconds plus up to one second of
// jitter.
func backoffDelay(attempt int) time.Duration {
	base := math.Pow(2, float64(attempt))
	jitter := rand.Float64()
	return time.Duration((base + jitter) * float64(time.Second))
}
