package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRate throttles requests to roughly 4300 an hour, under the
	// authenticated quota of 5000.
	DefaultRate = 1.2

	// MinRemaining is the quota kept in reserve before waiting for reset.
	MinRemaining = 100

	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
)

// RateLimiter throttles requests with a token bucket and, once the quota
// reported by the API runs low, holds them until the reset time.
type RateLimiter struct {
	bucket *rate.Limiter

	mu        sync.Mutex
	remaining int
	resetAt   time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests. A value
// of zero or less disables throttling.
func NewRateLimiter(perSecond float64) *RateLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimiter{
		bucket:    rate.NewLimiter(limit, 1),
		remaining: -1,
	}
}

// Wait blocks until a request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	remaining, resetAt := r.remaining, r.resetAt
	r.mu.Unlock()

	if remaining < 0 || remaining >= MinRemaining || !time.Now().Before(resetAt) {
		return nil
	}
	timer := time.NewTimer(time.Until(resetAt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Observe records the quota headers of a response.
func (r *RateLimiter) Observe(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, err := strconv.Atoi(resp.Header.Get(headerRemaining)); err == nil {
		r.remaining = v
	}
	if v, err := strconv.ParseInt(resp.Header.Get(headerReset), 10, 64); err == nil {
		r.resetAt = time.Unix(v, 0)
	}
}

// Remaining returns the last reported quota, or -1 before any response.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// ResetAt returns the last reported reset time.
func (r *RateLimiter) ResetAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetAt
}
