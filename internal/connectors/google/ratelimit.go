package google

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DriveRate is the default request rate for Drive, below its limit of
// ten requests per second per user.
const DriveRate = 8.0

// DefaultBackoff is how long requests pause after a 429 response.
const DefaultBackoff = time.Minute

// RateLimiter throttles requests with a token bucket and pauses them
// after the API reports rate limiting.
type RateLimiter struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time
}

// NewRateLimiter allows perSecond requests with bursts of ten. A value of
// zero or less disables throttling.
func NewRateLimiter(perSecond float64) *RateLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, 10)}
}

// Wait blocks until a request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}

// Observe pauses further requests for DefaultBackoff when err reports
// rate limiting.
func (r *RateLimiter) Observe(err error) {
	if err == nil || !IsRateLimited(err) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = time.Now().Add(DefaultBackoff)
}

// RetryAt returns the end of the current pause, or the zero time.
func (r *RateLimiter) RetryAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAt
}
