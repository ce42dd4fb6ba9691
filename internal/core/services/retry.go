package services

import (
	"context"
	"time"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/logger"
)

// RetryPolicy bounds retries of retryable provider failures.
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first.
	Attempts int

	// BaseDelay is the wait before the second attempt. It doubles per attempt.
	BaseDelay time.Duration

	// MaxDelay caps a single wait.
	MaxDelay time.Duration
}

// Default retry policies.
var (
	EmbedRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
	ReadRetryPolicy  = RetryPolicy{Attempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}
	WriteRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
)

// delay returns the wait before attempt n (n >= 1).
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// retry calls fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted, or ctx is done. onRetry, if set, is called with
// the wait before each retry.
func retry(ctx context.Context, p RetryPolicy, op string, onRetry func(time.Duration), fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for n := 1; ; n++ {
		if err = fn(ctx); err == nil || !domain.IsRetryable(err) || n >= attempts {
			return err
		}

		wait := p.delay(n)
		logger.Debug("%s failed (attempt %d/%d), retrying in %s: %v", op, n, attempts, wait, err)
		if onRetry != nil {
			onRetry(wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
