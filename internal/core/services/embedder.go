package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/core/ports/driven"
	"github.com/custodia-labs/cvsearch/internal/logger"
)

// DefaultMaxBatch is the default number of texts per provider request.
const DefaultMaxBatch = 96

// DefaultEmbedTimeout bounds a single provider request.
const DefaultEmbedTimeout = 30 * time.Second

// Embedder wraps an EmbeddingService with batching, rate limiting, retries
// and response validation. It is stateless apart from the shared limiter.
type Embedder struct {
	provider driven.EmbeddingService
	limiter  *RateLimiter
	maxBatch int
	timeout  time.Duration
	policy   RetryPolicy
	metrics  driven.Metrics
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithMaxBatch sets the provider batch size.
func WithMaxBatch(n int) EmbedderOption {
	return func(e *Embedder) {
		if n > 0 {
			e.maxBatch = n
		}
	}
}

// WithRateLimiter shares a rate limiter across provider calls.
func WithRateLimiter(l *RateLimiter) EmbedderOption {
	return func(e *Embedder) {
		e.limiter = l
	}
}

// WithEmbedTimeout bounds each provider call.
func WithEmbedTimeout(d time.Duration) EmbedderOption {
	return func(e *Embedder) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithEmbedRetry sets the retry policy.
func WithEmbedRetry(p RetryPolicy) EmbedderOption {
	return func(e *Embedder) {
		e.policy = p
	}
}

// WithEmbedMetrics records retries.
func WithEmbedMetrics(m driven.Metrics) EmbedderOption {
	return func(e *Embedder) {
		e.metrics = m
	}
}

// NewEmbedder creates an embedder over provider.
func NewEmbedder(provider driven.EmbeddingService, opts ...EmbedderOption) *Embedder {
	e := &Embedder{
		provider: provider,
		limiter:  NewRateLimiter(RateLimitConfig{}),
		maxBatch: DefaultMaxBatch,
		timeout:  DefaultEmbedTimeout,
		policy:   EmbedRetryPolicy,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics = metricsOrNop(e.metrics)
	return e
}

// Dimensions returns the provider's vector size.
func (e *Embedder) Dimensions() int {
	return e.provider.Dimensions()
}

// ModelName returns the provider's model name.
func (e *Embedder) ModelName() string {
	return e.provider.ModelName()
}

// Embed embeds a single text, typically a query.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in provider-sized batches. The result has the
// same order and count as texts.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.maxBatch {
		end := start + e.maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		var vecs [][]float32
		err := retry(ctx, e.policy, "embed", e.onRetry, func(ctx context.Context) error {
			var err error
			vecs, err = e.call(ctx, texts[start:end])
			return err
		})
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *Embedder) onRetry(wait time.Duration) {
	e.metrics.ObserveRetry("embed")
	e.limiter.Backoff(wait)
}

func (e *Embedder) call(ctx context.Context, batch []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vecs, err := e.provider.EmbedBatch(callCtx, batch)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, domain.ErrEmbeddingUnavailable) || errors.Is(err, domain.ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}

	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d inputs",
			domain.ErrEmbeddingUnavailable, len(vecs), len(batch))
	}
	dims := e.provider.Dimensions()
	for i, v := range vecs {
		if len(v) == 0 || (dims > 0 && len(v) != dims) {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d",
				domain.ErrEmbeddingUnavailable, i, len(v), dims)
		}
	}

	logger.Debug("embedded %d texts with %s", len(batch), e.provider.ModelName())
	return vecs, nil
}
