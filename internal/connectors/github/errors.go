package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// ErrInvalidRepo is returned for repository names not of the form owner/name.
var ErrInvalidRepo = fmt.Errorf("%w: repository must be owner/name", domain.ErrInvalidInput)

// APIError is an error response from the GitHub API.
type APIError struct {
	StatusCode int
	Message    string
	Operation  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: %s: %d %s", e.Operation, e.StatusCode, e.Message)
}

// Unwrap maps the status to a domain error so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrConfiguration
	default:
		return domain.ErrStoreUnavailable
	}
}

// RateLimitError reports an exhausted quota.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return domain.ErrStoreUnavailable }

// wrapError converts go-github errors to the types above.
func wrapError(err error, operation string) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitError{ResetAt: rateErr.Rate.Reset.Time}
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &RateLimitError{ResetAt: time.Now().Add(abuseErr.GetRetryAfter())}
	}
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return &APIError{
			StatusCode: respErr.Response.StatusCode,
			Message:    respErr.Message,
			Operation:  operation,
		}
	}
	return fmt.Errorf("github: %s: %w", operation, err)
}
