package google

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

// ErrRateLimited is returned when the API answers 429.
var ErrRateLimited = fmt.Errorf("%w: google: rate limit exceeded", domain.ErrStoreUnavailable)

// WrapError annotates err with operation and maps API status codes to
// domain errors. Errors that are not API errors are only annotated.
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("google: %s: %w", operation, err)
	}

	var kind error
	switch gerr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = domain.ErrConfiguration
	case http.StatusNotFound:
		kind = domain.ErrNotFound
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	default:
		kind = domain.ErrStoreUnavailable
	}
	return fmt.Errorf("google: %s: %w: %w", operation, kind, err)
}

// IsRateLimited reports whether err is a 429 response.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests
}
