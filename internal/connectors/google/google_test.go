package google

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "list"))

	plain := errors.New("dial tcp: refused")
	err := WrapError(plain, "list")
	assert.ErrorIs(t, err, plain)
	assert.EqualError(t, err, "google: list: dial tcp: refused")

	tests := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, domain.ErrConfiguration},
		{http.StatusForbidden, domain.ErrConfiguration},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, domain.ErrStoreUnavailable},
	}
	for _, tt := range tests {
		gerr := &googleapi.Error{Code: tt.code, Message: "boom"}
		err := WrapError(gerr, "get")
		assert.ErrorIs(t, err, tt.want, tt.code)

		var got *googleapi.Error
		require.ErrorAs(t, err, &got)
		assert.Equal(t, tt.code, got.Code)
	}
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.True(t, IsRateLimited(WrapError(&googleapi.Error{Code: http.StatusTooManyRequests}, "get")))
	assert.False(t, IsRateLimited(&googleapi.Error{Code: http.StatusNotFound}))
	assert.False(t, IsRateLimited(errors.New("other")))
}

func TestRateLimiter(t *testing.T) {
	r := NewRateLimiter(0)
	require.NoError(t, r.Wait(context.Background()))

	r.Observe(nil)
	r.Observe(errors.New("other"))
	assert.True(t, r.RetryAt().IsZero())

	r.Observe(&googleapi.Error{Code: http.StatusTooManyRequests})
	assert.WithinDuration(t, time.Now().Add(DefaultBackoff), r.RetryAt(), time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}
