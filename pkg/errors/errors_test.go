package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payloadError struct{ reason string }

func (p *payloadError) Error() string { return p.reason }

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	appErr := FromError(errors.New("db down"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrNotFound, "booking not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, "booking not found", err.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWrapKeepsDomainPayloadReachable(t *testing.T) {
	inner := &payloadError{reason: "overlap"}
	err := WithDetails(Wrap(inner, ErrBookingConflict.Code, ErrBookingConflict.Status, "conflict"), []string{"b-1"})

	var target *payloadError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "overlap", target.reason)
	assert.Equal(t, []string{"b-1"}, err.Details)
	assert.True(t, errors.Is(err, ErrBookingConflict))
}
