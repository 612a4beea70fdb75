package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderFailure(t *testing.T) {
	tests := []struct {
		name    string
		failure ProviderFailure
		wantMsg string
	}{
		{
			name:    "timeout",
			failure: ProviderFailure{Provider: "nadro", Phase: 2, Kind: FailureTimeout, Err: context.DeadlineExceeded},
			wantMsg: "provider nadro (phase 2) timeout: context deadline exceeded",
		},
		{
			name:    "error",
			failure: ProviderFailure{Provider: "fanasa", Phase: 3, Kind: FailureError, Err: errors.New("login rejected")},
			wantMsg: "provider fanasa (phase 3) error: login rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.failure.Error(), "Error message mismatch")
			assert.True(t, errors.Is(tt.failure, tt.failure.Err), "Should unwrap to underlying error")
		})
	}
}

func TestAllProvidersFailedError(t *testing.T) {
	err := &AllProvidersFailedError{Failures: []ProviderFailure{
		{Provider: "sufarmed", Phase: 1, Kind: FailureTimeout, Err: context.DeadlineExceeded},
		{Provider: "difarmer", Phase: 1, Kind: FailureError, Err: errors.New("boom")},
	}}

	wrapped := fmt.Errorf("aggregate: %w", err)

	assert.True(t, errors.Is(wrapped, ErrAllProvidersFailed), "should match the sentinel through wrapping")
	assert.True(t, err.IsRetryable(), "all-providers-failed is retryable")
	assert.Contains(t, err.Error(), "2 calls", "message should count failed calls")
	assert.Contains(t, err.Error(), "difarmer", "message should name failed providers")

	var target *AllProvidersFailedError
	require.True(t, errors.As(wrapped, &target), "should be extractable with errors.As")
	assert.Len(t, target.Failures, 2)
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(ErrBreakerOpen))
	assert.True(t, IsUnavailable(fmt.Errorf("run: %w", ErrThrottled)))
	assert.True(t, IsUnavailable(&AllProvidersFailedError{}))
	assert.False(t, IsUnavailable(ErrEmptyQuery), "an empty query is a caller mistake, not an outage")
	assert.False(t, IsUnavailable(nil))
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("Config")
		err.AddError("providers: at least one provider is required")

		assert.True(t, err.HasErrors())
		assert.Equal(t, "validation error for Config: providers: at least one provider is required", err.Error())
		assert.True(t, errors.Is(err, ErrInvalidConfiguration), "should unwrap to ErrInvalidConfiguration")
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("Config")
		err.AddError("first")
		err.AddError("second")

		assert.Equal(t, "validation errors for Config: [first second]", err.Error())
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("Config")
		assert.False(t, err.HasErrors())
	})
}
