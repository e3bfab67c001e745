package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return nil
	}, 3, time.Millisecond, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return ErrRateLimited
		}
		return nil
	}, 3, time.Millisecond, IsTransient)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_AllFail(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return fmt.Errorf("attempt %d: %w", calls, ErrTimeout)
	}, 3, time.Millisecond, IsTransient)

	require.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "attempt 3")
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_PermanentErrorStops(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return ErrMalformedResponse
	}, 5, time.Millisecond, IsTransient)

	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_InvalidAttempts(t *testing.T) {
	err := RetryWithBackoff(context.Background(), func() error { return nil }, 0, time.Millisecond, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		cancel()
		return ErrTimeout
	}, 5, time.Hour, nil)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{6, maxRetryDelay},
		{40, maxRetryDelay},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(time.Second, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrTimeout))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", ErrRateLimited)))
	assert.False(t, IsTransient(ErrProvider))
	assert.False(t, IsTransient(ErrMalformedResponse))
	assert.False(t, IsTransient(nil))
}
