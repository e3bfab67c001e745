package ai

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	calls    atomic.Int32
	complete func(ctx context.Context, call int) (string, error)
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return s.complete(ctx, int(s.calls.Add(1)))
}

func (s *scriptedLLM) ContextWindow() int { return 4096 }

func (s *scriptedLLM) CountTokens(text string) int { return ApproximateTokens(text) }

func testRetryConfig() *Config {
	return NewConfig(WithRetry(3, time.Millisecond), WithTimeout(20*time.Millisecond))
}

func TestResilientLLM_RetriesTransient(t *testing.T) {
	inner := &scriptedLLM{complete: func(ctx context.Context, call int) (string, error) {
		if call == 1 {
			return "", ErrRateLimited
		}
		return "answer", nil
	}}

	llm := NewResilientLLM(inner, testRetryConfig())
	got, err := llm.Complete(context.Background(), "q", 10)

	require.NoError(t, err)
	assert.Equal(t, "answer", got)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, 4096, llm.ContextWindow())
}

func TestResilientLLM_TimeoutClassified(t *testing.T) {
	inner := &scriptedLLM{complete: func(ctx context.Context, call int) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	llm := NewResilientLLM(inner, testRetryConfig())
	_, err := llm.Complete(context.Background(), "q", 10)

	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestResilientLLM_ProviderErrorNotRetried(t *testing.T) {
	inner := &scriptedLLM{complete: func(ctx context.Context, call int) (string, error) {
		return "", ErrProvider
	}}

	llm := NewResilientLLM(inner, testRetryConfig())
	_, err := llm.Complete(context.Background(), "q", 10)

	require.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestApproximateTokens(t *testing.T) {
	assert.Equal(t, 0, ApproximateTokens(""))
	assert.Equal(t, 1, ApproximateTokens("abc"))
	assert.Equal(t, 2, ApproximateTokens("abcdefgh"))
}
