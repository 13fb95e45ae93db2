package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/llm"
)

func fastPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

var retryable = &llm.Error{Code: llm.ErrUpstreamError, Message: "503", Retryable: true}

func TestRetryer_SuccessFirstTry(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryer_RetriesRetryableErrors(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(), zap.NewNop())

	calls := 0
	got, err := DoWithResult(context.Background(), r, func() (string, error) {
		calls++
		if calls < 3 {
			return "", retryable
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestRetryer_StopsOnNonRetryable(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(), zap.NewNop())

	calls := 0
	permanent := errors.New("bad request")
	err := r.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryer_Exhausted(t *testing.T) {
	var retries []int
	p := fastPolicy()
	p.OnRetry = func(attempt int, err error, d time.Duration) { retries = append(retries, attempt) }
	r := NewBackoffRetryer(p, nil)

	err := r.Do(context.Background(), func() error { return retryable })
	assert.ErrorIs(t, err, retryable)
	assert.Equal(t, []int{1, 2, 3}, retries)
}

func TestRetryer_ContextCancelled(t *testing.T) {
	p := fastPolicy()
	p.InitialDelay = time.Second
	p.MaxDelay = time.Second
	r := NewBackoffRetryer(p, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := r.Do(ctx, func() error {
		calls++
		cancel()
		return retryable
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryer_DelayBounds(t *testing.T) {
	r := NewBackoffRetryer(&RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     40 * time.Millisecond,
		Multiplier:   2.0,
	}, nil)

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(3))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(5))
}
