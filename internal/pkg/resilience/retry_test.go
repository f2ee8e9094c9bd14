package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestRetryExponentialBackoff(t *testing.T) {
	var waits []time.Duration
	attempts := 0
	p := RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		Multiplier:      2,
		Retryable:       func(error) bool { return true },
		Sleep:           recordingSleep(&waits),
	}

	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, waits)
}

func TestRetryStopsOnSuccess(t *testing.T) {
	var waits []time.Duration
	attempts := 0
	p := RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, Multiplier: 2,
		Retryable: func(error) bool { return true }, Sleep: recordingSleep(&waits)}

	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Len(t, waits, 1)
}

func TestRetryDoesNotRetryTerminalErrors(t *testing.T) {
	terminal := errors.New("400 bad request")
	attempts := 0
	var retried []int
	p := RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		Retryable:       func(err error) bool { return !errors.Is(err, terminal) },
		OnRetry:         func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) },
	}

	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		return terminal
	})
	require.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, retried)
}

func TestRetryGivesUpWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	p := RetryPolicy{MaxAttempts: 5, InitialInterval: time.Hour, Multiplier: 2,
		Retryable: func(error) bool { return true }}

	err := p.Do(ctx, func(context.Context) error {
		attempts++
		cancel()
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, attempts)
}

// 熔断器套在每一次尝试上：一次逻辑调用的 3 次失败尝试都会被熔断器记录
func TestRetryAroundBreakerCountsEveryAttempt(t *testing.T) {
	cb := NewCircuitBreaker(defaultSettings(newFakeClock()))
	p := RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		Multiplier:      2,
		Retryable:       func(err error) bool { return !errors.Is(err, ErrCircuitOpen) },
		Sleep:           func(context.Context, time.Duration) error { return nil },
	}
	calls := 0
	call := func(ctx context.Context) error {
		return p.Do(ctx, func(ctx context.Context) error {
			return cb.Execute(ctx, func(context.Context) error {
				calls++
				return errBoom
			})
		})
	}

	require.ErrorIs(t, call(context.Background()), errBoom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, StateClosed, cb.State())

	// 第二次逻辑调用的第一次尝试就凑满 4 次失败，熔断器打开，后续尝试直接被拒绝
	err := call(context.Background())
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 4, calls)
	assert.Equal(t, StateOpen, cb.State())
}
