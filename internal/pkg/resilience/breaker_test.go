package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errBoom = errors.New("boom")

func defaultSettings(clock *fakeClock) BreakerSettings {
	return BreakerSettings{
		Name:                  "test",
		WindowSize:            10,
		MinimumCalls:          4,
		FailureRateThreshold:  50,
		SlowCallRateThreshold: 100,
		SlowCallDuration:      30 * time.Second,
		OpenStateWait:         10 * time.Second,
		HalfOpenCalls:         2,
		Now:                   clock.Now,
	}
}

func succeed(context.Context) error { return nil }
func fail(context.Context) error    { return errBoom }

func TestBreakerStaysClosedBelowMinimumCalls(t *testing.T) {
	cb := NewCircuitBreaker(defaultSettings(newFakeClock()))

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(context.Background(), fail), errBoom)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerOpensAtFailureRateThreshold(t *testing.T) {
	cb := NewCircuitBreaker(defaultSettings(newFakeClock()))

	// 2 成功 + 2 失败 = 50%，达到阈值
	require.NoError(t, cb.Execute(context.Background(), succeed))
	require.NoError(t, cb.Execute(context.Background(), succeed))
	require.Error(t, cb.Execute(context.Background(), fail))
	assert.Equal(t, StateClosed, cb.State())
	require.Error(t, cb.Execute(context.Background(), fail))
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not invoke the call")
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	cb := NewCircuitBreaker(defaultSettings(newFakeClock()))

	// 1 失败 / 4 次 = 25%
	require.Error(t, cb.Execute(context.Background(), fail))
	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Execute(context.Background(), succeed))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerWindowSlidesOutOldFailures(t *testing.T) {
	cb := NewCircuitBreaker(defaultSettings(newFakeClock()))

	// 4 次失败前先填满 6 次成功：4/10 = 40%
	for i := 0; i < 6; i++ {
		require.NoError(t, cb.Execute(context.Background(), succeed))
	}
	for i := 0; i < 4; i++ {
		require.Error(t, cb.Execute(context.Background(), fail))
	}
	assert.Equal(t, StateClosed, cb.State())

	// 第 5 次失败挤掉最早的一次成功：5/10 = 50%
	require.Error(t, cb.Execute(context.Background(), fail))
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerIgnoresErrorsNotRecordedAsFailure(t *testing.T) {
	s := defaultSettings(newFakeClock())
	s.IsFailure = func(err error) bool { return !errors.Is(err, errBoom) }
	cb := NewCircuitBreaker(s)

	for i := 0; i < 10; i++ {
		require.ErrorIs(t, cb.Execute(context.Background(), fail), errBoom)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerOpensOnSlowCalls(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(defaultSettings(clock))

	slow := func(context.Context) error {
		clock.Advance(30 * time.Second)
		return nil
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Execute(context.Background(), slow))
	}
	assert.Equal(t, StateClosed, cb.State())
	require.NoError(t, cb.Execute(context.Background(), slow))
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerHalfOpenLifecycle(t *testing.T) {
	tests := []struct {
		name   string
		trials []func(context.Context) error
		want   State
	}{
		{name: "all trials succeed", trials: []func(context.Context) error{succeed, succeed}, want: StateClosed},
		{name: "one trial fails", trials: []func(context.Context) error{succeed, fail}, want: StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			var transitions []string
			s := defaultSettings(clock)
			s.OnStateChange = func(_ string, from, to State) {
				transitions = append(transitions, from.String()+"->"+to.String())
			}
			cb := NewCircuitBreaker(s)
			for i := 0; i < 4; i++ {
				_ = cb.Execute(context.Background(), fail)
			}
			require.Equal(t, StateOpen, cb.State())

			clock.Advance(9 * time.Second)
			assert.Equal(t, StateOpen, cb.State())
			clock.Advance(time.Second)
			assert.Equal(t, StateHalfOpen, cb.State())

			for _, trial := range tt.trials {
				_ = cb.Execute(context.Background(), trial)
			}
			assert.Equal(t, tt.want, cb.State())
			assert.Equal(t, "CLOSED->OPEN", transitions[0])
			assert.Equal(t, "OPEN->HALF_OPEN", transitions[1])
			assert.Equal(t, "HALF_OPEN->"+tt.want.String(), transitions[2])
		})
	}
}

func TestBreakerHalfOpenLimitsTrialCalls(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(defaultSettings(clock))
	for i := 0; i < 4; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	clock.Advance(10 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(context.Background(), func(context.Context) error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	<-started
	<-started

	assert.ErrorIs(t, cb.Execute(context.Background(), succeed), ErrCircuitOpen)

	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, cb.State())
}
