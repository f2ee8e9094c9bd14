// internal/pkg/resilience/breaker.go
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen 表示熔断器拒绝了本次调用（OPEN，或 HALF_OPEN 的试探名额已用完），
// 调用根本没有发出。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State 熔断器状态
type State int32

const (
	StateClosed   State = iota // 正常放行，统计滑动窗口
	StateOpen                  // 拒绝所有调用，等待冷却
	StateHalfOpen              // 放行有限的试探调用
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerSettings 熔断策略。阈值均为百分比，例如 50 表示 50%。
type BreakerSettings struct {
	Name                  string
	WindowSize            int           // 基于次数的滑动窗口大小
	MinimumCalls          int           // 窗口内至少有这么多次调用才计算比率
	FailureRateThreshold  float64       // 失败率阈值
	SlowCallRateThreshold float64       // 慢调用率阈值
	SlowCallDuration      time.Duration // 耗时 >= 该值即为慢调用
	OpenStateWait         time.Duration // OPEN 持续多久后自动进入 HALF_OPEN
	HalfOpenCalls         int           // HALF_OPEN 允许的试探调用数

	// IsFailure 决定一个错误是否计为失败；返回 false 的错误按成功统计。
	// 为 nil 时所有非 nil 错误都计为失败。
	IsFailure func(err error) bool

	// OnStateChange 状态变化回调，在持有内部锁之外调用
	OnStateChange func(name string, from, to State)

	// Now 可注入的时钟，测试用
	Now func() time.Time
}

type outcome struct {
	failure bool
	slow    bool
}

// window 是一个定长环形缓冲区
type window struct {
	buf      []outcome
	next     int
	size     int
	failures int
	slows    int
}

func newWindow(capacity int) *window {
	return &window{buf: make([]outcome, capacity)}
}

func (w *window) add(o outcome) {
	if w.size == len(w.buf) {
		old := w.buf[w.next]
		if old.failure {
			w.failures--
		}
		if old.slow {
			w.slows--
		}
	} else {
		w.size++
	}
	w.buf[w.next] = o
	w.next = (w.next + 1) % len(w.buf)
	if o.failure {
		w.failures++
	}
	if o.slow {
		w.slows++
	}
}

func (w *window) rates() (failureRate, slowRate float64) {
	if w.size == 0 {
		return 0, 0
	}
	return float64(w.failures) * 100 / float64(w.size), float64(w.slows) * 100 / float64(w.size)
}

// CircuitBreaker 是一个按次数统计的熔断器。
// 作为策略对象在启动时创建一次，再注入给需要它的客户端。
type CircuitBreaker struct {
	settings BreakerSettings

	mu         sync.Mutex
	state      State
	generation uint64
	openedAt   time.Time
	closed     *window
	halfOpen   *window
	inFlight   int // HALF_OPEN 下已放行的试探调用
}

// NewCircuitBreaker 创建熔断器，未设置的字段使用与默认配置相同的值
func NewCircuitBreaker(s BreakerSettings) *CircuitBreaker {
	if s.WindowSize <= 0 {
		s.WindowSize = 10
	}
	if s.MinimumCalls <= 0 {
		s.MinimumCalls = 4
	}
	if s.MinimumCalls > s.WindowSize {
		s.MinimumCalls = s.WindowSize
	}
	if s.FailureRateThreshold <= 0 {
		s.FailureRateThreshold = 50
	}
	if s.SlowCallRateThreshold <= 0 {
		s.SlowCallRateThreshold = 100
	}
	if s.SlowCallDuration <= 0 {
		s.SlowCallDuration = 30 * time.Second
	}
	if s.OpenStateWait <= 0 {
		s.OpenStateWait = 10 * time.Second
	}
	if s.HalfOpenCalls <= 0 {
		s.HalfOpenCalls = 2
	}
	if s.IsFailure == nil {
		s.IsFailure = func(err error) bool { return err != nil }
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return &CircuitBreaker{
		settings: s,
		state:    StateClosed,
		closed:   newWindow(s.WindowSize),
		halfOpen: newWindow(s.HalfOpenCalls),
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.settings.Name
}

// State 返回当前状态（会处理 OPEN 到期后的自动迁移）
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	transition := cb.refreshLocked(cb.settings.Now())
	state := cb.state
	cb.mu.Unlock()
	cb.notify(transition)
	return state
}

// Execute 在熔断器保护下执行 fn。
// 被拒绝时返回 ErrCircuitOpen 且 fn 不会被调用；否则返回 fn 的原始错误。
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	generation, err := cb.acquire()
	if err != nil {
		return err
	}

	start := cb.settings.Now()
	callErr := fn(ctx)
	elapsed := cb.settings.Now().Sub(start)

	cb.record(generation, outcome{
		failure: callErr != nil && cb.settings.IsFailure(callErr),
		slow:    elapsed >= cb.settings.SlowCallDuration,
	})
	return callErr
}

func (cb *CircuitBreaker) acquire() (uint64, error) {
	cb.mu.Lock()
	transition := cb.refreshLocked(cb.settings.Now())

	var err error
	switch cb.state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.settings.HalfOpenCalls {
			err = ErrCircuitOpen
		} else {
			cb.inFlight++
		}
	}
	generation := cb.generation
	cb.mu.Unlock()

	cb.notify(transition)
	return generation, err
}

func (cb *CircuitBreaker) record(generation uint64, o outcome) {
	cb.mu.Lock()
	// 调用期间状态已经切换过，旧周期的结果不再计入
	if generation != cb.generation {
		cb.mu.Unlock()
		return
	}

	var t *stateTransition
	now := cb.settings.Now()
	switch cb.state {
	case StateClosed:
		cb.closed.add(o)
		if cb.closed.size >= cb.settings.MinimumCalls && cb.exceeded(cb.closed) {
			t = cb.setStateLocked(StateOpen, now)
		}
	case StateHalfOpen:
		cb.halfOpen.add(o)
		if cb.halfOpen.size >= cb.settings.HalfOpenCalls {
			if cb.exceeded(cb.halfOpen) {
				t = cb.setStateLocked(StateOpen, now)
			} else {
				t = cb.setStateLocked(StateClosed, now)
			}
		}
	}
	cb.mu.Unlock()

	cb.notify(t)
}

func (cb *CircuitBreaker) exceeded(w *window) bool {
	failureRate, slowRate := w.rates()
	return failureRate >= cb.settings.FailureRateThreshold || slowRate >= cb.settings.SlowCallRateThreshold
}

type stateTransition struct {
	from, to State
}

// refreshLocked 处理 OPEN 冷却结束后自动进入 HALF_OPEN
func (cb *CircuitBreaker) refreshLocked(now time.Time) *stateTransition {
	if cb.state == StateOpen && !now.Before(cb.openedAt.Add(cb.settings.OpenStateWait)) {
		return cb.setStateLocked(StateHalfOpen, now)
	}
	return nil
}

func (cb *CircuitBreaker) setStateLocked(to State, now time.Time) *stateTransition {
	from := cb.state
	if from == to {
		return nil
	}
	cb.state = to
	cb.generation++

	switch to {
	case StateOpen:
		cb.openedAt = now
	case StateHalfOpen:
		cb.halfOpen = newWindow(cb.settings.HalfOpenCalls)
		cb.inFlight = 0
	case StateClosed:
		cb.closed = newWindow(cb.settings.WindowSize)
	}
	return &stateTransition{from: from, to: to}
}

func (cb *CircuitBreaker) notify(t *stateTransition) {
	if t == nil {
		return
	}
	breakerState.WithLabelValues(cb.settings.Name).Set(float64(t.to))
	breakerTransitions.WithLabelValues(cb.settings.Name, t.from.String(), t.to.String()).Inc()
	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, t.from, t.to)
	}
}
