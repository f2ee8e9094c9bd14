// internal/pkg/resilience/retry.go
package resilience

import (
	"context"
	"time"
)

// RetryPolicy 指数退避重试策略
type RetryPolicy struct {
	MaxAttempts     int           // 总尝试次数（含第一次）
	InitialInterval time.Duration // 第一次重试前的等待时间
	Multiplier      float64       // 每次重试等待时间的倍数

	// Retryable 决定错误是否值得重试；为 nil 时不重试
	Retryable func(err error) bool

	// OnRetry 在每次等待之前调用，attempt 为刚失败的尝试序号（从 1 开始）
	OnRetry func(attempt int, wait time.Duration, err error)

	// Sleep 可注入的等待函数，测试用
	Sleep func(ctx context.Context, d time.Duration) error
}

// Backoff 返回第 attempt 次失败后的等待时间
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := float64(p.InitialInterval)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// Do 执行 fn，遇到可重试错误时按退避策略重试，返回最后一次的错误
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts || p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		// 调用方已经放弃，没有必要再等
		if ctx.Err() != nil {
			return err
		}

		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
