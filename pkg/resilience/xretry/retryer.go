package xretry

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// safeIntToUint 将 int 安全转换为 uint，负数返回 0。
func safeIntToUint(n int) uint {
	if n <= 0 {
		return 0
	}
	return uint(n)
}

// safeUintToInt 将 uint 安全转换为 int，超过 MaxInt 截断。
func safeUintToInt(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}

// 确保 *Retryer 实现 Executor 接口
var _ Executor = (*Retryer)(nil)

// Retryer 重试执行器
//
// 组合 RetryPolicy（是否重试）与 BackoffPolicy（等多久），
// 底层使用 avast/retry-go/v5。每次失败后的实际延迟取
// 退避计算值与错误分类建议延迟的较大者：连接类故障即使
// 指数退避尚在低位，也至少等待分类表规定的观察期。
type Retryer struct {
	retryPolicy   RetryPolicy
	backoffPolicy BackoffPolicy
	onRetry       func(attempt int, err error)
}

// RetryerOption 执行器配置选项
type RetryerOption func(*Retryer)

// WithRetryPolicy 设置重试策略
func WithRetryPolicy(p RetryPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.retryPolicy = p
		}
	}
}

// WithBackoffPolicy 设置退避策略
func WithBackoffPolicy(p BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.backoffPolicy = p
		}
	}
}

// WithOnRetry 设置重试回调函数。
// 传入 nil 会被静默忽略（与 WithRetryPolicy/WithBackoffPolicy 保持一致）。
func WithOnRetry(f func(attempt int, err error)) RetryerOption {
	return func(r *Retryer) {
		if f != nil {
			r.onRetry = f
		}
	}
}

// NewRetryer 创建重试执行器。
// 默认使用 KindPolicy(3) 与 ExponentialBackoff（10s 起步、上限 300s）。
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{
		retryPolicy:   NewKindPolicy(3),
		backoffPolicy: NewExponentialBackoff(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do 执行带重试的操作。
// 如果接收者为 nil，返回 ErrNilRetryer。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return ErrNilRetryer
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	return retry.New(r.buildOptions(ctx)...).Do(func() error {
		return fn(ctx)
	})
}

// DoWithResult 执行带重试的操作（有返回值）。
//
// 泛型函数，必须作为包级函数使用。
// 如果 r 为 nil，返回零值和 ErrNilRetryer。
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	if r == nil {
		var zero T
		return zero, ErrNilRetryer
	}
	if ctx == nil {
		var zero T
		return zero, ErrNilContext
	}
	if fn == nil {
		var zero T
		return zero, ErrNilFunc
	}
	return retry.NewWithData[T](r.buildOptions(ctx)...).Do(func() (T, error) {
		return fn(ctx)
	})
}

// buildOptions 构建 retry-go 的选项。
// 每次 Do 调用重建选项切片；对重试场景的调用频率完全可接受。
func (r *Retryer) buildOptions(ctx context.Context) []retry.Option {
	opts := make([]retry.Option, 0, 6)

	opts = append(opts, retry.Context(ctx))

	// 零值 Retryer 可用
	retryPolicy := r.retryPolicy
	if retryPolicy == nil {
		retryPolicy = NewKindPolicy(3)
	}
	backoffPolicy := r.backoffPolicy
	if backoffPolicy == nil {
		backoffPolicy = NewExponentialBackoff()
	}

	// maxAttempts <= 0 视为无限重试
	maxAttempts := retryPolicy.MaxAttempts()
	if maxAttempts <= 0 {
		opts = append(opts, retry.UntilSucceeded())
	} else {
		opts = append(opts, retry.Attempts(safeIntToUint(maxAttempts)))
	}

	// Attempts 是硬上限，ShouldRetry 提供逐次判断，两者共同生效。
	// attemptCount 表示"已失败次数"（1-based），与 ShouldRetry 的
	// attempt 参数语义一致。使用 atomic 保证并发调用安全。
	var attemptCount atomic.Int64
	opts = append(opts, retry.RetryIf(func(err error) bool {
		count := int(attemptCount.Add(1))
		if !retry.IsRecoverable(err) {
			return false
		}
		return retryPolicy.ShouldRetry(ctx, count, err)
	}))

	// 延迟取退避计算值与分类建议延迟的较大者
	opts = append(opts, retry.DelayType(func(n uint, err error, _ retry.DelayContext) time.Duration {
		delay := backoffPolicy.NextDelay(safeUintToInt(n))
		if floor := kindFloor(err); floor > delay {
			return floor
		}
		return delay
	}))

	if r.onRetry != nil {
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			// retry-go v5 的 OnRetry n 从 0 开始，转换为 1-based
			r.onRetry(safeUintToInt(n)+1, err)
		}))
	}

	opts = append(opts, retry.LastErrorOnly(true))

	return opts
}

// kindFloor 返回错误分类的建议延迟下限；未分类错误无下限。
func kindFloor(err error) time.Duration {
	var ge *xmsg.Error
	if errors.As(err, &ge) {
		return ge.Kind.SuggestedDelay()
	}
	return 0
}

// Unrecoverable 将错误标记为不可恢复（直接透传 retry-go 的标记）。
// 被标记的错误在 ShouldRetry 之前就会短路。
func Unrecoverable(err error) error {
	return retry.Unrecoverable(err)
}

// RetryPolicy 返回当前重试策略。nil 接收者返回 nil。
func (r *Retryer) RetryPolicy() RetryPolicy {
	if r == nil {
		return nil
	}
	return r.retryPolicy
}

// BackoffPolicy 返回当前退避策略。nil 接收者返回 nil。
func (r *Retryer) BackoffPolicy() BackoffPolicy {
	if r == nil {
		return nil
	}
	return r.backoffPolicy
}
