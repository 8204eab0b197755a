package xretry

import (
	"context"
	"time"
)

// RetryPolicy 重试判定接口。
//
// 通过 Retryer 使用时：
//   - MaxAttempts() 设置 retry-go 的 Attempts 上限
//   - ShouldRetry() 在每次失败后被调用，按错误分类逐次判断
//   - Unrecoverable 错误在 ShouldRetry 之前被短路拦截
type RetryPolicy interface {
	// MaxAttempts 返回最大尝试次数（包含首次尝试）。
	// 返回 0 表示无限重试。
	MaxAttempts() int

	// ShouldRetry 判断是否应该重试。
	//
	// ctx: 上下文，可用于取消
	// attempt: 当前尝试次数（从 1 开始）
	// err: 上次执行的错误
	ShouldRetry(ctx context.Context, attempt int, err error) bool
}

// BackoffPolicy 退避间隔计算接口。
type BackoffPolicy interface {
	// NextDelay 返回下次重试的延迟时间。
	// attempt: 当前尝试次数（从 1 开始）
	NextDelay(attempt int) time.Duration
}

// Executor 重试执行器接口。
//
// 设计决策: NewRetryer 返回 *Retryer 而非 Executor 接口，因为泛型函数
// DoWithResult 需要访问 *Retryer 的内部方法。调用方如需 mock 重试执行器，
// 可在自身代码中使用此接口作为函数参数类型。
type Executor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
