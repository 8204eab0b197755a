package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

// 参数校验错误
var (
	// ErrNilBreaker 传入的 Breaker 为 nil
	ErrNilBreaker = errors.New("xbreaker: breaker cannot be nil")

	// ErrNilRetryer 传入的 Retryer 为 nil
	ErrNilRetryer = errors.New("xbreaker: retryer cannot be nil")

	// ErrNilContext 传入的 context 为 nil
	ErrNilContext = errors.New("xbreaker: context cannot be nil")

	// ErrNilFunc 传入的操作函数为 nil
	ErrNilFunc = errors.New("xbreaker: function cannot be nil")
)

// BreakerError 熔断器错误包装类型
//
// 包装 gobreaker 的 ErrOpenState/ErrTooManyRequests，并实现
// Retryable() 返回 false：与 xretry 组合时熔断错误立即停止重试
// （快速失败），而不是继续退避。
// Err/Endpoint/State 保留为导出字段，便于日志与健康检查直接读取。
type BreakerError struct {
	Err      error  // 原始错误（ErrOpenState 或 ErrTooManyRequests）
	Endpoint string // 对端地址
	State    State  // 错误发生时的熔断器状态
}

func (e *BreakerError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("breaker %s: %v", e.Endpoint, e.Err)
	}
	return e.Err.Error()
}

func (e *BreakerError) Unwrap() error {
	return e.Err
}

// Retryable 熔断错误不可重试：Open 表示对端不可用，
// HalfOpen 探测已满应等待状态迁移。
func (e *BreakerError) Retryable() bool {
	return false
}

// wrapBreakerError 熔断器 sentinel 错误包装，其余原样返回。
//
// 只比较直接的 sentinel（不用 errors.Is 遍历错误链），避免嵌套
// 熔断器场景下把内层错误错误归因到外层。状态从错误类型推导
// （ErrOpenState→Open, ErrTooManyRequests→HalfOpen）而非实时查询，
// 避免 Execute 返回与 State() 调用之间的状态竞态。
func wrapBreakerError(err error, endpoint string) error {
	if err == nil {
		return nil
	}

	var be *BreakerError
	if errors.As(err, &be) {
		return err
	}

	if err == gobreaker.ErrOpenState {
		return &BreakerError{Err: err, Endpoint: endpoint, State: StateOpen}
	}
	if err == gobreaker.ErrTooManyRequests {
		return &BreakerError{Err: err, Endpoint: endpoint, State: StateHalfOpen}
	}

	return err
}

// IsOpen 检查错误是否为熔断器打开错误。
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

// IsTooManyRequests 检查错误是否为半开探测已满错误。
func IsTooManyRequests(err error) bool {
	return errors.Is(err, gobreaker.ErrTooManyRequests)
}

// IsBreakerError 检查错误是否为熔断器相关错误。
func IsBreakerError(err error) bool {
	return IsOpen(err) || IsTooManyRequests(err)
}
