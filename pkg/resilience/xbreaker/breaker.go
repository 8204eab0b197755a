package xbreaker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
)

// 默认熔断参数。
const (
	defaultTripThreshold = 5
	defaultOpenTimeout   = 60 * time.Second
	defaultMaxRequests   = 1
)

// Breaker 单个对端地址的熔断器
//
// 封装 gobreaker，额外记录进入 Open 状态的时刻，
// 供健康检查汇报剩余观察期。
type Breaker struct {
	endpoint      string
	tripPolicy    TripPolicy
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	onStateChange func(endpoint string, from, to State)

	// openedAt 最近一次进入 Open 状态的时刻（UnixNano）
	openedAt atomic.Int64

	cb *gobreaker.CircuitBreaker[any]
}

// BreakerOption 熔断器配置选项
type BreakerOption func(*Breaker)

// WithTripPolicy 设置熔断判定策略。
// 默认：连续失败 5 次触发熔断。
func WithTripPolicy(p TripPolicy) BreakerOption {
	return func(b *Breaker) {
		if p != nil {
			b.tripPolicy = p
		}
	}
}

// WithOpenTimeout 设置 Open 状态转为 HalfOpen 的观察期。
// 默认：60 秒。
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithInterval 设置 Closed 状态统计窗口的清零周期。
// 默认：0（持续累积）。
func WithInterval(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		b.interval = d
	}
}

// WithMaxRequests 设置 HalfOpen 状态下允许的探测请求数。
// 默认：1。
func WithMaxRequests(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithOnStateChange 设置状态变化回调，用于日志与告警。
func WithOnStateChange(f func(endpoint string, from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onStateChange = f
	}
}

// NewBreaker 创建对端熔断器。
// endpoint 用于日志与健康检查标识。
func NewBreaker(endpoint string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		endpoint:    endpoint,
		tripPolicy:  NewConsecutiveFailures(defaultTripThreshold),
		timeout:     defaultOpenTimeout,
		maxRequests: defaultMaxRequests,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: b.maxRequests,
		Interval:    b.interval,
		Timeout:     b.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return b.tripPolicy.ReadyToTrip(counts)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				b.openedAt.Store(time.Now().UnixNano())
			}
			if b.onStateChange != nil {
				b.onStateChange(name, from, to)
			}
		},
	})

	return b
}

// Do 执行受熔断器保护的操作。
//
// context 已取消时直接返回 context 错误；Open 状态下操作不会执行，
// 返回包装后的 ErrOpenState（Retryable() == false）。
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if b == nil {
		return ErrNilBreaker
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return wrapBreakerError(err, b.endpoint)
}

// Execute 执行受熔断器保护的操作（泛型版本）。
// 包级函数，因为 Go 不支持方法的类型参数。
func Execute[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if b == nil {
		return zero, ErrNilBreaker
	}
	if ctx == nil {
		return zero, ErrNilContext
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, wrapBreakerError(err, b.endpoint)
	}
	if typed, ok := result.(T); ok {
		return typed, nil
	}
	return zero, nil
}

// Allow 判断当前是否放行请求（不执行、不计数）。
// 用于发送前的预检：Open 状态返回包装后的 ErrOpenState。
func (b *Breaker) Allow() error {
	if b.State() == StateOpen {
		return wrapBreakerError(ErrOpenState, b.endpoint)
	}
	return nil
}

// State 返回当前状态。
func (b *Breaker) State() State {
	return b.cb.State()
}

// Endpoint 返回对端地址。
func (b *Breaker) Endpoint() string {
	return b.endpoint
}

// Counts 返回当前统计计数。
func (b *Breaker) Counts() Counts {
	return b.cb.Counts()
}

// RemainingOpen 返回 Open 状态的剩余观察期；非 Open 状态返回 0。
func (b *Breaker) RemainingOpen() time.Duration {
	if b.State() != StateOpen {
		return 0
	}
	opened := b.openedAt.Load()
	if opened == 0 {
		return b.timeout
	}
	remain := b.timeout - time.Since(time.Unix(0, opened))
	if remain < 0 {
		return 0
	}
	return remain
}
