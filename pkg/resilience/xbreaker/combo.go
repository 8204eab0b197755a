package xbreaker

import (
	"context"

	"github.com/omeyang/tclink/pkg/resilience/xretry"
)

// BreakerRetryer 熔断器+重试组合执行器
//
// 出站发送的标准容错组合：
//   - 熔断器负责快速失败，防止故障对端拖垮发送队列
//   - 重试器负责瞬时故障的退避重试
//   - 每次重试尝试都经过熔断器检查与统计，连续失败可能在
//     重试过程中触发熔断，阻断后续尝试
type BreakerRetryer struct {
	breaker *Breaker
	retryer *xretry.Retryer
}

// NewBreakerRetryer 创建组合执行器。
func NewBreakerRetryer(breaker *Breaker, retryer *xretry.Retryer) (*BreakerRetryer, error) {
	if breaker == nil {
		return nil, ErrNilBreaker
	}
	if retryer == nil {
		return nil, ErrNilRetryer
	}
	return &BreakerRetryer{breaker: breaker, retryer: retryer}, nil
}

// Do 执行带熔断和重试的操作。
//
// 熔断器打开时返回 BreakerError（Retryable() == false），
// 重试器据此立即停止。
func (br *BreakerRetryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if br == nil {
		return ErrNilBreaker
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	return br.retryer.Do(ctx, func(ctx context.Context) error {
		return br.breaker.Do(ctx, func() error {
			return fn(ctx)
		})
	})
}

// Breaker 返回熔断器。
func (br *BreakerRetryer) Breaker() *Breaker {
	return br.breaker
}

// Retryer 返回重试器。
func (br *BreakerRetryer) Retryer() *xretry.Retryer {
	return br.retryer
}
