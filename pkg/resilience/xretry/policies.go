package xretry

import (
	"context"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// KindPolicy 按错误分类判定的重试策略。
//
// 可重试性来自 xmsg 的分类表：连接、超时、限流、SOAP/XML 与未知
// 错误重试；校验、认证、业务规则与配置错误立即放弃。
// OverrideRetryable 标记的特例按其覆盖值处理。
type KindPolicy struct {
	maxAttempts int
}

// NewKindPolicy 创建分类重试策略。
// maxAttempts: 最大尝试次数（包含首次尝试），最小为 1。
func NewKindPolicy(maxAttempts int) *KindPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &KindPolicy{maxAttempts: maxAttempts}
}

func (p *KindPolicy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *KindPolicy) ShouldRetry(ctx context.Context, attempt int, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	return xmsg.IsRetryable(err)
}

// NeverRetryPolicy 永不重试策略。
// 用于入站处理等重复执行有副作用的路径。
type NeverRetryPolicy struct{}

// NewNeverRetry 创建永不重试策略
func NewNeverRetry() *NeverRetryPolicy {
	return &NeverRetryPolicy{}
}

func (p *NeverRetryPolicy) MaxAttempts() int {
	return 1
}

func (p *NeverRetryPolicy) ShouldRetry(_ context.Context, _ int, _ error) bool {
	return false
}

// 确保实现了 RetryPolicy 接口
var (
	_ RetryPolicy = (*KindPolicy)(nil)
	_ RetryPolicy = (*NeverRetryPolicy)(nil)
)
