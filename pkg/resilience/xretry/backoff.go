package xretry

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// 出站消息的默认退避窗口。对端以分钟级批处理消费通知，
// 秒级以下的重试只会撞上同一故障。
const (
	defaultInitialDelay = 10 * time.Second
	defaultMaxDelay     = 300 * time.Second
	defaultMultiplier   = 2.0
	defaultJitter       = 0.1
)

// ExponentialBackoff 指数退避策略
// delay = min(initialDelay * multiplier^(attempt-1) * (1 + rand(-1,1) * jitter), maxDelay)
type ExponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       float64
}

// ExponentialBackoffOption 指数退避配置选项
type ExponentialBackoffOption func(*ExponentialBackoff)

// WithInitialDelay 设置初始延迟。
// d <= 0 时静默忽略（保持默认值），与 WithMaxDelay/WithMultiplier 一致。
func WithInitialDelay(d time.Duration) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.initialDelay = d
		}
	}
}

// WithMaxDelay 设置最大延迟
func WithMaxDelay(d time.Duration) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.maxDelay = d
		}
	}
}

// WithMultiplier 设置乘数因子（>= 1.0）
// 传入 1.0 表示固定延迟（无指数增长）。
// 小于 1.0 的值会被忽略（保持默认值 2.0）。
func WithMultiplier(m float64) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if m >= 1 {
			b.multiplier = m
		}
	}
}

// WithJitter 设置抖动因子（0-1 之间，clamp 到有效区间）
func WithJitter(j float64) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if j < 0 {
			j = 0
		} else if j > 1 {
			j = 1
		}
		b.jitter = j
	}
}

// NewExponentialBackoff 创建指数退避策略
// 默认值：
//   - initialDelay: 10s
//   - maxDelay: 300s
//   - multiplier: 2.0
//   - jitter: 0.1 (10%)
func NewExponentialBackoff(opts ...ExponentialBackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		multiplier:   defaultMultiplier,
		jitter:       defaultJitter,
	}
	for _, opt := range opts {
		opt(b)
	}
	// 与 NewLinearBackoff 保持一致：确保 maxDelay >= initialDelay
	if b.maxDelay < b.initialDelay {
		b.maxDelay = b.initialDelay
	}
	return b
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt-1))

	if b.jitter > 0 {
		jitterFactor := 1.0 + (randomFloat64()*2-1)*b.jitter
		delay *= jitterFactor
	}

	// NaN 安全的延迟限制。attempt 极大时 math.Pow 溢出为 +Inf，
	// 与 jitterFactor=0 相乘产生 NaN，IEEE 754 中 NaN 的比较均为 false，
	// 会绕过 maxDelay 限制。NaN/负数统一返回 maxDelay。
	if math.IsNaN(delay) || delay < 0 {
		return b.maxDelay
	}
	if delay >= float64(b.maxDelay) {
		return b.maxDelay
	}

	return time.Duration(delay)
}

// LinearBackoff 线性退避策略
// delay = min(initialDelay + increment * (attempt-1), maxDelay)
type LinearBackoff struct {
	initialDelay time.Duration
	increment    time.Duration
	maxDelay     time.Duration
}

// NewLinearBackoff 创建线性退避策略
func NewLinearBackoff(initialDelay, increment, maxDelay time.Duration) *LinearBackoff {
	if initialDelay < 0 {
		initialDelay = 0
	}
	if increment < 0 {
		increment = 0
	}
	if maxDelay < initialDelay {
		maxDelay = initialDelay
	}
	return &LinearBackoff{
		initialDelay: initialDelay,
		increment:    increment,
		maxDelay:     maxDelay,
	}
}

func (b *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// 溢出前置检测：若 increment * (attempt-1) 必然超过
	// maxDelay - initialDelay，直接返回上限
	if b.increment > 0 && attempt > 1 {
		available := b.maxDelay - b.initialDelay
		if available < 0 {
			return b.maxDelay
		}
		maxMultiplier := available / b.increment
		if time.Duration(attempt-1) > maxMultiplier {
			return b.maxDelay
		}
	}

	delay := b.initialDelay + b.increment*time.Duration(attempt-1)
	if delay > b.maxDelay {
		delay = b.maxDelay
	}
	return delay
}

// NoBackoff 无延迟退避策略（测试用）
type NoBackoff struct{}

// NewNoBackoff 创建无延迟退避策略
func NewNoBackoff() *NoBackoff {
	return &NoBackoff{}
}

func (b *NoBackoff) NextDelay(_ int) time.Duration {
	return 0
}

// 确保实现了接口
var (
	_ BackoffPolicy = (*ExponentialBackoff)(nil)
	_ BackoffPolicy = (*LinearBackoff)(nil)
	_ BackoffPolicy = (*NoBackoff)(nil)
)

const (
	floatBits  = 53
	floatScale = 1.0 / (1 << floatBits)
)

func randomFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand 失败时返回 0，即无抖动（安全默认值）
		return 0
	}
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) * floatScale
}
