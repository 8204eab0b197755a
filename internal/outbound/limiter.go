package outbound

import (
	"context"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimiter 对端发送限流。
type RateLimiter interface {
	// Allow 消耗一个配额。被限流时 allowed 为 false，
	// retryAfter 为建议的重新入队延迟。
	Allow(ctx context.Context, endpoint string) (allowed bool, retryAfter time.Duration, err error)
}

// limiterKeyPrefix 限流键前缀，按对端地址区分。
const limiterKeyPrefix = "tclink:rate:"

// RedisRateLimiter 基于 redis_rate（GCRA）的分布式限流。
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

var _ RateLimiter = (*RedisRateLimiter)(nil)

// NewRedisRateLimiter 创建分布式限流器。
// rps 为每秒配额；burst <= 0 时取 rps。
func NewRedisRateLimiter(rdb redis.UniversalClient, rps, burst int) (*RedisRateLimiter, error) {
	if rdb == nil {
		return nil, ErrNilQueue
	}
	if burst <= 0 {
		burst = rps
	}
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   rps,
			Burst:  burst,
			Period: time.Second,
		},
	}, nil
}

func (l *RedisRateLimiter) Allow(ctx context.Context, endpoint string) (bool, time.Duration, error) {
	if ctx == nil {
		return false, 0, ErrNilContext
	}
	res, err := l.limiter.Allow(ctx, limiterKeyPrefix+endpoint, l.limit)
	if err != nil {
		return false, 0, err
	}
	if res.Allowed > 0 {
		return true, 0, nil
	}
	return false, res.RetryAfter, nil
}

// nopLimiter 不限流。rate_limit 配置为零值时使用。
type nopLimiter struct{}

var _ RateLimiter = nopLimiter{}

func (nopLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return true, 0, nil
}
