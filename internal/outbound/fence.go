package outbound

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// fenceKeyPrefix 栅栏键前缀。
const fenceKeyPrefix = "tclink:fence:"

// defaultFenceExpiry 栅栏 TTL：覆盖一次完整发送（含超时）后自动释放，
// 防止持有者崩溃导致键对永久卡死。
const defaultFenceExpiry = 2 * time.Minute

// ReleaseFunc 释放已获取的栅栏。
type ReleaseFunc func(ctx context.Context) error

// Fence (property-id, message-type) 键对的单飞栅栏。
//
// 同一键对同一时刻至多一个持有者，保证该键对的消息串行送达。
type Fence interface {
	// TryAcquire 非阻塞获取。成功返回释放函数；
	// 键对被占返回 (nil, nil)，这是正常让位信号。
	TryAcquire(ctx context.Context, propertyID string, mt xmsg.MessageType) (ReleaseFunc, error)
}

func fenceKey(propertyID string, mt xmsg.MessageType) string {
	return fenceKeyPrefix + propertyID + ":" + string(mt)
}

// =============================================================================
// Redis 栅栏（redsync）
// =============================================================================

// RedisFence 跨实例栅栏，基于 redsync 互斥锁。
type RedisFence struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

var _ Fence = (*RedisFence)(nil)

// RedisFenceOption 栅栏配置选项。
type RedisFenceOption func(*RedisFence)

// WithFenceExpiry 设置栅栏 TTL。默认 2 分钟。
func WithFenceExpiry(d time.Duration) RedisFenceOption {
	return func(f *RedisFence) {
		if d > 0 {
			f.expiry = d
		}
	}
}

// NewRedisFence 创建 Redis 栅栏。客户端生命周期由调用者管理。
func NewRedisFence(rdb redis.UniversalClient, opts ...RedisFenceOption) (*RedisFence, error) {
	if rdb == nil {
		return nil, errors.New("outbound: redis client cannot be nil")
	}
	f := &RedisFence{
		rs:     redsync.New(goredis.NewPool(rdb)),
		expiry: defaultFenceExpiry,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *RedisFence) TryAcquire(ctx context.Context, propertyID string, mt xmsg.MessageType) (ReleaseFunc, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	mutex := f.rs.NewMutex(fenceKey(propertyID, mt),
		redsync.WithExpiry(f.expiry),
		redsync.WithTries(1),
	)
	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, nil // 键对被占，让位
		}
		return nil, fmt.Errorf("outbound: acquire fence %s: %w", mutex.Name(), err)
	}
	return func(ctx context.Context) error {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			// TTL 过期后锁已自然消失，视为已释放
			if errors.Is(err, redsync.ErrLockAlreadyExpired) {
				return nil
			}
			return fmt.Errorf("outbound: release fence %s: %w", mutex.Name(), err)
		}
		return nil
	}, nil
}

// =============================================================================
// 本地栅栏
// =============================================================================

// LocalFence 进程内栅栏：测试与单机部署用。
type LocalFence struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ Fence = (*LocalFence)(nil)

// NewLocalFence 创建进程内栅栏。
func NewLocalFence() *LocalFence {
	return &LocalFence{held: make(map[string]struct{})}
}

func (f *LocalFence) TryAcquire(ctx context.Context, propertyID string, mt xmsg.MessageType) (ReleaseFunc, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	key := fenceKey(propertyID, mt)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.held[key]; ok {
		return nil, nil
	}
	f.held[key] = struct{}{}
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
		return nil
	}, nil
}
