package outbound

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// redis 队列键布局（相对前缀）：
//
//	<prefix>high            就绪通道（高优先级，LPUSH 入 / BRPOP 出）
//	<prefix>normal          就绪通道（常规）
//	<prefix>delayed:high    延迟区（score = 就绪时间毫秒）
//	<prefix>delayed:normal
const (
	defaultKeyPrefix = "tclink:outbound:"

	// dequeuePollInterval BRPOP 单次阻塞时长；醒来后顺带搬运到期的延迟任务
	dequeuePollInterval = time.Second

	// promoteBatch 单次搬运的延迟任务上限
	promoteBatch = 128
)

// promoteScript 原子搬运：到期成员按就绪时间先后 LPUSH 进就绪通道。
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #due == 0 then
  return 0
end
for i = 1, #due do
  redis.call('LPUSH', KEYS[2], due[i])
end
redis.call('ZREM', KEYS[1], unpack(due))
return #due
`)

// RedisQueue 基于 Redis 的出站任务队列。
//
// 多实例共享安全：就绪通道是 List，延迟区是按就绪时间打分的
// Sorted Set，搬运经 Lua 脚本原子完成。
type RedisQueue struct {
	rdb    redis.UniversalClient
	prefix string
	closed atomic.Bool
	now    func() time.Time
}

var _ Queue = (*RedisQueue)(nil)

// RedisQueueOption 队列配置选项。
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix 设置键前缀。默认 "tclink:outbound:"。
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(q *RedisQueue) {
		if prefix != "" {
			q.prefix = prefix
		}
	}
}

// NewRedisQueue 创建 Redis 队列。客户端生命周期由调用者管理。
func NewRedisQueue(rdb redis.UniversalClient, opts ...RedisQueueOption) (*RedisQueue, error) {
	if rdb == nil {
		return nil, ErrNilQueue
	}
	q := &RedisQueue{
		rdb:    rdb,
		prefix: defaultKeyPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

func (q *RedisQueue) laneKey(p Priority) string {
	if p == PriorityHigh {
		return q.prefix + "high"
	}
	return q.prefix + "normal"
}

func (q *RedisQueue) delayedKey(p Priority) string {
	if p == PriorityHigh {
		return q.prefix + "delayed:high"
	}
	return q.prefix + "delayed:normal"
}

func (q *RedisQueue) Enqueue(ctx context.Context, j *Job) error {
	if ctx == nil {
		return ErrNilContext
	}
	if j == nil {
		return ErrNilJob
	}
	if q.closed.Load() {
		return ErrQueueClosed
	}
	data, err := encodeJob(j)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.laneKey(j.Priority), data).Err()
}

func (q *RedisQueue) EnqueueDelayed(ctx context.Context, j *Job, delay time.Duration) error {
	if ctx == nil {
		return ErrNilContext
	}
	if j == nil {
		return ErrNilJob
	}
	if delay <= 0 {
		return q.Enqueue(ctx, j)
	}
	if q.closed.Load() {
		return ErrQueueClosed
	}
	readyAt := q.now().Add(delay)
	j.NotBefore = readyAt
	data, err := encodeJob(j)
	if err != nil {
		return err
	}
	return q.rdb.ZAdd(ctx, q.delayedKey(j.Priority), redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: string(data),
	}).Err()
}

func (q *RedisQueue) RequeueFront(ctx context.Context, j *Job) error {
	if ctx == nil {
		return ErrNilContext
	}
	if j == nil {
		return ErrNilJob
	}
	if q.closed.Load() {
		return ErrQueueClosed
	}
	data, err := encodeJob(j)
	if err != nil {
		return err
	}
	// 消费端从右侧弹出，RPUSH 即回到队头
	return q.rdb.RPush(ctx, q.laneKey(j.Priority), data).Err()
}

// promote 搬运两条延迟区中到期的任务。
func (q *RedisQueue) promote(ctx context.Context) error {
	nowMilli := strconv.FormatInt(q.now().UnixMilli(), 10)
	for _, p := range []Priority{PriorityHigh, PriorityNormal} {
		keys := []string{q.delayedKey(p), q.laneKey(p)}
		if err := promoteScript.Run(ctx, q.rdb, keys, nowMilli, promoteBatch).Err(); err != nil &&
			!errors.Is(err, redis.Nil) {
			return fmt.Errorf("outbound: promote delayed jobs: %w", err)
		}
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	for {
		if q.closed.Load() {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := q.promote(ctx); err != nil {
			return nil, err
		}

		// 高优先级键在前，BRPOP 按键序取第一个非空
		vals, err := q.rdb.BRPop(ctx, dequeuePollInterval,
			q.laneKey(PriorityHigh), q.laneKey(PriorityNormal)).Result()
		if errors.Is(err, redis.Nil) {
			continue // 超时空转，回头搬运延迟区
		}
		if err != nil {
			return nil, fmt.Errorf("outbound: dequeue: %w", err)
		}
		if len(vals) != 2 {
			continue
		}
		return decodeJob([]byte(vals[1]))
	}
}

func (q *RedisQueue) Depths(ctx context.Context) (Depths, error) {
	if ctx == nil {
		return Depths{}, ErrNilContext
	}
	high, err := q.rdb.LLen(ctx, q.laneKey(PriorityHigh)).Result()
	if err != nil {
		return Depths{}, err
	}
	normal, err := q.rdb.LLen(ctx, q.laneKey(PriorityNormal)).Result()
	if err != nil {
		return Depths{}, err
	}
	var delayed int64
	for _, p := range []Priority{PriorityHigh, PriorityNormal} {
		n, err := q.rdb.ZCard(ctx, q.delayedKey(p)).Result()
		if err != nil {
			return Depths{}, err
		}
		delayed += n
	}
	return Depths{High: int(high), Normal: int(normal), Delayed: int(delayed)}, nil
}

// Close 标记队列关闭。Redis 客户端由调用者管理，不在此关闭。
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
