package outbound

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

func queueJob(id string, p Priority) *Job {
	return &Job{
		ID:         id,
		PropertyID: "101",
		HotelCode:  "HOTEL1",
		Type:       xmsg.TypeInventory,
		Priority:   p,
	}
}

func mustDequeue(t *testing.T, q Queue) *Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	j, err := q.Dequeue(ctx)
	require.NoError(t, err)
	return j
}

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queueJob("a", PriorityNormal)))
	require.NoError(t, q.Enqueue(ctx, queueJob("b", PriorityNormal)))
	require.NoError(t, q.Enqueue(ctx, queueJob("c", PriorityNormal)))

	assert.Equal(t, "a", mustDequeue(t, q).ID)
	assert.Equal(t, "b", mustDequeue(t, q).ID)
	assert.Equal(t, "c", mustDequeue(t, q).ID)
}

func TestMemoryQueueHighPriorityFirst(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queueJob("normal-1", PriorityNormal)))
	require.NoError(t, q.Enqueue(ctx, queueJob("high-1", PriorityHigh)))
	require.NoError(t, q.Enqueue(ctx, queueJob("normal-2", PriorityNormal)))

	assert.Equal(t, "high-1", mustDequeue(t, q).ID)
	assert.Equal(t, "normal-1", mustDequeue(t, q).ID)
	assert.Equal(t, "normal-2", mustDequeue(t, q).ID)
}

func TestMemoryQueueRequeueFront(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queueJob("a", PriorityNormal)))
	require.NoError(t, q.Enqueue(ctx, queueJob("b", PriorityNormal)))
	require.NoError(t, q.RequeueFront(ctx, queueJob("front", PriorityNormal)))

	assert.Equal(t, "front", mustDequeue(t, q).ID)
	assert.Equal(t, "a", mustDequeue(t, q).ID)
}

func TestMemoryQueueDelayedPromotion(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.EnqueueDelayed(ctx, queueJob("late", PriorityNormal), 60*time.Millisecond))
	require.NoError(t, q.Enqueue(ctx, queueJob("now", PriorityNormal)))

	assert.Equal(t, "now", mustDequeue(t, q).ID)

	depths, err := q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depths.Delayed)

	// 到期后自动进入就绪通道
	j := mustDequeue(t, q)
	assert.Equal(t, "late", j.ID)
	assert.False(t, j.NotBefore.IsZero())
}

func TestMemoryQueueDelayedOrder(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	// 就绪时间先后决定出队顺序，与入队顺序无关
	require.NoError(t, q.EnqueueDelayed(ctx, queueJob("second", PriorityNormal), 80*time.Millisecond))
	require.NoError(t, q.EnqueueDelayed(ctx, queueJob("first", PriorityNormal), 30*time.Millisecond))

	assert.Equal(t, "first", mustDequeue(t, q).ID)
	assert.Equal(t, "second", mustDequeue(t, q).ID)
}

func TestMemoryQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewMemoryQueue()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = q.Enqueue(context.Background(), queueJob("woken", PriorityNormal))
	}()

	assert.Equal(t, "woken", mustDequeue(t, q).ID)
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue()
	require.NoError(t, q.Close())
	require.NoError(t, q.Close()) // 幂等

	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Enqueue(context.Background(), queueJob("x", PriorityNormal)), ErrQueueClosed)
}

func TestMemoryQueueDequeueRespectsContext(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func newRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	q, err := NewRedisQueue(rdb)
	require.NoError(t, err)
	return q, mr
}

func TestRedisQueueRoundTrip(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx := context.Background()

	in := queueJob("job-1", PriorityNormal)
	in.Inventory = &InventoryJob{Items: []*xmsg.InventoryItem{{HotelCode: "HOTEL1"}}}
	require.NoError(t, q.Enqueue(ctx, in))

	out := mustDequeue(t, q)
	assert.Equal(t, "job-1", out.ID)
	assert.Equal(t, xmsg.TypeInventory, out.Type)
	require.NotNil(t, out.Inventory)
	assert.Len(t, out.Inventory.Items, 1)
}

func TestRedisQueuePriorityAndRequeue(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queueJob("normal-1", PriorityNormal)))
	require.NoError(t, q.Enqueue(ctx, queueJob("high-1", PriorityHigh)))
	require.NoError(t, q.RequeueFront(ctx, queueJob("front", PriorityNormal)))

	assert.Equal(t, "high-1", mustDequeue(t, q).ID)
	assert.Equal(t, "front", mustDequeue(t, q).ID)
	assert.Equal(t, "normal-1", mustDequeue(t, q).ID)
}

func TestRedisQueueDelayedPromotion(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx := context.Background()

	base := time.Now()
	q.now = func() time.Time { return base }
	require.NoError(t, q.EnqueueDelayed(ctx, queueJob("late", PriorityNormal), time.Hour))

	depths, err := q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, Depths{Delayed: 1}, depths)

	// 时钟越过就绪时间后搬运进就绪通道
	q.now = func() time.Time { return base.Add(2 * time.Hour) }
	assert.Equal(t, "late", mustDequeue(t, q).ID)

	depths, err = q.Depths(ctx)
	require.NoError(t, err)
	assert.Equal(t, Depths{}, depths)
}

func TestRedisQueueClosed(t *testing.T) {
	q, _ := newRedisQueue(t)
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(context.Background(), queueJob("x", PriorityNormal)), ErrQueueClosed)
	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}
