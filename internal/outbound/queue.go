package outbound

import (
	"context"
	"sync"
	"time"
)

// Depths 队列深度快照。
type Depths struct {
	High    int `json:"high"`
	Normal  int `json:"normal"`
	Delayed int `json:"delayed"`
}

// Queue 出站任务队列。
//
// 两条优先级通道加一个延迟区。就绪任务按入队顺序出队，
// 高优先级通道始终先于常规通道被消费。
type Queue interface {
	// Enqueue 追加到任务优先级通道的尾部。
	Enqueue(ctx context.Context, j *Job) error

	// EnqueueDelayed 放入延迟区，delay 后进入所属通道尾部。
	EnqueueDelayed(ctx context.Context, j *Job, delay time.Duration) error

	// RequeueFront 放回所属通道头部：栅栏被占时让位而不失序。
	RequeueFront(ctx context.Context, j *Job) error

	// Dequeue 阻塞取出下一个就绪任务；ctx 取消时返回其错误，
	// 队列关闭返回 ErrQueueClosed。
	Dequeue(ctx context.Context) (*Job, error)

	// Depths 返回当前深度。
	Depths(ctx context.Context) (Depths, error)

	// Close 关闭队列，唤醒全部阻塞的 Dequeue。
	Close() error
}

// delayedJob 延迟区条目。
type delayedJob struct {
	job     *Job
	readyAt time.Time
}

// MemoryQueue 进程内队列：测试与单机部署用。
type MemoryQueue struct {
	mu      sync.Mutex
	high    []*Job
	normal  []*Job
	delayed []delayedJob
	closed  bool

	// wake 入队信号；容量 1，多次入队合并为一次唤醒
	wake chan struct{}

	now func() time.Time
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue 创建进程内队列。
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		wake: make(chan struct{}, 1),
		now:  time.Now,
	}
}

func (q *MemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) lane(j *Job) *[]*Job {
	if j.Priority == PriorityHigh {
		return &q.high
	}
	return &q.normal
}

func (q *MemoryQueue) Enqueue(ctx context.Context, j *Job) error {
	if ctx == nil {
		return ErrNilContext
	}
	if j == nil {
		return ErrNilJob
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	lane := q.lane(j)
	*lane = append(*lane, j)
	q.signal()
	return nil
}

func (q *MemoryQueue) EnqueueDelayed(ctx context.Context, j *Job, delay time.Duration) error {
	if ctx == nil {
		return ErrNilContext
	}
	if j == nil {
		return ErrNilJob
	}
	if delay <= 0 {
		return q.Enqueue(ctx, j)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	readyAt := q.now().Add(delay)
	j.NotBefore = readyAt
	q.delayed = append(q.delayed, delayedJob{job: j, readyAt: readyAt})
	q.signal()
	return nil
}

func (q *MemoryQueue) RequeueFront(ctx context.Context, j *Job) error {
	if ctx == nil {
		return ErrNilContext
	}
	if j == nil {
		return ErrNilJob
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	lane := q.lane(j)
	*lane = append([]*Job{j}, *lane...)
	q.signal()
	return nil
}

// promoteLocked 将到期的延迟任务移入所属通道尾部，按就绪时间先后。
// 返回最近一个未到期任务的就绪时间；延迟区为空返回零值。
func (q *MemoryQueue) promoteLocked(now time.Time) time.Time {
	var next time.Time
	remaining := q.delayed[:0]
	due := make([]delayedJob, 0)
	for _, d := range q.delayed {
		if !d.readyAt.After(now) {
			due = append(due, d)
			continue
		}
		if next.IsZero() || d.readyAt.Before(next) {
			next = d.readyAt
		}
		remaining = append(remaining, d)
	}
	q.delayed = remaining

	// 同批到期任务按就绪时间排序后入列
	for i := 1; i < len(due); i++ {
		for k := i; k > 0 && due[k].readyAt.Before(due[k-1].readyAt); k-- {
			due[k], due[k-1] = due[k-1], due[k]
		}
	}
	for _, d := range due {
		lane := q.lane(d.job)
		*lane = append(*lane, d.job)
	}
	return next
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		nextReady := q.promoteLocked(q.now())
		if len(q.high) > 0 {
			j := q.high[0]
			q.high = q.high[1:]
			q.mu.Unlock()
			return j, nil
		}
		if len(q.normal) > 0 {
			j := q.normal[0]
			q.normal = q.normal[1:]
			q.mu.Unlock()
			return j, nil
		}
		q.mu.Unlock()

		var timer *time.Timer
		var timerC <-chan time.Time
		if !nextReady.IsZero() {
			timer = time.NewTimer(time.Until(nextReady))
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil, ctx.Err()
		case <-q.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (q *MemoryQueue) Depths(ctx context.Context) (Depths, error) {
	if ctx == nil {
		return Depths{}, ErrNilContext
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return Depths{High: len(q.high), Normal: len(q.normal), Delayed: len(q.delayed)}, nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.wake)
	return nil
}
