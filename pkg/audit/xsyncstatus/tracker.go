package xsyncstatus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// 查询默认阈值。
const (
	// defaultAttentionThreshold 健康分低于此值进入关注列表
	defaultAttentionThreshold = 50

	// defaultLongRunning 运行超过此时长视为卡死
	defaultLongRunning = 30 * time.Minute

	// defaultMaxRetries 聚合新建时的自动重试预算
	defaultMaxRetries = 3
)

// Tracker 同步聚合追踪器
//
// 并发安全性由底层 Store 保证；同一 (property, type) 的并发
// 更新为最后写入生效，聚合数据可从审计日志重建。
type Tracker struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// TrackerOption 追踪器配置选项
type TrackerOption func(*Tracker)

// WithLogger 设置日志器。nil 使用 slog.Default()。
func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock 设置时钟来源（测试用）。
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker 创建追踪器。
func NewTracker(store Store, opts ...TrackerOption) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("xsyncstatus: store cannot be nil")
	}
	t := &Tracker{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// load 读取聚合，不存在时返回初始记录。
func (t *Tracker) load(ctx context.Context, propertyID string, messageType xmsg.MessageType) (*Record, error) {
	r, err := t.store.Get(ctx, propertyID, messageType)
	if errors.Is(err, ErrNotFound) {
		return &Record{
			PropertyID:       propertyID,
			MessageType:      messageType,
			State:            StateIdle,
			AutoRetryEnabled: true,
			MaxRetries:       defaultMaxRetries,
			HealthScore:      maxHealthScore,
		}, nil
	}
	return r, err
}

// RecordStart 记录一次同步开始。total 为本次计划处理的记录数。
func (t *Tracker) RecordStart(ctx context.Context, propertyID string, messageType xmsg.MessageType, total int64) error {
	if ctx == nil {
		return ErrNilContext
	}
	r, err := t.load(ctx, propertyID, messageType)
	if err != nil {
		return err
	}

	now := t.now().UTC()
	r.State = StateRunning
	r.LastAttempt = &now
	r.RecordsTotal = total
	r.RecordsProcessed = 0
	r.HealthScore = r.Health(now)
	return t.store.Upsert(ctx, r)
}

// RecordSuccess 记录一次同步成功。processed 为实际处理的记录数。
// 重试计数清零，下一次重试时间清除。
func (t *Tracker) RecordSuccess(ctx context.Context, propertyID string, messageType xmsg.MessageType, processed int64) error {
	if ctx == nil {
		return ErrNilContext
	}
	r, err := t.load(ctx, propertyID, messageType)
	if err != nil {
		return err
	}

	now := t.now().UTC()
	r.State = StateCompleted
	r.LastSuccess = &now
	r.RecordsProcessed = processed
	if r.RecordsTotal > 0 {
		r.SuccessRate = float64(processed) / float64(r.RecordsTotal)
	} else {
		r.SuccessRate = 1
	}
	r.RetryCount = 0
	r.NextRetryAt = nil
	r.HealthScore = r.Health(now)
	return t.store.Upsert(ctx, r)
}

// RecordFailure 记录一次同步失败。
// retryAfter > 0 表示安排了重试：递增重试计数，自动重试开启时写入
// 下一次重试时间。retryAfter == 0 为终态失败，不计重试。
func (t *Tracker) RecordFailure(ctx context.Context, propertyID string, messageType xmsg.MessageType, kindErr *xmsg.Error, retryAfter time.Duration) error {
	if ctx == nil {
		return ErrNilContext
	}
	r, err := t.load(ctx, propertyID, messageType)
	if err != nil {
		return err
	}

	now := t.now().UTC()
	r.State = StateFailed
	r.LastAttempt = &now
	if retryAfter > 0 {
		r.RetryCount++
	}
	if r.RecordsTotal > 0 {
		r.SuccessRate = float64(r.RecordsProcessed) / float64(r.RecordsTotal)
	} else {
		r.SuccessRate = 0
	}
	if retryAfter > 0 && r.AutoRetryEnabled && !r.RetriesExhausted() {
		next := now.Add(retryAfter)
		r.NextRetryAt = &next
	} else {
		r.NextRetryAt = nil
	}
	r.HealthScore = r.Health(now)

	if kindErr != nil {
		t.logger.Warn("sync failure recorded",
			slog.String("property_id", propertyID),
			slog.String("message_type", string(messageType)),
			slog.String("kind", string(kindErr.Kind)),
			slog.Int("retry_count", r.RetryCount),
			slog.Int("health_score", r.HealthScore),
		)
	}
	return t.store.Upsert(ctx, r)
}

// Get 读取单个聚合。
func (t *Tracker) Get(ctx context.Context, propertyID string, messageType xmsg.MessageType) (*Record, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return t.store.Get(ctx, propertyID, messageType)
}

// NeedsAttention 返回需要人工关注的聚合：
// 健康分低于阈值（threshold <= 0 使用默认 50），或重试预算已耗尽。
func (t *Tracker) NeedsAttention(ctx context.Context, threshold int) ([]*Record, error) {
	if threshold <= 0 {
		threshold = defaultAttentionThreshold
	}
	return t.filter(ctx, func(r *Record) bool {
		return r.Health(t.now().UTC()) < threshold || (r.State == StateFailed && r.RetriesExhausted())
	})
}

// LowSuccessRate 返回成功率低于阈值的聚合（已有同步记录的）。
func (t *Tracker) LowSuccessRate(ctx context.Context, threshold float64) ([]*Record, error) {
	return t.filter(ctx, func(r *Record) bool {
		return r.LastAttempt != nil && r.SuccessRate < threshold
	})
}

// LongRunning 返回运行超时的聚合（threshold <= 0 使用默认 30 分钟）。
func (t *Tracker) LongRunning(ctx context.Context, threshold time.Duration) ([]*Record, error) {
	if threshold <= 0 {
		threshold = defaultLongRunning
	}
	now := t.now().UTC()
	return t.filter(ctx, func(r *Record) bool {
		return r.State == StateRunning && r.LastAttempt != nil && now.Sub(*r.LastAttempt) > threshold
	})
}

func (t *Tracker) filter(ctx context.Context, keep func(*Record) bool) ([]*Record, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	all, err := t.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(all))
	for _, r := range all {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
