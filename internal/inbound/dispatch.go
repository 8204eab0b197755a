package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/tclink/pkg/audit/xauditlog"
	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

const (
	defaultDispatchWorkers = 4
	defaultDispatchQueue   = 256
	defaultHandleTimeout   = 30 * time.Second

	dispatchUpdateAttempts = 3
)

// Dispatcher 入站消息分发器。
//
// 接收面落档后把消息投入有界队列，固定数量的 worker 调用
// PMS 侧 Handler 并维护审计状态：成功转 COMPLETED，失败转
// FAILED 并落错误明细。队列满时 Submit 立即返回 ErrQueueFull，
// 由接收面合成 Server Fault，让对端按其策略重投。
type Dispatcher struct {
	handler Handler
	store   xauditlog.Store

	jobs    chan *Message
	workers int
	timeout time.Duration
	logger  *slog.Logger

	group   *errgroup.Group
	mu      sync.Mutex
	started bool
	closed  bool
}

// DispatchOption 分发器配置选项。
type DispatchOption func(*Dispatcher)

// WithWorkers 设置 worker 数量。默认 4。
func WithWorkers(n int) DispatchOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize 设置有界队列容量。默认 256。
func WithQueueSize(n int) DispatchOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.jobs = make(chan *Message, n)
		}
	}
}

// WithHandleTimeout 设置单条消息的处理超时。默认 30s。
func WithHandleTimeout(t time.Duration) DispatchOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithDispatchLogger 设置日志器。默认 slog.Default。
func WithDispatchLogger(l *slog.Logger) DispatchOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher 创建分发器。
func NewDispatcher(handler Handler, store xauditlog.Store, opts ...DispatchOption) (*Dispatcher, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if store == nil {
		return nil, ErrNilStore
	}
	d := &Dispatcher{
		handler: handler,
		store:   store,
		jobs:    make(chan *Message, defaultDispatchQueue),
		workers: defaultDispatchWorkers,
		timeout: defaultHandleTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start 启动 worker 池。重复调用无效。
func (d *Dispatcher) Start(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	if d.closed {
		return ErrDispatcherClosed
	}
	d.started = true

	g, gctx := errgroup.WithContext(ctx)
	d.group = g
	for range d.workers {
		g.Go(func() error {
			d.workerLoop(gctx)
			return nil
		})
	}
	return nil
}

// Submit 把消息投入队列。队列满返回 ErrQueueFull，
// 分发器已停止返回 ErrDispatcherClosed。
func (d *Dispatcher) Submit(ctx context.Context, m *Message) error {
	if ctx == nil {
		return ErrNilContext
	}
	if m == nil {
		return ErrNilMessage
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrDispatcherClosed
	}

	select {
	case d.jobs <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

// Backlog 返回队列中待处理的消息数。
func (d *Dispatcher) Backlog() int {
	return len(d.jobs)
}

// Stop 关闭队列并等待 worker 清空剩余消息。
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	group := d.group
	d.mu.Unlock()

	if group != nil {
		return group.Wait()
	}
	return nil
}

// workerLoop 消费队列直到关闭或 ctx 取消。
func (d *Dispatcher) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-d.jobs:
			if !ok {
				return
			}
			d.handle(ctx, m)
		}
	}
}

// handle 调度单条消息并维护审计状态。
func (d *Dispatcher) handle(ctx context.Context, m *Message) {
	log := d.logger.With(
		slog.String("message_id", m.MessageID),
		slog.String("property_id", m.PropertyID),
		slog.String("message_type", string(m.Type)),
	)

	if err := d.updateEntry(ctx, m.AuditID, func(e *xauditlog.Entry) error {
		return e.Transition(xauditlog.StatusProcessing)
	}); err != nil {
		if errors.Is(err, xauditlog.ErrInvalidTransition) {
			// 已被并发路径处理过，跳过
			log.Debug("inbound: entry not pending, skipping")
			return
		}
		log.Warn("inbound: audit transition failed", slog.Any("error", err))
	}

	hctx, cancel := context.WithTimeout(ctx, d.timeout)
	err := d.handler.Handle(hctx, m)
	cancel()

	if err == nil {
		if uerr := d.updateEntry(ctx, m.AuditID, func(e *xauditlog.Entry) error {
			return e.Transition(xauditlog.StatusCompleted)
		}); uerr != nil {
			log.Warn("inbound: completion audit failed", slog.Any("error", uerr))
		}
		log.Info("inbound: message handled")
		return
	}

	serr := toHandlerError(err)
	if uerr := d.updateEntry(ctx, m.AuditID, func(e *xauditlog.Entry) error {
		e.RecordError(serr)
		return e.Transition(xauditlog.StatusFailed)
	}); uerr != nil {
		log.Warn("inbound: failure audit failed", slog.Any("error", uerr))
	}

	el := xauditlog.NewErrorLog(m.AuditID,
		fmt.Sprintf("inbound %s handling failed", m.Type), serr,
		map[string]any{
			"hotel_code": m.HotelCode,
			"echo_token": m.EchoToken,
		})
	if ierr := d.store.InsertError(context.WithoutCancel(ctx), el); ierr != nil {
		log.Warn("inbound: error log insert failed", slog.Any("error", ierr))
	}
	log.Error("inbound: message handling failed", slog.Any("error", serr))
}

// updateEntry 读-改-写，版本冲突时有限重试。
func (d *Dispatcher) updateEntry(ctx context.Context, id string, mutate func(*xauditlog.Entry) error) error {
	var lastErr error
	for range dispatchUpdateAttempts {
		e, err := d.store.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(e); err != nil {
			return err
		}
		if err := d.store.Update(ctx, e); err != nil {
			if errors.Is(err, xauditlog.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

// toHandlerError 归一化处理器错误。超时归 TIMEOUT，其余默认业务错误。
func toHandlerError(err error) *xmsg.Error {
	var serr *xmsg.Error
	if errors.As(err, &serr) {
		return serr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return xmsg.Wrap(xmsg.KindTimeout, "handler timed out", err)
	}
	return xmsg.Wrap(xmsg.KindBusinessLogic, err.Error(), err)
}
