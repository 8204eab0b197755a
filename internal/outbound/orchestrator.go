package outbound

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/omeyang/tclink/pkg/audit/xauditlog"
	"github.com/omeyang/tclink/pkg/audit/xsyncstatus"
	"github.com/omeyang/tclink/pkg/config/xpmsconf"
	"github.com/omeyang/tclink/pkg/htng/xbuild"
	"github.com/omeyang/tclink/pkg/htng/xmsg"
	"github.com/omeyang/tclink/pkg/htng/xmsgid"
	"github.com/omeyang/tclink/pkg/htng/xparse"
	"github.com/omeyang/tclink/pkg/htng/xsoap"
	"github.com/omeyang/tclink/pkg/resilience/xbreaker"
	"github.com/omeyang/tclink/pkg/resilience/xretry"
	"github.com/omeyang/tclink/pkg/transport/xsoapclient"
)

// 编排默认参数。
const (
	// defaultEndpointConcurrency 单对端并发上限
	defaultEndpointConcurrency = 8

	// defaultInventoryBatch 库存单消息条目上限
	defaultInventoryBatch = 100

	// defaultRateBatch 房价单消息计划上限
	defaultRateBatch = 50

	// defaultMaxAttempts 发送尝试上限（酒店未配置时）
	defaultMaxAttempts = 3

	// pairBusyBackoff 键对栅栏被占时让位后的等待
	pairBusyBackoff = 100 * time.Millisecond

	// infraRetryDelay 基础设施瞬态故障（锁服务、审计存储）的重入队延迟
	infraRetryDelay = 2 * time.Second
)

// Sender 出站 SOAP 发送端。*xsoapclient.Client 为生产实现。
type Sender interface {
	Send(ctx context.Context, req xsoapclient.Request) (*xsoapclient.Result, error)
}

var _ Sender = (*xsoapclient.Client)(nil)

// ConfigSource 编排所需的配置读取面。*xpmsconf.Service 为生产实现。
type ConfigSource interface {
	Get(ctx context.Context, propertyID string) (*xpmsconf.PropertyConfig, error)
	GetGlobal(ctx context.Context) (*xpmsconf.GlobalConfig, error)
	PropertyIDs(ctx context.Context) ([]string, error)
}

var _ ConfigSource = (*xpmsconf.Service)(nil)

// InventoryProvider 预订完成后的联动库存数据源：
// 返回受影响房型的当前库存计数。PMS 侧实现。
type InventoryProvider func(ctx context.Context, propertyID string, roomTypeCodes []string) ([]*xmsg.InventoryItem, error)

// Orchestrator 出站任务编排器。
//
// Submit 族把业务变更拆分为任务入队并创建审计记录；
// Run 启动工作协程消费队列，按状态机推进每个任务。
type Orchestrator struct {
	cfg     ConfigSource
	queue   Queue
	sender  Sender
	audit   xauditlog.Store
	tracker *xsyncstatus.Tracker

	fence    Fence
	limiter  RateLimiter
	breakers *xbreaker.Registry
	backoff  xretry.BackoffPolicy

	msgid     *xmsgid.Generator
	headers   *xsoap.HeaderBuilder
	inventory *xbuild.InventoryBuilder
	rates     *xbuild.RateBuilder
	resv      *xbuild.ReservationBuilder
	restr     *xbuild.RestrictionBuilder
	grpBlock  *xbuild.GroupBlockBuilder
	responses *xparse.ResponseParser

	invProvider InventoryProvider
	ids         *idGenerator
	logger      *slog.Logger

	meterProvider metric.MeterProvider
	metrics       *jobMetrics

	semMu sync.Mutex
	sems  map[string]*semaphore.Weighted
}

// Option 编排器配置选项。
type Option func(*Orchestrator)

// WithFence 设置键对栅栏。默认进程内栅栏。
func WithFence(f Fence) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.fence = f
		}
	}
}

// WithRateLimiter 设置对端限流器。默认不限流。
func WithRateLimiter(l RateLimiter) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.limiter = l
		}
	}
}

// WithBreakerRegistry 设置熔断器注册表。
func WithBreakerRegistry(r *xbreaker.Registry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.breakers = r
		}
	}
}

// WithTracker 设置同步聚合追踪器。
func WithTracker(t *xsyncstatus.Tracker) Option {
	return func(o *Orchestrator) {
		o.tracker = t
	}
}

// WithBackoffPolicy 设置重试退避策略。默认指数退避。
func WithBackoffPolicy(p xretry.BackoffPolicy) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.backoff = p
		}
	}
}

// WithInventoryProvider 设置联动库存数据源。
// 未设置时预订完成后的库存联动被跳过。
func WithInventoryProvider(p InventoryProvider) Option {
	return func(o *Orchestrator) {
		o.invProvider = p
	}
}

// WithLogger 设置日志器。nil 使用 slog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeterProvider 设置指标提供者。默认使用全局 provider。
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(o *Orchestrator) {
		o.meterProvider = p
	}
}

// WithMessageIDGenerator 设置消息标识生成器。
func WithMessageIDGenerator(g *xmsgid.Generator) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.msgid = g
		}
	}
}

// NewOrchestrator 创建编排器。cfg、queue、sender、audit 为必选依赖。
func NewOrchestrator(cfg ConfigSource, queue Queue, sender Sender, audit xauditlog.Store, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if queue == nil {
		return nil, ErrNilQueue
	}
	if sender == nil {
		return nil, ErrNilSender
	}
	if audit == nil {
		return nil, ErrNilStore
	}

	ids, err := newIDGenerator()
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:       cfg,
		queue:     queue,
		sender:    sender,
		audit:     audit,
		fence:     NewLocalFence(),
		limiter:   nopLimiter{},
		backoff:   xretry.NewExponentialBackoff(),
		msgid:     xmsgid.New(),
		headers:   xsoap.NewHeaderBuilder(),
		inventory: xbuild.NewInventoryBuilder(),
		rates:     xbuild.NewRateBuilder(),
		resv:      xbuild.NewReservationBuilder(),
		restr:     xbuild.NewRestrictionBuilder(),
		grpBlock:  xbuild.NewGroupBlockBuilder(),
		responses: xparse.NewResponseParser(),
		ids:       ids,
		logger:    slog.Default(),
		sems:      make(map[string]*semaphore.Weighted),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.breakers == nil {
		o.breakers = xbreaker.NewRegistry()
	}

	metrics, err := newJobMetrics(o.meterProvider)
	if err != nil {
		return nil, err
	}
	o.metrics = metrics
	return o, nil
}

// =============================================================================
// 提交
// =============================================================================

// submitOptions Submit 族的可选参数。
type submitOptions struct {
	priority Priority
	overlay  bool
	parentID string
}

// SubmitOption 提交配置选项。
type SubmitOption func(*submitOptions)

// WithPriority 设置任务优先级。默认常规。
func WithPriority(p Priority) SubmitOption {
	return func(s *submitOptions) {
		if p == PriorityHigh || p == PriorityNormal {
			s.priority = p
		}
	}
}

// WithOverlay 库存任务按整段覆盖发送（全量同步用）。
func WithOverlay() SubmitOption {
	return func(s *submitOptions) { s.overlay = true }
}

// WithParentMessage 设置消息线程的父消息（修改/取消/链式任务）。
func WithParentMessage(messageID string) SubmitOption {
	return func(s *submitOptions) { s.parentID = messageID }
}

func applySubmitOptions(opts []SubmitOption) submitOptions {
	s := submitOptions{priority: PriorityNormal}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// prepare 提交前的公共检查：解析酒店配置并确认类型启用。
func (o *Orchestrator) prepare(ctx context.Context, propertyID string, mt xmsg.MessageType) (*xpmsconf.PropertyConfig, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if propertyID == "" {
		return nil, ErrEmptyPropertyID
	}
	prop, err := o.cfg.Get(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !prop.Active {
		return nil, xmsg.NewError(xmsg.KindConfiguration, "property is inactive").WithHotel(prop.HotelCode)
	}
	if !prop.Enabled(mt) {
		return nil, xmsg.NewError(xmsg.KindConfiguration, "message type disabled for property").
			WithHotel(prop.HotelCode).
			WithFields(xmsg.FieldIssue{Field: "enabled_types", Rule: "enabled", Value: string(mt)})
	}
	return prop, nil
}

// enqueueJob 分配标识、落审计记录并入队。
func (o *Orchestrator) enqueueJob(ctx context.Context, prop *xpmsconf.PropertyConfig, j *Job) error {
	jobID, err := o.ids.JobID()
	if err != nil {
		return err
	}
	messageID, err := o.msgid.Unique(prop.HotelCode, j.Type)
	if err != nil {
		return err
	}
	j.ID = jobID
	j.MessageID = messageID
	j.AuditID = messageID
	j.EnqueuedAt = time.Now().UTC()

	if err := j.Validate(); err != nil {
		return err
	}

	entry := xauditlog.NewEntry(messageID, xmsg.DirectionOutbound, j.Type, j.PropertyID, j.HotelCode, nil)
	entry.JobID = jobID
	entry.BatchID = j.BatchID
	entry.ParentMessageID = j.ParentMessageID
	if err := o.audit.Insert(ctx, entry); err != nil {
		return err
	}
	return o.queue.Enqueue(ctx, j)
}

// batchSize 返回消息类型的拆分上限。
func (o *Orchestrator) batchSize(ctx context.Context, mt xmsg.MessageType) int {
	fallback := defaultInventoryBatch
	if mt == xmsg.TypeRates {
		fallback = defaultRateBatch
	}
	global, err := o.cfg.GetGlobal(ctx)
	if err != nil {
		return fallback
	}
	if n := global.MessageType(mt).BatchSize; n > 0 {
		return n
	}
	return fallback
}

// SubmitInventory 提交库存变更。超过单消息上限时按输入顺序拆分，
// 拆分出的任务共享同一批次标识。返回任务标识列表。
func (o *Orchestrator) SubmitInventory(ctx context.Context, propertyID string, items []*xmsg.InventoryItem, opts ...SubmitOption) ([]string, error) {
	prop, err := o.prepare(ctx, propertyID, xmsg.TypeInventory)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	so := applySubmitOptions(opts)

	size := o.batchSize(ctx, xmsg.TypeInventory)
	chunks := chunkItems(items, size)

	batchID := ""
	if len(chunks) > 1 {
		if batchID, err = o.ids.BatchID(); err != nil {
			return nil, err
		}
	}

	jobIDs := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		j := &Job{
			BatchID:         batchID,
			PropertyID:      propertyID,
			HotelCode:       prop.HotelCode,
			Type:            xmsg.TypeInventory,
			Priority:        so.priority,
			ParentMessageID: so.parentID,
			Inventory:       &InventoryJob{Items: chunk, Overlay: so.overlay},
		}
		if err := o.enqueueJob(ctx, prop, j); err != nil {
			return jobIDs, err
		}
		jobIDs = append(jobIDs, j.ID)
	}
	return jobIDs, nil
}

// SubmitRates 提交房价变更，拆分规则与库存一致。
func (o *Orchestrator) SubmitRates(ctx context.Context, propertyID string, op xmsg.RateOperation, plans []*xmsg.RatePlan, opts ...SubmitOption) ([]string, error) {
	prop, err := o.prepare(ctx, propertyID, xmsg.TypeRates)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, ErrEmptyBatch
	}
	so := applySubmitOptions(opts)

	size := o.batchSize(ctx, xmsg.TypeRates)
	chunks := chunkItems(plans, size)

	batchID := ""
	if len(chunks) > 1 {
		if batchID, err = o.ids.BatchID(); err != nil {
			return nil, err
		}
	}

	jobIDs := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		j := &Job{
			BatchID:         batchID,
			PropertyID:      propertyID,
			HotelCode:       prop.HotelCode,
			Type:            xmsg.TypeRates,
			Priority:        so.priority,
			ParentMessageID: so.parentID,
			Rates:           &RateJob{Operation: op, Plans: chunk},
		}
		if err := o.enqueueJob(ctx, prop, j); err != nil {
			return jobIDs, err
		}
		jobIDs = append(jobIDs, j.ID)
	}
	return jobIDs, nil
}

// SubmitReservation 提交预订（新建/修改/取消由 DTO 的事务类型决定）。
func (o *Orchestrator) SubmitReservation(ctx context.Context, propertyID string, r *xmsg.Reservation, opts ...SubmitOption) (string, error) {
	prop, err := o.prepare(ctx, propertyID, xmsg.TypeReservation)
	if err != nil {
		return "", err
	}
	so := applySubmitOptions(opts)

	j := &Job{
		PropertyID:      propertyID,
		HotelCode:       prop.HotelCode,
		Type:            xmsg.TypeReservation,
		Priority:        so.priority,
		ParentMessageID: so.parentID,
		Reservation:     &ReservationJob{Reservation: r},
	}
	if err := o.enqueueJob(ctx, prop, j); err != nil {
		return "", err
	}
	return j.ID, nil
}

// SubmitRestrictions 提交可售限制变更。
func (o *Orchestrator) SubmitRestrictions(ctx context.Context, propertyID string, rs []*xmsg.Restriction, opts ...SubmitOption) (string, error) {
	prop, err := o.prepare(ctx, propertyID, xmsg.TypeRestrictions)
	if err != nil {
		return "", err
	}
	if len(rs) == 0 {
		return "", ErrEmptyBatch
	}
	so := applySubmitOptions(opts)

	j := &Job{
		PropertyID:      propertyID,
		HotelCode:       prop.HotelCode,
		Type:            xmsg.TypeRestrictions,
		Priority:        so.priority,
		ParentMessageID: so.parentID,
		Restrictions:    &RestrictionJob{Restrictions: rs},
	}
	if err := o.enqueueJob(ctx, prop, j); err != nil {
		return "", err
	}
	return j.ID, nil
}

// SubmitGroupBlock 提交团队房块变更。
func (o *Orchestrator) SubmitGroupBlock(ctx context.Context, propertyID string, blocks []*xmsg.GroupBlock, opts ...SubmitOption) (string, error) {
	prop, err := o.prepare(ctx, propertyID, xmsg.TypeGroupBlock)
	if err != nil {
		return "", err
	}
	if len(blocks) == 0 {
		return "", ErrEmptyBatch
	}
	so := applySubmitOptions(opts)

	j := &Job{
		PropertyID:      propertyID,
		HotelCode:       prop.HotelCode,
		Type:            xmsg.TypeGroupBlock,
		Priority:        so.priority,
		ParentMessageID: so.parentID,
		GroupBlock:      &GroupBlockJob{Blocks: blocks},
	}
	if err := o.enqueueJob(ctx, prop, j); err != nil {
		return "", err
	}
	return j.ID, nil
}

// chunkItems 按上限切分批次，保持输入顺序。
func chunkItems[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) <= size {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// =============================================================================
// 消费
// =============================================================================

// Run 启动 workers 个工作协程消费队列，阻塞至 ctx 取消且全部协程退出。
func (o *Orchestrator) Run(ctx context.Context, workers int) error {
	if ctx == nil {
		return ErrNilContext
	}
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			return o.workerLoop(gctx)
		})
	}
	return g.Wait()
}

// workerLoop 单工作协程：取任务、处理、循环。
func (o *Orchestrator) workerLoop(ctx context.Context) error {
	for {
		j, err := o.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
		started := time.Now()
		outcome := o.process(ctx, j)
		o.metrics.record(ctx, string(j.Type), outcome, time.Since(started))
	}
}

// endpointSem 返回对端地址的并发闸门，首次使用时按全局配置创建。
func (o *Orchestrator) endpointSem(ctx context.Context, endpoint string) *semaphore.Weighted {
	o.semMu.Lock()
	defer o.semMu.Unlock()
	if sem, ok := o.sems[endpoint]; ok {
		return sem
	}
	width := int64(defaultEndpointConcurrency)
	if global, err := o.cfg.GetGlobal(ctx); err == nil {
		if n := global.Synchronization.EndpointConcurrency; n > 0 {
			width = int64(n)
		}
	}
	sem := semaphore.NewWeighted(width)
	o.sems[endpoint] = sem
	return sem
}
