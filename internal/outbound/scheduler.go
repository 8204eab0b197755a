package outbound

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SyncFunc 执行一家酒店的一轮同步。full 为 true 时做全量推送，
// 否则只推送自上轮以来的增量。
type SyncFunc func(ctx context.Context, propertyID string, full bool) error

// sweepTimeout 单轮全店扫描的硬上限。
const sweepTimeout = 30 * time.Minute

// SyncScheduler 周期同步调度器。
//
// 按全局配置注册两类计划任务：full_sync_schedule（cron 表达式）
// 触发全量同步，delta_sync_interval（分钟）触发增量同步。
// 每次触发遍历全部在册酒店，跳过停用的。
type SyncScheduler struct {
	cfg    ConfigSource
	run    SyncFunc
	cron   *cron.Cron
	logger *slog.Logger
}

// SchedulerOption 调度器配置选项。
type SchedulerOption func(*SyncScheduler)

// WithSchedulerLogger 设置日志器。nil 使用 slog.Default()。
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *SyncScheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSyncScheduler 创建调度器。cfg 与 run 为必选依赖。
func NewSyncScheduler(cfg ConfigSource, run SyncFunc, opts ...SchedulerOption) (*SyncScheduler, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if run == nil {
		return nil, ErrNilScheduleFunc
	}
	s := &SyncScheduler{
		cfg:    cfg,
		run:    run,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	clog := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithChain(
			cron.Recover(clog),
			cron.SkipIfStillRunning(clog),
		),
	)
	return s, nil
}

// Start 按当前全局配置注册计划任务并启动调度。
// 两个计划都未配置时不报错，调度器空转。
func (s *SyncScheduler) Start(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	global, err := s.cfg.GetGlobal(ctx)
	if err != nil {
		return fmt.Errorf("outbound: load sync schedule: %w", err)
	}

	sync := global.Synchronization
	if spec := sync.FullSyncSchedule; spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.sweep(true) }); err != nil {
			return fmt.Errorf("outbound: invalid full sync schedule %q: %w", spec, err)
		}
		s.logger.Info("full sync scheduled", slog.String("spec", spec))
	}
	if m := sync.DeltaSyncInterval; m > 0 {
		spec := fmt.Sprintf("@every %dm", m)
		if _, err := s.cron.AddFunc(spec, func() { s.sweep(false) }); err != nil {
			return fmt.Errorf("outbound: invalid delta sync interval %d: %w", m, err)
		}
		s.logger.Info("delta sync scheduled", slog.Int("interval_minutes", m))
	}

	s.cron.Start()
	return nil
}

// Stop 停止触发新任务，阻塞等待运行中的扫描收尾。
func (s *SyncScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// sweep 扫描全部在册酒店执行一轮同步。单店失败只记录，不中断后续。
func (s *SyncScheduler) sweep(full bool) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	mode := "delta"
	if full {
		mode = "full"
	}
	log := s.logger.With(slog.String("mode", mode))

	ids, err := s.cfg.PropertyIDs(ctx)
	if err != nil {
		log.Error("list properties failed, sweep skipped", slog.Any("error", err))
		return
	}

	var ok, failed, skipped int
	for _, id := range ids {
		prop, err := s.cfg.Get(ctx, id)
		if err != nil {
			log.Warn("property config unavailable", slog.String("property_id", id), slog.Any("error", err))
			failed++
			continue
		}
		if !prop.Active {
			skipped++
			continue
		}
		if err := s.run(ctx, id, full); err != nil {
			log.Warn("property sync failed", slog.String("property_id", id), slog.Any("error", err))
			failed++
			continue
		}
		ok++
	}
	log.Info("sync sweep finished",
		slog.Int("ok", ok),
		slog.Int("failed", failed),
		slog.Int("skipped", skipped),
	)
}

// cronLogger 把 cron 内部日志桥接到 slog。
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug("cron: "+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	kv = append(kv, slog.Any("error", err))
	c.l.Error("cron: "+msg, kv...)
}
