package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/tclink/internal/inbound"
	"github.com/omeyang/tclink/internal/outbound"
	"github.com/omeyang/tclink/pkg/audit/xauditlog"
	"github.com/omeyang/tclink/pkg/audit/xsyncstatus"
	"github.com/omeyang/tclink/pkg/config/xpmsconf"
	"github.com/omeyang/tclink/pkg/lifecycle/xrun"
	"github.com/omeyang/tclink/pkg/observability/xlog"
	"github.com/omeyang/tclink/pkg/resilience/xbreaker"
	"github.com/omeyang/tclink/pkg/transport/xsoapclient"
)

// 守护进程默认参数。
const (
	// defaultRetentionDays 审计记录保留天数（配置未指定时）
	defaultRetentionDays = 90

	// cleanupInterval 审计清理周期
	cleanupInterval = 24 * time.Hour

	// readHeaderTimeout 接收面请求头读取上限
	readHeaderTimeout = 10 * time.Second
)

// daemonOptions 命令行解析后的启动参数。
type daemonOptions struct {
	ConfigPath      string
	Listen          string
	Workers         int
	RedisAddr       string
	MongoURI        string
	MongoDB         string
	WSDLPath        string
	LogLevel        string
	LogFormat       string
	LogFile         string
	ShutdownTimeout time.Duration
}

// runDaemon 装配依赖并运行至退出信号或致命错误。
func runDaemon(ctx context.Context, opts daemonOptions) error {
	logger, logCleanup, err := buildLogger(opts)
	if err != nil {
		return err
	}
	defer func() { _ = logCleanup() }()
	logger.Info("tclinkd starting",
		slog.String("version", Version),
		slog.String("config", opts.ConfigPath),
		slog.String("listen", opts.Listen),
	)

	cfg, err := xpmsconf.NewService(opts.ConfigPath, xpmsconf.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("tclinkd: load config: %w", err)
	}
	defer func() { _ = cfg.Close() }()
	if err := cfg.StartWatch(func(err error) {
		if err != nil {
			logger.Error("config reload failed", slog.Any("error", err))
			return
		}
		logger.Info("config reloaded")
	}); err != nil {
		return fmt.Errorf("tclinkd: watch config: %w", err)
	}

	global, err := cfg.GetGlobal(ctx)
	if err != nil {
		return fmt.Errorf("tclinkd: read global config: %w", err)
	}

	// 存储层
	auditStore, syncStore, mongoCleanup, err := buildStores(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer mongoCleanup()

	// 队列与分布式原语
	queue, fence, limiter, redisCleanup, err := buildQueueing(opts, global, logger)
	if err != nil {
		return err
	}
	defer redisCleanup()
	defer func() { _ = queue.Close() }()

	sender, err := xsoapclient.NewClient(soapClientOptions(global, logger)...)
	if err != nil {
		return fmt.Errorf("tclinkd: soap client: %w", err)
	}

	tracker, err := xsyncstatus.NewTracker(syncStore, xsyncstatus.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("tclinkd: sync tracker: %w", err)
	}

	breakers := xbreaker.NewRegistry()

	orchOpts := []outbound.Option{
		outbound.WithBreakerRegistry(breakers),
		outbound.WithTracker(tracker),
		outbound.WithLogger(logger),
	}
	if fence != nil {
		orchOpts = append(orchOpts, outbound.WithFence(fence))
	}
	if limiter != nil {
		orchOpts = append(orchOpts, outbound.WithRateLimiter(limiter))
	}
	orch, err := outbound.NewOrchestrator(cfg, queue, sender, auditStore, orchOpts...)
	if err != nil {
		return fmt.Errorf("tclinkd: orchestrator: %w", err)
	}

	dispatcher, err := inbound.NewDispatcher(inboundHandler(logger), auditStore,
		inbound.WithDispatchLogger(logger))
	if err != nil {
		return fmt.Errorf("tclinkd: dispatcher: %w", err)
	}

	serverOpts := []inbound.ServerOption{
		inbound.WithBreakerRegistry(breakers),
		inbound.WithServerLogger(logger),
		inbound.WithServerVersion(Version),
	}
	if opts.WSDLPath != "" {
		doc, err := os.ReadFile(opts.WSDLPath)
		if err != nil {
			return fmt.Errorf("tclinkd: read wsdl: %w", err)
		}
		serverOpts = append(serverOpts, inbound.WithWSDL(doc))
	}
	server, err := inbound.NewServer(cfg, auditStore, dispatcher, serverOpts...)
	if err != nil {
		return fmt.Errorf("tclinkd: inbound server: %w", err)
	}

	scheduler, err := outbound.NewSyncScheduler(cfg, syncSweep(logger),
		outbound.WithSchedulerLogger(logger))
	if err != nil {
		return fmt.Errorf("tclinkd: sync scheduler: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              opts.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	err = xrun.RunWith(ctx, []xrun.Option{xrun.WithLogger(logger)},
		xrun.HTTPServer(httpSrv, opts.ShutdownTimeout),
		func(ctx context.Context) error {
			return orch.Run(ctx, opts.Workers)
		},
		func(ctx context.Context) error {
			if err := dispatcher.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return dispatcher.Stop()
		},
		func(ctx context.Context) error {
			if err := scheduler.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			scheduler.Stop()
			return nil
		},
		xrun.Ticker(cleanupInterval, false, auditCleanup(cfg, auditStore, logger)),
	)
	if errors.Is(err, xrun.ErrSignal) {
		logger.Info("shutting down", slog.String("cause", err.Error()))
		return nil
	}
	return err
}

// buildLogger 按命令行参数构建进程日志器。
func buildLogger(opts daemonOptions) (*slog.Logger, func() error, error) {
	b := xlog.New().
		SetLevelString(opts.LogLevel).
		SetFormat(opts.LogFormat).
		SetAttrs(slog.String("service", "tclinkd"))
	if opts.LogFile != "" {
		b.SetRotation(opts.LogFile)
	}
	return b.Build()
}

// buildStores 构建审计与同步聚合存储。
// 指定 --mongo 时连接 MongoDB 并建索引，否则使用内存存储。
func buildStores(ctx context.Context, opts daemonOptions, logger *slog.Logger) (xauditlog.Store, xsyncstatus.Store, func(), error) {
	if opts.MongoURI == "" {
		logger.Warn("no mongo configured, audit log is in-memory and lost on restart")
		return xauditlog.NewMemoryStore(), xsyncstatus.NewMemoryStore(), func() {}, nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(opts.MongoURI))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tclinkd: connect mongo: %w", err)
	}
	cleanup := func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			logger.Warn("mongo disconnect failed", slog.Any("error", err))
		}
	}

	db := client.Database(opts.MongoDB)
	audit := xauditlog.NewMongoStore(db)
	if err := audit.EnsureIndexes(ctx); err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("tclinkd: audit indexes: %w", err)
	}
	sync := xsyncstatus.NewMongoStore(db)
	if err := sync.EnsureIndexes(ctx); err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("tclinkd: sync status indexes: %w", err)
	}
	return audit, sync, cleanup, nil
}

// buildQueueing 构建任务队列、键对栅栏与对端限流。
// 指定 --redis 时三者共用同一 Redis 连接，否则退化为进程内实现
// （无跨实例互斥，仅适合单实例部署）。
func buildQueueing(opts daemonOptions, global *xpmsconf.GlobalConfig, logger *slog.Logger) (outbound.Queue, outbound.Fence, outbound.RateLimiter, func(), error) {
	if opts.RedisAddr == "" {
		logger.Warn("no redis configured, queue and fences are process-local")
		return outbound.NewMemoryQueue(), nil, nil, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
	cleanup := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis close failed", slog.Any("error", err))
		}
	}

	queue, err := outbound.NewRedisQueue(rdb)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, fmt.Errorf("tclinkd: redis queue: %w", err)
	}
	fence, err := outbound.NewRedisFence(rdb)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, fmt.Errorf("tclinkd: redis fence: %w", err)
	}

	var limiter outbound.RateLimiter
	if rl := global.RateLimit; rl.RequestsPerSecond > 0 {
		limiter, err = outbound.NewRedisRateLimiter(rdb, rl.RequestsPerSecond, rl.Burst)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, fmt.Errorf("tclinkd: rate limiter: %w", err)
		}
	}
	return queue, fence, limiter, cleanup, nil
}

// soapClientOptions 把全局 soap 配置映射为客户端选项。
func soapClientOptions(global *xpmsconf.GlobalConfig, logger *slog.Logger) []xsoapclient.ClientOption {
	soap := global.Soap
	opts := []xsoapclient.ClientOption{
		xsoapclient.WithLogger(logger),
		xsoapclient.WithTLSVerification(soap.SSL.VerifyPeer, soap.SSL.VerifyPeerName),
		xsoapclient.WithCompression(soap.Compression),
		xsoapclient.WithTrace(soap.Trace),
	}
	if soap.UserAgent != "" {
		opts = append(opts, xsoapclient.WithUserAgent(soap.UserAgent))
	}
	if s := soap.HTTP.TimeoutSeconds; s > 0 {
		opts = append(opts, xsoapclient.WithRequestTimeout(time.Duration(s)*time.Second))
	}
	return opts
}

// inboundHandler 接收面消息的进程内处理。
// 网关职责是接收、验证与留痕；向 PMS 业务侧投递由部署方以库形态
// 嵌入时替换此处实现，独立进程形态只记录结构化日志。
func inboundHandler(logger *slog.Logger) inbound.Handler {
	return inbound.HandlerFunc(func(ctx context.Context, m *inbound.Message) error {
		attrs := []any{
			slog.String("message_id", m.MessageID),
			slog.String("type", string(m.Type)),
			slog.String("hotel_code", m.HotelCode),
		}
		if m.Reservation != nil {
			attrs = append(attrs,
				slog.String("confirmation_number", m.Reservation.ConfirmationNumber),
				slog.String("transaction", string(m.Reservation.Transaction)),
			)
		}
		logger.Info("inbound message accepted", attrs...)
		return nil
	})
}

// syncSweep 周期同步的执行函数。
// 全量/增量的数据来源是 PMS 侧库存与房价台账，独立进程形态
// 没有挂接 PMS 数据源，只记录触发事实。
func syncSweep(logger *slog.Logger) outbound.SyncFunc {
	return func(ctx context.Context, propertyID string, full bool) error {
		logger.Debug("sync sweep triggered without pms data source, skipped",
			slog.String("property_id", propertyID),
			slog.Bool("full", full),
		)
		return nil
	}
}

// auditCleanup 按配置的保留天数清理终态审计记录。
// 清理失败只告警，不中断进程。
func auditCleanup(cfg *xpmsconf.Service, store xauditlog.Store, logger *slog.Logger) xrun.Func {
	return func(ctx context.Context) error {
		retention := retentionWindow(ctx, cfg)
		cutoff := time.Now().UTC().Add(-retention)
		removed, err := store.Cleanup(ctx, cutoff)
		if err != nil {
			logger.Warn("audit cleanup failed", slog.Any("error", err))
			return nil
		}
		if removed > 0 {
			logger.Info("audit cleanup done",
				slog.Int64("removed", removed),
				slog.Time("cutoff", cutoff),
			)
		}
		return nil
	}
}

// retentionWindow 审计保留窗口，配置缺失时 90 天。
func retentionWindow(ctx context.Context, cfg *xpmsconf.Service) time.Duration {
	days := defaultRetentionDays
	if global, err := cfg.GetGlobal(ctx); err == nil {
		if d := global.Logging.RetentionDays; d > 0 {
			days = d
		}
	}
	return time.Duration(days) * 24 * time.Hour
}
