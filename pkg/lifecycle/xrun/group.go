package xrun

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultSignals 默认监听的退出信号。
var DefaultSignals = []os.Signal{
	syscall.SIGHUP,
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// Func 受 ctx 控制的服务函数。ctx 取消后应尽快返回。
type Func func(ctx context.Context) error

// Group 一组共生共死的服务。
// 任一服务返回非 nil 错误，或外部调用 Cancel，整组取消。
type Group struct {
	eg     *errgroup.Group
	ctx    context.Context
	cancel context.CancelCauseFunc
	logger *slog.Logger
}

// NewGroup 创建服务组。派生 ctx 供各服务使用。
func NewGroup(ctx context.Context, opts ...Option) *Group {
	if ctx == nil {
		ctx = context.Background()
	}
	o := applyOptions(opts)

	cctx, cancel := context.WithCancelCause(ctx)
	eg, ectx := errgroup.WithContext(cctx)
	return &Group{
		eg:     eg,
		ctx:    ectx,
		cancel: cancel,
		logger: o.logger,
	}
}

// Context 返回组内共享的 ctx。
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go 启动一个服务。
func (g *Group) Go(fn Func) {
	g.GoWithName("", fn)
}

// GoWithName 启动一个带名字的服务，名字只用于日志。
func (g *Group) GoWithName(name string, fn Func) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) && g.logger != nil {
			g.logger.Error("service exited",
				slog.String("service", name),
				slog.String("error", err.Error()))
		}
		return err
	})
}

// Cancel 以指定原因取消整组服务。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Wait 等待所有服务退出。
// 因组内取消而产生的 context.Canceled 被过滤，返回取消原因
// （如 *SignalError）；服务自身的错误原样返回。
func (g *Group) Wait() error {
	err := g.eg.Wait()
	g.cancel(nil)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if cause := context.Cause(g.ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return err
}

// Run 运行一组服务直到全部退出或收到退出信号。
// 收到 DefaultSignals（可用 WithSignals 覆盖）时取消整组并
// 返回 *SignalError；errors.Is(err, ErrSignal) 可判断信号退出。
func Run(ctx context.Context, fns ...Func) error {
	return RunWith(ctx, nil, fns...)
}

// RunWith 同 Run，附加选项。
func RunWith(ctx context.Context, opts []Option, fns ...Func) error {
	o := applyOptions(opts)

	g := NewGroup(ctx, withOptions(o))
	if !o.noSignals {
		g.GoWithName("signal-listener", signalListener(g, o.signals))
	}
	for _, fn := range fns {
		g.Go(fn)
	}
	return g.Wait()
}

// signalListener 等待退出信号并以 *SignalError 取消整组。
func signalListener(g *Group, signals []os.Signal) Func {
	return func(ctx context.Context) error {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, signals...)
		defer signal.Stop(ch)

		select {
		case sig := <-ch:
			g.Cancel(&SignalError{Signal: sig})
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// HTTPServerInterface http.Server 的最小面，测试可替身。
type HTTPServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServer 把 HTTP 服务器包装成服务函数：ctx 取消后在
// shutdownTimeout 内优雅关闭。
func HTTPServer(server HTTPServerInterface, shutdownTimeout time.Duration) Func {
	return func(ctx context.Context) error {
		if server == nil {
			return ErrNilServer
		}

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- server.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(sctx); err != nil {
				return err
			}
			if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	}
}

// Ticker 把周期任务包装成服务函数。immediate 为 true 时先立即
// 执行一次。fn 返回错误即终止整组。
func Ticker(interval time.Duration, immediate bool, fn Func) Func {
	return func(ctx context.Context) error {
		if fn == nil {
			return ErrNilFunc
		}
		if interval <= 0 {
			return ErrInvalidInterval
		}

		if immediate {
			if err := fn(ctx); err != nil {
				return err
			}
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					return err
				}
			case <-ctx.Done():
				return nil
			}
		}
	}
}
