package xrun

import (
	"log/slog"
	"os"
)

// Option 配置选项。
type Option func(*options)

type options struct {
	logger    *slog.Logger
	signals   []os.Signal
	noSignals bool
}

func applyOptions(opts []Option) *options {
	o := &options{signals: DefaultSignals}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// withOptions 透传已解析的选项，内部用。
func withOptions(parsed *options) Option {
	return func(o *options) {
		*o = *parsed
	}
}

// WithLogger 设置日志器，服务异常退出时记录。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSignals 覆盖监听的退出信号。
func WithSignals(signals ...os.Signal) Option {
	return func(o *options) {
		if len(signals) > 0 {
			o.signals = signals
		}
	}
}

// WithoutSignalHandler 不注册信号监听，调用方自行管理退出。
func WithoutSignalHandler() Option {
	return func(o *options) {
		o.noSignals = true
	}
}
