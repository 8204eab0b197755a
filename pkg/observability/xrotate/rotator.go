package xrotate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 默认轮转策略。
const (
	// DefaultMaxSizeMB 单个日志文件上限（MB）
	DefaultMaxSizeMB = 100

	// DefaultMaxBackups 保留的备份数量
	DefaultMaxBackups = 7

	// DefaultMaxAgeDays 备份保留天数
	DefaultMaxAgeDays = 30

	// hardMaxSizeMB 配置允许的单文件上限（10 GB）
	hardMaxSizeMB = 10240
)

// Rotator 日志轮转写入器。
//
// io.WriteCloser 的超集，Write 并发安全；Close 后的
// Write/Rotate 返回 ErrClosed。
type Rotator interface {
	io.WriteCloser

	// Rotate 手动触发轮转：当前文件转为备份，新建日志文件。
	Rotate() error
}

var _ Rotator = (*fileRotator)(nil)

// Options 轮转策略。
type Options struct {
	// MaxSizeMB 单文件上限（MB），超过触发轮转
	MaxSizeMB int

	// MaxBackups 备份数量上限，0 表示不按数量清理
	MaxBackups int

	// MaxAgeDays 备份保留天数，0 表示不按天数清理
	MaxAgeDays int

	// Compress 备份是否 gzip 压缩
	Compress bool
}

// Option 轮转器配置选项。
type Option func(*Options)

// WithMaxSize 设置单文件上限（MB）。
func WithMaxSize(mb int) Option {
	return func(o *Options) { o.MaxSizeMB = mb }
}

// WithMaxBackups 设置备份数量上限。
func WithMaxBackups(n int) Option {
	return func(o *Options) { o.MaxBackups = n }
}

// WithMaxAge 设置备份保留天数。
func WithMaxAge(days int) Option {
	return func(o *Options) { o.MaxAgeDays = days }
}

// WithCompress 设置备份压缩。
func WithCompress(on bool) Option {
	return func(o *Options) { o.Compress = on }
}

// fileRotator lumberjack 封装。
type fileRotator struct {
	logger *lumberjack.Logger
	closed atomic.Bool
}

// New 创建日志轮转器。父目录不存在时自动创建（0750）。
func New(filename string, opts ...Option) (Rotator, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}

	o := &Options{
		MaxSizeMB:  DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAgeDays: DefaultMaxAgeDays,
		Compress:   true,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.MaxSizeMB <= 0 || o.MaxSizeMB > hardMaxSizeMB {
		return nil, fmt.Errorf("%w: got %d, want 1~%d", ErrInvalidMaxSize, o.MaxSizeMB, hardMaxSizeMB)
	}
	if o.MaxBackups == 0 && o.MaxAgeDays == 0 {
		return nil, ErrNoCleanupPolicy
	}

	path := filepath.Clean(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("xrotate: create log dir: %w", err)
	}

	return &fileRotator{
		logger: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
			Compress:   o.Compress,
		},
	}, nil
}

func (r *fileRotator) Write(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	return r.logger.Write(p)
}

// Close 关闭轮转器。重复关闭返回 ErrClosed。
func (r *fileRotator) Close() error {
	if r.closed.Swap(true) {
		return ErrClosed
	}
	return r.logger.Close()
}

func (r *fileRotator) Rotate() error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.logger.Rotate()
}
