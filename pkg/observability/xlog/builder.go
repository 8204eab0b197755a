package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/omeyang/tclink/pkg/observability/xrotate"
)

// Builder 日志配置构建器。链式设置，Build 统一返回首个配置错误。
type Builder struct {
	output    io.Writer
	levelVar  *slog.LevelVar
	format    string
	addSource bool
	attrs     []slog.Attr
	rotator   xrotate.Rotator
	err       error
}

// New 创建构建器。默认 stderr、info 级别、text 格式。
func New() *Builder {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelInfo)
	return &Builder{
		output:   os.Stderr,
		levelVar: lv,
		format:   "text",
	}
}

// SetOutput 设置输出目标。
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w != nil {
		b.output = w
	}
	return b
}

// SetLevel 设置日志级别。
func (b *Builder) SetLevel(level slog.Level) *Builder {
	b.levelVar.Set(level)
	return b
}

// SetLevelString 按字符串设置日志级别。
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json。空值保持默认。
func (b *Builder) SetFormat(format string) *Builder {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case "":
	case "text", "json":
		b.format = f
	default:
		b.err = fmt.Errorf("xlog: unknown format %q", format)
	}
	return b
}

// SetAddSource 是否记录源码位置。
func (b *Builder) SetAddSource(on bool) *Builder {
	b.addSource = on
	return b
}

// SetAttrs 设置每条日志携带的固定属性（如 service、environment）。
func (b *Builder) SetAttrs(attrs ...slog.Attr) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// SetRotation 输出到轮转文件。
func (b *Builder) SetRotation(filename string, opts ...xrotate.Option) *Builder {
	r, err := xrotate.New(filename, opts...)
	if err != nil {
		b.err = err
		return b
	}
	b.rotator = r
	b.output = r
	return b
}

// Build 构建 logger 与清理函数。清理函数负责关闭轮转文件，幂等。
func (b *Builder) Build() (*slog.Logger, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	opts := &slog.HandlerOptions{
		Level:     b.levelVar,
		AddSource: b.addSource,
	}

	var handler slog.Handler
	switch b.format {
	case "json":
		handler = slog.NewJSONHandler(b.output, opts)
	default:
		handler = slog.NewTextHandler(b.output, opts)
	}
	if len(b.attrs) > 0 {
		handler = handler.WithAttrs(b.attrs)
	}

	rotator := b.rotator
	var once sync.Once
	cleanup := func() error {
		var err error
		once.Do(func() {
			if rotator != nil {
				err = rotator.Close()
			}
		})
		return err
	}

	return slog.New(handler), cleanup, nil
}

// LevelVar 返回级别变量，运行期调整日志级别用。
func (b *Builder) LevelVar() *slog.LevelVar {
	return b.levelVar
}
