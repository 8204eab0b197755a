package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式。
type Format string

const (
	// FormatYAML YAML 格式（.yaml/.yml，ConfigMap 的常规选择）
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式（.json）
	FormatJSON Format = "json"
)

// Config 已加载的配置。
//
// 基础读取直接走 Client() 返回的 koanf 实例；
// Unmarshal/Reload 是加在其上的并发安全封装。
type Config interface {
	// Client 返回底层 koanf 实例（当前快照）。
	Client() *koanf.Koanf

	// Unmarshal 把 path 下的配置树反序列化到 target。
	// path 为空表示整棵树。
	Unmarshal(path string, target any) error

	// Reload 重新读取配置文件并整体替换；解析失败保留旧配置。
	// 字节数据创建的配置返回 ErrNotReloadable。
	Reload() error

	// Path 返回配置文件路径；字节数据创建的配置为空串。
	Path() string

	// Format 返回配置格式。
	Format() Format
}

// fileConfig Config 的 koanf 实现。
type fileConfig struct {
	mu     sync.RWMutex
	k      *koanf.Koanf
	path   string
	format Format
	delim  string
	tag    string
}

// Options 加载选项。
type Options struct {
	// Delim 配置键分隔符，默认 "."
	Delim string

	// Tag 反序列化使用的结构体标签，默认 "koanf"
	Tag string
}

// Option 配置选项函数。
type Option func(*Options)

// WithDelim 设置配置键分隔符。
func WithDelim(delim string) Option {
	return func(o *Options) {
		if delim != "" {
			o.Delim = delim
		}
	}
}

// WithTag 设置结构体标签名。
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}

func applyOptions(opts []Option) *Options {
	o := &Options{Delim: ".", Tag: "koanf"}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New 从文件加载配置，格式按扩展名识别。
func New(path string, opts ...Option) (Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := formatFor(path)
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	c := &fileConfig{path: path, format: format, delim: o.Delim, tag: o.Tag}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromBytes 从字节数据加载配置，格式需显式指定。
// 空数据产出空配置，与读取空文件的行为一致。
func NewFromBytes(data []byte, format Format, opts ...Option) (Config, error) {
	o := applyOptions(opts)
	k, err := parse(data, format, o.Delim)
	if err != nil {
		return nil, err
	}
	return &fileConfig{k: k, format: format, delim: o.Delim, tag: o.Tag}, nil
}

func (c *fileConfig) Client() *koanf.Koanf {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k
}

func (c *fileConfig) Unmarshal(path string, target any) error {
	c.mu.RLock()
	k, tag := c.k, c.tag
	c.mu.RUnlock()

	if err := k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

func (c *fileConfig) Reload() error {
	if c.path == "" {
		return ErrNotReloadable
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := parse(data, c.format, c.delim)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.k = k
	c.mu.Unlock()
	return nil
}

func (c *fileConfig) Path() string   { return c.path }
func (c *fileConfig) Format() Format { return c.format }

// formatFor 按扩展名识别格式。
func formatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// parse 解析数据到新的 koanf 实例。
func parse(data []byte, format Format, delim string) (*koanf.Koanf, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = kyaml.Parser()
	case FormatJSON:
		parser = kjson.Parser()
	default:
		return nil, ErrUnsupportedFormat
	}

	k := koanf.New(delim)
	if len(data) == 0 {
		return k, nil
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return k, nil
}
