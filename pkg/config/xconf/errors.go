package xconf

import "errors"

var (
	// ErrEmptyPath 配置文件路径为空
	ErrEmptyPath = errors.New("xconf: empty config path")

	// ErrUnsupportedFormat 不支持的配置格式
	ErrUnsupportedFormat = errors.New("xconf: unsupported config format")

	// ErrLoadFailed 配置文件读取失败
	ErrLoadFailed = errors.New("xconf: failed to load config")

	// ErrParseFailed 配置内容解析失败
	ErrParseFailed = errors.New("xconf: failed to parse config")

	// ErrUnmarshalFailed 配置反序列化失败
	ErrUnmarshalFailed = errors.New("xconf: failed to unmarshal config")

	// ErrNotReloadable 字节数据创建的配置不支持重载与监视
	ErrNotReloadable = errors.New("xconf: config not backed by a file")
)
