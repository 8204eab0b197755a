package xrotate

import "errors"

var (
	// ErrEmptyFilename 日志文件路径为空
	ErrEmptyFilename = errors.New("xrotate: empty filename")

	// ErrInvalidMaxSize 单文件大小配置非法
	ErrInvalidMaxSize = errors.New("xrotate: invalid max size")

	// ErrNoCleanupPolicy 备份数量与保留天数不能同时为 0
	ErrNoCleanupPolicy = errors.New("xrotate: no cleanup policy")

	// ErrClosed 轮转器已关闭
	ErrClosed = errors.New("xrotate: rotator closed")
)
