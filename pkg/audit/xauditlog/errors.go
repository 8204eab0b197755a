package xauditlog

import "errors"

// 存储层错误
var (
	// ErrNilContext 传入的 context 为 nil
	ErrNilContext = errors.New("xauditlog: context cannot be nil")

	// ErrNilEntry 传入的审计记录为 nil
	ErrNilEntry = errors.New("xauditlog: entry cannot be nil")

	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("xauditlog: entry not found")

	// ErrDuplicateMessageID message-id 已存在
	ErrDuplicateMessageID = errors.New("xauditlog: duplicate message id")

	// ErrVersionConflict 乐观并发冲突：记录已被其他 worker 更新
	ErrVersionConflict = errors.New("xauditlog: version conflict")

	// ErrInvalidTransition 非法状态流转
	ErrInvalidTransition = errors.New("xauditlog: invalid status transition")

	// ErrMissingParentLog 错误明细引用的审计记录不存在
	ErrMissingParentLog = errors.New("xauditlog: parent log not found")
)
