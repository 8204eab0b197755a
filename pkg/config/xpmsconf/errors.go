package xpmsconf

import (
	"errors"
	"fmt"
)

// 配置服务错误
var (
	// ErrEmptyPath 配置文件路径为空
	ErrEmptyPath = errors.New("xpmsconf: config path cannot be empty")

	// ErrNilContext 传入的 context 为 nil
	ErrNilContext = errors.New("xpmsconf: context cannot be nil")

	// ErrMissingConfig 必要配置键缺失（可恢复：补齐配置后重试）
	ErrMissingConfig = errors.New("xpmsconf: missing config")

	// ErrPropertyNotFound 酒店未配置（致命：不产生重试）
	ErrPropertyNotFound = errors.New("xpmsconf: property not found")

	// ErrEnvironmentMismatch 环境取值非法（致命：不产生重试）
	ErrEnvironmentMismatch = errors.New("xpmsconf: environment mismatch")
)

// Issue 单条配置校验问题。
type Issue struct {
	// Field 配置键
	Field string

	// Rule 违反的规则
	Rule string

	// Value 实际取值
	Value any
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s (got %v)", i.Field, i.Rule, i.Value)
}

// InvalidConfigError 配置校验失败（可恢复：修正配置后重试）。
type InvalidConfigError struct {
	PropertyID string
	Issues     []Issue
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("xpmsconf: invalid config for property %s: %d issue(s)", e.PropertyID, len(e.Issues))
}
