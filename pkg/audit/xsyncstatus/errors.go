package xsyncstatus

import "errors"

// 存储层错误
var (
	// ErrNilContext 传入的 context 为 nil
	ErrNilContext = errors.New("xsyncstatus: context cannot be nil")

	// ErrNilRecord 传入的聚合记录为 nil
	ErrNilRecord = errors.New("xsyncstatus: record cannot be nil")

	// ErrNotFound 聚合记录不存在
	ErrNotFound = errors.New("xsyncstatus: record not found")
)
