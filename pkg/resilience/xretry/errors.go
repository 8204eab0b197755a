package xretry

import "errors"

var (
	// ErrNilRetryer Retryer 接收者为 nil
	ErrNilRetryer = errors.New("xretry: retryer cannot be nil")

	// ErrNilContext 上下文为 nil
	ErrNilContext = errors.New("xretry: context cannot be nil")

	// ErrNilFunc 执行函数为 nil
	ErrNilFunc = errors.New("xretry: function cannot be nil")
)
