package inbound

import "errors"

var (
	// ErrNilContext context 为 nil
	ErrNilContext = errors.New("inbound: nil context")

	// ErrNilHandler 处理器为 nil
	ErrNilHandler = errors.New("inbound: nil handler")

	// ErrNilStore 审计存储为 nil
	ErrNilStore = errors.New("inbound: nil audit store")

	// ErrNilConfig 配置源为 nil
	ErrNilConfig = errors.New("inbound: nil config source")

	// ErrNilDispatcher 分发器为 nil
	ErrNilDispatcher = errors.New("inbound: nil dispatcher")

	// ErrNilMessage 消息为 nil
	ErrNilMessage = errors.New("inbound: nil message")

	// ErrDispatcherClosed 分发器已停止
	ErrDispatcherClosed = errors.New("inbound: dispatcher closed")

	// ErrQueueFull 分发队列已满
	ErrQueueFull = errors.New("inbound: dispatch queue full")
)
