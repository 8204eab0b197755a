package outbound

import "errors"

var (
	// ErrNilContext context 参数为 nil
	ErrNilContext = errors.New("outbound: nil context")

	// ErrNilJob 任务为 nil
	ErrNilJob = errors.New("outbound: nil job")

	// ErrNilQueue 队列未配置
	ErrNilQueue = errors.New("outbound: queue cannot be nil")

	// ErrNilConfig 配置服务未配置
	ErrNilConfig = errors.New("outbound: config service cannot be nil")

	// ErrNilSender 发送客户端未配置
	ErrNilSender = errors.New("outbound: sender cannot be nil")

	// ErrNilStore 审计存储未配置
	ErrNilStore = errors.New("outbound: audit store cannot be nil")

	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("outbound: queue closed")

	// ErrEmptyBatch 提交的批次为空
	ErrEmptyBatch = errors.New("outbound: empty batch")

	// ErrEmptyPropertyID property-id 为空
	ErrEmptyPropertyID = errors.New("outbound: property id cannot be empty")

	// ErrMissingPayload 任务缺少与消息类型匹配的载荷
	ErrMissingPayload = errors.New("outbound: job payload missing for message type")

	// ErrNilScheduleFunc 调度回调未配置
	ErrNilScheduleFunc = errors.New("outbound: sync func cannot be nil")
)
