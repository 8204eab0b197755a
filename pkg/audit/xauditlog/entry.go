package xauditlog

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// Status 审计记录状态。
type Status string

const (
	// StatusPending 已创建待派发
	StatusPending Status = "PENDING"

	// StatusProcessing 派发中（含传输）
	StatusProcessing Status = "PROCESSING"

	// StatusCompleted 成功（终态）
	StatusCompleted Status = "COMPLETED"

	// StatusFailed 失败，预算内可再调度（终态，可被补偿任务重新打开）
	StatusFailed Status = "FAILED"

	// StatusFailedPermanent 不可重试失败（终态）
	StatusFailedPermanent Status = "FAILED_PERMANENT"

	// StatusRetryPending 等待下一次重试
	StatusRetryPending Status = "RETRY_PENDING"

	// StatusPartial 批次部分成功
	StatusPartial Status = "PARTIAL"

	// StatusCancelled 已取消（终态）
	StatusCancelled Status = "CANCELLED"

	// StatusOnHold 人工挂起
	StatusOnHold Status = "ON_HOLD"
)

// Terminal 判断是否为终态。
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusFailedPermanent, StatusCancelled:
		return true
	default:
		return false
	}
}

// transitions 合法状态流转表。
var transitions = map[Status][]Status{
	StatusPending:      {StatusProcessing, StatusCancelled, StatusOnHold},
	StatusOnHold:       {StatusPending, StatusCancelled},
	StatusProcessing:   {StatusCompleted, StatusFailed, StatusFailedPermanent, StatusRetryPending, StatusPartial, StatusCancelled},
	StatusRetryPending: {StatusProcessing, StatusCancelled, StatusFailedPermanent},
	StatusPartial:      {StatusRetryPending, StatusCompleted},
}

// CanTransition 判断 from → to 是否为合法流转。
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Entry 单条消息的审计记录。
type Entry struct {
	ID          string           `bson:"_id"`
	MessageID   string           `bson:"message_id"`
	JobID       string           `bson:"job_id,omitempty"`
	Direction   xmsg.Direction   `bson:"direction"`
	MessageType xmsg.MessageType `bson:"message_type"`
	PropertyID  string           `bson:"property_id"`
	HotelCode   string           `bson:"hotel_code"`

	// RequestXML/ResponseXML 原始报文；超限时为截断内容，
	// 对应的 BlobRef 保留完整内容摘要
	RequestXML      string `bson:"request_xml,omitempty"`
	ResponseXML     string `bson:"response_xml,omitempty"`
	RequestBlobRef  string `bson:"request_blob_ref,omitempty"`
	ResponseBlobRef string `bson:"response_blob_ref,omitempty"`

	Status      Status     `bson:"status"`
	StartedAt   time.Time  `bson:"started_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	DurationMs  int64      `bson:"duration_ms,omitempty"`

	RetryCount       int    `bson:"retry_count"`
	LastErrorKind    string `bson:"last_error_kind,omitempty"`
	LastErrorMessage string `bson:"last_error_message,omitempty"`

	// XMLSHA256 请求报文摘要；与 ConfirmationNumber 组合唯一，
	// 入站幂等回放按此查找
	XMLSHA256          string `bson:"xml_sha256"`
	ConfirmationNumber string `bson:"confirmation_number,omitempty"`

	// ParentMessageID 消息线程（修改/取消指向原始预订）
	ParentMessageID string `bson:"parent_message_id,omitempty"`

	// BatchID 同一批拆分消息共享
	BatchID string `bson:"batch_id,omitempty"`

	// Version 乐观并发版本号，Update 每次递增
	Version int64 `bson:"version"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewEntry 创建 PENDING 状态的审计记录。
// ID 取 message-id，XMLSHA256 由请求报文计算。
func NewEntry(messageID string, direction xmsg.Direction, messageType xmsg.MessageType, propertyID, hotelCode string, requestXML []byte) *Entry {
	now := time.Now().UTC()
	return &Entry{
		ID:          messageID,
		MessageID:   messageID,
		Direction:   direction,
		MessageType: messageType,
		PropertyID:  propertyID,
		HotelCode:   hotelCode,
		RequestXML:  string(requestXML),
		Status:      StatusPending,
		StartedAt:   now,
		XMLSHA256:   PayloadHash(requestXML),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// PayloadHash 计算报文的 SHA-256 摘要（小写十六进制）。
func PayloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Transition 原地流转状态；非法流转返回 ErrInvalidTransition。
// 进入 PROCESSING 重置 StartedAt，耗时只计本次派发，不含排队与重试等待；
// 进入终态时写入 CompletedAt 与 DurationMs。
func (e *Entry) Transition(to Status) error {
	if !CanTransition(e.Status, to) {
		return ErrInvalidTransition
	}
	e.Status = to
	now := time.Now().UTC()
	if to == StatusProcessing {
		e.StartedAt = now
	}
	if to.Terminal() {
		e.CompletedAt = &now
		e.DurationMs = now.Sub(e.StartedAt).Milliseconds()
	}
	return nil
}

// RecordError 记录最近一次错误。
//
// 不触碰 RetryCount：重试计数只在真正安排了一次重试时由调度侧递增，
// 首次尝试即终态失败的记录保持 retry_count=0。
func (e *Entry) RecordError(err *xmsg.Error) {
	if err == nil {
		return
	}
	e.LastErrorKind = string(err.Kind)
	e.LastErrorMessage = err.Message
}
