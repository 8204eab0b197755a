package xmsg

import (
	"errors"
	"time"
)

var (
	// ErrEmptyMessageID message-id 为空
	ErrEmptyMessageID = errors.New("xmsg: empty message id")

	// ErrEmptyHotelCode 业务消息缺少 hotel-code
	ErrEmptyHotelCode = errors.New("xmsg: business message requires hotel code")

	// ErrInvalidDirection 方向取值非法
	ErrInvalidDirection = errors.New("xmsg: invalid direction")

	// ErrInvalidMessageType 消息类型取值非法
	ErrInvalidMessageType = errors.New("xmsg: invalid message type")
)

// MessageEnvelope 不可变消息信封
//
// 字段在构造后不应修改；需要派生时使用 WithCorrelation 等返回副本的方法。
type MessageEnvelope struct {
	// MessageID 全局唯一消息标识
	MessageID string

	// Direction 消息方向
	Direction Direction

	// Type 消息类型
	Type MessageType

	// HotelCode 酒店代码（业务消息必填）
	HotelCode string

	// PropertyID 本地物业标识
	PropertyID string

	// Payload XML 载荷
	Payload []byte

	// CorrelationID 父消息 message-id（可为空）
	CorrelationID string

	// CreatedAt 创建时间（UTC）
	CreatedAt time.Time
}

// NewEnvelope 创建消息信封并执行构造期校验。
//
// 不变量：message-id 非空；业务类型必须携带非空 hotel-code。
func NewEnvelope(messageID string, direction Direction, msgType MessageType, hotelCode, propertyID string, payload []byte) (*MessageEnvelope, error) {
	if messageID == "" {
		return nil, ErrEmptyMessageID
	}
	if direction != DirectionInbound && direction != DirectionOutbound {
		return nil, ErrInvalidDirection
	}
	if !msgType.Valid() {
		return nil, ErrInvalidMessageType
	}
	if msgType.IsBusiness() && hotelCode == "" {
		return nil, ErrEmptyHotelCode
	}

	return &MessageEnvelope{
		MessageID:  messageID,
		Direction:  direction,
		Type:       msgType,
		HotelCode:  hotelCode,
		PropertyID: propertyID,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// WithCorrelation 返回携带父消息关联的副本。
func (e *MessageEnvelope) WithCorrelation(parentID string) *MessageEnvelope {
	clone := *e
	clone.CorrelationID = parentID
	return &clone
}
