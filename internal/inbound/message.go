package inbound

import (
	"context"
	"time"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// Message 已通过鉴权与归类的入站消息，交给 PMS 侧处理器消化。
type Message struct {
	// MessageID 对端 wsa:MessageID；缺失时为网关补发的标识
	MessageID string

	// AuditID 关联的审计记录
	AuditID string

	// EchoToken 对端回显关联串
	EchoToken string

	PropertyID string
	HotelCode  string
	Type       xmsg.MessageType

	// Body 业务根元素的 XML 原文
	Body []byte

	// Reservation 预订消息的已解析 DTO；其余类型为 nil
	Reservation *xmsg.Reservation

	ReceivedAt time.Time
}

// Handler PMS 侧的入站消息处理器。
//
// 返回 nil 表示业务侧已接受，审计记录转 COMPLETED；
// 返回错误转 FAILED 并留错误明细，由对端按其策略重投。
type Handler interface {
	Handle(ctx context.Context, m *Message) error
}

// HandlerFunc 函数适配器。
type HandlerFunc func(ctx context.Context, m *Message) error

// Handle 实现 Handler。
func (f HandlerFunc) Handle(ctx context.Context, m *Message) error {
	return f(ctx, m)
}
