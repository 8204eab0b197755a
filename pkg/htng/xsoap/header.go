package xsoap

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/beevik/etree"

	"github.com/omeyang/tclink/pkg/htng/xmlns"
)

var (
	// ErrMissingCredentials 缺少用户名或口令
	ErrMissingCredentials = errors.New("xsoap: missing username or password")

	// ErrMissingEndpoint 缺少目标地址
	ErrMissingEndpoint = errors.New("xsoap: missing endpoint")

	// ErrMissingMessageID 缺少 message-id
	ErrMissingMessageID = errors.New("xsoap: missing message id")
)

// DefaultAction HTNG 2011B 默认 wsa:Action。
const DefaultAction = "HTNG2011B_SubmitRequest"

// createdFormat WSSE Created 的 UTC 毫秒格式。
const createdFormat = "2006-01-02T15:04:05.000Z"

// nonceBytes nonce 随机字节数。
const nonceBytes = 16

// HeaderInput Header 构建输入。
type HeaderInput struct {
	// MessageID wsa:MessageID 值（由 xmsgid 生成）
	MessageID string

	// Endpoint wsa:To 目标地址
	Endpoint string

	// HotelCode wsa:From/ReferenceProperties/htn:HotelCode
	HotelCode string

	// Username WSSE 用户名
	Username string

	// Password WSSE 口令（PasswordText）
	Password string

	// Action wsa:Action，空值使用 DefaultAction
	Action string

	// RelatesTo wsa:RelatesTo（应答时携带请求 MessageID，可为空）
	RelatesTo string
}

// HeaderBuilder SOAP Header 构建器。
//
// 零值可用；nowFunc 与 nonceFunc 仅用于测试替换。
type HeaderBuilder struct {
	nowFunc   func() time.Time
	nonceFunc func() ([]byte, error)
}

// HeaderOption Header 构建器配置选项。
type HeaderOption func(*HeaderBuilder)

// WithClock 替换时钟（测试用）。
func WithClock(now func() time.Time) HeaderOption {
	return func(b *HeaderBuilder) {
		if now != nil {
			b.nowFunc = now
		}
	}
}

// WithNonceSource 替换 nonce 来源（测试用）。
func WithNonceSource(f func() ([]byte, error)) HeaderOption {
	return func(b *HeaderBuilder) {
		if f != nil {
			b.nonceFunc = f
		}
	}
}

// NewHeaderBuilder 创建 Header 构建器。
func NewHeaderBuilder(opts ...HeaderOption) *HeaderBuilder {
	b := &HeaderBuilder{
		nowFunc:   func() time.Time { return time.Now().UTC() },
		nonceFunc: randomNonce,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build 产出完整的 soap:Header 元素。
func (b *HeaderBuilder) Build(in HeaderInput) (*etree.Element, error) {
	if in.MessageID == "" {
		return nil, ErrMissingMessageID
	}
	if in.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if in.Username == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}
	action := in.Action
	if action == "" {
		action = DefaultAction
	}

	header := etree.NewElement("soap:Header")

	// WS-Addressing 块。子元素顺序固定，保证序列化确定性。
	msgID := header.CreateElement("wsa:MessageID")
	msgID.SetText(in.MessageID)

	to := header.CreateElement("wsa:To")
	to.SetText(in.Endpoint)

	from := header.CreateElement("wsa:From")
	refProps := from.CreateElement("wsa:ReferenceProperties")
	hotel := refProps.CreateElement("htn:HotelCode")
	hotel.SetText(in.HotelCode)

	replyTo := header.CreateElement("wsa:ReplyTo")
	replyAddr := replyTo.CreateElement("wsa:Address")
	replyAddr.SetText(xmlns.WSAAnonymous)

	if in.RelatesTo != "" {
		rel := header.CreateElement("wsa:RelatesTo")
		rel.SetText(in.RelatesTo)
	}

	act := header.CreateElement("wsa:Action")
	act.SetText(action)

	// WSSE Security 块
	nonce, err := b.nonceFunc()
	if err != nil {
		return nil, err
	}

	security := header.CreateElement("wsse:Security")
	security.CreateAttr("soap:mustUnderstand", "1")

	token := security.CreateElement("wsse:UsernameToken")

	username := token.CreateElement("wsse:Username")
	username.SetText(in.Username)

	password := token.CreateElement("wsse:Password")
	password.CreateAttr("Type", xmlns.PasswordText)
	password.SetText(in.Password)

	nonceEl := token.CreateElement("wsse:Nonce")
	nonceEl.CreateAttr("EncodingType", xmlns.Base64Binary)
	nonceEl.SetText(base64.StdEncoding.EncodeToString(nonce))

	created := token.CreateElement("wsu:Created")
	created.SetText(b.nowFunc().UTC().Format(createdFormat))

	return header, nil
}

// randomNonce 生成 16 字节加密随机 nonce。
func randomNonce() ([]byte, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
