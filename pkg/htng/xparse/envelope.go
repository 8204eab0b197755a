package xparse

import (
	"bytes"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/omeyang/tclink/pkg/htng/xmlns"
	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// SoapVersion 信封版本。
type SoapVersion string

const (
	// Soap11 SOAP 1.1
	Soap11 SoapVersion = "1.1"

	// Soap12 SOAP 1.2
	Soap12 SoapVersion = "1.2"
)

// 信封各段的定位表达式。入站命名空间前缀不可控，统一按 local-name 匹配，
// 命名空间合法性单独校验。
var (
	envelopeExpr = xpath.MustCompile("/*[local-name()='Envelope']")
	headerExpr   = xpath.MustCompile("/*[local-name()='Envelope']/*[local-name()='Header']")
	bodyExpr     = xpath.MustCompile("/*[local-name()='Envelope']/*[local-name()='Body']")
	tokenExpr    = xpath.MustCompile(".//*[local-name()='UsernameToken']")
)

// Credentials WSSE UsernameToken 凭据。
type Credentials struct {
	// Username 用户名
	Username string

	// Password 口令（PasswordText 明文）
	Password string

	// Nonce base64 随机值
	Nonce string

	// Created 创建时间戳原文
	Created string
}

// Header 已解析的信封头。
type Header struct {
	// MessageID wsa:MessageID
	MessageID string

	// To wsa:To
	To string

	// Action wsa:Action
	Action string

	// RelatesTo wsa:RelatesTo
	RelatesTo string

	// HotelCode wsa:From/ReferenceProperties/htn:HotelCode
	HotelCode string

	// Credentials WSSE 凭据，缺失时为 nil
	Credentials *Credentials
}

// Fault 已解析的 SOAP Fault（1.1 与 1.2 统一形态）。
type Fault struct {
	// Code faultcode 或 Code/Value
	Code string

	// Reason faultstring 或 Reason/Text
	Reason string

	// Detail detail 文本
	Detail string
}

// Envelope 已解析的信封。
type Envelope struct {
	// Version 信封版本
	Version SoapVersion

	// Header 信封头（Header 元素缺失时为零值）
	Header Header

	// Body Body 下的业务根元素；Fault 信封时为 nil
	Body *xmlquery.Node

	// Fault SOAP Fault，非 Fault 信封时为 nil
	Fault *Fault
}

// IsFault 判断是否为 Fault 信封。
func (e *Envelope) IsFault() bool { return e.Fault != nil }

// MessageType 按 Body 根元素归类消息类型。
// Fault 信封或根元素命名空间非 OTA 时返回 TypeUnknown。
func (e *Envelope) MessageType() xmsg.MessageType {
	if e.Body == nil {
		return xmsg.TypeUnknown
	}
	if e.Body.NamespaceURI != "" && e.Body.NamespaceURI != xmlns.OTA {
		return xmsg.TypeUnknown
	}
	return xmlns.TypeForRoot(e.Body.Data)
}

// BodyXML 返回业务根元素的 XML 原文；Fault 信封返回 nil。
func (e *Envelope) BodyXML() []byte {
	if e.Body == nil {
		return nil
	}
	return []byte(e.Body.OutputXML(true))
}

// EnvelopeParser SOAP 信封解析器。无状态，可并发使用。
type EnvelopeParser struct{}

// NewEnvelopeParser 创建信封解析器。
func NewEnvelopeParser() *EnvelopeParser {
	return &EnvelopeParser{}
}

// Parse 解析完整信封字节流。
//
// 接受 SOAP 1.1 与 1.2 两种命名空间；其余命名空间的 Envelope 拒绝。
func (p *EnvelopeParser) Parse(data []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "empty envelope")
	}

	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, xmsg.Wrap(xmsg.KindSoapXML, "malformed envelope", err)
	}

	envNode := xmlquery.QuerySelector(doc, envelopeExpr)
	if envNode == nil {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "document root is not a soap envelope")
	}
	if !xmlns.IsSoapEnvelope(envNode.NamespaceURI) {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "unsupported envelope namespace").
			WithFields(xmsg.FieldIssue{
				Field: "Envelope",
				Rule:  "soap_namespace",
				Value: envNode.NamespaceURI,
			})
	}

	env := &Envelope{Version: Soap12}
	if envNode.NamespaceURI == xmlns.SoapEnv11 {
		env.Version = Soap11
	}

	if headerNode := xmlquery.QuerySelector(doc, headerExpr); headerNode != nil {
		env.Header = parseHeader(headerNode)
	}

	bodyNode := xmlquery.QuerySelector(doc, bodyExpr)
	if bodyNode == nil {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "envelope carries no body")
	}

	root := firstElement(bodyNode)
	if root == nil {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "envelope body is empty")
	}

	if root.Data == "Fault" && xmlns.IsSoapEnvelope(root.NamespaceURI) {
		env.Fault = parseFault(root, env.Version)
		return env, nil
	}

	env.Body = root
	return env, nil
}

// parseHeader 抽取 WS-Addressing 头与 WSSE 凭据。
func parseHeader(n *xmlquery.Node) Header {
	h := Header{
		MessageID: childText(n, "MessageID"),
		To:        childText(n, "To"),
		Action:    childText(n, "Action"),
		RelatesTo: childText(n, "RelatesTo"),
	}

	if from := childElement(n, "From"); from != nil {
		if props := childElement(from, "ReferenceProperties"); props != nil {
			h.HotelCode = childText(props, "HotelCode")
		}
	}

	if token := xmlquery.QuerySelector(n, tokenExpr); token != nil {
		h.Credentials = &Credentials{
			Username: childText(token, "Username"),
			Password: childText(token, "Password"),
			Nonce:    childText(token, "Nonce"),
			Created:  childText(token, "Created"),
		}
	}

	return h
}

// parseFault 按信封版本还原 Fault。
func parseFault(n *xmlquery.Node, version SoapVersion) *Fault {
	f := &Fault{}
	if version == Soap11 {
		f.Code = childText(n, "faultcode")
		f.Reason = childText(n, "faultstring")
		f.Detail = strings.TrimSpace(innerText(childElement(n, "detail")))
		return f
	}

	if code := childElement(n, "Code"); code != nil {
		f.Code = childText(code, "Value")
	}
	if reason := childElement(n, "Reason"); reason != nil {
		f.Reason = childText(reason, "Text")
	}
	f.Detail = strings.TrimSpace(innerText(childElement(n, "Detail")))
	return f
}

// AsError 把 Fault 归类为领域错误。
//
// 鉴权类 Fault 识别 reason 前缀 "Authentication Error"；
// Sender/Client 侧代码归为校验错误，其余归为连接错误（可重试）。
func (f *Fault) AsError() *xmsg.Error {
	local := f.Code
	if i := strings.LastIndexByte(local, ':'); i >= 0 {
		local = local[i+1:]
	}

	switch {
	case strings.HasPrefix(f.Reason, "Authentication Error"):
		return xmsg.NewError(xmsg.KindAuthentication, f.Reason)
	case local == "Client" || local == "Sender":
		return xmsg.NewError(xmsg.KindValidation, f.Reason)
	default:
		return xmsg.NewError(xmsg.KindConnection, f.Reason)
	}
}
