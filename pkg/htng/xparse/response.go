package xparse

import (
	"bytes"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// Condition 应答中的单条 Warning/Error 记录。
type Condition struct {
	// Type OTA EWT 代码（Error Warning Type）
	Type string

	// Code OTA ERR 代码
	Code string

	// ShortText 摘要
	ShortText string

	// RecordID 出错记录定位（可为空）
	RecordID string

	// Message 正文
	Message string
}

// Response 已解析的 OTA 应答（NotifRS 族）。
type Response struct {
	// Root 应答根元素名
	Root string

	// EchoToken 回显关联串
	EchoToken string

	// Success 是否携带 Success 元素
	Success bool

	// Warnings 警告列表（不影响成功判定）
	Warnings []Condition

	// Errors 错误列表
	Errors []Condition
}

// Ok 判定应答是否成功：携带 Success 且无 Error。
func (r *Response) Ok() bool {
	return r.Success && len(r.Errors) == 0
}

// Err 失败应答归类为领域错误；成功返回 nil。
//
// EWT 4（鉴权）归为认证错误；其余归为对端业务错误。多条错误时
// 首条决定类别，全部进入 Fields。
func (r *Response) Err() error {
	if r.Ok() {
		return nil
	}
	if len(r.Errors) == 0 {
		return xmsg.NewError(xmsg.KindBusinessLogic, "response carries neither success nor errors")
	}

	kind := xmsg.KindBusinessLogic
	if r.Errors[0].Type == "4" {
		kind = xmsg.KindAuthentication
	}

	msg := r.Errors[0].ShortText
	if msg == "" {
		msg = r.Errors[0].Message
	}
	if msg == "" {
		msg = "remote rejected message"
	}

	issues := make([]xmsg.FieldIssue, 0, len(r.Errors))
	for _, e := range r.Errors {
		issues = append(issues, xmsg.FieldIssue{
			Field: e.RecordID,
			Rule:  "remote_error_" + e.Code,
			Value: e.ShortText,
		})
	}
	return xmsg.NewError(kind, msg).WithFields(issues...)
}

// ResponseParser OTA 应答解析器。无状态，可并发使用。
type ResponseParser struct{}

// NewResponseParser 创建应答解析器。
func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// Parse 解析应答字节流（裸 Body，不含信封）。
func (p *ResponseParser) Parse(data []byte) (*Response, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, xmsg.Wrap(xmsg.KindSoapXML, "malformed response body", err)
	}
	root := firstElement(doc)
	if root == nil {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "empty response body")
	}
	return p.ParseNode(root)
}

// ParseNode 解析已定位的应答根元素。
func (p *ResponseParser) ParseNode(root *xmlquery.Node) (*Response, error) {
	if root == nil {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "nil response root")
	}
	if !strings.HasSuffix(root.Data, "RS") {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "unexpected response root").
			WithFields(xmsg.FieldIssue{Field: root.Data, Rule: "response_root", Value: root.Data})
	}

	resp := &Response{
		Root:      root.Data,
		EchoToken: attrValue(root, "EchoToken"),
		Success:   childElement(root, "Success") != nil,
	}

	if warnings := childElement(root, "Warnings"); warnings != nil {
		for _, w := range childElements(warnings, "Warning") {
			resp.Warnings = append(resp.Warnings, parseCondition(w))
		}
	}
	if errs := childElement(root, "Errors"); errs != nil {
		for _, e := range childElements(errs, "Error") {
			resp.Errors = append(resp.Errors, parseCondition(e))
		}
	}

	return resp, nil
}

// parseCondition 还原单条 Warning/Error。
func parseCondition(n *xmlquery.Node) Condition {
	return Condition{
		Type:      attrValue(n, "Type"),
		Code:      attrValue(n, "Code"),
		ShortText: attrValue(n, "ShortText"),
		RecordID:  attrValue(n, "RecordID"),
		Message:   strings.TrimSpace(n.InnerText()),
	}
}
