package xvalid

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/beevik/etree"

	"github.com/omeyang/tclink/pkg/htng/xmlns"
	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// Issue 校验问题记录
type Issue struct {
	// Line 行号（1 起）
	Line int

	// Column 列号（定位不到时为 0）
	Column int

	// Code 问题代码
	Code string

	// Message 问题描述
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%d:%d [%s] %s", i.Line, i.Column, i.Code, i.Message)
}

// 问题代码。
const (
	CodeNotWellFormed   = "XML_NOT_WELL_FORMED"
	CodeWrongRoot       = "SCHEMA_WRONG_ROOT"
	CodeWrongNamespace  = "SCHEMA_WRONG_NAMESPACE"
	CodeMissingAttr     = "SCHEMA_MISSING_ATTR"
	CodeMissingChild    = "SCHEMA_MISSING_CHILD"
	CodeEmptyDocument   = "XML_EMPTY_DOCUMENT"
)

// ErrValidationFailed XML 校验失败（详情见返回的 Issue 列表）
var ErrValidationFailed = errors.New("xvalid: xml validation failed")

// XMLValidator 两级 XML 校验器。
type XMLValidator struct{}

// NewXMLValidator 创建 XML 校验器。
func NewXMLValidator() *XMLValidator {
	return &XMLValidator{}
}

// WellFormed 流式检查 well-formedness，返回问题列表（空表示通过）。
func (v *XMLValidator) WellFormed(data []byte) []Issue {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Issue{{Line: 1, Code: CodeEmptyDocument, Message: "empty document"}}
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			issue := Issue{Line: 1, Code: CodeNotWellFormed, Message: err.Error()}
			var syntax *xml.SyntaxError
			if errors.As(err, &syntax) {
				issue.Line = syntax.Line
			}
			return []Issue{issue}
		}
	}
}

// ValidateStructure 按消息类型的 Schema 约束做结构校验。
// 输入应为 OTA Body（非 SOAP 信封）。
func (v *XMLValidator) ValidateStructure(data []byte, mt xmsg.MessageType) []Issue {
	schema, err := xmlns.SchemaFor(mt)
	if err != nil {
		return []Issue{{Line: 1, Code: CodeWrongRoot, Message: err.Error()}}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return []Issue{{Line: 1, Code: CodeNotWellFormed, Message: err.Error()}}
	}
	root := doc.Root()
	if root == nil {
		return []Issue{{Line: 1, Code: CodeEmptyDocument, Message: "no root element"}}
	}

	var issues []Issue
	if root.Tag != schema.Root {
		issues = append(issues, Issue{
			Line: 1, Code: CodeWrongRoot,
			Message: fmt.Sprintf("expected root %s, got %s", schema.Root, root.Tag),
		})
		// 根元素错误时后续约束无意义
		return issues
	}

	if ns := root.SelectAttrValue("xmlns", ""); ns != "" && ns != xmlns.OTA {
		issues = append(issues, Issue{
			Line: 1, Code: CodeWrongNamespace,
			Message: fmt.Sprintf("expected namespace %s, got %s", xmlns.OTA, ns),
		})
	}

	for _, attr := range schema.RequiredAttrs {
		if root.SelectAttr(attr) == nil {
			issues = append(issues, Issue{
				Line: 1, Code: CodeMissingAttr,
				Message: fmt.Sprintf("missing required attribute %s", attr),
			})
		}
	}

	for _, child := range schema.RequiredChildren {
		if root.SelectElement(child) == nil {
			issues = append(issues, Issue{
				Line: 1, Code: CodeMissingChild,
				Message: fmt.Sprintf("missing required child %s", child),
			})
		}
	}

	return issues
}

// Validate 两级校验：well-formedness 通过后再做结构校验。
// 返回 nil 表示通过；否则返回 KindValidation 分类错误，Issue 转入 Fields。
func (v *XMLValidator) Validate(data []byte, mt xmsg.MessageType) error {
	issues := v.WellFormed(data)
	if len(issues) == 0 {
		issues = v.ValidateStructure(data, mt)
	}
	if len(issues) == 0 {
		return nil
	}

	ge := xmsg.Wrap(xmsg.KindValidation, issues[0].Message, ErrValidationFailed)
	for _, i := range issues {
		ge = ge.WithFields(xmsg.FieldIssue{
			Field: fmt.Sprintf("line %d", i.Line),
			Rule:  i.Code,
			Value: i.Message,
		})
	}
	return ge
}
