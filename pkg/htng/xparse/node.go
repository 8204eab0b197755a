package xparse

import (
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// 规范化日期格式，与 xbuild 对应。
const dateFormat = "2006-01-02"

// firstElement 返回首个元素子节点。
func firstElement(n *xmlquery.Node) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

// childElement 按 local name 查找直接子元素。
func childElement(n *xmlquery.Node, local string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == local {
			return c
		}
	}
	return nil
}

// childElements 按 local name 收集全部直接子元素。
func childElements(n *xmlquery.Node, local string) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == local {
			out = append(out, c)
		}
	}
	return out
}

// childText 直接子元素文本，缺失返回空串。
func childText(n *xmlquery.Node, local string) string {
	return strings.TrimSpace(innerText(childElement(n, local)))
}

// innerText 节点文本，nil 安全。
func innerText(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return n.InnerText()
}

// attrValue 属性值，缺失返回空串。
func attrValue(n *xmlquery.Node, name string) string {
	if n == nil {
		return ""
	}
	return n.SelectAttr(name)
}

// parseDate 解析 YYYY-MM-DD 属性。
func parseDate(n *xmlquery.Node, attr string) (time.Time, error) {
	raw := attrValue(n, attr)
	t, err := time.Parse(dateFormat, raw)
	if err != nil {
		return time.Time{}, xmsg.NewError(xmsg.KindDataMapping, "invalid date attribute").
			WithFields(xmsg.FieldIssue{Field: n.Data + "/@" + attr, Rule: "date_format", Value: raw})
	}
	return t, nil
}

// parseInt 解析整数属性。
func parseInt(n *xmlquery.Node, attr string) (int, error) {
	raw := attrValue(n, attr)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, xmsg.NewError(xmsg.KindDataMapping, "invalid integer attribute").
			WithFields(xmsg.FieldIssue{Field: n.Data + "/@" + attr, Rule: "integer_format", Value: raw})
	}
	return v, nil
}

// parseAmount 解析金额属性。
func parseAmount(n *xmlquery.Node, attr string) (float64, error) {
	raw := attrValue(n, attr)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, xmsg.NewError(xmsg.KindDataMapping, "invalid amount attribute").
			WithFields(xmsg.FieldIssue{Field: n.Data + "/@" + attr, Rule: "amount_format", Value: raw})
	}
	return v, nil
}
