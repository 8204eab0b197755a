package xparse

import (
	"bytes"

	"github.com/antchfx/xmlquery"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// InventoryMessage 已解析的库存消息。
type InventoryMessage struct {
	// HotelCode 酒店代码
	HotelCode string

	// EchoToken 回显关联串
	EchoToken string

	// Overlay 是否整段替换
	Overlay bool

	// Items 库存条目（保持文档顺序）
	Items []*xmsg.InventoryItem
}

// InventoryParser 库存消息解析器（OTA_HotelInvCountNotifRQ）。
type InventoryParser struct{}

// NewInventoryParser 创建库存解析器。
func NewInventoryParser() *InventoryParser {
	return &InventoryParser{}
}

// Parse 解析库存消息字节流（裸 Body）。
func (p *InventoryParser) Parse(data []byte) (*InventoryMessage, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, xmsg.Wrap(xmsg.KindSoapXML, "malformed inventory body", err)
	}
	return p.ParseNode(firstElement(doc))
}

// ParseNode 解析已定位的库存根元素。
func (p *InventoryParser) ParseNode(root *xmlquery.Node) (*InventoryMessage, error) {
	if root == nil || root.Data != "OTA_HotelInvCountNotifRQ" {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "not an inventory message")
	}

	inventories := childElement(root, "Inventories")
	if inventories == nil {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "inventory message carries no Inventories")
	}

	msg := &InventoryMessage{
		HotelCode: attrValue(inventories, "HotelCode"),
		EchoToken: attrValue(root, "EchoToken"),
		Overlay:   attrValue(root, "OverlayInd") == "true",
	}

	for _, inv := range childElements(inventories, "Inventory") {
		sac := childElement(inv, "StatusApplicationControl")
		if sac == nil {
			return nil, xmsg.NewError(xmsg.KindSoapXML, "inventory entry misses StatusApplicationControl")
		}
		start, err := parseDate(sac, "Start")
		if err != nil {
			return nil, err
		}
		end, err := parseDate(sac, "End")
		if err != nil {
			return nil, err
		}

		counts := make(map[xmsg.CountType]int)
		if invCounts := childElement(inv, "InvCounts"); invCounts != nil {
			for _, c := range childElements(invCounts, "InvCount") {
				ct, err := parseInt(c, "CountType")
				if err != nil {
					return nil, err
				}
				n, err := parseInt(c, "Count")
				if err != nil {
					return nil, err
				}
				counts[xmsg.CountType(ct)] = n
			}
		}

		item, err := xmsg.NewInventoryItem(msg.HotelCode, attrValue(sac, "InvTypeCode"), start, end, counts)
		if err != nil {
			return nil, xmsg.Wrap(xmsg.KindDataMapping, "invalid inventory entry", err).WithHotel(msg.HotelCode)
		}
		msg.Items = append(msg.Items, item)
	}

	return msg, nil
}
