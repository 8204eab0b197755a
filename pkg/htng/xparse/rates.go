package xparse

import (
	"bytes"

	"github.com/antchfx/xmlquery"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// RateMessage 已解析的房价消息。
type RateMessage struct {
	// HotelCode 酒店代码
	HotelCode string

	// EchoToken 回显关联串
	EchoToken string

	// NotifType 根属性 RateNotifType 原值（New/Delta/Overlay/Remove）
	NotifType string

	// Plans 价格计划（按首次出现顺序，同代码的价格段合并）
	Plans []*xmsg.RatePlan
}

// RateParser 房价消息解析器（OTA_HotelRateNotifRQ）。
type RateParser struct{}

// NewRateParser 创建房价解析器。
func NewRateParser() *RateParser {
	return &RateParser{}
}

// Parse 解析房价消息字节流（裸 Body）。
func (p *RateParser) Parse(data []byte) (*RateMessage, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, xmsg.Wrap(xmsg.KindSoapXML, "malformed rate body", err)
	}
	return p.ParseNode(firstElement(doc))
}

// ParseNode 解析已定位的房价根元素。
func (p *RateParser) ParseNode(root *xmlquery.Node) (*RateMessage, error) {
	if root == nil || root.Data != "OTA_HotelRateNotifRQ" {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "not a rate message")
	}

	messages := childElement(root, "RateAmountMessages")
	if messages == nil {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "rate message carries no RateAmountMessages")
	}

	msg := &RateMessage{
		HotelCode: attrValue(messages, "HotelCode"),
		EchoToken: attrValue(root, "EchoToken"),
		NotifType: attrValue(root, "RateNotifType"),
	}

	// 同一 RatePlanCode 的多条 RateAmountMessage 合并为一个计划
	byCode := make(map[string]*xmsg.RatePlan)
	for _, m := range childElements(messages, "RateAmountMessage") {
		code := attrValue(m, "RatePlanCode")
		if code == "" {
			return nil, xmsg.NewError(xmsg.KindSoapXML, "rate amount message misses RatePlanCode")
		}

		plan, ok := byCode[code]
		if !ok {
			plan = &xmsg.RatePlan{PlanCode: code}
			byCode[code] = plan
			msg.Plans = append(msg.Plans, plan)
		}

		sac := childElement(m, "StatusApplicationControl")
		rates := childElement(m, "Rates")
		if sac == nil || rates == nil {
			// Remove 消息允许仅携带定位与状态
			continue
		}
		start, err := parseDate(sac, "Start")
		if err != nil {
			return nil, err
		}
		end, err := parseDate(sac, "End")
		if err != nil {
			return nil, err
		}

		for _, r := range childElements(rates, "Rate") {
			if cur := attrValue(r, "CurrencyCode"); cur != "" {
				plan.Currency = cur
			}

			rr := xmsg.RoomRate{
				RoomTypeCode:   attrValue(sac, "InvTypeCode"),
				StartDate:      start,
				EndDate:        end,
				Commissionable: attrValue(r, "CommissionableInd") == "true",
				MarketCode:     attrValue(r, "MarketCode"),
				MealPlan:       attrValue(r, "MealPlanCode"),
			}
			if raw := attrValue(r, "MaxGuestApplicable"); raw != "" {
				maxGuests, err := parseInt(r, "MaxGuestApplicable")
				if err != nil {
					return nil, err
				}
				rr.MaxGuests = maxGuests
			}

			if amounts := childElement(r, "BaseByGuestAmts"); amounts != nil {
				for _, a := range childElements(amounts, "BaseByGuestAmt") {
					guests, err := parseInt(a, "NumberOfGuests")
					if err != nil {
						return nil, err
					}
					amt, err := parseAmount(a, "AmountAfterTax")
					if err != nil {
						return nil, err
					}
					for len(rr.GuestAmounts) < guests {
						rr.GuestAmounts = append(rr.GuestAmounts, 0)
					}
					rr.GuestAmounts[guests-1] = amt
				}
			}

			plan.Rates = append(plan.Rates, rr)
		}
	}

	return msg, nil
}
