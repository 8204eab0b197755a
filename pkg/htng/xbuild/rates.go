package xbuild

import (
	"errors"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
	"github.com/omeyang/tclink/pkg/htng/xvalid"
)

// ErrUnknownRateOperation 未识别的房价操作
var ErrUnknownRateOperation = errors.New("xbuild: unknown rate operation")

// RateInput 房价构建输入。
type RateInput struct {
	// HotelCode 酒店代码
	HotelCode string

	// EchoToken 对端回显的关联串
	EchoToken string

	// Operation 房价操作类型
	Operation xmsg.RateOperation

	// Plans 价格计划批次（保持输入顺序）
	Plans []*xmsg.RatePlan

	// ExternalHandlesLinked true 表示对端自行计算联动价：
	// 仅发送主计划，联动计划被过滤。false 表示本地展开联动价。
	ExternalHandlesLinked bool
}

// RateBuilder 房价消息构建器（OTA_HotelRateNotifRQ）。
type RateBuilder struct {
	validator *xvalid.RateValidator
	now       clock
}

// RateOption 构建器配置选项。
type RateOption func(*RateBuilder)

// WithRateValidator 替换校验器（注入历史计划集合时使用）。
func WithRateValidator(v *xvalid.RateValidator) RateOption {
	return func(b *RateBuilder) {
		if v != nil {
			b.validator = v
		}
	}
}

// WithRateClock 替换时钟（测试用）。
func WithRateClock(now func() time.Time) RateOption {
	return func(b *RateBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewRateBuilder 创建房价构建器。
func NewRateBuilder(opts ...RateOption) *RateBuilder {
	b := &RateBuilder{
		validator: xvalid.NewRateValidator(),
		now:       defaultClock,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// rateNotifTypes 操作 → 根属性 RateNotifType 映射。
var rateNotifTypes = map[xmsg.RateOperation]string{
	xmsg.RateOpUpdate:          "Delta",
	xmsg.RateOpCreation:        "New",
	xmsg.RateOpFullSync:        "Overlay",
	xmsg.RateOpDeltaUpdate:     "Delta",
	xmsg.RateOpInactive:        "Remove",
	xmsg.RateOpRemoveRoomTypes: "Remove",
}

// Build 构建房价 Body。
//
// 联动价处理在校验之后：过滤模式剔除联动计划；展开模式用主计划派生
// 完整价格段，产出的计划同样满足 1 人/2 人价必填。
func (b *RateBuilder) Build(in RateInput) (*etree.Element, error) {
	if err := requireHotelCode(in.HotelCode); err != nil {
		return nil, err
	}
	if len(in.Plans) == 0 {
		return nil, ErrEmptyBatch
	}
	notifType, ok := rateNotifTypes[in.Operation]
	if !ok {
		return nil, ErrUnknownRateOperation
	}
	if err := b.validator.ValidateBatch(in.Plans); err != nil {
		return nil, err
	}

	plans, err := b.resolveLinked(in.Plans, in.ExternalHandlesLinked)
	if err != nil {
		return nil, err
	}

	root, err := newRoot(xmsg.TypeRates, in.EchoToken, b.now)
	if err != nil {
		return nil, err
	}
	root.CreateAttr("RateNotifType", notifType)

	messages := root.CreateElement("RateAmountMessages")
	messages.CreateAttr("HotelCode", in.HotelCode)

	for _, plan := range plans {
		b.appendPlan(messages, plan, in.Operation)
	}

	return root, nil
}

// resolveLinked 按配置处理联动价：过滤或展开。
//
// 展开依赖主计划的完整价格段：主计划只存在于历史集合时（跨批次引用）
// 无段可派生，直接拒绝，避免发出无金额的 RateAmountMessage。
func (b *RateBuilder) resolveLinked(plans []*xmsg.RatePlan, externalHandles bool) ([]*xmsg.RatePlan, error) {
	byCode := make(map[string]*xmsg.RatePlan, len(plans))
	for _, p := range plans {
		byCode[p.PlanCode] = p
	}

	out := make([]*xmsg.RatePlan, 0, len(plans))
	for _, p := range plans {
		if !p.IsLinked() {
			out = append(out, p)
			continue
		}
		if externalHandles {
			// 对端计算联动价，跳过
			continue
		}
		master := byCode[p.LinkedTo]
		if master == nil {
			return nil, xmsg.NewError(xmsg.KindBusinessLogic, "linked rate master not in batch, cannot expand locally").
				WithFields(xmsg.FieldIssue{
					Field: "plans." + p.PlanCode + ".linkedTo",
					Rule:  "linked_master_in_batch",
					Value: p.LinkedTo,
				})
		}
		out = append(out, p.Derive(master))
	}
	return out, nil
}

// appendPlan 追加单个计划的 RateAmountMessage 序列。
func (b *RateBuilder) appendPlan(messages *etree.Element, plan *xmsg.RatePlan, op xmsg.RateOperation) {
	if len(plan.Rates) == 0 {
		// INACTIVE/REMOVE 允许无价格段：仅发送定位块与状态
		msg := messages.CreateElement("RateAmountMessage")
		msg.CreateAttr("RatePlanCode", plan.PlanCode)
		if op == xmsg.RateOpInactive || op == xmsg.RateOpRemoveRoomTypes {
			msg.CreateAttr("Status", "Remove")
		}
		return
	}

	for _, r := range plan.Rates {
		msg := messages.CreateElement("RateAmountMessage")
		msg.CreateAttr("RatePlanCode", plan.PlanCode)
		if op == xmsg.RateOpInactive || op == xmsg.RateOpRemoveRoomTypes {
			msg.CreateAttr("Status", "Remove")
		}

		statusAppControl(msg, r.StartDate, r.EndDate, r.RoomTypeCode, plan.PlanCode)

		rates := msg.CreateElement("Rates")
		rate := rates.CreateElement("Rate")
		rate.CreateAttr("CurrencyCode", plan.Currency)
		if r.MarketCode != "" {
			rate.CreateAttr("MarketCode", r.MarketCode)
		}
		if r.MaxGuests > 0 {
			rate.CreateAttr("MaxGuestApplicable", strconv.Itoa(r.MaxGuests))
		}
		if r.MealPlan != "" {
			rate.CreateAttr("MealPlanCode", r.MealPlan)
		}
		rate.CreateAttr("CommissionableInd", strconv.FormatBool(r.Commissionable))

		amounts := rate.CreateElement("BaseByGuestAmts")
		for i, amt := range r.GuestAmounts {
			a := amounts.CreateElement("BaseByGuestAmt")
			a.CreateAttr("NumberOfGuests", strconv.Itoa(i+1))
			a.CreateAttr("AmountAfterTax", formatAmount(amt))
		}
	}
}
