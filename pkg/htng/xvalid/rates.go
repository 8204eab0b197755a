package xvalid

import (
	"fmt"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// RateValidator 房价业务规则校验器。
//
// 规则：
//   - 每个价格段必须携带 1 人价与 2 人价（GuestAmounts 前两位）
//   - 金额非负
//   - 计划内货币一致
//   - 联动价的主计划必须存在于同批次或已知集合
type RateValidator struct {
	// knownPlans 历史已同步的计划代码（联动依赖可跨批次）
	knownPlans map[string]bool
}

// RateValidatorOption 校验器配置选项。
type RateValidatorOption func(*RateValidator)

// WithKnownPlans 注入历史已同步的计划代码集合。
func WithKnownPlans(codes ...string) RateValidatorOption {
	return func(v *RateValidator) {
		for _, c := range codes {
			v.knownPlans[c] = true
		}
	}
}

// NewRateValidator 创建房价校验器。
func NewRateValidator(opts ...RateValidatorOption) *RateValidator {
	v := &RateValidator{knownPlans: make(map[string]bool)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate 校验单个价格计划（不含联动依赖，见 ValidateBatch）。
func (v *RateValidator) Validate(plan *xmsg.RatePlan) error {
	if plan == nil {
		return xmsg.NewError(xmsg.KindBusinessLogic, "nil rate plan")
	}

	// 联动价可以不携带价格段（由主计划派生）
	if plan.IsLinked() && len(plan.Rates) == 0 {
		return nil
	}

	for i, r := range plan.Rates {
		if len(r.GuestAmounts) < 2 {
			return xmsg.NewError(xmsg.KindBusinessLogic, "first and second adult amounts are mandatory").
				WithFields(xmsg.FieldIssue{
					Field: fmt.Sprintf("rates[%d].guestAmounts", i),
					Rule:  "mandatory_1st_2nd_adult",
					Value: fmt.Sprintf("len=%d", len(r.GuestAmounts)),
				})
		}
		for j, amt := range r.GuestAmounts {
			if amt < 0 {
				return xmsg.NewError(xmsg.KindBusinessLogic, "rate amount must be non-negative").
					WithFields(xmsg.FieldIssue{
						Field: fmt.Sprintf("rates[%d].guestAmounts[%d]", i, j),
						Rule:  "amount_non_negative",
						Value: fmt.Sprintf("%.2f", amt),
					})
			}
		}
		if r.RoomTypeCode == "" {
			return xmsg.NewError(xmsg.KindBusinessLogic, "rate carries empty room type code").
				WithFields(xmsg.FieldIssue{
					Field: fmt.Sprintf("rates[%d].roomTypeCode", i),
					Rule:  "room_type_required",
					Value: "",
				})
		}
	}

	return nil
}

// ValidateBatch 校验批次：单计划规则 + 联动主计划存在性。
//
// 主计划可位于同批次任意位置，或通过 WithKnownPlans 注入的历史集合。
func (v *RateValidator) ValidateBatch(plans []*xmsg.RatePlan) error {
	inBatch := make(map[string]bool, len(plans))
	for _, p := range plans {
		if p != nil {
			inBatch[p.PlanCode] = true
		}
	}

	for i, p := range plans {
		if err := v.Validate(p); err != nil {
			return fmt.Errorf("plan %d (%s): %w", i, p.PlanCode, err)
		}
		if p.IsLinked() && !inBatch[p.LinkedTo] && !v.knownPlans[p.LinkedTo] {
			return xmsg.NewError(xmsg.KindBusinessLogic, "linked rate master not found").
				WithFields(xmsg.FieldIssue{
					Field: fmt.Sprintf("plans[%d].linkedTo", i),
					Rule:  "linked_master_exists",
					Value: p.LinkedTo,
				})
		}
	}

	// 货币一致性：同批次内同一计划族共用货币
	currencies := make(map[string]string)
	for i, p := range plans {
		family := p.PlanCode
		if p.IsLinked() {
			family = p.LinkedTo
		}
		if prev, ok := currencies[family]; ok && p.Currency != "" && prev != p.Currency {
			return xmsg.NewError(xmsg.KindBusinessLogic, "inconsistent currency within linked rate family").
				WithFields(xmsg.FieldIssue{
					Field: fmt.Sprintf("plans[%d].currency", i),
					Rule:  "currency_consistency",
					Value: fmt.Sprintf("%s != %s", p.Currency, prev),
				})
		}
		if p.Currency != "" {
			if _, ok := currencies[family]; !ok {
				currencies[family] = p.Currency
			}
		}
	}

	return nil
}
