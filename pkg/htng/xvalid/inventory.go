package xvalid

import (
	"fmt"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// InventoryValidator 库存业务规则校验器。
//
// 规则：
//   - 计算法：必须携带 {确定已售, 暂定已售, 维修房}，且不得携带可售房量(2)
//   - 直接法：仅携带可售房量(2)，不得携带 {4,5,6}
//   - 物理房量 ≥ 已售总量（确定+暂定+维修−超售）
type InventoryValidator struct{}

// NewInventoryValidator 创建库存校验器。
func NewInventoryValidator() *InventoryValidator {
	return &InventoryValidator{}
}

// Validate 校验单个库存条目。通过返回 nil，否则返回 KindBusinessLogic 错误。
func (v *InventoryValidator) Validate(item *xmsg.InventoryItem) error {
	if item == nil {
		return xmsg.NewError(xmsg.KindBusinessLogic, "nil inventory item")
	}
	if len(item.Counts) == 0 {
		return xmsg.NewError(xmsg.KindBusinessLogic, "inventory item carries no counts").
			WithHotel(item.HotelCode)
	}

	hasDirect := item.HasCount(xmsg.CountAvailable)
	var calculated []xmsg.CountType
	for _, ct := range xmsg.CalculatedCountTypes() {
		if item.HasCount(ct) {
			calculated = append(calculated, ct)
		}
	}

	// 互斥性：直接法与计算法不可混用
	if hasDirect && len(calculated) > 0 {
		return xmsg.NewError(xmsg.KindBusinessLogic, "direct and calculated count types are mutually exclusive").
			WithHotel(item.HotelCode).
			WithFields(xmsg.FieldIssue{
				Field: "counts",
				Rule:  "count_type_exclusivity",
				Value: fmt.Sprintf("available present with %v", calculated),
			})
	}

	// 计算法必须三项齐全
	if !hasDirect && len(calculated) > 0 && len(calculated) != len(xmsg.CalculatedCountTypes()) {
		return xmsg.NewError(xmsg.KindBusinessLogic, "calculated method requires definite-sold, tentative-sold and out-of-order counts").
			WithHotel(item.HotelCode).
			WithFields(xmsg.FieldIssue{
				Field: "counts",
				Rule:  "calculated_requires_456",
				Value: fmt.Sprintf("%v", calculated),
			})
	}

	// 物理房量下界
	if item.HasCount(xmsg.CountPhysical) {
		if physical := item.Counts[xmsg.CountPhysical]; physical < item.SoldTotal() {
			return xmsg.NewError(xmsg.KindBusinessLogic, "physical count below sold total").
				WithHotel(item.HotelCode).
				WithFields(xmsg.FieldIssue{
					Field: "counts[1]",
					Rule:  "physical_ge_sold",
					Value: fmt.Sprintf("physical=%d sold=%d", physical, item.SoldTotal()),
				})
		}
	}

	return nil
}

// ValidateBatch 校验批次，返回首个违例。
func (v *InventoryValidator) ValidateBatch(items []*xmsg.InventoryItem) error {
	for i, item := range items {
		if err := v.Validate(item); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}
