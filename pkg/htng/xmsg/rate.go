package xmsg

import (
	"errors"
	"time"
)

var (
	// ErrEmptyPlanCode 价格计划代码为空
	ErrEmptyPlanCode = errors.New("xmsg: empty rate plan code")

	// ErrInvalidCurrency 货币代码非法（需 ISO 4217 三字母）
	ErrInvalidCurrency = errors.New("xmsg: invalid currency code")

	// ErrOffsetConflict offset-amount 与 offset-percent 互斥
	ErrOffsetConflict = errors.New("xmsg: offset amount and percent are mutually exclusive")

	// ErrNegativeAmount 金额为负
	ErrNegativeAmount = errors.New("xmsg: negative amount")
)

// RoomRate 房型价格段
//
// GuestAmounts 按入住人数索引：GuestAmounts[0] 为 1 人价（必填），
// GuestAmounts[1] 为 2 人价（必填），其后为附加人价。
type RoomRate struct {
	// RoomTypeCode 房型代码
	RoomTypeCode string

	// StartDate 起始日期（含）
	StartDate time.Time

	// EndDate 结束日期（含）
	EndDate time.Time

	// GuestAmounts 按人数索引的金额（单位为价格计划货币）
	GuestAmounts []float64

	// Commissionable 是否可计佣
	Commissionable bool

	// MarketCode 市场代码
	MarketCode string

	// MaxGuests 最大入住人数
	MaxGuests int

	// MealPlan 餐食计划代码
	MealPlan string
}

// RatePlan 价格计划
//
// LinkedTo 非空表示联动价：以主计划价格加 OffsetAmount 或乘 OffsetPercent
// 派生。两种偏移互斥；均为零值时视为与主计划同价。
type RatePlan struct {
	// PlanCode 价格计划代码
	PlanCode string

	// Currency ISO 4217 货币代码
	Currency string

	// LinkedTo 主计划代码（联动价时非空）
	LinkedTo string

	// OffsetAmount 固定偏移金额（与 OffsetPercent 互斥）
	OffsetAmount float64

	// OffsetPercent 百分比偏移，-10 表示主价的 90%（与 OffsetAmount 互斥）
	OffsetPercent float64

	// Rates 价格段列表
	Rates []RoomRate
}

// NewRatePlan 创建价格计划并执行构造期校验。
//
// 金额非负、货币格式与偏移互斥在此校验；
// 1 人/2 人价必填与联动依赖由 xvalid.RateValidator 承担。
func NewRatePlan(planCode, currency string, rates []RoomRate) (*RatePlan, error) {
	if planCode == "" {
		return nil, ErrEmptyPlanCode
	}
	if !validCurrency(currency) {
		return nil, ErrInvalidCurrency
	}
	for _, r := range rates {
		for _, amt := range r.GuestAmounts {
			if amt < 0 {
				return nil, ErrNegativeAmount
			}
		}
	}

	return &RatePlan{
		PlanCode: planCode,
		Currency: currency,
		Rates:    rates,
	}, nil
}

// Link 设置联动主计划与偏移。amount 与 percent 只能有一个非零。
func (p *RatePlan) Link(master string, amount, percent float64) error {
	if amount != 0 && percent != 0 {
		return ErrOffsetConflict
	}
	p.LinkedTo = master
	p.OffsetAmount = amount
	p.OffsetPercent = percent
	return nil
}

// IsLinked 判断是否为联动价。
func (p *RatePlan) IsLinked() bool { return p.LinkedTo != "" }

// Derive 按主计划展开联动价，返回携带计算后金额的完整计划。
// 非联动价返回自身副本。
func (p *RatePlan) Derive(master *RatePlan) *RatePlan {
	clone := *p
	if !p.IsLinked() || master == nil {
		return &clone
	}

	clone.Rates = make([]RoomRate, len(master.Rates))
	for i, r := range master.Rates {
		derived := r
		derived.GuestAmounts = make([]float64, len(r.GuestAmounts))
		for j, amt := range r.GuestAmounts {
			switch {
			case p.OffsetPercent != 0:
				derived.GuestAmounts[j] = round2(amt * (1 + p.OffsetPercent/100))
			case p.OffsetAmount != 0:
				derived.GuestAmounts[j] = round2(amt + p.OffsetAmount)
			default:
				derived.GuestAmounts[j] = amt
			}
			if derived.GuestAmounts[j] < 0 {
				derived.GuestAmounts[j] = 0
			}
		}
		clone.Rates[i] = derived
	}
	clone.Currency = master.Currency
	return &clone
}

// round2 保留两位小数（金额精度）。
func round2(v float64) float64 {
	if v >= 0 {
		return float64(int64(v*100+0.5)) / 100
	}
	return float64(int64(v*100-0.5)) / 100
}

// validCurrency 校验 ISO 4217 三大写字母格式。
func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
