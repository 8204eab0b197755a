package xmsg

import (
	"errors"
	"time"
)

// ErrInvalidRestriction 限制条目缺少任何有效限制
var ErrInvalidRestriction = errors.New("xmsg: restriction carries no effective rule")

// RestrictionStatus 可售状态
type RestrictionStatus string

const (
	// RestrictionOpen 开放售卖
	RestrictionOpen RestrictionStatus = "Open"

	// RestrictionClose 关闭售卖
	RestrictionClose RestrictionStatus = "Close"
)

// Restriction 可售限制条目
//
// Status 为空表示仅更新住长限制。MinLOS/MaxLOS 为 0 表示不设置。
type Restriction struct {
	// HotelCode 酒店代码
	HotelCode string

	// RoomTypeCode 房型代码（物业级时为空）
	RoomTypeCode string

	// RatePlanCode 价格计划代码（可为空）
	RatePlanCode string

	// StartDate 起始日期（含）
	StartDate time.Time

	// EndDate 结束日期（含）
	EndDate time.Time

	// Status 可售状态（可为空）
	Status RestrictionStatus

	// MinLOS 最短住长（0 表示不设置）
	MinLOS int

	// MaxLOS 最长住长（0 表示不设置）
	MaxLOS int

	// ClosedToArrival 禁止到店
	ClosedToArrival bool

	// ClosedToDeparture 禁止离店
	ClosedToDeparture bool
}

// Validate 校验限制条目不变量。
func (r *Restriction) Validate() error {
	if r.HotelCode == "" {
		return ErrEmptyHotelCode
	}
	if r.EndDate.Before(r.StartDate) {
		return ErrInvalidDateRange
	}
	if r.EndDate.Sub(r.StartDate) > maxRangeDays*24*time.Hour {
		return ErrDateRangeTooLong
	}
	if r.Status == "" && r.MinLOS == 0 && r.MaxLOS == 0 && !r.ClosedToArrival && !r.ClosedToDeparture {
		return ErrInvalidRestriction
	}
	return nil
}

// GroupBlock 团队房块
type GroupBlock struct {
	// HotelCode 酒店代码
	HotelCode string

	// BlockCode 房块代码
	BlockCode string

	// Name 团队名称
	Name string

	// StartDate 起始日期（含）
	StartDate time.Time

	// EndDate 结束日期（含）
	EndDate time.Time

	// Allocations 房型 → 每日留房数
	Allocations map[string]int

	// CutoffDate 截止回收日期（零值表示不设置）
	CutoffDate time.Time

	// RatePlanCode 关联价格计划（可为空）
	RatePlanCode string
}

// Validate 校验团队房块不变量。
func (g *GroupBlock) Validate() error {
	if g.HotelCode == "" {
		return ErrEmptyHotelCode
	}
	if g.BlockCode == "" {
		return errors.New("xmsg: empty group block code")
	}
	if g.EndDate.Before(g.StartDate) {
		return ErrInvalidDateRange
	}
	for roomType, n := range g.Allocations {
		if roomType == "" {
			return errors.New("xmsg: empty room type in allocation")
		}
		if n < 0 {
			return ErrNegativeCount
		}
	}
	return nil
}
