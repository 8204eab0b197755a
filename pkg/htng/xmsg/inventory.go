package xmsg

import (
	"errors"
	"time"
)

var (
	// ErrInvalidDateRange end-date 早于 start-date
	ErrInvalidDateRange = errors.New("xmsg: end date before start date")

	// ErrDateRangeTooLong 日期跨度超过 365 天
	ErrDateRangeTooLong = errors.New("xmsg: date range exceeds 365 days")

	// ErrNegativeCount 计数为负
	ErrNegativeCount = errors.New("xmsg: negative count")

	// ErrUnknownCountType 未识别的计数类型
	ErrUnknownCountType = errors.New("xmsg: unknown count type")
)

// maxRangeDays 单条库存/限制记录允许的最大日期跨度（含端点）。
const maxRangeDays = 365

// InventoryItem 库存条目
//
// RoomTypeCode 为空表示物业级库存。Counts 的键必须是已识别的 CountType，
// 值非负。计算法与直接法的互斥校验由 xvalid.InventoryValidator 承担。
type InventoryItem struct {
	// HotelCode 酒店代码
	HotelCode string

	// RoomTypeCode 房型代码（物业级时为空）
	RoomTypeCode string

	// StartDate 起始日期（含）
	StartDate time.Time

	// EndDate 结束日期（含）
	EndDate time.Time

	// Counts 计数类型 → 数量
	Counts map[CountType]int
}

// NewInventoryItem 创建库存条目并执行构造期校验。
func NewInventoryItem(hotelCode, roomTypeCode string, start, end time.Time, counts map[CountType]int) (*InventoryItem, error) {
	if hotelCode == "" {
		return nil, ErrEmptyHotelCode
	}
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		return nil, ErrDateRangeTooLong
	}
	for ct, n := range counts {
		if !ct.Valid() {
			return nil, ErrUnknownCountType
		}
		if n < 0 {
			return nil, ErrNegativeCount
		}
	}

	cloned := make(map[CountType]int, len(counts))
	for ct, n := range counts {
		cloned[ct] = n
	}

	return &InventoryItem{
		HotelCode:    hotelCode,
		RoomTypeCode: roomTypeCode,
		StartDate:    start,
		EndDate:      end,
		Counts:       cloned,
	}, nil
}

// HasCount 判断是否携带指定计数类型。
func (i *InventoryItem) HasCount(ct CountType) bool {
	_, ok := i.Counts[ct]
	return ok
}

// IsCalculated 判断条目是否采用计算法（携带 {4,5,6} 中任意一项且不含 2）。
func (i *InventoryItem) IsCalculated() bool {
	if i.HasCount(CountAvailable) {
		return false
	}
	for _, ct := range CalculatedCountTypes() {
		if i.HasCount(ct) {
			return true
		}
	}
	return false
}

// SoldTotal 返回已占用总量：确定已售 + 暂定已售 + 维修房 − 超售额度。
func (i *InventoryItem) SoldTotal() int {
	total := i.Counts[CountDefiniteSold] + i.Counts[CountTentativeSold] + i.Counts[CountOutOfOrder]
	return total - i.Counts[CountOversell]
}
