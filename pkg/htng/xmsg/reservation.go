package xmsg

import (
	"errors"
	"time"
)

var (
	// ErrMissingConfirmation MODIFY/CANCEL 缺少确认号
	ErrMissingConfirmation = errors.New("xmsg: modify/cancel requires confirmation number")

	// ErrMissingAgencyProfile TRAVEL_AGENCY 缺少旅行社档案
	ErrMissingAgencyProfile = errors.New("xmsg: travel agency reservation requires agency profile")

	// ErrMissingCorporateProfile CORPORATE 缺少公司档案
	ErrMissingCorporateProfile = errors.New("xmsg: corporate reservation requires corporate profile")

	// ErrMissingGroupBlock GROUP 缺少团队房块引用
	ErrMissingGroupBlock = errors.New("xmsg: group reservation requires group block code")

	// ErrInvalidStayRange 离店早于到店
	ErrInvalidStayRange = errors.New("xmsg: departure before arrival")

	// ErrNoRoomStays 预订缺少入住段
	ErrNoRoomStays = errors.New("xmsg: reservation requires at least one room stay")
)

// Guest 入住人
type Guest struct {
	// FirstName 名
	FirstName string

	// LastName 姓
	LastName string

	// Primary 是否主入住人
	Primary bool

	// Email 邮箱（可为空）
	Email string

	// Phone 电话（可为空）
	Phone string
}

// Occupancy 入住人数
type Occupancy struct {
	Adults   int
	Children int
	Infants  int
}

// RoomStay 入住段
type RoomStay struct {
	// RoomTypeCode 房型代码
	RoomTypeCode string

	// RatePlanCode 价格计划代码
	RatePlanCode string

	// Arrival 到店日期
	Arrival time.Time

	// Departure 离店日期
	Departure time.Time

	// NightlyRate 每晚价格
	NightlyRate float64

	// Currency ISO 4217 货币代码
	Currency string

	// Occupancy 入住人数
	Occupancy Occupancy
}

// ServiceRequest 附加服务
type ServiceRequest struct {
	// Code 服务代码
	Code string

	// Description 描述
	Description string

	// Cost 费用
	Cost float64
}

// Payment 支付信息
type Payment struct {
	// CardType 卡类型代码
	CardType string

	// MaskedNumber 掩码卡号（仅保留后四位）
	MaskedNumber string

	// ExpireDate 过期时间 MMYY
	ExpireDate string

	// HolderName 持卡人
	HolderName string
}

// ProfileRefs 档案引用
type ProfileRefs struct {
	// AgencyIATA 旅行社 IATA 号
	AgencyIATA string

	// CorporateID 公司协议号
	CorporateID string

	// GroupBlockCode 团队房块代码
	GroupBlockCode string
}

// Reservation 预订
type Reservation struct {
	// ConfirmationNumber 确认号（新建时可为空）
	ConfirmationNumber string

	// HotelCode 酒店代码
	HotelCode string

	// Transaction 事务类型
	Transaction TransactionType

	// Type 预订类型
	Type ReservationType

	// Guests 入住人列表（首位为主入住人）
	Guests []Guest

	// RoomStays 入住段列表
	RoomStays []RoomStay

	// SpecialRequests 特殊要求
	SpecialRequests []string

	// ServiceRequests 附加服务
	ServiceRequests []ServiceRequest

	// Payment 支付信息（可为空）
	Payment *Payment

	// Profiles 档案引用
	Profiles ProfileRefs
}

// Validate 校验预订完整性不变量。
//
// 规则（构建前必须满足）：
//   - MODIFY/CANCEL 必须携带确认号
//   - TRAVEL_AGENCY 必须携带旅行社档案；CORPORATE 必须携带公司档案；
//     GROUP 必须携带团队房块引用
//   - 每个入住段 arrival ≤ departure
//   - CANCEL 以外的事务至少包含一个入住段
func (r *Reservation) Validate() error {
	if r.HotelCode == "" {
		return ErrEmptyHotelCode
	}
	if !r.Transaction.Valid() {
		return errors.New("xmsg: invalid transaction type")
	}
	if (r.Transaction == TransactionModify || r.Transaction == TransactionCancel) && r.ConfirmationNumber == "" {
		return ErrMissingConfirmation
	}
	switch r.Type {
	case ReservationTravelAgency:
		if r.Profiles.AgencyIATA == "" {
			return ErrMissingAgencyProfile
		}
	case ReservationCorporate:
		if r.Profiles.CorporateID == "" {
			return ErrMissingCorporateProfile
		}
	case ReservationGroup:
		if r.Profiles.GroupBlockCode == "" {
			return ErrMissingGroupBlock
		}
	}
	if r.Transaction != TransactionCancel && len(r.RoomStays) == 0 {
		return ErrNoRoomStays
	}
	for _, stay := range r.RoomStays {
		if stay.Departure.Before(stay.Arrival) {
			return ErrInvalidStayRange
		}
	}
	return nil
}

// PrimaryGuest 返回主入住人；未标记时返回首位。
func (r *Reservation) PrimaryGuest() *Guest {
	for i := range r.Guests {
		if r.Guests[i].Primary {
			return &r.Guests[i]
		}
	}
	if len(r.Guests) > 0 {
		return &r.Guests[0]
	}
	return nil
}
