package xbuild

import (
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
	"github.com/omeyang/tclink/pkg/htng/xvalid"
)

// ReservationInput 预订构建输入。
type ReservationInput struct {
	// EchoToken 对端回显的关联串
	EchoToken string

	// Reservation 预订 DTO
	Reservation *xmsg.Reservation
}

// ReservationBuilder 预订消息构建器（OTA_HotelResNotifRQ）。
type ReservationBuilder struct {
	validator *xvalid.ReservationValidator
	now       clock
}

// ReservationOption 构建器配置选项。
type ReservationOption func(*ReservationBuilder)

// WithReservationClock 替换时钟（测试用）。
func WithReservationClock(now func() time.Time) ReservationOption {
	return func(b *ReservationBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewReservationBuilder 创建预订构建器。
func NewReservationBuilder(opts ...ReservationOption) *ReservationBuilder {
	b := &ReservationBuilder{
		validator: xvalid.NewReservationValidator(),
		now:       defaultClock,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// resStatusFor 事务类型 → ResStatus 根属性。
var resStatusFor = map[xmsg.TransactionType]string{
	xmsg.TransactionNew:    "Commit",
	xmsg.TransactionModify: "Modify",
	xmsg.TransactionCancel: "Cancel",
}

// 年龄资格代码（OTA AgeQualifyingCode 代码表）。
const (
	ageCodeAdult  = "10"
	ageCodeChild  = "8"
	ageCodeInfant = "7"
)

// Build 构建预订 Body。取消事务仅携带确认号与全局信息。
func (b *ReservationBuilder) Build(in ReservationInput) (*etree.Element, error) {
	r := in.Reservation
	if err := b.validator.Validate(r); err != nil {
		return nil, err
	}

	root, err := newRoot(xmsg.TypeReservation, in.EchoToken, b.now)
	if err != nil {
		return nil, err
	}
	root.CreateAttr("ResStatus", resStatusFor[r.Transaction])

	reservations := root.CreateElement("HotelReservations")
	res := reservations.CreateElement("HotelReservation")
	res.CreateAttr("CreateDateTime", b.now().UTC().Format(dateTimeFormat))
	res.CreateAttr("ResStatus", resStatusFor[r.Transaction])

	if r.ConfirmationNumber != "" {
		unique := res.CreateElement("UniqueID")
		unique.CreateAttr("Type", "14")
		unique.CreateAttr("ID", r.ConfirmationNumber)
	}

	if r.Transaction != xmsg.TransactionCancel {
		b.appendRoomStays(res, r)
		b.appendGuests(res, r)
	}
	b.appendGlobalInfo(res, r)

	return root, nil
}

func (b *ReservationBuilder) appendRoomStays(res *etree.Element, r *xmsg.Reservation) {
	stays := res.CreateElement("RoomStays")
	for _, stay := range r.RoomStays {
		el := stays.CreateElement("RoomStay")

		roomTypes := el.CreateElement("RoomTypes")
		rt := roomTypes.CreateElement("RoomType")
		rt.CreateAttr("RoomTypeCode", stay.RoomTypeCode)

		ratePlans := el.CreateElement("RatePlans")
		rp := ratePlans.CreateElement("RatePlan")
		rp.CreateAttr("RatePlanCode", stay.RatePlanCode)

		roomRates := el.CreateElement("RoomRates")
		rr := roomRates.CreateElement("RoomRate")
		rr.CreateAttr("RoomTypeCode", stay.RoomTypeCode)
		rr.CreateAttr("RatePlanCode", stay.RatePlanCode)
		rates := rr.CreateElement("Rates")
		rate := rates.CreateElement("Rate")
		rate.CreateAttr("EffectiveDate", formatDate(stay.Arrival))
		rate.CreateAttr("ExpireDate", formatDate(stay.Departure))
		base := rate.CreateElement("Base")
		base.CreateAttr("AmountAfterTax", formatAmount(stay.NightlyRate))
		base.CreateAttr("CurrencyCode", stay.Currency)

		counts := el.CreateElement("GuestCounts")
		appendGuestCount(counts, ageCodeAdult, stay.Occupancy.Adults)
		appendGuestCount(counts, ageCodeChild, stay.Occupancy.Children)
		appendGuestCount(counts, ageCodeInfant, stay.Occupancy.Infants)

		span := el.CreateElement("TimeSpan")
		span.CreateAttr("Start", formatDate(stay.Arrival))
		span.CreateAttr("End", formatDate(stay.Departure))

		prop := el.CreateElement("BasicPropertyInfo")
		prop.CreateAttr("HotelCode", r.HotelCode)
	}
}

func appendGuestCount(counts *etree.Element, ageCode string, n int) {
	if n <= 0 {
		return
	}
	gc := counts.CreateElement("GuestCount")
	gc.CreateAttr("AgeQualifyingCode", ageCode)
	gc.CreateAttr("Count", strconv.Itoa(n))
}

func (b *ReservationBuilder) appendGuests(res *etree.Element, r *xmsg.Reservation) {
	guests := res.CreateElement("ResGuests")
	for i, g := range r.Guests {
		guest := guests.CreateElement("ResGuest")
		guest.CreateAttr("ResGuestRPH", strconv.Itoa(i+1))
		if g.Primary {
			guest.CreateAttr("PrimaryIndicator", "true")
		}

		profiles := guest.CreateElement("Profiles")
		info := profiles.CreateElement("ProfileInfo")
		profile := info.CreateElement("Profile")
		profile.CreateAttr("ProfileType", "1")
		customer := profile.CreateElement("Customer")
		name := customer.CreateElement("PersonName")
		given := name.CreateElement("GivenName")
		given.SetText(g.FirstName)
		surname := name.CreateElement("Surname")
		surname.SetText(g.LastName)
		if g.Email != "" {
			email := customer.CreateElement("Email")
			email.SetText(g.Email)
		}
		if g.Phone != "" {
			phone := customer.CreateElement("Telephone")
			phone.CreateAttr("PhoneNumber", g.Phone)
		}
	}
}

func (b *ReservationBuilder) appendGlobalInfo(res *etree.Element, r *xmsg.Reservation) {
	global := res.CreateElement("ResGlobalInfo")

	if r.ConfirmationNumber != "" {
		ids := global.CreateElement("HotelReservationIDs")
		id := ids.CreateElement("HotelReservationID")
		id.CreateAttr("ResID_Type", "14")
		id.CreateAttr("ResID_Value", r.ConfirmationNumber)
	}

	// 档案引用：旅行社 / 公司 / 团队房块
	if r.Profiles.AgencyIATA != "" || r.Profiles.CorporateID != "" {
		profiles := global.CreateElement("Profiles")
		if r.Profiles.AgencyIATA != "" {
			info := profiles.CreateElement("ProfileInfo")
			profile := info.CreateElement("Profile")
			profile.CreateAttr("ProfileType", "4")
			company := profile.CreateElement("CompanyInfo")
			companyName := company.CreateElement("CompanyName")
			companyName.CreateAttr("Code", r.Profiles.AgencyIATA)
			companyName.CreateAttr("CodeContext", "IATA")
		}
		if r.Profiles.CorporateID != "" {
			info := profiles.CreateElement("ProfileInfo")
			profile := info.CreateElement("Profile")
			profile.CreateAttr("ProfileType", "3")
			company := profile.CreateElement("CompanyInfo")
			companyName := company.CreateElement("CompanyName")
			companyName.CreateAttr("Code", r.Profiles.CorporateID)
			companyName.CreateAttr("CodeContext", "CORPORATE")
		}
	}
	if r.Profiles.GroupBlockCode != "" {
		block := global.CreateElement("InvBlockCode")
		block.SetText(r.Profiles.GroupBlockCode)
	}

	if len(r.SpecialRequests) > 0 {
		reqs := global.CreateElement("SpecialRequests")
		for _, sr := range r.SpecialRequests {
			req := reqs.CreateElement("SpecialRequest")
			text := req.CreateElement("Text")
			text.SetText(sr)
		}
	}

	if len(r.ServiceRequests) > 0 {
		services := global.CreateElement("Services")
		for _, svc := range r.ServiceRequests {
			s := services.CreateElement("Service")
			s.CreateAttr("ServiceInventoryCode", svc.Code)
			price := s.CreateElement("Price")
			base := price.CreateElement("Base")
			base.CreateAttr("AmountAfterTax", formatAmount(svc.Cost))
			if svc.Description != "" {
				desc := s.CreateElement("ServiceDetails")
				comments := desc.CreateElement("Comments")
				comment := comments.CreateElement("Comment")
				text := comment.CreateElement("Text")
				text.SetText(svc.Description)
			}
		}
	}

	if r.Payment != nil {
		guarantee := global.CreateElement("Guarantee")
		accepted := guarantee.CreateElement("GuaranteesAccepted")
		ga := accepted.CreateElement("GuaranteeAccepted")
		card := ga.CreateElement("PaymentCard")
		card.CreateAttr("CardType", r.Payment.CardType)
		card.CreateAttr("CardNumber", r.Payment.MaskedNumber)
		card.CreateAttr("ExpireDate", r.Payment.ExpireDate)
		holder := card.CreateElement("CardHolderName")
		holder.SetText(r.Payment.HolderName)
	}
}
