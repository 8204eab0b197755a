package xbuild

import (
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// RestrictionInput 可售限制构建输入。
type RestrictionInput struct {
	// HotelCode 酒店代码
	HotelCode string

	// EchoToken 对端回显的关联串
	EchoToken string

	// Restrictions 限制条目批次（保持输入顺序）
	Restrictions []*xmsg.Restriction
}

// RestrictionBuilder 可售限制构建器（OTA_HotelAvailNotifRQ）。
type RestrictionBuilder struct {
	now clock
}

// RestrictionOption 构建器配置选项。
type RestrictionOption func(*RestrictionBuilder)

// WithRestrictionClock 替换时钟（测试用）。
func WithRestrictionClock(now func() time.Time) RestrictionOption {
	return func(b *RestrictionBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewRestrictionBuilder 创建可售限制构建器。
func NewRestrictionBuilder(opts ...RestrictionOption) *RestrictionBuilder {
	b := &RestrictionBuilder{now: defaultClock}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build 构建可售限制 Body。
func (b *RestrictionBuilder) Build(in RestrictionInput) (*etree.Element, error) {
	if err := requireHotelCode(in.HotelCode); err != nil {
		return nil, err
	}
	if len(in.Restrictions) == 0 {
		return nil, ErrEmptyBatch
	}
	for _, r := range in.Restrictions {
		if err := r.Validate(); err != nil {
			return nil, xmsg.Wrap(xmsg.KindBusinessLogic, "invalid restriction", err).WithHotel(in.HotelCode)
		}
	}

	root, err := newRoot(xmsg.TypeRestrictions, in.EchoToken, b.now)
	if err != nil {
		return nil, err
	}

	messages := root.CreateElement("AvailStatusMessages")
	messages.CreateAttr("HotelCode", in.HotelCode)

	for _, r := range in.Restrictions {
		msg := messages.CreateElement("AvailStatusMessage")
		statusAppControl(msg, r.StartDate, r.EndDate, r.RoomTypeCode, r.RatePlanCode)

		if r.Status != "" {
			rs := msg.CreateElement("RestrictionStatus")
			rs.CreateAttr("Status", string(r.Status))
		}
		if r.ClosedToArrival {
			rs := msg.CreateElement("RestrictionStatus")
			rs.CreateAttr("Restriction", "Arrival")
			rs.CreateAttr("Status", string(xmsg.RestrictionClose))
		}
		if r.ClosedToDeparture {
			rs := msg.CreateElement("RestrictionStatus")
			rs.CreateAttr("Restriction", "Departure")
			rs.CreateAttr("Status", string(xmsg.RestrictionClose))
		}

		if r.MinLOS > 0 || r.MaxLOS > 0 {
			lengths := msg.CreateElement("LengthsOfStay")
			if r.MinLOS > 0 {
				los := lengths.CreateElement("LengthOfStay")
				los.CreateAttr("MinMaxMessageType", "SetMinLOS")
				los.CreateAttr("Time", strconv.Itoa(r.MinLOS))
			}
			if r.MaxLOS > 0 {
				los := lengths.CreateElement("LengthOfStay")
				los.CreateAttr("MinMaxMessageType", "SetMaxLOS")
				los.CreateAttr("Time", strconv.Itoa(r.MaxLOS))
			}
		}
	}

	return root, nil
}
