package xvalid

import (
	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// ReservationValidator 预订完整性校验器。
//
// 不变量由 DTO 的 Validate 承担，这里统一归类为 KindBusinessLogic，
// 便于编排器按分类表处理。
type ReservationValidator struct{}

// NewReservationValidator 创建预订校验器。
func NewReservationValidator() *ReservationValidator {
	return &ReservationValidator{}
}

// Validate 校验预订。通过返回 nil，否则返回 KindBusinessLogic 错误。
func (v *ReservationValidator) Validate(r *xmsg.Reservation) error {
	if r == nil {
		return xmsg.NewError(xmsg.KindBusinessLogic, "nil reservation")
	}
	if err := r.Validate(); err != nil {
		return xmsg.Wrap(xmsg.KindBusinessLogic, "reservation integrity violation", err).
			WithHotel(r.HotelCode)
	}
	return nil
}
