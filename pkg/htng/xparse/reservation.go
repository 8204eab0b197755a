package xparse

import (
	"bytes"

	"github.com/antchfx/xmlquery"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// ReservationMessage 已解析的预订消息。
type ReservationMessage struct {
	// EchoToken 回显关联串
	EchoToken string

	// Reservation 预订 DTO
	Reservation *xmsg.Reservation
}

// ReservationParser 预订消息解析器（OTA_HotelResNotifRQ）。
type ReservationParser struct{}

// NewReservationParser 创建预订解析器。
func NewReservationParser() *ReservationParser {
	return &ReservationParser{}
}

// transactionFor ResStatus 根属性 → 事务类型。
var transactionFor = map[string]xmsg.TransactionType{
	"Commit": xmsg.TransactionNew,
	"Modify": xmsg.TransactionModify,
	"Cancel": xmsg.TransactionCancel,
}

// Parse 解析预订消息字节流（裸 Body）。
func (p *ReservationParser) Parse(data []byte) (*ReservationMessage, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, xmsg.Wrap(xmsg.KindSoapXML, "malformed reservation body", err)
	}
	return p.ParseNode(firstElement(doc))
}

// ParseNode 解析已定位的预订根元素。
func (p *ReservationParser) ParseNode(root *xmlquery.Node) (*ReservationMessage, error) {
	if root == nil || root.Data != "OTA_HotelResNotifRQ" {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "not a reservation message")
	}

	tx, ok := transactionFor[attrValue(root, "ResStatus")]
	if !ok {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "unknown ResStatus").
			WithFields(xmsg.FieldIssue{Field: "@ResStatus", Rule: "res_status", Value: attrValue(root, "ResStatus")})
	}

	reservations := childElement(root, "HotelReservations")
	if reservations == nil {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "reservation message carries no HotelReservations")
	}
	res := childElement(reservations, "HotelReservation")
	if res == nil {
		return nil, xmsg.NewError(xmsg.KindSoapXML, "reservation message carries no HotelReservation")
	}

	r := &xmsg.Reservation{
		Transaction: tx,
		Type:        xmsg.ReservationTransient,
	}

	if unique := childElement(res, "UniqueID"); unique != nil {
		r.ConfirmationNumber = attrValue(unique, "ID")
	}

	if err := parseRoomStays(res, r); err != nil {
		return nil, err
	}
	parseGuests(res, r)
	if err := parseGlobalInfo(res, r); err != nil {
		return nil, err
	}

	// 档案引用决定预订类型
	switch {
	case r.Profiles.GroupBlockCode != "":
		r.Type = xmsg.ReservationGroup
	case r.Profiles.AgencyIATA != "":
		r.Type = xmsg.ReservationTravelAgency
	case r.Profiles.CorporateID != "":
		r.Type = xmsg.ReservationCorporate
	}

	return &ReservationMessage{
		EchoToken:   attrValue(root, "EchoToken"),
		Reservation: r,
	}, nil
}

func parseRoomStays(res *xmlquery.Node, r *xmsg.Reservation) error {
	stays := childElement(res, "RoomStays")
	if stays == nil {
		return nil
	}

	for _, stay := range childElements(stays, "RoomStay") {
		rs := xmsg.RoomStay{}

		if prop := childElement(stay, "BasicPropertyInfo"); prop != nil {
			r.HotelCode = attrValue(prop, "HotelCode")
		}
		if span := childElement(stay, "TimeSpan"); span != nil {
			arrival, err := parseDate(span, "Start")
			if err != nil {
				return err
			}
			departure, err := parseDate(span, "End")
			if err != nil {
				return err
			}
			rs.Arrival = arrival
			rs.Departure = departure
		}
		if roomTypes := childElement(stay, "RoomTypes"); roomTypes != nil {
			rs.RoomTypeCode = attrValue(childElement(roomTypes, "RoomType"), "RoomTypeCode")
		}
		if ratePlans := childElement(stay, "RatePlans"); ratePlans != nil {
			rs.RatePlanCode = attrValue(childElement(ratePlans, "RatePlan"), "RatePlanCode")
		}
		if roomRates := childElement(stay, "RoomRates"); roomRates != nil {
			if rr := childElement(roomRates, "RoomRate"); rr != nil {
				if rates := childElement(rr, "Rates"); rates != nil {
					if rate := childElement(rates, "Rate"); rate != nil {
						if base := childElement(rate, "Base"); base != nil {
							amt, err := parseAmount(base, "AmountAfterTax")
							if err != nil {
								return err
							}
							rs.NightlyRate = amt
							rs.Currency = attrValue(base, "CurrencyCode")
						}
					}
				}
			}
		}
		if counts := childElement(stay, "GuestCounts"); counts != nil {
			for _, gc := range childElements(counts, "GuestCount") {
				n, err := parseInt(gc, "Count")
				if err != nil {
					return err
				}
				switch attrValue(gc, "AgeQualifyingCode") {
				case "10":
					rs.Occupancy.Adults = n
				case "8":
					rs.Occupancy.Children = n
				case "7":
					rs.Occupancy.Infants = n
				}
			}
		}

		r.RoomStays = append(r.RoomStays, rs)
	}
	return nil
}

func parseGuests(res *xmlquery.Node, r *xmsg.Reservation) {
	guests := childElement(res, "ResGuests")
	if guests == nil {
		return
	}

	for _, g := range childElements(guests, "ResGuest") {
		guest := xmsg.Guest{Primary: attrValue(g, "PrimaryIndicator") == "true"}

		if profiles := childElement(g, "Profiles"); profiles != nil {
			if info := childElement(profiles, "ProfileInfo"); info != nil {
				if profile := childElement(info, "Profile"); profile != nil {
					if customer := childElement(profile, "Customer"); customer != nil {
						if name := childElement(customer, "PersonName"); name != nil {
							guest.FirstName = childText(name, "GivenName")
							guest.LastName = childText(name, "Surname")
						}
						guest.Email = childText(customer, "Email")
						guest.Phone = attrValue(childElement(customer, "Telephone"), "PhoneNumber")
					}
				}
			}
		}

		r.Guests = append(r.Guests, guest)
	}
}

func parseGlobalInfo(res *xmlquery.Node, r *xmsg.Reservation) error {
	global := childElement(res, "ResGlobalInfo")
	if global == nil {
		return nil
	}

	if ids := childElement(global, "HotelReservationIDs"); ids != nil {
		if id := childElement(ids, "HotelReservationID"); id != nil && r.ConfirmationNumber == "" {
			r.ConfirmationNumber = attrValue(id, "ResID_Value")
		}
	}

	if profiles := childElement(global, "Profiles"); profiles != nil {
		for _, info := range childElements(profiles, "ProfileInfo") {
			profile := childElement(info, "Profile")
			if profile == nil {
				continue
			}
			company := childElement(profile, "CompanyInfo")
			if company == nil {
				continue
			}
			name := childElement(company, "CompanyName")
			switch attrValue(profile, "ProfileType") {
			case "4":
				r.Profiles.AgencyIATA = attrValue(name, "Code")
			case "3":
				r.Profiles.CorporateID = attrValue(name, "Code")
			}
		}
	}
	if block := childElement(global, "InvBlockCode"); block != nil {
		r.Profiles.GroupBlockCode = innerText(block)
	}

	if reqs := childElement(global, "SpecialRequests"); reqs != nil {
		for _, req := range childElements(reqs, "SpecialRequest") {
			r.SpecialRequests = append(r.SpecialRequests, childText(req, "Text"))
		}
	}

	if services := childElement(global, "Services"); services != nil {
		for _, svc := range childElements(services, "Service") {
			sr := xmsg.ServiceRequest{Code: attrValue(svc, "ServiceInventoryCode")}
			if price := childElement(svc, "Price"); price != nil {
				if base := childElement(price, "Base"); base != nil {
					cost, err := parseAmount(base, "AmountAfterTax")
					if err != nil {
						return err
					}
					sr.Cost = cost
				}
			}
			if details := childElement(svc, "ServiceDetails"); details != nil {
				if comments := childElement(details, "Comments"); comments != nil {
					if comment := childElement(comments, "Comment"); comment != nil {
						sr.Description = childText(comment, "Text")
					}
				}
			}
			r.ServiceRequests = append(r.ServiceRequests, sr)
		}
	}

	if guarantee := childElement(global, "Guarantee"); guarantee != nil {
		if accepted := childElement(guarantee, "GuaranteesAccepted"); accepted != nil {
			if ga := childElement(accepted, "GuaranteeAccepted"); ga != nil {
				if card := childElement(ga, "PaymentCard"); card != nil {
					r.Payment = &xmsg.Payment{
						CardType:     attrValue(card, "CardType"),
						MaskedNumber: attrValue(card, "CardNumber"),
						ExpireDate:   attrValue(card, "ExpireDate"),
						HolderName:   childText(card, "CardHolderName"),
					}
				}
			}
		}
	}

	return nil
}
