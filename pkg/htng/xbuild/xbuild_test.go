package xbuild

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
	"github.com/omeyang/tclink/pkg/htng/xvalid"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock() time.Time {
	return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
}

func attr(t *testing.T, el *etree.Element, path, key string) string {
	t.Helper()
	found := el.FindElement(path)
	require.NotNil(t, found, "element %s not found", path)
	return found.SelectAttrValue(key, "")
}

func mustItem(t *testing.T, roomType string, counts map[xmsg.CountType]int) *xmsg.InventoryItem {
	t.Helper()
	item, err := xmsg.NewInventoryItem("HOTEL001", roomType, day("2026-09-01"), day("2026-09-07"), counts)
	require.NoError(t, err)
	return item
}

func TestInventoryBuilder(t *testing.T) {
	b := NewInventoryBuilder(WithInventoryClock(fixedClock))

	t.Run("Delta", func(t *testing.T) {
		root, err := b.Build(InventoryInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-1",
			Items: []*xmsg.InventoryItem{
				mustItem(t, "KING", map[xmsg.CountType]int{xmsg.CountAvailable: 12}),
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "OTA_HotelInvCountNotifRQ", root.Tag)
		assert.Equal(t, "echo-1", root.SelectAttrValue("EchoToken", ""))
		assert.Equal(t, "2026-08-24T12:00:00", root.SelectAttrValue("TimeStamp", ""))
		assert.Empty(t, root.SelectAttrValue("OverlayInd", ""))
		assert.Equal(t, "HOTEL001", attr(t, root, "Inventories", "HotelCode"))
		assert.Equal(t, "KING", attr(t, root, "Inventories/Inventory/StatusApplicationControl", "InvTypeCode"))
		assert.Equal(t, "2", attr(t, root, "Inventories/Inventory/InvCounts/InvCount", "CountType"))
		assert.Equal(t, "12", attr(t, root, "Inventories/Inventory/InvCounts/InvCount", "Count"))
	})

	t.Run("OverlayFlag", func(t *testing.T) {
		root, err := b.Build(InventoryInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-2",
			Overlay:   true,
			Items: []*xmsg.InventoryItem{
				mustItem(t, "KING", map[xmsg.CountType]int{xmsg.CountAvailable: 5}),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "true", root.SelectAttrValue("OverlayInd", ""))
	})

	t.Run("CalculatedCountsSortedAscending", func(t *testing.T) {
		root, err := b.Build(InventoryInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-3",
			Items: []*xmsg.InventoryItem{
				mustItem(t, "TWIN", map[xmsg.CountType]int{
					xmsg.CountOversell:      2,
					xmsg.CountDefiniteSold:  30,
					xmsg.CountPhysical:      50,
					xmsg.CountOutOfOrder:    1,
					xmsg.CountTentativeSold: 4,
				}),
			},
		})
		require.NoError(t, err)

		var got []string
		for _, c := range root.FindElements("Inventories/Inventory/InvCounts/InvCount") {
			got = append(got, c.SelectAttrValue("CountType", ""))
		}
		assert.Equal(t, []string{"1", "4", "5", "6", "99"}, got)
	})

	t.Run("PropertyLevelUsesAllInvCode", func(t *testing.T) {
		root, err := b.Build(InventoryInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-4",
			Items: []*xmsg.InventoryItem{
				mustItem(t, "", map[xmsg.CountType]int{xmsg.CountAvailable: 80}),
			},
		})
		require.NoError(t, err)
		sac := root.FindElement("Inventories/Inventory/StatusApplicationControl")
		require.NotNil(t, sac)
		assert.Equal(t, "true", sac.SelectAttrValue("AllInvCode", ""))
		assert.Empty(t, sac.SelectAttrValue("InvTypeCode", ""))
	})

	t.Run("RejectsMixedCountMethods", func(t *testing.T) {
		_, err := b.Build(InventoryInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-5",
			Items: []*xmsg.InventoryItem{
				mustItem(t, "KING", map[xmsg.CountType]int{
					xmsg.CountAvailable:    10,
					xmsg.CountDefiniteSold: 3,
				}),
			},
		})
		require.Error(t, err)
		assert.Equal(t, xmsg.KindBusinessLogic, xmsg.KindOf(err))
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		_, err := b.Build(InventoryInput{HotelCode: "HOTEL001", EchoToken: "echo-6"})
		assert.ErrorIs(t, err, ErrEmptyBatch)
	})

	t.Run("EmptyEchoToken", func(t *testing.T) {
		_, err := b.Build(InventoryInput{
			HotelCode: "HOTEL001",
			Items: []*xmsg.InventoryItem{
				mustItem(t, "KING", map[xmsg.CountType]int{xmsg.CountAvailable: 1}),
			},
		})
		assert.ErrorIs(t, err, ErrEmptyEchoToken)
	})
}

func barPlan(t *testing.T) *xmsg.RatePlan {
	t.Helper()
	plan, err := xmsg.NewRatePlan("BAR", "USD", []xmsg.RoomRate{{
		RoomTypeCode: "KING",
		StartDate:    day("2026-09-01"),
		EndDate:      day("2026-09-30"),
		GuestAmounts: []float64{150, 150, 180},
	}})
	require.NoError(t, err)
	return plan
}

func TestRateBuilder(t *testing.T) {
	b := NewRateBuilder(WithRateClock(fixedClock))

	t.Run("LinkedExpanded", func(t *testing.T) {
		aaa, err := xmsg.NewRatePlan("AAA", "USD", nil)
		require.NoError(t, err)
		require.NoError(t, aaa.Link("BAR", 0, -10))

		root, err := b.Build(RateInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-1",
			Operation: xmsg.RateOpUpdate,
			Plans:     []*xmsg.RatePlan{barPlan(t), aaa},
		})
		require.NoError(t, err)

		assert.Equal(t, "OTA_HotelRateNotifRQ", root.Tag)
		assert.Equal(t, "Delta", root.SelectAttrValue("RateNotifType", ""))

		messages := root.FindElements("RateAmountMessages/RateAmountMessage")
		require.Len(t, messages, 2)
		assert.Equal(t, "BAR", messages[0].SelectAttrValue("RatePlanCode", ""))
		assert.Equal(t, "AAA", messages[1].SelectAttrValue("RatePlanCode", ""))

		// AAA = BAR − 10%：150 → 135.00
		amt := messages[1].FindElement("Rates/Rate/BaseByGuestAmts/BaseByGuestAmt")
		require.NotNil(t, amt)
		assert.Equal(t, "1", amt.SelectAttrValue("NumberOfGuests", ""))
		assert.Equal(t, "135.00", amt.SelectAttrValue("AmountAfterTax", ""))
	})

	t.Run("LinkedFiltered", func(t *testing.T) {
		aaa, err := xmsg.NewRatePlan("AAA", "USD", nil)
		require.NoError(t, err)
		require.NoError(t, aaa.Link("BAR", 0, -10))

		root, err := b.Build(RateInput{
			HotelCode:             "HOTEL001",
			EchoToken:             "echo-2",
			Operation:             xmsg.RateOpUpdate,
			Plans:                 []*xmsg.RatePlan{barPlan(t), aaa},
			ExternalHandlesLinked: true,
		})
		require.NoError(t, err)

		messages := root.FindElements("RateAmountMessages/RateAmountMessage")
		require.Len(t, messages, 1)
		assert.Equal(t, "BAR", messages[0].SelectAttrValue("RatePlanCode", ""))
	})

	t.Run("NotifTypePerOperation", func(t *testing.T) {
		tests := []struct {
			op   xmsg.RateOperation
			want string
		}{
			{xmsg.RateOpCreation, "New"},
			{xmsg.RateOpUpdate, "Delta"},
			{xmsg.RateOpDeltaUpdate, "Delta"},
			{xmsg.RateOpFullSync, "Overlay"},
			{xmsg.RateOpInactive, "Remove"},
			{xmsg.RateOpRemoveRoomTypes, "Remove"},
		}
		for _, tt := range tests {
			root, err := b.Build(RateInput{
				HotelCode: "HOTEL001",
				EchoToken: "echo-3",
				Operation: tt.op,
				Plans:     []*xmsg.RatePlan{barPlan(t)},
			})
			require.NoError(t, err, tt.op)
			assert.Equal(t, tt.want, root.SelectAttrValue("RateNotifType", ""), tt.op)
		}
	})

	t.Run("InactiveMarksRemoveStatus", func(t *testing.T) {
		root, err := b.Build(RateInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-4",
			Operation: xmsg.RateOpInactive,
			Plans:     []*xmsg.RatePlan{barPlan(t)},
		})
		require.NoError(t, err)
		msg := root.FindElement("RateAmountMessages/RateAmountMessage")
		require.NotNil(t, msg)
		assert.Equal(t, "Remove", msg.SelectAttrValue("Status", ""))
	})

	t.Run("UnknownOperation", func(t *testing.T) {
		_, err := b.Build(RateInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-5",
			Operation: xmsg.RateOperation("BOGUS"),
			Plans:     []*xmsg.RatePlan{barPlan(t)},
		})
		assert.ErrorIs(t, err, ErrUnknownRateOperation)
	})

	t.Run("LinkedMasterFromKnownSet", func(t *testing.T) {
		aaa, err := xmsg.NewRatePlan("AAA", "USD", nil)
		require.NoError(t, err)
		require.NoError(t, aaa.Link("BAR", 0, -10))

		// BAR 不在批次内：默认校验器拒绝，注入历史集合后通过校验
		_, err = b.Build(RateInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-6",
			Operation: xmsg.RateOpUpdate,
			Plans:     []*xmsg.RatePlan{aaa},
		})
		require.Error(t, err)

		known := NewRateBuilder(
			WithRateClock(fixedClock),
			WithRateValidator(xvalid.NewRateValidator(xvalid.WithKnownPlans("BAR"))),
		)

		// 本地展开需要主计划的价格段，仅有历史代码时拒绝构建
		_, err = known.Build(RateInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-6",
			Operation: xmsg.RateOpUpdate,
			Plans:     []*xmsg.RatePlan{aaa},
		})
		require.Error(t, err)
		assert.Equal(t, xmsg.KindBusinessLogic, xmsg.KindOf(err))
		assert.Contains(t, err.Error(), "cannot expand locally")

		// 对端自算联动价时无需主计划价格段，联动计划被过滤
		root, err := known.Build(RateInput{
			HotelCode:             "HOTEL001",
			EchoToken:             "echo-6",
			Operation:             xmsg.RateOpUpdate,
			Plans:                 []*xmsg.RatePlan{aaa, barPlan(t)},
			ExternalHandlesLinked: true,
		})
		require.NoError(t, err)
		msgs := root.FindElements("RateAmountMessages/RateAmountMessage")
		require.Len(t, msgs, 1)
		assert.Equal(t, "BAR", msgs[0].SelectAttrValue("RatePlanCode", ""))
	})
}

func sampleReservation(tx xmsg.TransactionType) *xmsg.Reservation {
	return &xmsg.Reservation{
		ConfirmationNumber: "CONF-100",
		HotelCode:          "HOTEL001",
		Transaction:        tx,
		Type:               xmsg.ReservationTransient,
		Guests: []xmsg.Guest{
			{FirstName: "Wei", LastName: "Zhang", Primary: true, Email: "wei@example.com"},
		},
		RoomStays: []xmsg.RoomStay{{
			RoomTypeCode: "KING",
			RatePlanCode: "BAR",
			Arrival:      day("2026-09-10"),
			Departure:    day("2026-09-12"),
			NightlyRate:  150,
			Currency:     "USD",
			Occupancy:    xmsg.Occupancy{Adults: 2, Children: 1},
		}},
	}
}

func TestReservationBuilder(t *testing.T) {
	b := NewReservationBuilder(WithReservationClock(fixedClock))

	t.Run("Commit", func(t *testing.T) {
		root, err := b.Build(ReservationInput{
			EchoToken:   "echo-1",
			Reservation: sampleReservation(xmsg.TransactionNew),
		})
		require.NoError(t, err)

		assert.Equal(t, "OTA_HotelResNotifRQ", root.Tag)
		assert.Equal(t, "Commit", root.SelectAttrValue("ResStatus", ""))
		assert.Equal(t, "14", attr(t, root, "HotelReservations/HotelReservation/UniqueID", "Type"))
		assert.Equal(t, "CONF-100", attr(t, root, "HotelReservations/HotelReservation/UniqueID", "ID"))
		assert.Equal(t, "HOTEL001", attr(t, root, "HotelReservations/HotelReservation/RoomStays/RoomStay/BasicPropertyInfo", "HotelCode"))

		counts := root.FindElements("HotelReservations/HotelReservation/RoomStays/RoomStay/GuestCounts/GuestCount")
		require.Len(t, counts, 2)
		assert.Equal(t, "10", counts[0].SelectAttrValue("AgeQualifyingCode", ""))
		assert.Equal(t, "2", counts[0].SelectAttrValue("Count", ""))
		assert.Equal(t, "8", counts[1].SelectAttrValue("AgeQualifyingCode", ""))

		given := root.FindElement("HotelReservations/HotelReservation/ResGuests/ResGuest/Profiles/ProfileInfo/Profile/Customer/PersonName/GivenName")
		require.NotNil(t, given)
		assert.Equal(t, "Wei", given.Text())
	})

	t.Run("CancelSkipsStaysAndGuests", func(t *testing.T) {
		root, err := b.Build(ReservationInput{
			EchoToken:   "echo-2",
			Reservation: sampleReservation(xmsg.TransactionCancel),
		})
		require.NoError(t, err)

		assert.Equal(t, "Cancel", root.SelectAttrValue("ResStatus", ""))
		assert.Nil(t, root.FindElement("HotelReservations/HotelReservation/RoomStays"))
		assert.Nil(t, root.FindElement("HotelReservations/HotelReservation/ResGuests"))
		assert.Equal(t, "CONF-100",
			attr(t, root, "HotelReservations/HotelReservation/ResGlobalInfo/HotelReservationIDs/HotelReservationID", "ResID_Value"))
	})

	t.Run("AgencyProfile", func(t *testing.T) {
		r := sampleReservation(xmsg.TransactionNew)
		r.Type = xmsg.ReservationTravelAgency
		r.Profiles.AgencyIATA = "12345678"

		root, err := b.Build(ReservationInput{EchoToken: "echo-3", Reservation: r})
		require.NoError(t, err)

		name := root.FindElement("HotelReservations/HotelReservation/ResGlobalInfo/Profiles/ProfileInfo/Profile/CompanyInfo/CompanyName")
		require.NotNil(t, name)
		assert.Equal(t, "12345678", name.SelectAttrValue("Code", ""))
		assert.Equal(t, "IATA", name.SelectAttrValue("CodeContext", ""))
	})

	t.Run("ModifyWithoutConfirmation", func(t *testing.T) {
		r := sampleReservation(xmsg.TransactionModify)
		r.ConfirmationNumber = ""
		_, err := b.Build(ReservationInput{EchoToken: "echo-4", Reservation: r})
		require.Error(t, err)
		assert.Equal(t, xmsg.KindBusinessLogic, xmsg.KindOf(err))
	})

	t.Run("PaymentGuarantee", func(t *testing.T) {
		r := sampleReservation(xmsg.TransactionNew)
		r.Payment = &xmsg.Payment{CardType: "VI", MaskedNumber: "************1111", ExpireDate: "1227", HolderName: "ZHANG WEI"}

		root, err := b.Build(ReservationInput{EchoToken: "echo-5", Reservation: r})
		require.NoError(t, err)
		card := root.FindElement("HotelReservations/HotelReservation/ResGlobalInfo/Guarantee/GuaranteesAccepted/GuaranteeAccepted/PaymentCard")
		require.NotNil(t, card)
		assert.Equal(t, "************1111", card.SelectAttrValue("CardNumber", ""))
	})
}

func TestRestrictionBuilder(t *testing.T) {
	b := NewRestrictionBuilder(WithRestrictionClock(fixedClock))

	t.Run("StatusAndLOS", func(t *testing.T) {
		root, err := b.Build(RestrictionInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-1",
			Restrictions: []*xmsg.Restriction{{
				HotelCode:    "HOTEL001",
				RoomTypeCode: "KING",
				StartDate:    day("2026-09-01"),
				EndDate:      day("2026-09-07"),
				Status:       xmsg.RestrictionClose,
				MinLOS:       2,
				MaxLOS:       7,
			}},
		})
		require.NoError(t, err)

		assert.Equal(t, "OTA_HotelAvailNotifRQ", root.Tag)
		assert.Equal(t, "Close", attr(t, root, "AvailStatusMessages/AvailStatusMessage/RestrictionStatus", "Status"))

		los := root.FindElements("AvailStatusMessages/AvailStatusMessage/LengthsOfStay/LengthOfStay")
		require.Len(t, los, 2)
		assert.Equal(t, "SetMinLOS", los[0].SelectAttrValue("MinMaxMessageType", ""))
		assert.Equal(t, "2", los[0].SelectAttrValue("Time", ""))
		assert.Equal(t, "SetMaxLOS", los[1].SelectAttrValue("MinMaxMessageType", ""))
		assert.Equal(t, "7", los[1].SelectAttrValue("Time", ""))
	})

	t.Run("ArrivalDepartureClosures", func(t *testing.T) {
		root, err := b.Build(RestrictionInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-2",
			Restrictions: []*xmsg.Restriction{{
				HotelCode:         "HOTEL001",
				RoomTypeCode:      "KING",
				StartDate:         day("2026-09-01"),
				EndDate:           day("2026-09-02"),
				ClosedToArrival:   true,
				ClosedToDeparture: true,
			}},
		})
		require.NoError(t, err)

		statuses := root.FindElements("AvailStatusMessages/AvailStatusMessage/RestrictionStatus")
		require.Len(t, statuses, 2)
		assert.Equal(t, "Arrival", statuses[0].SelectAttrValue("Restriction", ""))
		assert.Equal(t, "Departure", statuses[1].SelectAttrValue("Restriction", ""))
		for _, s := range statuses {
			assert.Equal(t, "Close", s.SelectAttrValue("Status", ""))
		}
	})

	t.Run("EmptyRestrictionRejected", func(t *testing.T) {
		_, err := b.Build(RestrictionInput{
			HotelCode: "HOTEL001",
			EchoToken: "echo-3",
			Restrictions: []*xmsg.Restriction{{
				HotelCode: "HOTEL001",
				StartDate: day("2026-09-01"),
				EndDate:   day("2026-09-02"),
			}},
		})
		require.Error(t, err)
		assert.Equal(t, xmsg.KindBusinessLogic, xmsg.KindOf(err))
	})
}

func TestGroupBlockBuilder(t *testing.T) {
	b := NewGroupBlockBuilder(WithGroupBlockClock(fixedClock))

	t.Run("Full", func(t *testing.T) {
		root, err := b.Build(GroupBlockInput{
			EchoToken: "echo-1",
			Blocks: []*xmsg.GroupBlock{{
				HotelCode:    "HOTEL001",
				BlockCode:    "GRP2026",
				Name:         "Annual Conference",
				StartDate:    day("2026-10-01"),
				EndDate:      day("2026-10-05"),
				CutoffDate:   day("2026-09-15"),
				RatePlanCode: "GRPRATE",
				Allocations:  map[string]int{"TWIN": 20, "KING": 10},
			}},
		})
		require.NoError(t, err)

		assert.Equal(t, "OTA_HotelInvBlockNotifRQ", root.Tag)
		assert.Equal(t, "HOTEL001", attr(t, root, "InvBlocks", "HotelCode"))

		block := root.FindElement("InvBlocks/InvBlock")
		require.NotNil(t, block)
		assert.Equal(t, "GRP2026", block.SelectAttrValue("InvBlockCode", ""))
		assert.Equal(t, "Annual Conference", block.SelectAttrValue("InvBlockLongName", ""))
		assert.Equal(t, "GRPRATE", block.SelectAttrValue("RatePlanCode", ""))

		dates := block.FindElement("InvBlockDates")
		require.NotNil(t, dates)
		assert.Equal(t, "2026-10-01", dates.SelectAttrValue("Start", ""))
		assert.Equal(t, "2026-09-15", dates.SelectAttrValue("AbsoluteCutoff", ""))

		// 房型按代码字典序
		rooms := block.FindElements("RoomTypes/RoomType")
		require.Len(t, rooms, 2)
		assert.Equal(t, "KING", rooms[0].SelectAttrValue("RoomTypeCode", ""))
		assert.Equal(t, "10", rooms[0].SelectAttrValue("NumberOfUnits", ""))
		assert.Equal(t, "TWIN", rooms[1].SelectAttrValue("RoomTypeCode", ""))
	})

	t.Run("NoCutoffOmitsAttr", func(t *testing.T) {
		root, err := b.Build(GroupBlockInput{
			EchoToken: "echo-2",
			Blocks: []*xmsg.GroupBlock{{
				HotelCode:   "HOTEL001",
				BlockCode:   "GRP2",
				StartDate:   day("2026-10-01"),
				EndDate:     day("2026-10-02"),
				Allocations: map[string]int{"KING": 5},
			}},
		})
		require.NoError(t, err)
		dates := root.FindElement("InvBlocks/InvBlock/InvBlockDates")
		require.NotNil(t, dates)
		assert.Empty(t, dates.SelectAttrValue("AbsoluteCutoff", ""))
	})

	t.Run("InvalidBlock", func(t *testing.T) {
		_, err := b.Build(GroupBlockInput{
			EchoToken: "echo-3",
			Blocks: []*xmsg.GroupBlock{{
				HotelCode: "HOTEL001",
				StartDate: day("2026-10-01"),
				EndDate:   day("2026-10-02"),
			}},
		})
		require.Error(t, err)
		assert.Equal(t, xmsg.KindBusinessLogic, xmsg.KindOf(err))
	})
}

func TestSerializeDeterministic(t *testing.T) {
	b := NewInventoryBuilder(WithInventoryClock(fixedClock))
	in := InventoryInput{
		HotelCode: "HOTEL001",
		EchoToken: "echo-1",
		Items: []*xmsg.InventoryItem{
			mustItem(t, "TWIN", map[xmsg.CountType]int{
				xmsg.CountDefiniteSold:  30,
				xmsg.CountTentativeSold: 4,
				xmsg.CountOutOfOrder:    1,
			}),
		},
	}

	first, err := b.Build(in)
	require.NoError(t, err)
	second, err := b.Build(in)
	require.NoError(t, err)

	a, err := Serialize(first)
	require.NoError(t, err)
	bb, err := Serialize(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(bb))

	_, err = Serialize(nil)
	assert.Error(t, err)
}
