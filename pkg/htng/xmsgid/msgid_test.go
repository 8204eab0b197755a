package xmsgid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

func TestGenerator_Unique(t *testing.T) {
	g := New()

	id1, err := g.Unique("HOTEL001", xmsg.TypeInventory)
	require.NoError(t, err)
	id2, err := g.Unique("HOTEL001", xmsg.TypeInventory)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.True(t, IsValid(id1))

	p, err := Parse(id1)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefix, p.Prefix)
	assert.Equal(t, "HOTEL001", p.Hotel)
	assert.Equal(t, xmsg.TypeInventory, p.Type)
	assert.True(t, p.Timestamp.IsZero())
}

func TestGenerator_Unique_Validation(t *testing.T) {
	g := New()

	_, err := g.Unique("", xmsg.TypeInventory)
	assert.ErrorIs(t, err, ErrEmptyHotel)

	_, err = g.Unique("H1", xmsg.MessageType("BOGUS"))
	assert.ErrorIs(t, err, xmsg.ErrInvalidMessageType)
}

func TestGenerator_Timestamped(t *testing.T) {
	g := New(WithClock(func() time.Time {
		return time.Date(2026, 8, 24, 12, 30, 45, 123_000_000, time.UTC)
	}))

	id, err := g.Timestamped("HOTEL001", xmsg.TypeRates)
	require.NoError(t, err)
	assert.True(t, IsValid(id))

	p, err := Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "HOTEL001", p.Hotel)
	assert.Equal(t, xmsg.TypeRates, p.Type)
	assert.Equal(t, time.Date(2026, 8, 24, 12, 30, 45, 123_000_000, time.UTC), p.Timestamp)
}

func TestGenerator_Idempotent(t *testing.T) {
	g := New()
	payload := []byte("<OTA_HotelResNotifRQ/>")

	id1, err := g.Idempotent("HOTEL001", xmsg.TypeReservation, payload)
	require.NoError(t, err)
	id2, err := g.Idempotent("HOTEL001", xmsg.TypeReservation, payload)
	require.NoError(t, err)

	// 相同载荷产出相同标识
	assert.Equal(t, id1, id2)

	// 不同载荷产出不同标识
	id3, err := g.Idempotent("HOTEL001", xmsg.TypeReservation, []byte("<other/>"))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)

	// 不同酒店产出不同标识
	id4, err := g.Idempotent("HOTEL002", xmsg.TypeReservation, payload)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id4)

	assert.True(t, IsValid(id1))
}

func TestParse_RoundTrip(t *testing.T) {
	g := New(WithPrefix("TC"))

	for _, mt := range xmsg.BusinessTypes() {
		id, err := g.Unique("HOTEL-A_1", mt)
		require.NoError(t, err)

		p, err := Parse(id)
		require.NoError(t, err, id)
		assert.Equal(t, "TC", p.Prefix)
		assert.Equal(t, "HOTEL-A_1", p.Hotel)
		assert.Equal(t, mt, p.Type)
	}
}

func TestParse_Invalid(t *testing.T) {
	bad := []string{
		"",
		"garbage",
		"PMS-HOTEL001-INVENTORY",                                       // 缺 uuid
		"PMS-HOTEL001-BOGUS-6ba7b810-9dad-11d1-80b4-00c04fd430c8",      // 非法类型
		"PMS--INVENTORY-6ba7b810-9dad-11d1-80b4-00c04fd430c8",          // 空 hotel
		"PMS-HOTEL001-INVENTORY-6ba7b810-9dad-11d1-80b4-00c04fd430",    // uuid 截断
	}
	for _, id := range bad {
		t.Run(id, func(t *testing.T) {
			assert.False(t, IsValid(id))
		})
	}
}
