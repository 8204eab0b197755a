package xmlns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

func TestByPrefix_RoundTrip(t *testing.T) {
	// 前缀表往返：ByPrefix(p)=uri 当且仅当 (p→uri) 在映射表中
	for prefix, want := range Prefixes() {
		uri, err := ByPrefix(prefix)
		require.NoError(t, err, prefix)
		assert.Equal(t, want, uri)

		back, err := ByURI(uri)
		require.NoError(t, err, uri)
		assert.Equal(t, prefix, back)
	}
}

func TestByPrefix_Unknown(t *testing.T) {
	_, err := ByPrefix("nope")
	assert.ErrorIs(t, err, ErrUnknownPrefix)

	_, err = ByURI("http://example.com/unknown")
	assert.ErrorIs(t, err, ErrUnknownURI)
}

func TestIsSoapEnvelope(t *testing.T) {
	assert.True(t, IsSoapEnvelope(SoapEnv11))
	assert.True(t, IsSoapEnvelope(SoapEnv12))
	assert.False(t, IsSoapEnvelope(OTA))
}

func TestSchemaFor(t *testing.T) {
	tests := []struct {
		mt   xmsg.MessageType
		root string
	}{
		{xmsg.TypeInventory, "OTA_HotelInvCountNotifRQ"},
		{xmsg.TypeRates, "OTA_HotelRateNotifRQ"},
		{xmsg.TypeReservation, "OTA_HotelResNotifRQ"},
		{xmsg.TypeRestrictions, "OTA_HotelAvailNotifRQ"},
		{xmsg.TypeGroupBlock, "OTA_HotelInvBlockNotifRQ"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mt), func(t *testing.T) {
			s, err := SchemaFor(tt.mt)
			require.NoError(t, err)
			assert.Equal(t, tt.root, s.Root)
			assert.Contains(t, s.RequiredAttrs, "TimeStamp")
			assert.Contains(t, s.RequiredAttrs, "EchoToken")
			assert.Contains(t, s.RequiredAttrs, "Version")
			assert.NotEmpty(t, s.XSDPath)

			// 根元素反查与 Schema 一致
			assert.Equal(t, tt.mt, TypeForRoot(s.Root))
		})
	}
}

func TestSchemaFor_Unregistered(t *testing.T) {
	_, err := SchemaFor(xmsg.TypeResponse)
	assert.ErrorIs(t, err, ErrNoSchema)

	_, err = RootFor(xmsg.TypeUnknown)
	assert.ErrorIs(t, err, ErrNoSchema)
}

func TestTypeForRoot(t *testing.T) {
	assert.Equal(t, xmsg.TypeResponse, TypeForRoot("OTA_HotelResNotifRS"))
	assert.Equal(t, xmsg.TypeUnknown, TypeForRoot("SomeRandomElement"))
}
