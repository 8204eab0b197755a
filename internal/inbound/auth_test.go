package inbound

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/pkg/config/xpmsconf"
	"github.com/omeyang/tclink/pkg/htng/xmsg"
	"github.com/omeyang/tclink/pkg/htng/xparse"
)

// stubConfig 测试用配置源。
type stubConfig struct {
	props map[string]*xpmsconf.PropertyConfig
}

var _ ConfigSource = (*stubConfig)(nil)

func (s *stubConfig) Get(_ context.Context, propertyID string) (*xpmsconf.PropertyConfig, error) {
	p, ok := s.props[propertyID]
	if !ok {
		return nil, xpmsconf.ErrPropertyNotFound
	}
	return p, nil
}

func (s *stubConfig) Credentials(_ context.Context, propertyID string) (*xpmsconf.Credentials, error) {
	p, ok := s.props[propertyID]
	if !ok {
		return nil, xpmsconf.ErrPropertyNotFound
	}
	return &xpmsconf.Credentials{Username: p.Username, Password: p.Password, HotelCode: p.HotelCode}, nil
}

func (s *stubConfig) FindByHotelCode(_ context.Context, hotelCode string) (string, error) {
	ids := make([]string, 0, len(s.props))
	for id := range s.props {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if s.props[id].HotelCode == hotelCode {
			return id, nil
		}
	}
	return "", xpmsconf.ErrPropertyNotFound
}

func newAuthConfig() *stubConfig {
	return &stubConfig{
		props: map[string]*xpmsconf.PropertyConfig{
			"101": {
				PropertyID: "101",
				HotelCode:  "HOTEL1",
				Username:   "agent",
				Password:   "secret-password",
				Active:     true,
				EnabledTypes: []xmsg.MessageType{
					xmsg.TypeInventory, xmsg.TypeRates, xmsg.TypeReservation,
				},
				RequestTimeout: 30 * time.Second,
			},
			"102": {
				PropertyID: "102",
				HotelCode:  "HOTEL2",
				Username:   "agent2",
				Password:   "secret-password-2",
				Active:     false,
			},
		},
	}
}

func validHeader() xparse.Header {
	return xparse.Header{
		MessageID: "CRS-HOTEL1-RESERVATION-0001",
		HotelCode: "HOTEL1",
		Credentials: &xparse.Credentials{
			Username: "agent",
			Password: "secret-password",
		},
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	auth, err := NewAuthenticator(newAuthConfig())
	require.NoError(t, err)

	propertyID, prop, err := auth.Authenticate(context.Background(), validHeader())
	require.NoError(t, err)
	assert.Equal(t, "101", propertyID)
	assert.Equal(t, "HOTEL1", prop.HotelCode)
}

func TestAuthenticatePropertyIDFallback(t *testing.T) {
	auth, err := NewAuthenticator(newAuthConfig())
	require.NoError(t, err)

	h := validHeader()
	h.HotelCode = "101"
	propertyID, _, err := auth.Authenticate(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "101", propertyID)
}

func TestAuthenticateRejections(t *testing.T) {
	auth, err := NewAuthenticator(newAuthConfig())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("wrong password", func(t *testing.T) {
		h := validHeader()
		h.Credentials.Password = "wrong"
		_, _, err := auth.Authenticate(ctx, h)
		var aerr *AuthError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, "invalid credentials", aerr.Reason)
	})

	t.Run("wrong username", func(t *testing.T) {
		h := validHeader()
		h.Credentials = &xparse.Credentials{Username: "intruder", Password: "secret-password"}
		_, _, err := auth.Authenticate(ctx, h)
		var aerr *AuthError
		require.ErrorAs(t, err, &aerr)
	})

	t.Run("missing credentials", func(t *testing.T) {
		h := validHeader()
		h.Credentials = nil
		_, _, err := auth.Authenticate(ctx, h)
		var aerr *AuthError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, "missing WSSE credentials", aerr.Reason)
	})

	t.Run("empty password", func(t *testing.T) {
		h := validHeader()
		h.Credentials = &xparse.Credentials{Username: "agent"}
		_, _, err := auth.Authenticate(ctx, h)
		var aerr *AuthError
		require.ErrorAs(t, err, &aerr)
	})

	t.Run("missing hotel code", func(t *testing.T) {
		h := validHeader()
		h.HotelCode = ""
		_, _, err := auth.Authenticate(ctx, h)
		var aerr *AuthError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, "missing hotel code", aerr.Reason)
	})

	t.Run("unknown hotel", func(t *testing.T) {
		h := validHeader()
		h.HotelCode = "NOWHERE"
		_, _, err := auth.Authenticate(ctx, h)
		var aerr *AuthError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, "unknown hotel", aerr.Reason)
	})

	t.Run("inactive property", func(t *testing.T) {
		h := xparse.Header{
			HotelCode: "HOTEL2",
			Credentials: &xparse.Credentials{
				Username: "agent2",
				Password: "secret-password-2",
			},
		}
		_, _, err := auth.Authenticate(ctx, h)
		var aerr *AuthError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, "property is inactive", aerr.Reason)
	})
}

func TestNewAuthenticatorNilConfig(t *testing.T) {
	_, err := NewAuthenticator(nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}
