package xpmsconf

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

const testConfig = `
endpoints:
  production: https://crs.example.com/htng
  test: https://crs-test.example.com/htng
  wsdl: https://crs.example.com/htng?wsdl
retry_policy:
  max_attempts: 3
  backoff_strategy: exponential
  initial_delay_seconds: 10
  max_delay_seconds: 300
  multiplier: 2.0
message_types:
  INVENTORY:
    enabled: true
    batch_size: 100
    timeout_seconds: 60
    count_types: [4, 5, 6]
    auto_send_inventory_updates: true
  RATES:
    enabled: true
    batch_size: 50
    supports_linked_rates: true
soap:
  trace: true
  user_agent: tclink/1.0
  ssl:
    verify_peer: true
    verify_peer_name: true
  http:
    timeout: 90
  compression: true
validation:
  hotel_code:
    pattern: "^[A-Za-z0-9_-]{1,20}$"
    min_length: 1
    max_length: 20
synchronization:
  full_sync_schedule: "0 2 * * *"
  delta_sync_interval: 300
  order: [INVENTORY, RATES, RESTRICTIONS]
properties:
  "101":
    hotel_code: HOTEL1
    username: api-user
    password: s3cret-pw
    environment: test
    active: true
    enabled_types: [INVENTORY, RATES, RESERVATION]
    external_system_handles_linked_rates: true
    timeouts:
      connect_seconds: 15
  "202":
    hotel_code: "BAD CODE!"
    username: ""
    password: short
    environment: staging
    active: true
    enabled_types: [INVENTORY, FOO]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tclink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, string) {
	t.Helper()
	path := writeConfig(t, testConfig)
	s, err := NewService(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestGetGlobal(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	g, err := s.GetGlobal(ctx)
	require.NoError(t, err)

	assert.Equal(t, "https://crs.example.com/htng", g.Endpoints.Production)
	assert.Equal(t, 3, g.RetryPolicy.MaxAttempts)
	assert.Equal(t, 2.0, g.RetryPolicy.Multiplier)
	assert.True(t, g.Soap.SSL.VerifyPeer)
	assert.Equal(t, 90, g.Soap.HTTP.TimeoutSeconds)
	assert.Equal(t, "0 2 * * *", g.Synchronization.FullSyncSchedule)

	inv := g.MessageType(xmsg.TypeInventory)
	assert.True(t, inv.Enabled)
	assert.Equal(t, 100, inv.BatchSize)
	assert.Equal(t, []int{4, 5, 6}, inv.CountTypes)
	assert.True(t, inv.AutoSendInventoryUpdates)

	assert.True(t, g.MessageType(xmsg.TypeRates).SupportsLinkedRates)
	assert.False(t, g.MessageType(xmsg.TypeGroupBlock).Enabled)
}

func TestGetResolvesPropertyConfig(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	p, err := s.Get(ctx, "101")
	require.NoError(t, err)

	assert.Equal(t, "101", p.PropertyID)
	assert.Equal(t, "HOTEL1", p.HotelCode)
	assert.Equal(t, xmsg.EnvTest, p.Environment)
	// test 环境解析到 test 地址
	assert.Equal(t, "https://crs-test.example.com/htng", p.Endpoint)
	assert.True(t, p.Active)
	assert.True(t, p.ExternalLinkedRates)

	// 酒店覆盖的建连超时 + 全局 soap.http.timeout 兜底的请求超时
	assert.Equal(t, 15*time.Second, p.ConnectTimeout)
	assert.Equal(t, 90*time.Second, p.RequestTimeout)

	// 未覆盖时沿用全局重试策略
	assert.Equal(t, 3, p.Retry.MaxAttempts)

	assert.True(t, p.Enabled(xmsg.TypeInventory))
	assert.True(t, p.Enabled(xmsg.TypeReservation))
	assert.False(t, p.Enabled(xmsg.TypeGroupBlock))
}

func TestGetPropertyNotFound(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.Get(context.Background(), "999")
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestGetEnvironmentMismatch(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.Get(context.Background(), "202")
	assert.ErrorIs(t, err, ErrEnvironmentMismatch)
}

func TestCredentials(t *testing.T) {
	s, _ := newTestService(t)

	c, err := s.Credentials(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, "api-user", c.Username)
	assert.Equal(t, "s3cret-pw", c.Password)
	assert.Equal(t, "HOTEL1", c.HotelCode)

	_, err = s.Credentials(context.Background(), "999")
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestEndpoint(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	prod, err := s.Endpoint(ctx, xmsg.EnvProduction)
	require.NoError(t, err)
	assert.Equal(t, "https://crs.example.com/htng", prod)

	test, err := s.Endpoint(ctx, xmsg.EnvTest)
	require.NoError(t, err)
	assert.Equal(t, "https://crs-test.example.com/htng", test)

	_, err = s.Endpoint(ctx, xmsg.Environment("staging"))
	assert.ErrorIs(t, err, ErrEnvironmentMismatch)
}

func TestFindByHotelCode(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	id, err := s.FindByHotelCode(ctx, "HOTEL1")
	require.NoError(t, err)
	assert.Equal(t, "101", id)

	_, err = s.FindByHotelCode(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestValidate(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	t.Run("CleanProperty", func(t *testing.T) {
		issues, err := s.Validate(ctx, "101")
		require.NoError(t, err)
		assert.Empty(t, issues)
	})

	t.Run("BrokenProperty", func(t *testing.T) {
		issues, err := s.Validate(ctx, "202")
		require.NoError(t, err)

		fields := make(map[string]bool)
		for _, i := range issues {
			fields[i.Field] = true
		}
		assert.True(t, fields["hotel_code"], "hotel code with spaces must be flagged")
		assert.True(t, fields["password"], "short password must be flagged")
		assert.True(t, fields["username"], "empty username must be flagged")
		assert.True(t, fields["environment"], "unknown environment must be flagged")
		assert.True(t, fields["enabled_types"], "unrecognized type must be flagged")
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.Validate(ctx, "999")
		assert.ErrorIs(t, err, ErrPropertyNotFound)
	})
}

func TestValidateFlagsNonHTTPSEndpoint(t *testing.T) {
	cfg := `
endpoints:
  test: http://plain.example.com/htng
properties:
  "1":
    hotel_code: HOTEL1
    username: u
    password: long-enough
    environment: test
    enabled_types: [INVENTORY]
`
	path := writeConfig(t, cfg)
	s, err := NewService(path)
	require.NoError(t, err)
	defer s.Close()

	issues, err := s.Validate(context.Background(), "1")
	require.NoError(t, err)

	found := false
	for _, i := range issues {
		if i.Field == "endpoints.test" && i.Rule == "must use https" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReloadInvalidatesCache(t *testing.T) {
	s, path := newTestService(t)
	ctx := context.Background()

	c, err := s.Credentials(ctx, "101")
	require.NoError(t, err)
	require.Equal(t, "s3cret-pw", c.Password)

	updated := strings.Replace(testConfig, "password: s3cret-pw", "password: rotated-pw", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	require.NoError(t, s.Reload())

	c, err = s.Credentials(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, "rotated-pw", c.Password)
}

func TestInvalidateProperty(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "101")
	require.NoError(t, err)

	// 直接失效不报错，后续读取重新解析
	s.InvalidateProperty("101")
	s.Invalidate(xmsg.ScopeGlobal)
	s.InvalidateAll()

	p, err := s.Get(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, "HOTEL1", p.HotelCode)
}

func TestStartWatchReloadsOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("file watch test skipped in short mode")
	}

	s, path := newTestService(t)
	ctx := context.Background()

	c, err := s.Credentials(ctx, "101")
	require.NoError(t, err)
	require.Equal(t, "s3cret-pw", c.Password)

	reloaded := make(chan error, 4)
	require.NoError(t, s.StartWatch(func(err error) { reloaded <- err }))

	updated := strings.Replace(testConfig, "password: s3cret-pw", "password: watched-pw", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload not observed")
	}

	require.Eventually(t, func() bool {
		c, err := s.Credentials(ctx, "101")
		return err == nil && c.Password == "watched-pw"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestNewServiceGuards(t *testing.T) {
	_, err := NewService("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = NewService(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
