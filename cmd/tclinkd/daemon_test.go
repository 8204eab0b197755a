package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/pkg/config/xpmsconf"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "travelclick.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRetentionWindow(t *testing.T) {
	cfg, err := xpmsconf.NewService(writeConfig(t, `
logging:
  retention_days: 30
`))
	require.NoError(t, err)
	defer cfg.Close()

	assert.Equal(t, 30*24*time.Hour, retentionWindow(context.Background(), cfg))
}

func TestRetentionWindowDefault(t *testing.T) {
	cfg, err := xpmsconf.NewService(writeConfig(t, `
logging:
  level: info
`))
	require.NoError(t, err)
	defer cfg.Close()

	assert.Equal(t, 90*24*time.Hour, retentionWindow(context.Background(), cfg))
}

func TestSoapClientOptions(t *testing.T) {
	cfg, err := xpmsconf.NewService(writeConfig(t, `
soap:
  user_agent: "pms-gateway/2.0"
  http:
    timeout: 45
`))
	require.NoError(t, err)
	defer cfg.Close()

	global, err := cfg.GetGlobal(context.Background())
	require.NoError(t, err)

	opts := soapClientOptions(global, slog.Default())
	assert.Len(t, opts, 6)
}

func TestBuildLoggerRejectsBadLevel(t *testing.T) {
	_, _, err := buildLogger(daemonOptions{LogLevel: "verbose", LogFormat: "text"})
	assert.Error(t, err)
}

func TestCreateAppRequiresConfig(t *testing.T) {
	app := createApp()
	err := app.Run(context.Background(), []string{"tclinkd"})
	assert.Error(t, err)
}
