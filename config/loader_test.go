package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
backend:
  baseURL: http://localhost:5000
  pollIntervalMS: 2500
map:
  defaultCenter:
    lat: 41.22
    lon: -111.97
display:
  timezone: UTC
`)
	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://localhost:5000", cfg.Backend.BaseURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 41.22, cfg.Map.DefaultCenter.Lat)
	assert.Equal(t, -111.97, cfg.Map.DefaultCenter.Lon)
	assert.NoError(t, cfg.CheckSource())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"), true)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, DefaultCenter, *cfg.Map.DefaultCenter)
	assert.Equal(t, DefaultZoom, cfg.Map.Zoom)
	assert.Equal(t, "15:04", cfg.Display.TimeLayout)
	assert.Equal(t, 300, cfg.Thresholds.LateSeconds)
	assert.Equal(t, -120, cfg.Thresholds.EarlySeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.ErrorIs(t, cfg.CheckSource(), ErrNoSource)
}

func TestLoad_ExplicitZeroOverridesDefault(t *testing.T) {
	path := writeConfig(t, `
backend:
  baseURL: http://localhost:5000
refresh:
  manualPerSecond: 0
thresholds:
  lateSeconds: 0
  earlySeconds: 0
`)
	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Thresholds.LateSeconds)
	assert.Equal(t, 0, cfg.Thresholds.EarlySeconds)
	assert.Equal(t, 0.0, cfg.Refresh.ManualPerSecond)
	assert.Equal(t, DefaultManualBurst, cfg.Refresh.ManualBurst, "omitted keys keep their default")
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"), false)
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := Load(path, false)
	assert.Error(t, err)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad url", "backend:\n  baseURL: not a url\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"bad latitude", "map:\n  defaultCenter:\n    lat: 95\n    lon: 0\n"},
		{"bad timezone", "display:\n  timezone: Mars/Olympus\n"},
		{"bad log format", "logging:\n  format: xml\n"},
		{"positive early threshold", "thresholds:\n  earlySeconds: 60\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), false)
			assert.Error(t, err)
		})
	}
}

func TestCheckSource_MoreThanOne(t *testing.T) {
	cfg := AppConfig{
		Backend: BackendConfig{BaseURL: "http://localhost:5000"},
		Feeds:   FeedsConfig{SiriXMLURL: "http://example.com/vm.xml"},
	}
	assert.ErrorIs(t, cfg.CheckSource(), ErrNoSource)

	cfg.Backend.BaseURL = ""
	assert.NoError(t, cfg.CheckSource())
}
