package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultPort              = 8080
	DefaultShutdownTimeoutMS = 10000
	DefaultStaticDir         = "./static"
	DefaultPollIntervalMS    = 5000
	DefaultTimeoutMS         = 10000
	DefaultZoom              = 11
	DefaultTimeLayout        = "15:04"
	DefaultManualPerSecond   = 1
	DefaultManualBurst       = 1
	DefaultLateSeconds       = 300
	DefaultEarlySeconds      = -120
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
)

// DefaultCenter is the map center used when no vehicle is locatable
// (Salt Lake City).
var DefaultCenter = Coordinate{Lat: 40.7608, Lon: -111.891}

// ErrNoSource is returned when no snapshot source, or more than one, is set.
var ErrNoSource = errors.New("provide exactly one of backend.baseURL, feeds.gtfsrtVehiclePositionsURL, feeds.siriXMLURL, feeds.siriJSONURL")

// Defaults returns the configuration used for every key the file leaves
// out. Keys present in the file replace these values, zero included.
func Defaults() AppConfig {
	center := DefaultCenter
	return AppConfig{
		Server: ServerConfig{
			Port:              DefaultPort,
			ShutdownTimeoutMS: DefaultShutdownTimeoutMS,
			StaticDir:         DefaultStaticDir,
		},
		Backend: BackendConfig{
			PollIntervalMS: DefaultPollIntervalMS,
			TimeoutMS:      DefaultTimeoutMS,
		},
		Map: MapConfig{
			DefaultCenter: &center,
			Zoom:          DefaultZoom,
		},
		Display: DisplayConfig{TimeLayout: DefaultTimeLayout},
		Refresh: RefreshConfig{
			ManualPerSecond: DefaultManualPerSecond,
			ManualBurst:     DefaultManualBurst,
		},
		Thresholds: ThresholdsConfig{
			LateSeconds:  DefaultLateSeconds,
			EarlySeconds: DefaultEarlySeconds,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads path over Defaults and validates. A missing file is not an
// error when allowMissing is set; defaults are returned instead.
func Load(path string, allowMissing bool) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case allowMissing && errors.Is(err, fs.ErrNotExist):
	default:
		return AppConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// ApplyDefaults restores fields set to a value that can never be valid,
// such as an explicit null. Zero thresholds and refresh rates are
// meaningful and left alone.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeoutMS == 0 {
		c.Server.ShutdownTimeoutMS = DefaultShutdownTimeoutMS
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = DefaultStaticDir
	}
	if c.Backend.PollIntervalMS == 0 {
		c.Backend.PollIntervalMS = DefaultPollIntervalMS
	}
	if c.Backend.TimeoutMS == 0 {
		c.Backend.TimeoutMS = DefaultTimeoutMS
	}
	if c.Map.DefaultCenter == nil {
		center := DefaultCenter
		c.Map.DefaultCenter = &center
	}
	if c.Map.Zoom == 0 {
		c.Map.Zoom = DefaultZoom
	}
	if c.Display.TimeLayout == "" {
		c.Display.TimeLayout = DefaultTimeLayout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate checks struct tags and the timezone name.
func (c AppConfig) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid display.timezone: %w", err)
	}
	return nil
}

// CheckSource reports ErrNoSource unless exactly one source is configured.
func (c AppConfig) CheckSource() error {
	count := 0
	for _, u := range []string{c.Backend.BaseURL, c.Feeds.GtfsRtVehiclePositionsURL, c.Feeds.SiriXMLURL, c.Feeds.SiriJSONURL} {
		if u != "" {
			count++
		}
	}
	if count != 1 {
		return ErrNoSource
	}
	return nil
}

// Location resolves display.timezone; empty means the process local zone.
func (c AppConfig) Location() (*time.Location, error) {
	if c.Display.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Display.Timezone)
}

// PollInterval is backend.pollIntervalMS as a duration.
func (c AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Backend.PollIntervalMS) * time.Millisecond
}

// Timeout is backend.timeoutMS as a duration.
func (c AppConfig) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutMS) * time.Millisecond
}

// ShutdownTimeout is server.shutdownTimeoutMS as a duration.
func (c AppConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutMS) * time.Millisecond
}
