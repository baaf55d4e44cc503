package config

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port              int    `yaml:"port" validate:"gte=0,lte=65535"`
	ShutdownTimeoutMS int    `yaml:"shutdownTimeoutMS" validate:"gte=0"`
	StaticDir         string `yaml:"staticDir"`
}

// BackendConfig describes the vehicle snapshot API polled by the dashboard
type BackendConfig struct {
	BaseURL        string `yaml:"baseURL" validate:"omitempty,url"`
	PollIntervalMS int    `yaml:"pollIntervalMS" validate:"gte=0"`
	TimeoutMS      int    `yaml:"timeoutMS" validate:"gte=0"`
}

// FeedsConfig lists raw realtime feeds the dashboard can read directly
// instead of a snapshot backend
type FeedsConfig struct {
	GtfsRtVehiclePositionsURL string `yaml:"gtfsrtVehiclePositionsURL" validate:"omitempty,url"`
	GtfsRtTripUpdatesURL      string `yaml:"gtfsrtTripUpdatesURL" validate:"omitempty,url"`
	SiriXMLURL                string `yaml:"siriXMLURL" validate:"omitempty,url"`
	SiriJSONURL               string `yaml:"siriJSONURL" validate:"omitempty,url"`
}

// Coordinate is a WGS84 position
type Coordinate struct {
	Lat float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `yaml:"lon" validate:"gte=-180,lte=180"`
}

// MapConfig contains map viewport settings
type MapConfig struct {
	DefaultCenter *Coordinate `yaml:"defaultCenter"`
	Zoom          int         `yaml:"zoom" validate:"gte=0,lte=22"`
}

// DisplayConfig controls how times are rendered
type DisplayConfig struct {
	Timezone   string `yaml:"timezone"`
	TimeLayout string `yaml:"timeLayout"`
}

// RefreshConfig throttles user-triggered refreshes; a zero rate disables them
type RefreshConfig struct {
	ManualPerSecond float64 `yaml:"manualPerSecond" validate:"gte=0"`
	ManualBurst     int     `yaml:"manualBurst" validate:"gte=0"`
}

// ThresholdsConfig classifies delays from raw feeds into on-time status
type ThresholdsConfig struct {
	LateSeconds  int `yaml:"lateSeconds" validate:"gte=0"`
	EarlySeconds int `yaml:"earlySeconds" validate:"lte=0"`
}

// LoggingConfig selects log format and level
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Backend    BackendConfig    `yaml:"backend"`
	Feeds      FeedsConfig      `yaml:"feeds"`
	Map        MapConfig        `yaml:"map"`
	Display    DisplayConfig    `yaml:"display"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Logging    LoggingConfig    `yaml:"logging"`
}
