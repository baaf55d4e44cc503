package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/time/rate"

	"transit-dashboard/config"
	"transit-dashboard/internal/logging"
	"transit-dashboard/internal/metrics"
)

const defaultConfigPath = "config.yml"

var (
	configPath        = flag.String("config", defaultConfigPath, "YAML configuration file")
	httpPort          = flag.Int("port", 0, "HTTP port (overrides server.port)")
	backendURL        = flag.String("backend_url", "", "Vehicle snapshot backend base URL")
	gtfsrtURL         = flag.String("gtfsrt_url", "", "GTFS-RT vehicle positions URL (protobuf)")
	gtfsrtTripUpdates = flag.String("gtfsrt_trip_updates_url", "", "GTFS-RT trip updates URL, used with --gtfsrt_url")
	siriXmlURL        = flag.String("siri_xml_url", "", "SIRI VehicleMonitoring XML URL")
	siriJsonURL       = flag.String("siri_json_url", "", "SIRI VehicleMonitoring JSON URL")
	logLevel          = flag.String("log_level", "", "Log level: debug, info, warn, error")
	logFormat         = flag.String("log_format", "", "Log format: json or text")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	logger := logging.NewStructuredLogger(os.Stdout, cfg.Logging.Format, level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logging.LogError(logger, "dashboard exited", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command-line overrides. The
// default file may be absent; an explicitly named one may not.
func loadConfig() (config.AppConfig, error) {
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	cfg, err := config.Load(*configPath, !explicit)
	if err != nil {
		return config.AppConfig{}, err
	}

	if *httpPort != 0 {
		cfg.Server.Port = *httpPort
	}
	if *backendURL != "" {
		cfg.Backend.BaseURL = *backendURL
	}
	if *gtfsrtURL != "" {
		cfg.Feeds.GtfsRtVehiclePositionsURL = *gtfsrtURL
	}
	if *gtfsrtTripUpdates != "" {
		cfg.Feeds.GtfsRtTripUpdatesURL = *gtfsrtTripUpdates
	}
	if *siriXmlURL != "" {
		cfg.Feeds.SiriXMLURL = *siriXmlURL
	}
	if *siriJsonURL != "" {
		cfg.Feeds.SiriJSONURL = *siriJsonURL
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	if err := cfg.Validate(); err != nil {
		return config.AppConfig{}, err
	}
	if err := cfg.CheckSource(); err != nil {
		return config.AppConfig{}, err
	}
	return cfg, nil
}

func selectSource(cfg config.AppConfig) SnapshotSource {
	thresholds := DelayThresholds{
		LateSeconds:  float64(cfg.Thresholds.LateSeconds),
		EarlySeconds: float64(cfg.Thresholds.EarlySeconds),
	}
	timeout := cfg.Timeout()
	switch {
	case cfg.Backend.BaseURL != "":
		return NewBackendSource(cfg.Backend.BaseURL, timeout)
	case cfg.Feeds.GtfsRtVehiclePositionsURL != "":
		return NewGtfsRtSource(cfg.Feeds.GtfsRtVehiclePositionsURL, cfg.Feeds.GtfsRtTripUpdatesURL, thresholds, timeout)
	case cfg.Feeds.SiriXMLURL != "":
		return NewSiriXmlSource(cfg.Feeds.SiriXMLURL, thresholds, timeout)
	default:
		return NewSiriJsonSource(cfg.Feeds.SiriJSONURL, thresholds, timeout)
	}
}

// refreshLimiter throttles POST /api/refresh. A zero rate disables manual
// refresh outright rather than granting a single burst.
func refreshLimiter(c config.RefreshConfig) *rate.Limiter {
	if c.ManualPerSecond == 0 {
		return rate.NewLimiter(0, 0)
	}
	return rate.NewLimiter(rate.Limit(c.ManualPerSecond), c.ManualBurst)
}

func run(cfg config.AppConfig, logger *slog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	m := metrics.New()

	var hub *liveHub
	poll := newPoller(selectSource(cfg), pollerOptions{
		Interval: cfg.PollInterval(),
		Timeout:  cfg.Timeout(),
		Logger:   logger,
		Metrics:  m,
		OnUpdate: func(SyncStatus) { hub.Broadcast() },
	})
	dash := newDashboard(poll, dashboardOptions{
		Center: LatLon{cfg.Map.DefaultCenter.Lat, cfg.Map.DefaultCenter.Lon},
		Zoom:   cfg.Map.Zoom,
		Format: TimeFormat{Location: loc, Layout: cfg.Display.TimeLayout},
	})
	hub = newLiveHub(dash, logger, m)

	srv := &server{
		poll:      poll,
		dash:      dash,
		hub:       hub,
		metrics:   m,
		logger:    logger.With(slog.String("component", "http")),
		limiter:   refreshLimiter(cfg.Refresh),
		staticDir: cfg.Server.StaticDir,
	}
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	go poll.run(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case sig := <-sigs:
		logger.Info("shutdown initiated", slog.String("signal", sig.String()))
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	poll.Stop()
	<-poll.Done()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logging.LogError(logger, "HTTP server shutdown error", err)
	} else {
		logger.Info("HTTP server shut down successfully")
	}
	return runErr
}
