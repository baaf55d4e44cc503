// Package metrics provides Prometheus metrics for the transit dashboard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll outcomes recorded by PollsTotal.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeStale   = "stale"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// Snapshot polling
	PollsTotal       *prometheus.CounterVec
	PollDuration     prometheus.Histogram
	SnapshotVehicles prometheus.Gauge

	// HTTP and push
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	LiveClients         prometheus.Gauge
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pollsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_snapshot_polls_total",
			Help: "Snapshot fetches by outcome",
		},
		[]string{"outcome"},
	)

	pollDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashboard_snapshot_poll_duration_seconds",
		Help:    "Snapshot fetch latency distribution",
		Buckets: prometheus.DefBuckets,
	})

	snapshotVehicles := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_snapshot_vehicles",
		Help: "Number of vehicles in the latest applied snapshot",
	})

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	liveClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_live_clients",
		Help: "Connected websocket clients",
	})

	registry.MustRegister(
		pollsTotal,
		pollDuration,
		snapshotVehicles,
		httpRequestsTotal,
		httpRequestDuration,
		liveClients,
	)

	return &Metrics{
		Registry:            registry,
		PollsTotal:          pollsTotal,
		PollDuration:        pollDuration,
		SnapshotVehicles:    snapshotVehicles,
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		LiveClients:         liveClients,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObservePoll records one completed fetch. A nil receiver is a no-op.
func (m *Metrics) ObservePoll(outcome string, seconds float64, vehicles int) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(outcome).Inc()
	m.PollDuration.Observe(seconds)
	if outcome == OutcomeSuccess {
		m.SnapshotVehicles.Set(float64(vehicles))
	}
}

// SetLiveClients records the websocket client count. A nil receiver is a
// no-op.
func (m *Metrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.LiveClients.Set(float64(n))
}
