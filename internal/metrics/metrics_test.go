package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersMetrics(t *testing.T) {
	m := New()
	require.NotNil(t, m.Registry)

	m.PollsTotal.WithLabelValues(OutcomeSuccess).Inc()
	m.HTTPRequestsTotal.WithLabelValues("GET", "/api/view", "200").Inc()
	m.HTTPRequestDuration.WithLabelValues("GET", "/api/view").Observe(0.01)

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["dashboard_snapshot_polls_total"])
	assert.True(t, names["dashboard_snapshot_poll_duration_seconds"])
	assert.True(t, names["dashboard_snapshot_vehicles"])
	assert.True(t, names["dashboard_http_requests_total"])
	assert.True(t, names["dashboard_http_request_duration_seconds"])
	assert.True(t, names["dashboard_live_clients"])
}

func TestObservePoll(t *testing.T) {
	m := New()
	m.ObservePoll(OutcomeSuccess, 0.2, 12)
	m.ObservePoll(OutcomeFailure, 0.1, 0)
	m.ObservePoll(OutcomeStale, 0.3, 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollsTotal.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollsTotal.WithLabelValues(OutcomeStale)))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.SnapshotVehicles), "only successful polls update the vehicle gauge")
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePoll(OutcomeSuccess, 1, 1)
		m.SetLiveClients(3)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetLiveClients(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dashboard_live_clients 2")
}
