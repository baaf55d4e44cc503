package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transit-dashboard/internal/clock"
)

type fixedStatus struct {
	st SyncStatus
}

func (f *fixedStatus) Status() SyncStatus { return f.st }

func testDashboard(st SyncStatus) (*Dashboard, *fixedStatus) {
	src := &fixedStatus{st: st}
	d := newDashboard(src, dashboardOptions{
		Center: LatLon{40.7608, -111.891},
		Zoom:   11,
		Format: TimeFormat{Location: time.UTC, Layout: "15:04"},
		Clock:  clock.NewMockClock(testNow),
	})
	return d, src
}

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		GeneratedAt: "2025-11-29T17:59:30Z",
		Vehicles: []VehicleObservation{
			{VehicleID: "V1", RouteID: "2", Headsign: "Downtown", DelaySeconds: floatPtr(60), OnTimeStatus: StatusOnTime,
				Lat: floatPtr(40), Lon: floatPtr(-111), EstimatedArrival: "2025-11-29T18:04:00Z", LastUpdate: "2025-11-29T17:59:00Z"},
			{VehicleID: "V2", RouteID: "9", RouteShortName: "9X", DelaySeconds: floatPtr(400), OnTimeStatus: StatusLate,
				Lat: floatPtr(41), Lon: floatPtr(-112)},
			{RouteID: "2", TripHeadsign: "University", OnTimeStatus: "DELAYED"},
		},
	}
}

func TestDashboard_Loading(t *testing.T) {
	d, _ := testDashboard(SyncStatus{Loading: true})
	view := d.View(testNow)

	assert.True(t, view.Loading)
	assert.False(t, view.Stale)
	assert.Empty(t, view.LastUpdated)
	assert.NotNil(t, view.RouteOptions)
	assert.NotNil(t, view.Rows)
	assert.Empty(t, view.Rows)
	assert.Equal(t, Summary{}, view.Summary)
	assert.Nil(t, view.Map)
	assert.Equal(t, DefaultSelection(), view.Selection)
}

func TestDashboard_TableView(t *testing.T) {
	d, _ := testDashboard(SyncStatus{Snapshot: sampleSnapshot()})
	view := d.View(testNow)

	assert.False(t, view.Loading)
	assert.Equal(t, "17:59:30", view.LastUpdated)
	assert.Equal(t, []string{"2", "9"}, view.RouteOptions)
	assert.Equal(t, Counts{Total: 3, OnTime: 1, Late: 1}, view.Summary.Counts)
	assert.Equal(t, Percentages{OnTime: 33, Late: 33}, view.Summary.Percentages)

	require.Len(t, view.Rows, 3)
	assert.Equal(t, VehicleRow{
		Key: "V2", Route: "9X", Direction: "-", NextStop: "-", ETA: "-",
		Delay: "+7 min", Status: "LATE", StatusClass: "status-late", LastUpdate: "-",
	}, view.Rows[0])
	assert.Equal(t, VehicleRow{
		Key: "V1", Route: "2", Direction: "Downtown", NextStop: "-", ETA: "18:04 (in 4 min)",
		Delay: "+1 min", Status: "ON_TIME", StatusClass: "status-on-time", LastUpdate: "17:59",
	}, view.Rows[1])
	assert.Equal(t, VehicleRow{
		Key: "2-", Route: "2", Direction: "University", NextStop: "-", ETA: "-",
		Delay: "-", Status: "DELAYED", StatusClass: "status-unknown", LastUpdate: "-",
	}, view.Rows[2])
	assert.Nil(t, view.Map)
}

func TestDashboard_RouteFilter(t *testing.T) {
	d, _ := testDashboard(SyncStatus{Snapshot: sampleSnapshot()})
	sel := d.SelectRoute("9")
	assert.Equal(t, "9", sel.Route)

	view := d.View(testNow)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "V2", view.Rows[0].Key)
	assert.Equal(t, 1, view.Summary.Counts.Total)
	assert.Equal(t, []string{"2", "9"}, view.RouteOptions, "route options ignore the filter")

	assert.Equal(t, AllRoutes, d.SelectRoute("").Route)
	assert.Len(t, d.View(testNow).Rows, 3)
}

func TestDashboard_MapView(t *testing.T) {
	d, _ := testDashboard(SyncStatus{Snapshot: sampleSnapshot()})
	_, err := d.SetViewMode(ViewMap)
	require.NoError(t, err)

	view := d.View(testNow)
	require.NotNil(t, view.Map)
	assert.Equal(t, 11, view.Map.Zoom)
	assert.Equal(t, LatLon{40.5, -111.5}, view.Map.Center)
	require.Len(t, view.Map.Markers, 2)
	assert.Equal(t, "V2", view.Map.Markers[0].Key)
	assert.Len(t, view.Rows, 3, "rows are still derived in map mode")

	d.SelectRoute("nothing")
	view = d.View(testNow)
	require.NotNil(t, view.Map)
	assert.Equal(t, LatLon{40.7608, -111.891}, view.Map.Center)
	assert.Empty(t, view.Map.Markers)
}

func TestDashboard_SetViewModeRejectsUnknown(t *testing.T) {
	d, _ := testDashboard(SyncStatus{})
	sel, err := d.SetViewMode("globe")
	require.Error(t, err)
	assert.Equal(t, ViewTable, sel.ViewMode)
	assert.Equal(t, ViewTable, d.Selection().ViewMode)
}

func TestDashboard_StaleAfterError(t *testing.T) {
	d, src := testDashboard(SyncStatus{Snapshot: sampleSnapshot()})
	src.st.Error = "backend returned 502"

	view := d.View(testNow)
	assert.True(t, view.Stale)
	assert.Equal(t, "backend returned 502", view.Error)
	assert.Len(t, view.Rows, 3)
	assert.Equal(t, 3, view.Summary.Counts.Total)

	src.st = SyncStatus{Error: "backend returned 502"}
	view = d.View(testNow)
	assert.False(t, view.Stale, "nothing to be stale without a snapshot")
	assert.Empty(t, view.Rows)
}

func TestDashboard_MarkersIgnoreViewMode(t *testing.T) {
	d, _ := testDashboard(SyncStatus{Snapshot: sampleSnapshot()})
	set := d.Markers()
	assert.Len(t, set.Markers, 2)
	assert.Len(t, set.Within(Bounds{MinLat: 39.5, MinLon: -111.5, MaxLat: 40.5, MaxLon: -110.5}), 1)
}

func TestDashboard_CurrentViewUsesClock(t *testing.T) {
	d, _ := testDashboard(SyncStatus{Snapshot: sampleSnapshot()})
	d.clock.(*clock.MockClock).Advance(6 * time.Minute)
	view := d.CurrentView()
	assert.Equal(t, "18:04 (2 min ago)", view.Rows[1].ETA)
}

func TestDashboardView_JSON(t *testing.T) {
	d, _ := testDashboard(SyncStatus{Loading: true})
	b, err := json.Marshal(d.View(testNow))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"last_updated": "",
		"loading": true,
		"stale": false,
		"selection": {"selected_route": "ALL", "view_mode": "table"},
		"route_options": [],
		"summary": {
			"counts": {"total": 0, "on_time": 0, "late": 0, "early": 0},
			"percentages": {"on_time_pct": 0, "late_pct": 0, "early_pct": 0}
		},
		"rows": []
	}`, string(b))
}
