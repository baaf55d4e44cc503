package main

import (
	"fmt"
	"sync"
	"time"

	"transit-dashboard/internal/clock"
)

// bannerLayout renders generated_at in the "last updated" banner.
const bannerLayout = "15:04:05"

// statusSource is the part of the synchronizer the dashboard reads.
type statusSource interface {
	Status() SyncStatus
}

// VehicleRow is one table row with every field already rendered.
type VehicleRow struct {
	Key         string `json:"key"`
	Route       string `json:"route"`
	Direction   string `json:"direction"`
	NextStop    string `json:"next_stop"`
	ETA         string `json:"eta"`
	Delay       string `json:"delay"`
	Status      string `json:"status"`
	StatusClass string `json:"status_class"`
	LastUpdate  string `json:"last_update"`
}

// Summary is the on-time statistics block.
type Summary struct {
	Counts      Counts      `json:"counts"`
	Percentages Percentages `json:"percentages"`
}

// MapView is the map presentation of the filtered vehicles.
type MapView struct {
	Center  LatLon   `json:"center"`
	Zoom    int      `json:"zoom"`
	Markers []Marker `json:"markers"`
}

// DashboardView is everything a client needs to draw the dashboard.
type DashboardView struct {
	GeneratedAt  string       `json:"generated_at,omitempty"`
	LastUpdated  string       `json:"last_updated"`
	Loading      bool         `json:"loading"`
	Error        string       `json:"error,omitempty"`
	Stale        bool         `json:"stale"`
	Selection    Selection    `json:"selection"`
	RouteOptions []string     `json:"route_options"`
	Summary      Summary      `json:"summary"`
	Rows         []VehicleRow `json:"rows"`

	// Map is only set in map view mode.
	Map *MapView `json:"map,omitempty"`
}

// Dashboard owns the user selection and derives views from the latest
// synchronizer state. Requests and websocket clients share one instance, so
// the selection is guarded by a mutex.
type Dashboard struct {
	syncer statusSource
	center LatLon
	zoom   int
	format TimeFormat
	clock  clock.Clock

	mu        sync.Mutex
	selection Selection
}

type dashboardOptions struct {
	Center LatLon
	Zoom   int
	Format TimeFormat
	Clock  clock.Clock
}

func newDashboard(src statusSource, opts dashboardOptions) *Dashboard {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Format.Location == nil {
		opts.Format = DefaultTimeFormat()
	}
	return &Dashboard{
		syncer:    src,
		center:    opts.Center,
		zoom:      opts.Zoom,
		format:    opts.Format,
		clock:     opts.Clock,
		selection: DefaultSelection(),
	}
}

func (d *Dashboard) Selection() Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection
}

// SelectRoute filters to route; "" selects all routes. Routes that are not
// in the current snapshot are accepted and simply match nothing.
func (d *Dashboard) SelectRoute(route string) Selection {
	if route == "" {
		route = AllRoutes
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selection.Route = route
	return d.selection
}

// SetViewMode switches between table and map.
func (d *Dashboard) SetViewMode(mode ViewMode) (Selection, error) {
	if mode != ViewTable && mode != ViewMap {
		return d.Selection(), fmt.Errorf("unknown view mode %q", mode)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selection.ViewMode = mode
	return d.selection, nil
}

// Markers builds the marker set for the current selection regardless of
// view mode.
func (d *Dashboard) Markers() MarkerSet {
	st := d.syncer.Status()
	return BuildMarkers(d.filtered(st).Vehicles, d.center, d.format)
}

// CurrentView is View at the dashboard clock's current time.
func (d *Dashboard) CurrentView() DashboardView {
	return d.View(d.clock.Now())
}

// View derives the dashboard for the latest state. now drives the relative
// ETA text only.
func (d *Dashboard) View(now time.Time) DashboardView {
	st := d.syncer.Status()
	sel := d.Selection()

	view := DashboardView{
		Loading:      st.Loading,
		Error:        st.Error,
		Selection:    sel,
		RouteOptions: []string{},
		Rows:         []VehicleRow{},
	}
	if st.Snapshot != nil {
		view.GeneratedAt = st.Snapshot.GeneratedAt
		if st.Snapshot.GeneratedAt != "" {
			view.LastUpdated = d.format.ClockWithLayout(st.Snapshot.GeneratedAt, bannerLayout)
		}
		view.RouteOptions = RouteOptions(st.Snapshot.Vehicles)
		view.Stale = st.Error != ""
	}

	vm := d.filteredWith(st, sel)
	view.Summary = Summary{Counts: vm.Counts, Percentages: vm.Percentages}
	for _, v := range vm.Vehicles {
		view.Rows = append(view.Rows, d.row(v, now))
	}
	if sel.ViewMode == ViewMap {
		set := BuildMarkers(vm.Vehicles, d.center, d.format)
		view.Map = &MapView{Center: set.Center, Zoom: d.zoom, Markers: set.Markers}
	}
	return view
}

func (d *Dashboard) filtered(st SyncStatus) ViewModel {
	return d.filteredWith(st, d.Selection())
}

func (d *Dashboard) filteredWith(st SyncStatus, sel Selection) ViewModel {
	var snap Snapshot
	if st.Snapshot != nil {
		snap = *st.Snapshot
	}
	return BuildViewModel(snap, sel)
}

func (d *Dashboard) row(v Vehicle, now time.Time) VehicleRow {
	return VehicleRow{
		Key:         v.Key,
		Route:       orDefault(v.RouteLabel(), "-"),
		Direction:   orDefault(v.Direction(), "-"),
		NextStop:    orDefault(v.NextStopName, "-"),
		ETA:         d.format.Eta(v.EstimatedArrival, now),
		Delay:       FormatDelay(v.DelaySeconds, v.OnTimeStatus),
		Status:      v.OnTimeStatus.Display(),
		StatusClass: rowStatusClass(v.OnTimeStatus),
		LastUpdate:  d.format.Clock(v.LastUpdate),
	}
}

func rowStatusClass(s OnTimeStatus) string {
	return "status-" + statusClassCSS(StatusClass(s))
}
