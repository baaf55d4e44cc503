package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// OnTimeStatus is the punctuality classification reported by the backend.
// Values other than ON_TIME, LATE and EARLY are kept as-is for display but
// classify as unknown.
type OnTimeStatus string

const (
	StatusOnTime  OnTimeStatus = "ON_TIME"
	StatusLate    OnTimeStatus = "LATE"
	StatusEarly   OnTimeStatus = "EARLY"
	StatusUnknown OnTimeStatus = "UNKNOWN"
)

// Known reports whether s is one of the three counted categories.
func (s OnTimeStatus) Known() bool {
	return s == StatusOnTime || s == StatusLate || s == StatusEarly
}

// Display returns the status text shown to users; absent reads as UNKNOWN.
func (s OnTimeStatus) Display() string {
	if s == "" {
		return string(StatusUnknown)
	}
	return string(s)
}

// VehicleObservation is one vehicle as returned by the snapshot endpoint.
// Every field is optional. Empty strings and nil pointers mean absent.
type VehicleObservation struct {
	VehicleID        string       `json:"vehicle_id,omitempty"`
	RouteID          string       `json:"route_id,omitempty"`
	RouteShortName   string       `json:"route_short_name,omitempty"`
	TripID           string       `json:"trip_id,omitempty"`
	Headsign         string       `json:"headsign,omitempty"`
	TripHeadsign     string       `json:"trip_headsign,omitempty"`
	NextStopID       string       `json:"next_stop_id,omitempty"`
	NextStopName     string       `json:"next_stop_name,omitempty"`
	ScheduledArrival string       `json:"scheduled_arrival,omitempty"`
	EstimatedArrival string       `json:"estimated_arrival,omitempty"`
	LastUpdate       string       `json:"last_update,omitempty"`
	DelaySeconds     *float64     `json:"delay_seconds,omitempty"`
	OnTimeStatus     OnTimeStatus `json:"on_time_status,omitempty"`
	Lat              *float64     `json:"lat,omitempty"`
	Lon              *float64     `json:"lon,omitempty"`
	Bearing          *float64     `json:"bearing,omitempty"`
	Heading          *float64     `json:"heading,omitempty"`
	SpeedMps         *float64     `json:"speed_mps,omitempty"`
}

// UnmarshalJSON decodes leniently: a field holding the wrong JSON type is
// treated as absent instead of failing the whole snapshot.
func (v *VehicleObservation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// not an object; keep an empty observation
		*v = VehicleObservation{}
		return nil
	}
	*v = VehicleObservation{
		VehicleID:        looseString(raw["vehicle_id"]),
		RouteID:          looseString(raw["route_id"]),
		RouteShortName:   looseString(raw["route_short_name"]),
		TripID:           looseString(raw["trip_id"]),
		Headsign:         looseString(raw["headsign"]),
		TripHeadsign:     looseString(raw["trip_headsign"]),
		NextStopID:       looseString(raw["next_stop_id"]),
		NextStopName:     looseString(raw["next_stop_name"]),
		ScheduledArrival: looseString(raw["scheduled_arrival"]),
		EstimatedArrival: looseString(raw["estimated_arrival"]),
		LastUpdate:       looseString(raw["last_update"]),
		DelaySeconds:     looseNumber(raw["delay_seconds"]),
		OnTimeStatus:     OnTimeStatus(looseString(raw["on_time_status"])),
		Lat:              looseNumber(raw["lat"]),
		Lon:              looseNumber(raw["lon"]),
		Bearing:          looseNumber(raw["bearing"]),
		Heading:          looseNumber(raw["heading"]),
		SpeedMps:         looseNumber(raw["speed_mps"]),
	}
	return nil
}

// looseString accepts JSON strings and numbers (route ids are sometimes
// sent as numbers); anything else is absent.
func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	return ""
}

// looseNumber accepts JSON numbers only.
func looseNumber(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

// RouteKey is route_id, falling back to route_short_name.
func (v VehicleObservation) RouteKey() string {
	if v.RouteID != "" {
		return v.RouteID
	}
	return v.RouteShortName
}

// RouteLabel is the route text shown in tables and popups.
func (v VehicleObservation) RouteLabel() string {
	if v.RouteShortName != "" {
		return v.RouteShortName
	}
	return v.RouteID
}

// Direction is headsign, falling back to trip_headsign.
func (v VehicleObservation) Direction() string {
	if v.Headsign != "" {
		return v.Headsign
	}
	return v.TripHeadsign
}

// Delay returns delay_seconds, treating absent as 0.
func (v VehicleObservation) Delay() float64 {
	if v.DelaySeconds == nil {
		return 0
	}
	return *v.DelaySeconds
}

// Position returns the coordinates and whether the vehicle is locatable.
func (v VehicleObservation) Position() (lat, lon float64, ok bool) {
	if v.Lat == nil || v.Lon == nil {
		return 0, 0, false
	}
	lat, lon = *v.Lat, *v.Lon
	if !isFinite(lat) || !isFinite(lon) {
		return 0, 0, false
	}
	return lat, lon, true
}

// HeadingDegrees is bearing, then heading, then 0.
func (v VehicleObservation) HeadingDegrees() float64 {
	switch {
	case v.Bearing != nil:
		return *v.Bearing
	case v.Heading != nil:
		return *v.Heading
	}
	return 0
}

// BaseKey is vehicle_id or the route_id-trip_id composite. The composite is
// not unique when trip_id is missing too; see AssignKeys.
func (v VehicleObservation) BaseKey() string {
	if v.VehicleID != "" {
		return v.VehicleID
	}
	return v.RouteID + "-" + v.TripID
}

// Vehicle is an observation paired with the key assigned within its snapshot.
type Vehicle struct {
	Key string `json:"key"`
	VehicleObservation
}

// AssignKeys pairs every observation with a key unique inside the snapshot.
// Repeated base keys get a "~N" suffix by order of appearance, so the same
// feed order produces the same keys on every poll.
func AssignKeys(obs []VehicleObservation) []Vehicle {
	out := make([]Vehicle, len(obs))
	seen := make(map[string]int, len(obs))
	for i, o := range obs {
		key := o.BaseKey()
		seen[key]++
		if n := seen[key]; n > 1 {
			key = key + "~" + strconv.Itoa(n)
		}
		out[i] = Vehicle{Key: key, VehicleObservation: o}
	}
	return out
}

// Snapshot is one full replacement set of observations.
type Snapshot struct {
	GeneratedAt string               `json:"generated_at"`
	Vehicles    []VehicleObservation `json:"vehicles"`
}

// MarshalJSON writes a null generated_at and an empty array rather than
// omitting them.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := struct {
		GeneratedAt *string              `json:"generated_at"`
		Vehicles    []VehicleObservation `json:"vehicles"`
	}{Vehicles: s.Vehicles}
	if s.GeneratedAt != "" {
		out.GeneratedAt = &s.GeneratedAt
	}
	if out.Vehicles == nil {
		out.Vehicles = []VehicleObservation{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON coerces a missing or non-array vehicles field to empty and a
// missing or non-string generated_at to absent.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("snapshot must be a JSON object")
	}
	var raw struct {
		GeneratedAt json.RawMessage `json:"generated_at"`
		Vehicles    json.RawMessage `json:"vehicles"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Snapshot{GeneratedAt: looseString(raw.GeneratedAt), Vehicles: []VehicleObservation{}}
	if v := bytes.TrimSpace(raw.Vehicles); len(v) > 0 && v[0] == '[' {
		if err := json.Unmarshal(v, &s.Vehicles); err != nil {
			return err
		}
	}
	return nil
}

// ViewMode selects between the table and the map presentation.
type ViewMode string

const (
	ViewTable ViewMode = "table"
	ViewMap   ViewMode = "map"
)

// AllRoutes is the selection value that disables route filtering.
const AllRoutes = "ALL"

// Selection is the user-controlled filter and display state.
type Selection struct {
	Route    string   `json:"selected_route"`
	ViewMode ViewMode `json:"view_mode"`
}

// DefaultSelection shows every route as a table.
func DefaultSelection() Selection {
	return Selection{Route: AllRoutes, ViewMode: ViewTable}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func floatPtr(f float64) *float64 {
	return &f
}
