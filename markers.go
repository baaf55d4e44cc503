package main

import (
	"math"
	"slices"

	"github.com/tidwall/rtree"
)

// LatLon is a [lat, lon] pair as map libraries expect it.
type LatLon [2]float64

// Marker status classes.
const (
	MarkerOnTime  = "on_time"
	MarkerLate    = "late"
	MarkerEarly   = "early"
	MarkerUnknown = "unknown"
)

// MarkerIcon describes a rotated arrow icon. Size and anchors are pixels.
type MarkerIcon struct {
	ClassName   string  `json:"class_name"`
	Rotation    float64 `json:"rotation_deg"`
	Size        [2]int  `json:"size"`
	Anchor      [2]int  `json:"anchor"`
	PopupAnchor [2]int  `json:"popup_anchor"`
}

// PopupFields is the text shown when a marker is opened. ETA and
// LastUpdate are empty when the vehicle does not report them.
type PopupFields struct {
	Route      string `json:"route"`
	Direction  string `json:"direction"`
	NextStop   string `json:"next_stop"`
	Status     string `json:"status"`
	ETA        string `json:"eta,omitempty"`
	LastUpdate string `json:"last_update,omitempty"`
}

// Marker is one locatable vehicle on the map.
type Marker struct {
	Key         string      `json:"key"`
	Position    LatLon      `json:"position"`
	StatusClass string      `json:"status_class"`
	Heading     float64     `json:"heading"`
	Icon        MarkerIcon  `json:"icon"`
	Popup       PopupFields `json:"popup"`
}

// MarkerSet is the map rendering of a filtered vehicle list.
type MarkerSet struct {
	Center  LatLon   `json:"center"`
	Markers []Marker `json:"markers"`

	index *rtree.RTreeG[int]
}

// Bounds is a lat/lon box, inclusive on every edge.
type Bounds struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Valid reports whether the box is finite and not inverted.
func (b Bounds) Valid() bool {
	for _, f := range []float64{b.MinLat, b.MinLon, b.MaxLat, b.MaxLon} {
		if !isFinite(f) {
			return false
		}
	}
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// Centroid averages the positions of locatable vehicles, or returns fallback
// when there are none.
func Centroid(vehicles []Vehicle, fallback LatLon) LatLon {
	var latSum, lonSum float64
	n := 0
	for _, v := range vehicles {
		lat, lon, ok := v.Position()
		if !ok {
			continue
		}
		latSum += lat
		lonSum += lon
		n++
	}
	if n == 0 {
		return fallback
	}
	return LatLon{latSum / float64(n), lonSum / float64(n)}
}

// StatusClass maps an on-time status to its marker class.
func StatusClass(s OnTimeStatus) string {
	switch s {
	case StatusOnTime:
		return MarkerOnTime
	case StatusLate:
		return MarkerLate
	case StatusEarly:
		return MarkerEarly
	}
	return MarkerUnknown
}

// normalizeHeading maps any finite angle into [0,360); anything else is 0.
func normalizeHeading(deg float64) float64 {
	if !isFinite(deg) {
		return 0
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func markerIcon(statusClass string, heading float64) MarkerIcon {
	return MarkerIcon{
		ClassName:   "vehicle-marker vehicle-marker-" + statusClassCSS(statusClass),
		Rotation:    heading,
		Size:        [2]int{26, 26},
		Anchor:      [2]int{13, 13},
		PopupAnchor: [2]int{0, -13},
	}
}

func statusClassCSS(class string) string {
	if class == MarkerOnTime {
		return "on-time"
	}
	return class
}

func popupFields(v Vehicle, tf TimeFormat) PopupFields {
	p := PopupFields{
		Route:     orDefault(v.RouteLabel(), "Route"),
		Direction: orDefault(v.Direction(), "Unknown direction"),
		NextStop:  orDefault(v.NextStopName, "-"),
		Status:    v.OnTimeStatus.Display(),
	}
	if v.EstimatedArrival != "" {
		p.ETA = tf.Clock(v.EstimatedArrival)
	}
	if v.LastUpdate != "" {
		p.LastUpdate = tf.Clock(v.LastUpdate)
	}
	return p
}

// BuildMarkers derives the marker set for an already filtered list. Vehicles
// without a usable position are left out; they still show in the table.
func BuildMarkers(vehicles []Vehicle, fallback LatLon, tf TimeFormat) MarkerSet {
	set := MarkerSet{
		Center:  Centroid(vehicles, fallback),
		Markers: make([]Marker, 0, len(vehicles)),
		index:   &rtree.RTreeG[int]{},
	}
	for _, v := range vehicles {
		lat, lon, ok := v.Position()
		if !ok {
			continue
		}
		class := StatusClass(v.OnTimeStatus)
		heading := normalizeHeading(v.HeadingDegrees())
		set.index.Insert([2]float64{lat, lon}, [2]float64{lat, lon}, len(set.Markers))
		set.Markers = append(set.Markers, Marker{
			Key:         v.Key,
			Position:    LatLon{lat, lon},
			StatusClass: class,
			Heading:     heading,
			Icon:        markerIcon(class, heading),
			Popup:       popupFields(v, tf),
		})
	}
	return set
}

// Within returns the markers inside b in their original order.
func (s MarkerSet) Within(b Bounds) []Marker {
	out := []Marker{}
	if s.index == nil || !b.Valid() {
		return out
	}
	var hits []int
	s.index.Search([2]float64{b.MinLat, b.MinLon}, [2]float64{b.MaxLat, b.MaxLon},
		func(_, _ [2]float64, i int) bool {
			hits = append(hits, i)
			return true
		})
	slices.Sort(hits)
	for _, i := range hits {
		out = append(out, s.Markers[i])
	}
	return out
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
