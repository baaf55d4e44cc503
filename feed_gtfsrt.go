package main

import (
	"context"
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// DelayThresholds classify a delay in seconds into an on-time status.
type DelayThresholds struct {
	LateSeconds  float64
	EarlySeconds float64
}

// DefaultDelayThresholds: more than five minutes late or two minutes early.
var DefaultDelayThresholds = DelayThresholds{LateSeconds: 300, EarlySeconds: -120}

func (t DelayThresholds) Classify(delaySeconds float64) OnTimeStatus {
	switch {
	case delaySeconds > t.LateSeconds:
		return StatusLate
	case delaySeconds < t.EarlySeconds:
		return StatusEarly
	default:
		return StatusOnTime
	}
}

// GtfsRtSource builds snapshots straight from a GTFS-Realtime
// VehiclePositions feed, enriched with delays from an optional TripUpdates
// feed.
type GtfsRtSource struct {
	vehiclePositionsURL string
	tripUpdatesURL      string
	thresholds          DelayThresholds
	httpClient          *http.Client
}

func NewGtfsRtSource(vehiclePositionsURL, tripUpdatesURL string, thresholds DelayThresholds, timeout time.Duration) *GtfsRtSource {
	return &GtfsRtSource{
		vehiclePositionsURL: vehiclePositionsURL,
		tripUpdatesURL:      tripUpdatesURL,
		thresholds:          thresholds,
		httpClient:          &http.Client{Timeout: timeout},
	}
}

func (s *GtfsRtSource) Fetch(ctx context.Context) (Snapshot, error) {
	positions, err := s.fetchFeed(ctx, s.vehiclePositionsURL)
	if err != nil {
		return Snapshot{}, err
	}
	var updates *gtfs.FeedMessage
	if s.tripUpdatesURL != "" {
		if updates, err = s.fetchFeed(ctx, s.tripUpdatesURL); err != nil {
			return Snapshot{}, err
		}
	}
	return snapshotFromGtfsRt(positions, updates, s.thresholds), nil
}

func (s *GtfsRtSource) fetchFeed(ctx context.Context, url string) (*gtfs.FeedMessage, error) {
	body, err := fetchBody(ctx, s.httpClient, url, "application/x-protobuf", "feed_gtfsrt")
	if err != nil {
		return nil, err
	}
	var feed gtfs.FeedMessage
	if err := proto.Unmarshal(body, &feed); err != nil {
		return nil, parseError(err)
	}
	return &feed, nil
}

// nextArrival is the first upcoming stop of a trip update.
type nextArrival struct {
	stopID string
	eta    string
	delay  *float64
}

func tripArrivals(updates *gtfs.FeedMessage) map[string]nextArrival {
	out := make(map[string]nextArrival)
	if updates == nil {
		return out
	}
	for _, ent := range updates.GetEntity() {
		tu := ent.GetTripUpdate()
		tripID := tu.GetTrip().GetTripId()
		if tu == nil || tripID == "" {
			continue
		}
		var na nextArrival
		if tu.Delay != nil {
			na.delay = floatPtr(float64(tu.GetDelay()))
		}
		for _, stu := range tu.GetStopTimeUpdate() {
			arr := stu.GetArrival()
			if arr == nil || (arr.Delay == nil && arr.Time == nil) {
				continue
			}
			na.stopID = stu.GetStopId()
			if arr.Delay != nil {
				na.delay = floatPtr(float64(arr.GetDelay()))
			}
			if arr.Time != nil {
				na.eta = unixToISO(arr.GetTime())
			}
			break
		}
		out[tripID] = na
	}
	return out
}

func snapshotFromGtfsRt(positions, updates *gtfs.FeedMessage, thresholds DelayThresholds) Snapshot {
	arrivals := tripArrivals(updates)
	snap := Snapshot{Vehicles: make([]VehicleObservation, 0, len(positions.GetEntity()))}
	if ts := positions.GetHeader().GetTimestamp(); ts != 0 {
		snap.GeneratedAt = unixToISO(int64(ts))
	}
	for _, ent := range positions.GetEntity() {
		vp := ent.GetVehicle()
		if vp == nil {
			continue
		}
		v := VehicleObservation{
			VehicleID: vp.GetVehicle().GetId(),
			RouteID:   vp.GetTrip().GetRouteId(),
			TripID:    vp.GetTrip().GetTripId(),
		}
		if v.VehicleID == "" {
			v.VehicleID = ent.GetId()
		}
		if pos := vp.GetPosition(); pos != nil {
			v.Lat = floatPtr(float64(pos.GetLatitude()))
			v.Lon = floatPtr(float64(pos.GetLongitude()))
			if pos.Bearing != nil {
				v.Bearing = floatPtr(float64(pos.GetBearing()))
			}
			if pos.Speed != nil {
				v.SpeedMps = floatPtr(float64(pos.GetSpeed()))
			}
		}
		if ts := vp.GetTimestamp(); ts != 0 {
			v.LastUpdate = unixToISO(int64(ts))
		}
		if na, ok := arrivals[v.TripID]; ok && v.TripID != "" {
			v.NextStopID = na.stopID
			v.EstimatedArrival = na.eta
			v.DelaySeconds = na.delay
			if na.delay != nil {
				v.OnTimeStatus = thresholds.Classify(*na.delay)
			}
		}
		if v.NextStopID == "" {
			v.NextStopID = vp.GetStopId()
		}
		snap.Vehicles = append(snap.Vehicles, v)
	}
	return snap
}

func unixToISO(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
