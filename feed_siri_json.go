package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

type SiriJsonSource struct {
	url        string
	thresholds DelayThresholds
	httpClient *http.Client
}

func NewSiriJsonSource(url string, thresholds DelayThresholds, timeout time.Duration) *SiriJsonSource {
	return &SiriJsonSource{
		url:        url,
		thresholds: thresholds,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *SiriJsonSource) Fetch(ctx context.Context) (Snapshot, error) {
	b, err := fetchBody(ctx, s.httpClient, s.url, "application/json", "feed_siri_json")
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := decodeSiriJSON(b, s.thresholds)
	if err != nil {
		return Snapshot{}, parseError(err)
	}
	return snap, nil
}

// decodeSiriJSON walks Siri?.ServiceDelivery.VehicleMonitoringDelivery[].VehicleActivity[].
func decodeSiriJSON(b []byte, thresholds DelayThresholds) (Snapshot, error) {
	var root map[string]any
	if err := json.Unmarshal(b, &root); err != nil {
		return Snapshot{}, err
	}
	// Handle optional top-level "Siri" wrapper
	if siri, ok := root["Siri"].(map[string]any); ok && siri != nil {
		root = siri
	}
	sd, _ := root["ServiceDelivery"].(map[string]any)
	snap := Snapshot{
		GeneratedAt: stringFrom(sd["ResponseTimestamp"]),
		Vehicles:    make([]VehicleObservation, 0, 256),
	}
	for _, vmdAny := range listFrom(sd["VehicleMonitoringDelivery"]) {
		vmd, _ := vmdAny.(map[string]any)
		for _, vaAny := range listFrom(vmd["VehicleActivity"]) {
			va, _ := vaAny.(map[string]any)
			mvj, _ := va["MonitoredVehicleJourney"].(map[string]any)
			if mvj == nil {
				continue
			}
			act := siriActivity{RecordedAtTime: stringFrom(va["RecordedAtTime"])}
			j := &act.Journey
			j.VehicleRef = stringFrom(mvj["VehicleRef"])
			j.LineRef = stringFrom(mvj["LineRef"])
			j.PublishedLineName = stringFrom(mvj["PublishedLineName"])
			j.DestinationName = stringFrom(mvj["DestinationName"])
			j.FramedJourney.DatedVehicleJourneyRef = stringFromNested(mvj, "FramedVehicleJourneyRef", "DatedVehicleJourneyRef")
			j.Location.Latitude = stringFromNested(mvj, "VehicleLocation", "Latitude")
			j.Location.Longitude = stringFromNested(mvj, "VehicleLocation", "Longitude")
			j.Bearing = stringFrom(mvj["Bearing"])
			j.Delay = stringFrom(mvj["Delay"])
			j.Call.StopPointRef = stringFromNested(mvj, "MonitoredCall", "StopPointRef")
			j.Call.StopPointName = stringFromNested(mvj, "MonitoredCall", "StopPointName")
			j.Call.AimedArrivalTime = stringFromNested(mvj, "MonitoredCall", "AimedArrivalTime")
			j.Call.ExpectedArrivalTime = stringFromNested(mvj, "MonitoredCall", "ExpectedArrivalTime")
			if v, ok := act.observation(thresholds); ok {
				snap.Vehicles = append(snap.Vehicles, v)
			}
		}
	}
	return snap, nil
}

// stringFrom reads SIRI JSON text values, which appear as plain strings,
// numbers, {"value": ...} objects or arrays of those (first wins).
func stringFrom(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		return stringFrom(t["value"])
	case []any:
		if len(t) > 0 {
			return stringFrom(t[0])
		}
	}
	return ""
}

func stringFromNested(m map[string]any, k1, k2 string) string {
	m1, _ := m[k1].(map[string]any)
	return stringFrom(m1[k2])
}

// listFrom accepts a JSON array or a single object standing in for one.
func listFrom(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		return []any{t}
	}
	return nil
}
