package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleObservation_LenientDecode(t *testing.T) {
	var v VehicleObservation
	require.NoError(t, json.Unmarshal([]byte(`{
		"vehicle_id": 42,
		"route_id": "F850",
		"headsign": null,
		"trip_headsign": ["x"],
		"delay_seconds": "90",
		"lat": 40.5,
		"lon": null,
		"bearing": {"deg": 3},
		"heading": 270,
		"on_time_status": "EARLY",
		"unexpected": true
	}`), &v))

	assert.Equal(t, "42", v.VehicleID)
	assert.Equal(t, "F850", v.RouteID)
	assert.Empty(t, v.Headsign)
	assert.Empty(t, v.TripHeadsign)
	assert.Nil(t, v.DelaySeconds)
	require.NotNil(t, v.Lat)
	assert.Nil(t, v.Lon)
	assert.Nil(t, v.Bearing)
	assert.Equal(t, 270.0, v.HeadingDegrees())
	assert.Equal(t, StatusEarly, v.OnTimeStatus)

	_, _, ok := v.Position()
	assert.False(t, ok)
}

func TestVehicleObservation_NonObjectIsEmpty(t *testing.T) {
	var vs []VehicleObservation
	require.NoError(t, json.Unmarshal([]byte(`[1, "x", null, {"vehicle_id": "A"}]`), &vs))
	require.Len(t, vs, 4)
	assert.Equal(t, VehicleObservation{}, vs[0])
	assert.Equal(t, "A", vs[3].VehicleID)
}

func TestVehicleObservation_Fallbacks(t *testing.T) {
	v := VehicleObservation{RouteShortName: "9X", TripHeadsign: "Airport"}
	assert.Equal(t, "9X", v.RouteKey())
	assert.Equal(t, "9X", v.RouteLabel())
	assert.Equal(t, "Airport", v.Direction())
	assert.Equal(t, 0.0, v.Delay())
	assert.Equal(t, 0.0, v.HeadingDegrees())

	v = VehicleObservation{RouteID: "9", RouteShortName: "9X", Headsign: "Downtown", TripHeadsign: "Airport",
		Bearing: floatPtr(10), Heading: floatPtr(20)}
	assert.Equal(t, "9", v.RouteKey())
	assert.Equal(t, "9X", v.RouteLabel())
	assert.Equal(t, "Downtown", v.Direction())
	assert.Equal(t, 10.0, v.HeadingDegrees())
}

func TestVehicleObservation_Position(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon *float64
		ok       bool
	}{
		{"both", floatPtr(40), floatPtr(-111), true},
		{"zero is a position", floatPtr(0), floatPtr(0), true},
		{"missing lon", floatPtr(40), nil, false},
		{"nan", floatPtr(math.NaN()), floatPtr(-111), false},
		{"inf", floatPtr(40), floatPtr(math.Inf(-1)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := VehicleObservation{Lat: tt.lat, Lon: tt.lon}.Position()
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestAssignKeys(t *testing.T) {
	vs := AssignKeys([]VehicleObservation{
		{VehicleID: "V1"},
		{RouteID: "2", TripID: "T1"},
		{RouteID: "2"},
		{RouteID: "2"},
		{VehicleID: "V1"},
		{},
	})
	keys := make([]string, len(vs))
	for i, v := range vs {
		keys[i] = v.Key
	}
	assert.Equal(t, []string{"V1", "2-T1", "2-", "2-~2", "V1~2", "-"}, keys)
}

func TestOnTimeStatus(t *testing.T) {
	assert.True(t, StatusLate.Known())
	assert.False(t, StatusUnknown.Known())
	assert.False(t, OnTimeStatus("").Known())
	assert.Equal(t, "UNKNOWN", OnTimeStatus("").Display())
	assert.Equal(t, "DELAYED", OnTimeStatus("DELAYED").Display())
}

func TestSnapshot_Unmarshal(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantGen  string
		vehicles int
	}{
		{"full", `{"generated_at": "2025-11-29T18:00:00Z", "vehicles": [{"vehicle_id": "A"}]}`, "2025-11-29T18:00:00Z", 1},
		{"missing vehicles", `{"generated_at": "2025-11-29T18:00:00Z"}`, "2025-11-29T18:00:00Z", 0},
		{"vehicles not array", `{"vehicles": {"vehicle_id": "A"}}`, "", 0},
		{"null generated_at", `{"generated_at": null, "vehicles": []}`, "", 0},
		{"empty object", `{}`, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Snapshot
			require.NoError(t, json.Unmarshal([]byte(tt.body), &s))
			assert.Equal(t, tt.wantGen, s.GeneratedAt)
			assert.NotNil(t, s.Vehicles)
			assert.Len(t, s.Vehicles, tt.vehicles)
		})
	}
}

func TestSnapshot_UnmarshalRejectsNonObject(t *testing.T) {
	for _, body := range []string{`[]`, `"x"`, `null`, `3`} {
		var s Snapshot
		assert.Error(t, json.Unmarshal([]byte(body), &s), body)
	}
}

func TestFetchError(t *testing.T) {
	err := statusError(503)
	assert.Equal(t, "backend returned 503", err.Error())
	assert.Equal(t, "backend returned 503", errorMessage(err))

	cause := errors.New("connection refused")
	err = networkError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "connection refused", errorMessage(err))

	err = parseError(errors.New("unexpected end of JSON input"))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrorKindParse, fe.Kind)
	assert.Equal(t, "invalid snapshot body: unexpected end of JSON input", err.Error())

	wrapped := fmt.Errorf("poll: %w", statusError(404))
	assert.Equal(t, "backend returned 404", errorMessage(wrapped))
	assert.Equal(t, "plain", errorMessage(errors.New("plain")))
	assert.Equal(t, "Unknown error", errorMessage(errors.New("")))
	assert.Equal(t, "Unknown error", (&FetchError{}).Error())
}
