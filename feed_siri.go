package main

import (
	"strconv"
	"strings"
)

// siriActivity is the part of a SIRI VehicleMonitoring VehicleActivity the
// dashboard uses. Tags carry no namespace so any SIRI namespace matches.
type siriActivity struct {
	RecordedAtTime string      `xml:"RecordedAtTime"`
	Journey        siriJourney `xml:"MonitoredVehicleJourney"`
}

type siriJourney struct {
	LineRef           string `xml:"LineRef"`
	PublishedLineName string `xml:"PublishedLineName"`
	DestinationName   string `xml:"DestinationName"`
	FramedJourney     struct {
		DatedVehicleJourneyRef string `xml:"DatedVehicleJourneyRef"`
	} `xml:"FramedVehicleJourneyRef"`
	VehicleRef string `xml:"VehicleRef"`
	Location   struct {
		Latitude  string `xml:"Latitude"`
		Longitude string `xml:"Longitude"`
	} `xml:"VehicleLocation"`
	Bearing string `xml:"Bearing"`
	Delay   string `xml:"Delay"`
	Call    struct {
		StopPointRef        string `xml:"StopPointRef"`
		StopPointName       string `xml:"StopPointName"`
		AimedArrivalTime    string `xml:"AimedArrivalTime"`
		ExpectedArrivalTime string `xml:"ExpectedArrivalTime"`
	} `xml:"MonitoredCall"`
}

func (a siriActivity) observation(thresholds DelayThresholds) (VehicleObservation, bool) {
	j := a.Journey
	v := VehicleObservation{
		VehicleID:        strings.TrimSpace(j.VehicleRef),
		RouteID:          strings.TrimSpace(j.LineRef),
		RouteShortName:   strings.TrimSpace(j.PublishedLineName),
		TripID:           strings.TrimSpace(j.FramedJourney.DatedVehicleJourneyRef),
		Headsign:         strings.TrimSpace(j.DestinationName),
		NextStopID:       strings.TrimSpace(j.Call.StopPointRef),
		NextStopName:     strings.TrimSpace(j.Call.StopPointName),
		ScheduledArrival: strings.TrimSpace(j.Call.AimedArrivalTime),
		EstimatedArrival: strings.TrimSpace(j.Call.ExpectedArrivalTime),
		LastUpdate:       strings.TrimSpace(a.RecordedAtTime),
	}
	if v.VehicleID == "" {
		v.VehicleID = v.TripID
	}
	if v.VehicleID == "" {
		return VehicleObservation{}, false
	}
	if lat, lon, ok := parseLatLon(strings.TrimSpace(j.Location.Latitude), strings.TrimSpace(j.Location.Longitude)); ok {
		v.Lat, v.Lon = floatPtr(lat), floatPtr(lon)
	}
	if b, err := strconv.ParseFloat(strings.TrimSpace(j.Bearing), 64); err == nil {
		v.Bearing = floatPtr(b)
	}
	if d, ok := parseXSDDuration(strings.TrimSpace(j.Delay)); ok {
		v.DelaySeconds = floatPtr(d)
		v.OnTimeStatus = thresholds.Classify(d)
	}
	return v, true
}

func parseLatLon(lat, lon string) (float64, float64, bool) {
	lf, err1 := strconv.ParseFloat(lat, 64)
	if err1 != nil {
		return 0, 0, false
	}
	lo, err2 := strconv.ParseFloat(lon, 64)
	if err2 != nil {
		return 0, 0, false
	}
	if lf == 0 && lo == 0 {
		// unset positions are often reported as 0,0
		return 0, 0, false
	}
	return lf, lo, true
}

// parseXSDDuration reads an xsd:duration such as "PT2M30S" or "-PT45S" into
// seconds. Years and months are rejected since their length varies.
func parseXSDDuration(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	sign := 1.0
	if s[0] == '-' {
		sign = -1
		s = s[1:]
	}
	if len(s) < 2 || s[0] != 'P' {
		return 0, false
	}
	s = s[1:]
	var total float64
	inTime := false
	num := ""
	seen := false
	for _, r := range s {
		switch {
		case r == 'T':
			if inTime || num != "" {
				return 0, false
			}
			inTime = true
		case (r >= '0' && r <= '9') || r == '.':
			num += string(r)
		default:
			if num == "" {
				return 0, false
			}
			n, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, false
			}
			num = ""
			seen = true
			switch {
			case r == 'D' && !inTime:
				total += n * 86400
			case r == 'W' && !inTime:
				total += n * 7 * 86400
			case r == 'H' && inTime:
				total += n * 3600
			case r == 'M' && inTime:
				total += n * 60
			case r == 'S' && inTime:
				total += n
			default:
				return 0, false
			}
		}
	}
	if num != "" || !seen {
		return 0, false
	}
	return sign * total, true
}
