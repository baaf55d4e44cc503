package main

import (
	"fmt"
	"math"
	"time"
)

// invalidTime is what a timestamp that cannot be parsed renders as.
const invalidTime = "Invalid Date"

// TimeFormat renders backend timestamps as time-of-day strings in the
// display zone.
type TimeFormat struct {
	Location *time.Location
	Layout   string
}

// DefaultTimeFormat renders HH:MM in the process local zone.
func DefaultTimeFormat() TimeFormat {
	return TimeFormat{Location: time.Local, Layout: "15:04"}
}

// zoneless layouts are read in the display zone.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

func (f TimeFormat) location() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

func (f TimeFormat) layout() string {
	if f.Layout == "" {
		return "15:04"
	}
	return f.Layout
}

// ParseTimestamp reads an ISO-8601 instant. Timestamps without an offset are
// taken to be in the display zone.
func (f TimeFormat) ParseTimestamp(raw string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, raw, f.location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Clock renders raw as a time of day, "-" when absent.
func (f TimeFormat) Clock(raw string) string {
	if raw == "" {
		return "-"
	}
	t, ok := f.ParseTimestamp(raw)
	if !ok {
		return invalidTime
	}
	return t.In(f.location()).Format(f.layout())
}

// ClockWithLayout is Clock with an explicit layout, used for the
// generated_at banner which shows seconds.
func (f TimeFormat) ClockWithLayout(raw, layout string) string {
	f.Layout = layout
	return f.Clock(raw)
}

// Eta renders an estimated arrival relative to now, for example
// "18:06 (in 4 min)", "18:06 (2 min ago)" or "18:06 (now)". Absent arrivals
// render as "-"; unparseable ones as the invalid time text alone.
func (f TimeFormat) Eta(raw string, now time.Time) string {
	if raw == "" {
		return "-"
	}
	eta, ok := f.ParseTimestamp(raw)
	if !ok {
		return invalidTime
	}
	timePart := eta.In(f.location()).Format(f.layout())

	diff := roundHalfUp(float64(eta.Sub(now)) / float64(time.Minute))
	switch {
	case diff > 0:
		return fmt.Sprintf("%s (in %d min)", timePart, int64(diff))
	case diff < 0:
		return fmt.Sprintf("%s (%d min ago)", timePart, int64(-diff))
	default:
		return timePart + " (now)"
	}
}

// FormatDelay renders a delay in whole minutes: "On time", "+N min" or
// "-N min". Without a delay it falls back to the status.
func FormatDelay(delaySeconds *float64, status OnTimeStatus) string {
	if delaySeconds == nil || !isFinite(*delaySeconds) {
		if status == StatusOnTime {
			return "On time"
		}
		return "-"
	}
	mins := int64(roundHalfUp(*delaySeconds / 60))
	switch {
	case mins == 0:
		return "On time"
	case mins > 0:
		return fmt.Sprintf("+%d min", mins)
	default:
		return fmt.Sprintf("%d min", mins)
	}
}

// roundHalfUp rounds to the nearest integer with halves going toward
// positive infinity, so -1.5 becomes -1.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
