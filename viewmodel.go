package main

import (
	"cmp"
	"slices"
)

// Counts tallies vehicles by on-time status. Vehicles with an unknown status
// count only toward Total.
type Counts struct {
	Total  int `json:"total"`
	OnTime int `json:"on_time"`
	Late   int `json:"late"`
	Early  int `json:"early"`
}

// Percentages are whole-number shares of Counts.Total.
type Percentages struct {
	OnTime int `json:"on_time_pct"`
	Late   int `json:"late_pct"`
	Early  int `json:"early_pct"`
}

// ViewModel is the filtered, sorted vehicle list with its statistics. It is
// rebuilt from scratch for every snapshot or selection change.
type ViewModel struct {
	Vehicles    []Vehicle   `json:"vehicles"`
	Counts      Counts      `json:"counts"`
	Percentages Percentages `json:"percentages"`
}

// RouteOptions returns the distinct route keys of the snapshot in first-seen
// order, skipping vehicles without one.
func RouteOptions(obs []VehicleObservation) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, o := range obs {
		key := o.RouteKey()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// FilterByRoute keeps vehicles whose route_id or route_short_name equals
// route. AllRoutes and "" keep everything. The input is not modified.
func FilterByRoute(vehicles []Vehicle, route string) []Vehicle {
	if route == AllRoutes || route == "" {
		return slices.Clone(vehicles)
	}
	out := make([]Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if v.RouteID == route || v.RouteShortName == route {
			out = append(out, v)
		}
	}
	return out
}

// SortByDelay orders vehicles most-late first, treating a missing delay as
// 0. Equal delays keep their input order.
func SortByDelay(vehicles []Vehicle) {
	slices.SortStableFunc(vehicles, func(a, b Vehicle) int {
		return cmp.Compare(b.Delay(), a.Delay())
	})
}

// Aggregate counts statuses and derives percentages, all zero for an empty
// list.
func Aggregate(vehicles []Vehicle) (Counts, Percentages) {
	c := Counts{Total: len(vehicles)}
	for _, v := range vehicles {
		switch v.OnTimeStatus {
		case StatusOnTime:
			c.OnTime++
		case StatusLate:
			c.Late++
		case StatusEarly:
			c.Early++
		}
	}
	return c, Percentages{
		OnTime: percent(c.OnTime, c.Total),
		Late:   percent(c.Late, c.Total),
		Early:  percent(c.Early, c.Total),
	}
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(roundHalfUp(float64(n) / float64(total) * 100))
}

// BuildViewModel derives the view for a snapshot and selection. It depends
// on nothing else, so the same inputs always yield the same output.
func BuildViewModel(s Snapshot, sel Selection) ViewModel {
	vehicles := FilterByRoute(AssignKeys(s.Vehicles), sel.Route)
	SortByDelay(vehicles)
	counts, pct := Aggregate(vehicles)
	return ViewModel{
		Vehicles:    vehicles,
		Counts:      counts,
		Percentages: pct,
	}
}
