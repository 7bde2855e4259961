package models

import (
	"math"
	"sort"
)

var eventPriority = map[string]int{
	"Tornado Warning":             1,
	"Severe Thunderstorm Warning": 2,
	"Flash Flood Warning":         3,
	"Tornado Watch":               4,
	"Severe Thunderstorm Watch":   5,
	"Special Weather Statement":   6,
}

// EventPriority ranks an NWS event name; lower is more urgent. Unknown events
// sort last.
func EventPriority(event string) int {
	if p, ok := eventPriority[event]; ok {
		return p
	}
	return math.MaxInt
}

// SortByPriority orders alerts by event priority, then soonest expiration.
// Alerts without an expiration sort after those with one.
func SortByPriority(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		pi, pj := EventPriority(alerts[i].Event), EventPriority(alerts[j].Event)
		if pi != pj {
			return pi < pj
		}
		ei, ej := alerts[i].ExpirationTime, alerts[j].ExpirationTime
		switch {
		case ei == nil:
			return false
		case ej == nil:
			return true
		default:
			return ei.Before(*ej)
		}
	})
}
