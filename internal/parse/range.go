package parse

import (
	"strings"
)

// Range is an allowed target temperature interval, inclusive on both ends.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether t lies within the range.
func (r Range) Contains(t float64) bool {
	return r.Min <= t && t <= r.Max
}

// Source tells where a computed range came from.
type Source string

const (
	SourcePayload Source = "payload"
	SourceDHW     Source = "dhw"
	SourceFloor   Source = "floor"
	SourceAir     Source = "air"
)

var (
	DHWRange   = Range{Min: 25, Max: 75}
	FloorRange = Range{Min: 15, Max: 45}
	AirRange   = Range{Min: 5, Max: 35}
)

// Substrings matched against the lowercased circuit name. DHW is tested
// before floor heating.
var (
	DHWMatches   = []string{"гвс", "горяч", "бойлер", "dhw", "hot water"}
	FloorMatches = []string{"пол", "floor"}
)

// TemperatureRange returns the allowed target range of a circuit. Payload
// bounds win when both are present and not the upstream sentinel pair
// (min below 0 together with max above 90); otherwise the circuit name
// decides.
func TemperatureRange(name string, min, max *float64) (Range, Source) {
	if validBounds(min, max) {
		return Range{Min: *min, Max: *max}, SourcePayload
	}
	return RangeByName(name)
}

// RangeByName applies the name heuristic alone.
func RangeByName(name string) (Range, Source) {
	n := strings.ToLower(strings.TrimSpace(name))
	if containsAny(n, DHWMatches) {
		return DHWRange, SourceDHW
	}
	if containsAny(n, FloorMatches) {
		return FloorRange, SourceFloor
	}
	return AirRange, SourceAir
}

func validBounds(min, max *float64) bool {
	if min == nil || max == nil {
		return false
	}
	return !(*min < 0 && *max > 90)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
