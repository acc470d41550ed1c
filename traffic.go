package main

import (
	"math"
	"time"
)

// regionOffset converts UTC hours to a rough Americas (EST) local hour.
const regionOffset = 5

// TrafficModel turns a point in time into a load multiplier. Load is shaped
// by three independent factors multiplied together: weekends are quieter,
// business hours are busier with three rush-hour peaks, and overnight traffic
// is low and noisy.
type TrafficModel struct {
	rng *Rng
}

func NewTrafficModel(rng *Rng) *TrafficModel {
	return &TrafficModel{rng: rng}
}

func localHour(ts time.Time) int {
	return ((ts.UTC().Hour()-regionOffset)%24 + 24) % 24
}

func isWeekend(ts time.Time) bool {
	wd := ts.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func isPeakHour(h int) bool {
	return (h >= 9 && h <= 12) || (h >= 14 && h <= 17) || (h >= 19 && h <= 21)
}

func isBusinessHour(h int) bool {
	return h >= 6 && h <= 23
}

// Multiplier returns the relative load at ts; it is never negative.
// The overnight branch is the only one that consumes randomness.
func (t *TrafficModel) Multiplier(ts time.Time) float64 {
	weekday := 1.0
	if isWeekend(ts) {
		weekday = 0.6
	}

	h := localHour(ts)
	var hour float64
	switch {
	case isBusinessHour(h) && isPeakHour(h):
		hour = 1.5 + 0.3*math.Sin(float64(h-9)*math.Pi/12)
	case isBusinessHour(h):
		hour = 1.0 + 0.2*math.Sin(float64(h-6)*math.Pi/17)
	default:
		hour = 0.2 + 0.1*t.rng.Float()
	}
	return weekday * hour
}

// Describe names the regime ts falls in, for progress messages.
func (t *TrafficModel) Describe(ts time.Time) string {
	h := localHour(ts)
	regime := "overnight"
	if isBusinessHour(h) {
		regime = "business"
		if isPeakHour(h) {
			regime = "peak"
		}
	}
	if isWeekend(ts) {
		regime = "weekend " + regime
	}
	return regime
}
