package speed

import (
	"math"
	"time"
)

// Trip aggregates one tracking session. It is a value: Update and Tick return
// a new Trip rather than changing the receiver.
type Trip struct {
	Distance float64       // meters
	MaxSpeed float64       // m/s
	AvgSpeed float64       // m/s, Distance / Elapsed
	Start    time.Time     // zero until the first sample
	Elapsed  time.Duration // never decreases within a session
	Samples  int
}

// ResetTrip returns the aggregate a new session starts from.
func ResetTrip() Trip { return Trip{} }

// Started reports whether any sample has been seen.
func (t Trip) Started() bool { return !t.Start.IsZero() }

// Update folds one canonical sample into trip and returns the instantaneous
// speed alongside the new aggregate. The sample's distance is added once;
// negative or non-finite speed and distance are clamped to zero.
func Update(s Sample, trip Trip) (float64, Trip) {
	speed := nonNegative(s.Speed)
	dist := nonNegative(s.Distance)

	if !trip.Started() {
		trip.Start = s.Timestamp
	}
	trip.Distance += dist
	trip.Samples++
	if speed > trip.MaxSpeed {
		trip.MaxSpeed = speed
	}
	return speed, trip.Tick(s.Timestamp)
}

// Tick refreshes elapsed time and average speed as of now, without a sample.
// It is what the 1-second display timer calls between fixes.
func (t Trip) Tick(now time.Time) Trip {
	if !t.Started() {
		return t
	}
	if e := now.Sub(t.Start); e > t.Elapsed {
		t.Elapsed = e
	}
	if secs := t.Elapsed.Seconds(); secs > 0 {
		t.AvgSpeed = t.Distance / secs
	} else {
		t.AvgSpeed = 0
	}
	return t
}

func nonNegative(v float64) float64 {
	if !(v > 0) || math.IsInf(v, 1) {
		return 0
	}
	return v
}
