package activity

import (
	"fmt"
	"math"
)

// Activity is a speed-derived movement classification.
type Activity int

const (
	Stationary Activity = iota
	Walking
	Running
	Cycling
	Vehicle
)

// All lists every activity in ascending band order.
var All = []Activity{Stationary, Walking, Running, Cycling, Vehicle}

// Band is a speed interval in km/h.
type Band struct {
	Min       float64
	Max       float64
	MinClosed bool
	MaxClosed bool
}

// Bands are contiguous and cover [0, +Inf):
//
//	stationary [0, 0.5)   walking [0.5, 6]   running (6, 20]
//	cycling    (20, 35]   vehicle (35, +Inf)
var bands = [...]Band{
	Stationary: {Min: 0, Max: 0.5, MinClosed: true},
	Walking:    {Min: 0.5, Max: 6, MinClosed: true, MaxClosed: true},
	Running:    {Min: 6, Max: 20, MaxClosed: true},
	Cycling:    {Min: 20, Max: 35, MaxClosed: true},
	Vehicle:    {Min: 35, Max: math.Inf(1)},
}

const (
	// MaxConfidence caps every confidence score.
	MaxConfidence = 95.0

	// VehicleReferenceMax is the upper bound used to place vehicle speeds
	// within their open-ended band, and the simulator's top speed.
	VehicleReferenceMax = 120.0
)

func (a Activity) String() string {
	switch a {
	case Stationary:
		return "stationary"
	case Walking:
		return "walking"
	case Running:
		return "running"
	case Cycling:
		return "cycling"
	case Vehicle:
		return "vehicle"
	}
	return fmt.Sprintf("activity(%d)", int(a))
}

// Parse maps a config/API name back to an Activity.
func Parse(s string) (Activity, error) {
	for _, a := range All {
		if a.String() == s {
			return a, nil
		}
	}
	return Stationary, fmt.Errorf("activity: unknown activity %q", s)
}

func (a Activity) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Activity) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Band returns the km/h interval for a.
func (a Activity) Band() Band { return bands[a] }

// Range returns a finite [min, max] km/h range for drawing simulated speeds.
func (a Activity) Range() (float64, float64) {
	b := bands[a]
	if math.IsInf(b.Max, 1) {
		return b.Min, VehicleReferenceMax
	}
	return b.Min, b.Max
}

// Contains reports whether kmh falls inside the band.
func (b Band) Contains(kmh float64) bool {
	if kmh < b.Min || (kmh == b.Min && !b.MinClosed) {
		return false
	}
	if kmh > b.Max || (kmh == b.Max && !b.MaxClosed) {
		return false
	}
	return true
}

// Classify maps a speed in km/h to an activity and a 0–95 confidence score.
// Negative and NaN speeds are treated as stationary.
func Classify(kmh float64) (Activity, float64) {
	if !(kmh > 0) {
		return Stationary, MaxConfidence
	}
	for _, a := range All {
		b := bands[a]
		if !b.Contains(kmh) {
			continue
		}
		if a == Stationary {
			return a, MaxConfidence
		}
		lo, hi := a.Range()
		conf := (kmh - lo) / (hi - lo) * 100
		return a, math.Max(0, math.Min(MaxConfidence, conf))
	}
	return Vehicle, MaxConfidence
}

// State is the current classification held by a Classifier.
type State struct {
	Activity   Activity `json:"activity"`
	Confidence float64  `json:"confidence"`
}

// Classifier keeps the last classification so callers can tell when the
// activity actually changes.
type Classifier struct {
	state State
}

// NewClassifier starts out stationary.
func NewClassifier() *Classifier {
	return &Classifier{state: State{Activity: Stationary, Confidence: MaxConfidence}}
}

// Update classifies kmh. Confidence always tracks the latest speed; changed
// is true only when the activity differs from the one previously held.
func (c *Classifier) Update(kmh float64) (State, bool) {
	a, conf := Classify(kmh)
	changed := a != c.state.Activity
	c.state = State{Activity: a, Confidence: conf}
	return c.state, changed
}

// State returns the held classification.
func (c *Classifier) State() State { return c.state }

// Reset returns the classifier to stationary.
func (c *Classifier) Reset() {
	c.state = State{Activity: Stationary, Confidence: MaxConfidence}
}
