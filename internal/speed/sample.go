package speed

import (
	"fmt"
	"math"
	"time"

	"github.com/shaunagostinho/gps-speedo/internal/geo"
)

// GeoFix is a single location sample.
type GeoFix struct {
	Latitude      float64   `json:"latitude"`                // Decimal degrees
	Longitude     float64   `json:"longitude"`               // Decimal degrees
	Altitude      *float64  `json:"altitude,omitempty"`      // Meters
	ReportedSpeed *float64  `json:"reportedSpeed,omitempty"` // m/s, as reported by the device
	Accuracy      float64   `json:"accuracy"`                // Horizontal, meters
	Timestamp     time.Time `json:"timestamp"`
}

// Validate rejects impossible coordinates and negative accuracy.
func (f GeoFix) Validate() error {
	if !geo.Valid(f.Latitude, f.Longitude) {
		return fmt.Errorf("%w: coordinates (%v, %v) out of range", ErrInvalidSample, f.Latitude, f.Longitude)
	}
	if f.Accuracy < 0 || math.IsNaN(f.Accuracy) {
		return fmt.Errorf("%w: accuracy %v", ErrInvalidSample, f.Accuracy)
	}
	return nil
}

// reportedSpeed returns the device speed if it is usable. Null, negative,
// zero and NaN values all count as absent.
func (f GeoFix) reportedSpeed() (float64, bool) {
	if f.ReportedSpeed == nil {
		return 0, false
	}
	v := *f.ReportedSpeed
	if !(v > 0) || math.IsInf(v, 1) {
		return 0, false
	}
	return v, true
}

// MotionSample is one accelerometer reading including gravity, in m/s².
type MotionSample struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Timestamp time.Time `json:"timestamp"`
}

// Source says where a canonical speed came from.
type Source string

const (
	SourceNone      Source = "none"
	SourceReported  Source = "reported"
	SourceDerived   Source = "derived"
	SourceSimulated Source = "simulated"
)

// Sample is the canonical input to the estimator. Distance is the ground
// covered since the previous sample; it is computed once, by whatever
// produced the sample, and added to the trip exactly once.
type Sample struct {
	Speed     float64   `json:"speed"`    // m/s, >= 0
	Distance  float64   `json:"distance"` // meters, >= 0
	Heading   float64   `json:"heading"`  // degrees true, 0 when unknown
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
}
