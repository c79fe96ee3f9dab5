package units

import (
	"fmt"
	"strings"
)

// Unit is a display unit for speed. Canonical speed is always m/s.
type Unit string

const (
	KMH Unit = "kmh"
	MPH Unit = "mph"
	MPS Unit = "mps"
)

const (
	mpsToKMH = 3.6
	mpsToMPH = 2.23694

	metersPerMile = 1609.344
)

// Parse accepts the unit names used in config files and query strings.
func Parse(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kmh", "kph", "km/h":
		return KMH, nil
	case "mph":
		return MPH, nil
	case "mps", "m/s", "ms":
		return MPS, nil
	}
	return "", fmt.Errorf("units: unknown speed unit %q", s)
}

// Label is the short suffix shown next to a gauge value.
func (u Unit) Label() string {
	switch u {
	case MPH:
		return "mph"
	case MPS:
		return "m/s"
	default:
		return "km/h"
	}
}

func (u Unit) factor() float64 {
	switch u {
	case KMH:
		return mpsToKMH
	case MPH:
		return mpsToMPH
	}
	return 1
}

// ToDisplay converts canonical m/s into u. Unknown units pass through as m/s.
func ToDisplay(mps float64, u Unit) float64 {
	return mps * u.factor()
}

// FromDisplay converts a value in u back to canonical m/s.
func FromDisplay(v float64, u Unit) float64 {
	return v / u.factor()
}

// KMHToMPS is shorthand used by the activity band math.
func KMHToMPS(kmh float64) float64 { return kmh / mpsToKMH }

// MPSToKMH is shorthand used by the activity band math.
func MPSToKMH(mps float64) float64 { return mps * mpsToKMH }

// DistanceToDisplay converts meters into the distance unit that goes with u:
// kilometers for km/h, miles for mph and meters for m/s.
func DistanceToDisplay(m float64, u Unit) float64 {
	switch u {
	case KMH:
		return m / 1000
	case MPH:
		return m / metersPerMile
	}
	return m
}

// DistanceLabel is the suffix for DistanceToDisplay values.
func (u Unit) DistanceLabel() string {
	switch u {
	case MPH:
		return "mi"
	case MPS:
		return "m"
	default:
		return "km"
	}
}

// Format renders v (already in u) with one decimal place.
func Format(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
