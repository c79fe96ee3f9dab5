package gps

import "github.com/shaunagostinho/gps-speedo/internal/speed"

// Provider is the interface for location sources.
type Provider interface {
	Name() string
	Connect() error
	Close() error
	// Read returns the latest fix. May block briefly. Errors wrap the
	// speed sensor sentinels (ErrSignalUnavailable, ErrTimeout, ...).
	Read() (*speed.GeoFix, error)
}

// UERE is the assumed user-equivalent range error, in meters, used to turn
// HDOP into a horizontal accuracy estimate.
const UERE = 5.0
