package imu

import "github.com/shaunagostinho/gps-speedo/internal/speed"

// Provider is the interface for accelerometer sources. Platforms without
// one simply run with no Provider.
type Provider interface {
	Name() string
	Connect() error
	Close() error
	// Read returns the next reading, including gravity, in m/s².
	Read() (*speed.MotionSample, error)
}
