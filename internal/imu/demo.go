package imu

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shaunagostinho/gps-speedo/internal/speed"
)

const gravity = 9.80665

// DemoProvider generates a walking gait: gravity on Z plus a periodic bounce,
// a heel-strike jolt once per step and some noise. Every Read advances the
// virtual clock by Step.
type DemoProvider struct {
	mu       sync.Mutex
	rng      *rand.Rand
	t        float64
	start    time.Time
	lastStep int

	Step time.Duration
	// Cadence in steps per second; zero keeps the device still.
	Cadence float64
	// Amplitude of the bounce, m/s².
	Amplitude float64
	// Strike is the extra Z acceleration on the first reading of each step.
	Strike float64
}

func NewDemoProvider(seed int64) *DemoProvider {
	return &DemoProvider{
		rng:       rand.New(rand.NewSource(seed)),
		start:     time.Now().UTC(),
		Step:      20 * time.Millisecond, // 50 Hz
		Cadence:   1.8,
		Amplitude: 2.5,
		Strike:    4,
	}
}

func (d *DemoProvider) Name() string   { return "Demo accelerometer (Simulated)" }
func (d *DemoProvider) Connect() error { return nil }
func (d *DemoProvider) Close() error   { return nil }

func (d *DemoProvider) Read() (*speed.MotionSample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.t += d.Step.Seconds()

	bounce := d.Amplitude * math.Sin(2*math.Pi*d.Cadence*d.t)
	if step := int(d.t * d.Cadence); d.Cadence > 0 && step != d.lastStep {
		d.lastStep = step
		bounce += d.Strike
	}
	return &speed.MotionSample{
		X:         (d.rng.Float64() - 0.5) * 0.2,
		Y:         (d.rng.Float64() - 0.5) * 0.2,
		Z:         gravity + bounce,
		Timestamp: d.start.Add(time.Duration(d.t * float64(time.Second))),
	}, nil
}
