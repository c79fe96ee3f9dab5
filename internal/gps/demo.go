package gps

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shaunagostinho/gps-speedo/internal/geo"
	"github.com/shaunagostinho/gps-speedo/internal/speed"
)

// DemoGPS drives a simulated car around a loop for testing without a
// receiver. Every Read advances the virtual clock by Step.
type DemoGPS struct {
	mu      sync.Mutex
	rng     *rand.Rand
	t       float64 // seconds of virtual time
	start   time.Time
	lat     float64
	lon     float64
	heading float64

	// Step is the virtual time between fixes.
	Step time.Duration
	// ReportSpeed attaches a device speed to each fix like a real receiver
	// would; without it the estimator derives speed from positions.
	ReportSpeed bool
}

func NewDemoGPS(seed int64) *DemoGPS {
	return &DemoGPS{
		rng:   rand.New(rand.NewSource(seed)),
		start: time.Now().UTC().Truncate(time.Millisecond),
		lat:   43.6532, // Toronto
		lon:   -79.3832,
		Step:  time.Second,
	}
}

func (d *DemoGPS) Name() string   { return "Demo GPS (Simulated)" }
func (d *DemoGPS) Connect() error { return nil }
func (d *DemoGPS) Close() error   { return nil }

func (d *DemoGPS) Read() (*speed.GeoFix, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dt := d.Step.Seconds()
	d.t += dt

	// 20–80 km/h with a little noise, turning slowly
	kmh := 50 + 30*math.Sin(d.t*0.03) + d.rng.Float64()*5
	mps := kmh / 3.6
	d.heading = math.Mod(d.heading+3*dt, 360)

	dist := mps * dt
	rad := d.heading * math.Pi / 180
	dLat := dist * math.Cos(rad) / geo.EarthRadius * 180 / math.Pi
	dLon := dist * math.Sin(rad) / (geo.EarthRadius * math.Cos(d.lat*math.Pi/180)) * 180 / math.Pi
	d.lat += dLat
	d.lon += dLon

	alt := 76.0
	fix := &speed.GeoFix{
		Latitude:  d.lat,
		Longitude: d.lon,
		Altitude:  &alt,
		Accuracy:  0.8 * UERE,
		Timestamp: d.start.Add(time.Duration(d.t * float64(time.Second))),
	}
	if d.ReportSpeed {
		fix.ReportedSpeed = &mps
	}
	return fix, nil
}
