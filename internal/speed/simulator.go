package speed

import (
	"math/rand"
	"time"

	"github.com/shaunagostinho/gps-speedo/internal/activity"
	"github.com/shaunagostinho/gps-speedo/internal/units"
)

// Simulator defaults. Speeds inside the simulator are km/h so they line up
// with the activity band table.
const (
	SimPeriod            = time.Second
	SimAccelStep         = 0.5  // km/h per tick
	SimDecay             = 0.9  // per tick, stationary only
	SimSnap              = 0.1  // km/h, below this a decaying speed becomes 0
	SimSwitchProbability = 0.05 // per tick
)

// SimConfig configures a Simulator. Zero Period means SimPeriod.
type SimConfig struct {
	Activity          activity.Activity
	StartSpeed        float64 // km/h
	SwitchProbability float64
	Period            time.Duration
	Start             time.Time
}

// DefaultSimConfig starts stationary at rest.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Activity:          activity.Stationary,
		SwitchProbability: SimSwitchProbability,
		Period:            SimPeriod,
	}
}

// Simulator produces synthetic samples when no real sensors are present.
type Simulator struct {
	cfg      SimConfig
	rng      *rand.Rand
	activity activity.Activity
	last     float64 // km/h
	now      time.Time
}

// NewSimulator builds a simulator. rng must not be shared with other
// goroutines.
func NewSimulator(cfg SimConfig, rng *rand.Rand) *Simulator {
	if cfg.Period <= 0 {
		cfg.Period = SimPeriod
	}
	if cfg.StartSpeed < 0 {
		cfg.StartSpeed = 0
	}
	return &Simulator{
		cfg:      cfg,
		rng:      rng,
		activity: cfg.Activity,
		last:     cfg.StartSpeed,
		now:      cfg.Start,
	}
}

// Activity is the activity currently being simulated.
func (s *Simulator) Activity() activity.Activity { return s.activity }

// SetActivity forces the simulated activity.
func (s *Simulator) SetActivity(a activity.Activity) { s.activity = a }

// Speed is the last simulated speed in km/h.
func (s *Simulator) Speed() float64 { return s.last }

// Next advances one period and returns the resulting sample.
func (s *Simulator) Next() Sample {
	if s.cfg.SwitchProbability > 0 && s.rng.Float64() < s.cfg.SwitchProbability {
		s.switchActivity()
	}

	if s.activity == activity.Stationary {
		s.last *= SimDecay
		if s.last < SimSnap {
			s.last = 0
		}
	} else {
		lo, hi := s.activity.Range()
		target := lo + s.rng.Float64()*(hi-lo)
		diff := target - s.last
		if diff > SimAccelStep {
			diff = SimAccelStep
		} else if diff < -SimAccelStep {
			diff = -SimAccelStep
		}
		s.last += diff
		if s.last < 0 {
			s.last = 0
		}
	}

	s.now = s.now.Add(s.cfg.Period)
	mps := units.KMHToMPS(s.last)
	return Sample{
		Speed:     mps,
		Distance:  mps * s.cfg.Period.Seconds(),
		Timestamp: s.now,
		Source:    SourceSimulated,
	}
}

// switchActivity picks uniformly among the activities other than the current one.
func (s *Simulator) switchActivity() {
	n := s.rng.Intn(len(activity.All) - 1)
	if activity.All[n] >= s.activity {
		n++
	}
	s.activity = activity.All[n]
}
