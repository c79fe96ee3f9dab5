package speed

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaunagostinho/gps-speedo/internal/activity"
	"github.com/shaunagostinho/gps-speedo/internal/units"
)

// Session is the state of one tracking session. The caller owns it and
// passes every sensor event through it. A Session is not safe for concurrent
// use; hosts that read sensors from several goroutines must serialize calls.
type Session struct {
	ID string

	ingestor   Ingestor
	prev       *GeoFix
	trip       Trip
	classifier *activity.Classifier
	motion     MotionState

	speed   float64 // m/s
	source  Source
	heading float64
	updated time.Time
}

// Result describes what one sample did to the session.
type Result struct {
	Sample          Sample
	Speed           float64 // m/s
	Activity        activity.State
	ActivityChanged bool
	Dropped         bool // sample treated as a position jump
}

// MotionResult describes what one accelerometer reading did.
type MotionResult struct {
	Variance float64
	Active   bool
	Step     bool
	Steps    int
}

// NewSession returns a fresh session.
func NewSession(in Ingestor) *Session {
	s := &Session{ingestor: in, classifier: activity.NewClassifier()}
	s.Reset()
	return s
}

// Reset starts a new trip: new ID, zero aggregate, no previous fix.
func (s *Session) Reset() {
	s.ID = uuid.NewString()
	s.prev = nil
	s.trip = ResetTrip()
	s.classifier.Reset()
	s.motion = MotionState{}
	s.speed = 0
	s.source = SourceNone
	s.heading = 0
	s.updated = time.Time{}
}

// OnFix validates and ingests a location fix. Invalid fixes are rejected
// with ErrInvalidSample and leave the session untouched.
func (s *Session) OnFix(fix GeoFix) (Result, error) {
	if err := fix.Validate(); err != nil {
		return Result{Speed: s.speed, Activity: s.classifier.State()}, err
	}
	sample, ok := s.ingestor.Ingest(fix, s.prev)
	f := fix
	s.prev = &f
	if !ok {
		return Result{Sample: sample, Speed: s.speed, Activity: s.classifier.State(), Dropped: true}, nil
	}
	return s.OnSample(sample), nil
}

// OnSample feeds a canonical sample straight to the estimator. Simulated
// samples enter here.
func (s *Session) OnSample(sample Sample) Result {
	speed, trip := Update(sample, s.trip)
	s.trip = trip
	s.speed = speed
	s.source = sample.Source
	if sample.Distance > 0 {
		s.heading = sample.Heading
	}
	s.updated = sample.Timestamp

	st, changed := s.classifier.Update(units.MPSToKMH(speed))
	return Result{
		Sample:          sample,
		Speed:           speed,
		Activity:        st,
		ActivityChanged: changed,
	}
}

// OnMotion folds one accelerometer reading into the motion window.
func (s *Session) OnMotion(m MotionSample) MotionResult {
	st, active, step := IngestMotion(m, s.motion)
	s.motion = st
	return MotionResult{Variance: st.Variance, Active: active, Step: step, Steps: st.Steps}
}

// Tick refreshes elapsed time and average speed on the display timer.
func (s *Session) Tick(now time.Time) {
	s.trip = s.trip.Tick(now)
}

// Speed returns the instantaneous speed in m/s.
func (s *Session) Speed() float64 { return s.speed }

// Trip returns a copy of the aggregate.
func (s *Session) Trip() Trip { return s.trip }

// Activity returns the held classification.
func (s *Session) Activity() activity.State { return s.classifier.State() }

// Motion returns a copy of the motion state.
func (s *Session) Motion() MotionState {
	m := s.motion
	m.Deltas = append([]float64(nil), s.motion.Deltas...)
	return m
}

// Snapshot is the read-only projection handed to the presentation layer.
// Speeds are converted to Unit; canonical state is untouched.
type Snapshot struct {
	SessionID string         `json:"sessionId"`
	Unit      units.Unit     `json:"unit"`
	Speed     float64        `json:"speed"`
	SpeedMPS  float64        `json:"speedMps"`
	Display   string         `json:"display"`
	Source    Source         `json:"source"`
	Heading   float64        `json:"heading"`
	Updated   *time.Time     `json:"updated,omitempty"`
	Trip      TripSnapshot   `json:"trip"`
	Activity  activity.State `json:"activity"`
	Motion    MotionSnapshot `json:"motion"`
}

// TripSnapshot is Trip converted for display.
type TripSnapshot struct {
	Distance       float64    `json:"distance"`
	DistanceUnit   string     `json:"distanceUnit"`
	DistanceMeters float64    `json:"distanceMeters"`
	MaxSpeed       float64    `json:"maxSpeed"`
	AvgSpeed       float64    `json:"avgSpeed"`
	ElapsedSeconds float64    `json:"elapsedSeconds"`
	Start          *time.Time `json:"start,omitempty"`
	Samples        int        `json:"samples"`
}

// MotionSnapshot summarises the motion window.
type MotionSnapshot struct {
	Variance float64 `json:"variance"`
	Active   bool    `json:"active"`
	Steps    int     `json:"steps"`
}

// Snapshot projects the session into u.
func (s *Session) Snapshot(u units.Unit) Snapshot {
	snap := Snapshot{
		SessionID: s.ID,
		Unit:      u,
		Speed:     units.ToDisplay(s.speed, u),
		SpeedMPS:  s.speed,
		Source:    s.source,
		Heading:   s.heading,
		Trip: TripSnapshot{
			Distance:       units.DistanceToDisplay(s.trip.Distance, u),
			DistanceUnit:   u.DistanceLabel(),
			DistanceMeters: s.trip.Distance,
			MaxSpeed:       units.ToDisplay(s.trip.MaxSpeed, u),
			AvgSpeed:       units.ToDisplay(s.trip.AvgSpeed, u),
			ElapsedSeconds: s.trip.Elapsed.Seconds(),
			Samples:        s.trip.Samples,
		},
		Activity: s.classifier.State(),
		Motion: MotionSnapshot{
			Variance: s.motion.Variance,
			Active:   s.motion.Active,
			Steps:    s.motion.Steps,
		},
	}
	snap.Display = units.Format(snap.Speed)
	if !s.updated.IsZero() {
		t := s.updated
		snap.Updated = &t
	}
	if s.trip.Started() {
		start := s.trip.Start
		snap.Trip.Start = &start
	}
	return snap
}
