package server

import (
	"log"
	"sync"
	"time"

	"github.com/shaunagostinho/gps-speedo/internal/activity"
	"github.com/shaunagostinho/gps-speedo/internal/speed"
	"github.com/shaunagostinho/gps-speedo/internal/units"
)

// Tracker serializes every sensor event and timer tick into one
// speed.Session. Sensor goroutines call it concurrently; the session itself
// only ever sees one call at a time.
type Tracker struct {
	mu      sync.Mutex
	session *speed.Session
	sim     *speed.Simulator // nil when real sensors drive the session
	running bool
	lastFix time.Time
	// fixWall is the host clock reading when lastFix was accepted. Ticks
	// extrapolate from lastFix so elapsed time stays in the receiver's clock.
	fixWall time.Time
	gpsErr  error
	imuErr  error
	now     func() time.Time
}

// Status is the tracker state handed to clients.
type Status struct {
	Snapshot  speed.Snapshot    `json:"snapshot"`
	Running   bool              `json:"running"`
	Simulated bool              `json:"simulated"`
	Errors    map[string]string `json:"errors,omitempty"` // sensor -> error kind
}

// NewTracker builds a stopped tracker. sim may be nil.
func NewTracker(in speed.Ingestor, sim *speed.Simulator) *Tracker {
	return &Tracker{
		session: speed.NewSession(in),
		sim:     sim,
		now:     time.Now,
	}
}

// Start begins a fresh session, discarding any session in progress.
func (t *Tracker) Start() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		log.Printf("[tracker] restarting, dropping session %s", t.session.ID)
	}
	t.session.Reset()
	t.running = true
	t.lastFix = time.Time{}
	t.fixWall = time.Time{}
	log.Printf("[tracker] session %s started", t.session.ID)
	return t.session.ID
}

// Stop ends the session and returns its final summary. Samples arriving
// after Stop are ignored until the next Start.
func (t *Tracker) Stop(u units.Unit) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.statusLocked(u)
	if t.running {
		trip := t.session.Trip()
		log.Printf("[tracker] session %s stopped: %.0f m in %v, max %.1f km/h",
			t.session.ID, trip.Distance, trip.Elapsed.Round(time.Second), units.MPSToKMH(trip.MaxSpeed))
	}
	t.running = false
	st.Running = false
	return st
}

// SetSimulatedActivity switches the simulator's activity. It returns false
// when the tracker is driven by real sensors.
func (t *Tracker) SetSimulatedActivity(a activity.Activity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sim == nil {
		return false
	}
	t.sim.SetActivity(a)
	return true
}

// Running reports whether a session is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// HandleFix routes one read from the location stream.
func (t *Tracker) HandleFix(fix *speed.GeoFix, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.setErr("gps", &t.gpsErr, err)
		return
	}
	t.setErr("gps", &t.gpsErr, nil)
	if fix == nil || !t.running || t.sim != nil {
		return
	}
	// Receivers repeat the last fix between updates; only new ones count.
	if !fix.Timestamp.After(t.lastFix) {
		return
	}
	res, err := t.session.OnFix(*fix)
	if err != nil {
		log.Printf("[tracker] dropped fix: %v", err)
		return
	}
	t.lastFix = fix.Timestamp
	t.fixWall = t.now()
	if res.Dropped {
		log.Printf("[tracker] ignored position jump (%.0f m)", res.Sample.Distance)
	}
	if res.ActivityChanged {
		log.Printf("[tracker] activity now %s (%.0f%%)", res.Activity.Activity, res.Activity.Confidence)
	}
}

// HandleMotion routes one read from the motion stream.
func (t *Tracker) HandleMotion(m *speed.MotionSample, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.setErr("imu", &t.imuErr, err)
		return
	}
	t.setErr("imu", &t.imuErr, nil)
	if m == nil || !t.running {
		return
	}
	t.session.OnMotion(*m)
}

// Tick runs the 1-second timer: one simulated sample in simulated mode,
// otherwise an elapsed-time refresh. Real-sensor ticks advance from the last
// fix's timestamp by the host time since it arrived, so an offset between
// the host and receiver clocks never leaks into elapsed time.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	if t.sim != nil {
		res := t.session.OnSample(t.sim.Next())
		if res.ActivityChanged {
			log.Printf("[tracker] activity now %s (%.0f%%)", res.Activity.Activity, res.Activity.Confidence)
		}
		return
	}
	if t.fixWall.IsZero() {
		return
	}
	since := t.now().Sub(t.fixWall)
	if since < 0 {
		since = 0
	}
	t.session.Tick(t.lastFix.Add(since))
}

// Status projects the session into u.
func (t *Tracker) Status(u units.Unit) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked(u)
}

func (t *Tracker) statusLocked(u units.Unit) Status {
	st := Status{
		Snapshot:  t.session.Snapshot(u),
		Running:   t.running,
		Simulated: t.sim != nil,
	}
	for name, err := range map[string]error{"gps": t.gpsErr, "imu": t.imuErr} {
		if err == nil {
			continue
		}
		if st.Errors == nil {
			st.Errors = make(map[string]string)
		}
		st.Errors[name] = speed.ErrorKind(err)
	}
	return st
}

// setErr records a sensor error, logging only when its kind changes.
func (t *Tracker) setErr(name string, slot *error, err error) {
	if speed.ErrorKind(*slot) != speed.ErrorKind(err) {
		if err != nil {
			log.Printf("[%s] %v", name, err)
		} else {
			log.Printf("[%s] recovered", name)
		}
	}
	*slot = err
}
