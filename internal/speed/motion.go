package speed

import (
	"math"

	"github.com/montanaflynn/stats"
)

const (
	// MotionWindow is how many acceleration deltas feed the variance.
	MotionWindow = 10
	// ActiveVariance is the variance above which the device counts as moving.
	ActiveVariance = 0.1
	// StepJerk is the single-delta magnitude that counts as a step.
	StepJerk = 1.5
)

// MotionState is the rolling accelerometer window. The zero value is ready
// to use.
type MotionState struct {
	Deltas   []float64     `json:"-"`
	Last     *MotionSample `json:"-"`
	Mean     float64       `json:"mean"`
	Variance float64       `json:"variance"`
	Active   bool          `json:"active"`
	Steps    int           `json:"steps"`
}

// IngestMotion folds one reading into the window. The first reading only
// seeds the baseline. The returned state does not share its window with the
// input.
func IngestMotion(m MotionSample, st MotionState) (MotionState, bool, bool) {
	next := st
	next.Deltas = append([]float64(nil), st.Deltas...)
	cur := m
	next.Last = &cur

	if st.Last == nil {
		return next, next.Active, false
	}

	dx := m.X - st.Last.X
	dy := m.Y - st.Last.Y
	dz := m.Z - st.Last.Z
	delta := math.Sqrt(dx*dx + dy*dy + dz*dz)

	next.Deltas = append(next.Deltas, delta)
	if len(next.Deltas) > MotionWindow {
		next.Deltas = next.Deltas[len(next.Deltas)-MotionWindow:]
	}

	// Errors only come back for empty input, which cannot happen here.
	next.Mean, _ = stats.Mean(next.Deltas)
	next.Variance, _ = stats.PopulationVariance(next.Deltas)
	next.Active = next.Variance > ActiveVariance

	step := delta > StepJerk
	if step {
		next.Steps++
	}
	return next, next.Active, step
}
