package speed

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/gps-speedo/internal/activity"
	"github.com/shaunagostinho/gps-speedo/internal/units"
)

func TestSimulatorStationaryDecay(t *testing.T) {
	sim := NewSimulator(SimConfig{Activity: activity.Stationary, StartSpeed: 10, Start: t0}, rand.New(rand.NewSource(1)))

	want := 10.0
	for i := 0; i < 5; i++ {
		s := sim.Next()
		want *= 0.9
		assert.InDelta(t, want, sim.Speed(), 1e-9)
		assert.InDelta(t, units.KMHToMPS(want), s.Speed, 1e-9)
		assert.Equal(t, SourceSimulated, s.Source)
		assert.Equal(t, t0.Add(time.Duration(i+1)*SimPeriod), s.Timestamp)
	}
}

func TestSimulatorStationarySnapsToZero(t *testing.T) {
	sim := NewSimulator(SimConfig{Activity: activity.Stationary, StartSpeed: 0.15}, rand.New(rand.NewSource(1)))

	got := make([]float64, 0, 5)
	for i := 0; i < 5; i++ {
		sim.Next()
		got = append(got, sim.Speed())
	}
	assert.InDelta(t, 0.135, got[0], 1e-9)
	assert.InDelta(t, 0.1215, got[1], 1e-9)
	assert.InDelta(t, 0.10935, got[2], 1e-9)
	assert.Equal(t, 0.0, got[3])
	assert.Equal(t, 0.0, got[4])
}

func TestSimulatorAccelerationStep(t *testing.T) {
	sim := NewSimulator(SimConfig{Activity: activity.Vehicle, StartSpeed: 0}, rand.New(rand.NewSource(7)))

	prev := 0.0
	for i := 0; i < 50; i++ {
		s := sim.Next()
		assert.LessOrEqual(t, sim.Speed()-prev, SimAccelStep+1e-9)
		assert.InDelta(t, s.Speed*SimPeriod.Seconds(), s.Distance, 1e-9)
		prev = sim.Speed()
	}
	// always below the 35 km/h floor after 50 ticks, so always climbing
	assert.InDelta(t, 25.0, sim.Speed(), 1e-9)
	assert.Equal(t, activity.Vehicle, sim.Activity())
}

func TestSimulatorConvergesIntoBand(t *testing.T) {
	sim := NewSimulator(SimConfig{Activity: activity.Walking, StartSpeed: 30}, rand.New(rand.NewSource(3)))
	for i := 0; i < 100; i++ {
		sim.Next()
	}
	lo, hi := activity.Walking.Range()
	assert.GreaterOrEqual(t, sim.Speed(), lo-SimAccelStep)
	assert.LessOrEqual(t, sim.Speed(), hi+SimAccelStep)
}

func TestSimulatorSwitchesToDifferentActivity(t *testing.T) {
	sim := NewSimulator(SimConfig{Activity: activity.Running, SwitchProbability: 1}, rand.New(rand.NewSource(11)))
	seen := map[activity.Activity]bool{}
	for i := 0; i < 200; i++ {
		before := sim.Activity()
		sim.Next()
		require.NotEqual(t, before, sim.Activity())
		seen[sim.Activity()] = true
	}
	assert.Len(t, seen, len(activity.All))
}
