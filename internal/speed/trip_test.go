package speed

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateFirstSampleStartsTrip(t *testing.T) {
	trip := ResetTrip()
	assert.False(t, trip.Started())

	speed, trip := Update(Sample{Speed: 2, Distance: 0, Timestamp: t0, Source: SourceReported}, trip)
	assert.Equal(t, 2.0, speed)
	assert.Equal(t, t0, trip.Start)
	assert.Zero(t, trip.Elapsed)
	assert.Zero(t, trip.AvgSpeed)
	assert.Equal(t, 2.0, trip.MaxSpeed)
	assert.Equal(t, 1, trip.Samples)
}

func TestUpdateAccumulates(t *testing.T) {
	trip := ResetTrip()
	_, trip = Update(Sample{Speed: 0, Timestamp: t0}, trip)
	_, trip = Update(Sample{Speed: 10, Distance: 100, Timestamp: t0.Add(10 * time.Second)}, trip)
	_, trip = Update(Sample{Speed: 5, Distance: 50, Timestamp: t0.Add(20 * time.Second)}, trip)

	assert.Equal(t, 150.0, trip.Distance)
	assert.Equal(t, 10.0, trip.MaxSpeed)
	assert.Equal(t, 20*time.Second, trip.Elapsed)
	assert.InDelta(t, 7.5, trip.AvgSpeed, 1e-9)
}

func TestUpdateClampsBadInput(t *testing.T) {
	speed, trip := Update(Sample{Speed: -4, Distance: -10, Timestamp: t0}, ResetTrip())
	assert.Zero(t, speed)
	assert.Zero(t, trip.Distance)

	speed, trip = Update(Sample{Speed: math.NaN(), Distance: math.Inf(1), Timestamp: t0.Add(time.Second)}, trip)
	assert.Zero(t, speed)
	assert.Zero(t, trip.Distance)
}

func TestElapsedNeverDecreases(t *testing.T) {
	trip := ResetTrip()
	_, trip = Update(Sample{Timestamp: t0}, trip)
	_, trip = Update(Sample{Distance: 10, Timestamp: t0.Add(5 * time.Second)}, trip)
	require.Equal(t, 5*time.Second, trip.Elapsed)

	// a late, out-of-order sample does not rewind the clock
	_, trip = Update(Sample{Distance: 0, Timestamp: t0.Add(2 * time.Second)}, trip)
	assert.Equal(t, 5*time.Second, trip.Elapsed)

	trip = trip.Tick(t0.Add(time.Second))
	assert.Equal(t, 5*time.Second, trip.Elapsed)

	trip = trip.Tick(t0.Add(10 * time.Second))
	assert.Equal(t, 10*time.Second, trip.Elapsed)
	assert.InDelta(t, 1.0, trip.AvgSpeed, 1e-9)
}

func TestTickBeforeStart(t *testing.T) {
	trip := ResetTrip().Tick(t0)
	assert.Equal(t, ResetTrip(), trip)
}

func TestTripMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	trip := ResetTrip()
	var prevDist, prevMax float64
	ts := t0
	for i := 0; i < 500; i++ {
		ts = ts.Add(time.Duration(rng.Intn(3000)) * time.Millisecond)
		s := Sample{Speed: rng.Float64() * 40, Distance: rng.Float64() * 50, Timestamp: ts}
		_, trip = Update(s, trip)
		require.GreaterOrEqual(t, trip.Distance, prevDist)
		require.GreaterOrEqual(t, trip.MaxSpeed, prevMax)
		require.GreaterOrEqual(t, trip.AvgSpeed, 0.0)
		prevDist, prevMax = trip.Distance, trip.MaxSpeed
	}
}

func TestDerivedPathAccruesOnce(t *testing.T) {
	fixes := []GeoFix{
		{Latitude: 0, Longitude: 0, Timestamp: t0},
		{Latitude: 0, Longitude: 0.001, ReportedSpeed: ptr(11), Timestamp: t0.Add(10 * time.Second)},
		{Latitude: 0, Longitude: 0.002, Timestamp: t0.Add(20 * time.Second)},
	}
	trip := ResetTrip()
	var prev *GeoFix
	for i := range fixes {
		_, trip = Update(IngestGeoFix(fixes[i], prev), trip)
		prev = &fixes[i]
	}
	assert.InDelta(t, 2*111.195, trip.Distance, 0.1)
}
