package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMetersIdentity(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{43.6532, -79.3832},
		{-33.8688, 151.2093},
		{89.9999, 179.9999},
		{-90, -180},
	}
	for _, p := range points {
		d := DistanceMeters(p[0], p[1], p[0], p[1])
		assert.Equal(t, 0.0, d, "point %v", p)
		assert.False(t, math.IsNaN(d))
	}
}

func TestDistanceMetersSymmetric(t *testing.T) {
	pairs := [][4]float64{
		{0, 0, 0, 1},
		{43.6532, -79.3832, 45.5017, -73.5673},
		{-6.2, 106.816, -6.9175, 107.6191},
		{10, 170, -10, -170},
	}
	for _, p := range pairs {
		ab := DistanceMeters(p[0], p[1], p[2], p[3])
		ba := DistanceMeters(p[2], p[3], p[0], p[1])
		assert.InDelta(t, ab, ba, 1e-6, "pair %v", p)
	}
}

func TestDistanceMetersOneDegree(t *testing.T) {
	d := DistanceMeters(0, 0, 0, 1)
	assert.InDelta(t, 111195, d, 50)

	d = DistanceMeters(0, 0, 0, 0.001)
	assert.InDelta(t, 111.195, d, 0.05)
}

func TestDistanceMetersAntipodal(t *testing.T) {
	d := DistanceMeters(0, 0, 0, 180)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadius, d, 1)

	d = DistanceMeters(90, 0, -90, 0)
	assert.InDelta(t, math.Pi*EarthRadius, d, 1)
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"north", 0, 0, 1, 0, 0},
		{"east", 0, 0, 0, 1, 90},
		{"south", 1, 0, 0, 0, 180},
		{"west", 0, 1, 0, 0, 270},
		{"same point", 12, 34, 12, 34, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Bearing(tt.lat1, tt.lon1, tt.lat2, tt.lon2), 0.01)
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(0, 0))
	assert.True(t, Valid(-90, 180))
	assert.True(t, Valid(90, -180))
	assert.False(t, Valid(90.5, 0))
	assert.False(t, Valid(0, -181))
	assert.False(t, Valid(math.NaN(), 0))
	assert.False(t, Valid(0, math.Inf(1)))
}
