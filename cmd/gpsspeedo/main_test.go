package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/gps-speedo/internal/activity"
	"github.com/shaunagostinho/gps-speedo/internal/gps"
	"github.com/shaunagostinho/gps-speedo/internal/imu"
	"github.com/shaunagostinho/gps-speedo/internal/server"
)

type flaky struct {
	failures int
	calls    int
}

func (f *flaky) Connect() error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("port busy")
	}
	return nil
}

func (f *flaky) Close() error { return nil }

func TestRetryEventuallyConnects(t *testing.T) {
	f := &flaky{failures: 3}
	ok := retry(context.Background(), "test", f, 2, time.Millisecond, 4*time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, 4, f.calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &flaky{failures: 1 << 30}
	done := make(chan bool)
	go func() { done <- retry(ctx, "test", f, 1, time.Millisecond, time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("retry did not stop")
	}
}

func TestBuildProviders(t *testing.T) {
	cfg := server.DefaultConfig()

	cfg.GPS.Type = "nmea"
	assert.IsType(t, &gps.NMEAProvider{}, buildGPS(cfg))
	cfg.GPS.Type = "demo"
	assert.IsType(t, &gps.DemoGPS{}, buildGPS(cfg))
	cfg.GPS.Type = "disabled"
	assert.Nil(t, buildGPS(cfg))

	cfg.Motion.Type = "serial"
	assert.IsType(t, &imu.SerialProvider{}, buildIMU(cfg))
	cfg.Motion.Type = "demo"
	assert.IsType(t, &imu.DemoProvider{}, buildIMU(cfg))
	cfg.Motion.Type = "disabled"
	assert.Nil(t, buildIMU(cfg))
}

func TestBuildSimulator(t *testing.T) {
	cfg := server.DefaultConfig()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, buildSimulator(cfg, now))

	cfg.Simulation.Enabled = true
	cfg.Simulation.Activity = "cycling"
	cfg.Simulation.Seed = 5
	sim := buildSimulator(cfg, now)
	require.NotNil(t, sim)
	assert.Equal(t, activity.Cycling, sim.Activity())

	s := sim.Next()
	assert.Equal(t, now.Add(time.Second), s.Timestamp)
}
