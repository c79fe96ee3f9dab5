package gps

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaunagostinho/gps-speedo/internal/speed"
)

// sentence wraps body in $...*hh with a correct checksum.
func sentence(body string) string {
	return fmt.Sprintf("$%s*%02X", body, nmeaChecksum(body))
}

func TestValidateNMEAChecksum(t *testing.T) {
	good := sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")
	assert.True(t, validateNMEAChecksum(good))

	bad := good[:len(good)-2] + "00"
	if strings.HasSuffix(good, "00") {
		bad = good[:len(good)-2] + "01"
	}
	assert.False(t, validateNMEAChecksum(bad))
	assert.False(t, validateNMEAChecksum("$GPGGA,no,checksum"))
}

func TestParseNMEACoord(t *testing.T) {
	assert.InDelta(t, 48.1173, parseNMEACoord("4807.038", "N"), 1e-4)
	assert.InDelta(t, -11.5166667, parseNMEACoord("01131.000", "W"), 1e-6)
	assert.Zero(t, parseNMEACoord("", "N"))
	assert.Zero(t, parseNMEACoord("abc", "N"))
}

func TestNMEARead(t *testing.T) {
	input := strings.Join([]string{
		"garbage line",
		sentence("GPRMC,123519.50,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"),
		sentence("GPGGA,123519.50,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"),
	}, "\n")
	n := newNMEAReader(strings.NewReader(input))

	fix, err := n.Read()
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, fix.Latitude, 1e-4)
	assert.InDelta(t, 11.5166667, fix.Longitude, 1e-6)
	require.NotNil(t, fix.ReportedSpeed)
	assert.InDelta(t, 22.4*knotsToMPS, *fix.ReportedSpeed, 1e-9)
	require.NotNil(t, fix.Altitude)
	assert.Equal(t, 545.4, *fix.Altitude)
	assert.InDelta(t, 0.9*UERE, fix.Accuracy, 1e-9)
	assert.Equal(t, time.Date(1994, 3, 23, 12, 35, 19, 500*int(time.Millisecond), time.UTC), fix.Timestamp)
	assert.NoError(t, fix.Validate())

	// stream exhausted
	_, err = n.Read()
	assert.ErrorIs(t, err, speed.ErrTimeout)
}

// stallReader returns (0, nil) stalls times before reading from r, the way a
// serial port reports each read timeout on a quiet line.
type stallReader struct {
	stalls int
	r      io.Reader
}

func (s *stallReader) Read(p []byte) (int, error) {
	if s.stalls > 0 {
		s.stalls--
		return 0, nil
	}
	return s.r.Read(p)
}

func TestNMEARecoversAfterSilence(t *testing.T) {
	input := strings.Join([]string{
		sentence("GPRMC,123519.50,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"),
		sentence("GPGGA,123519.50,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"),
	}, "\n")
	n := newNMEAReader(&stallReader{stalls: 150, r: strings.NewReader(input)})

	_, err := n.Read()
	assert.ErrorIs(t, err, speed.ErrTimeout)

	fix, err := n.Read()
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, fix.Latitude, 1e-4)
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestNMEAReadError(t *testing.T) {
	cause := errors.New("device unplugged")
	n := newNMEAReader(failingReader{err: cause})
	_, err := n.Read()
	assert.ErrorIs(t, err, speed.ErrSignalUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestNMEAReadNoFix(t *testing.T) {
	input := sentence("GPRMC,123519,V,,,,,,,230394,,")
	n := newNMEAReader(strings.NewReader(input))
	_, err := n.Read()
	assert.ErrorIs(t, err, speed.ErrSignalUnavailable)
}

func TestNMEANotConnected(t *testing.T) {
	n := NewNMEA(NMEAConfig{PortPath: "/dev/null-gps"})
	_, err := n.Read()
	assert.ErrorIs(t, err, speed.ErrSignalUnavailable)
	assert.NoError(t, n.Close())
}

func TestDemoGPS(t *testing.T) {
	d := NewDemoGPS(1)
	require.NoError(t, d.Connect())

	s := speed.NewSession(speed.Ingestor{})
	var last time.Time
	for i := 0; i < 30; i++ {
		fix, err := d.Read()
		require.NoError(t, err)
		require.NoError(t, fix.Validate())
		assert.Nil(t, fix.ReportedSpeed)
		assert.True(t, fix.Timestamp.After(last))
		last = fix.Timestamp

		_, err = s.OnFix(*fix)
		require.NoError(t, err)
	}
	kmh := s.Speed() * 3.6
	assert.Greater(t, kmh, 15.0)
	assert.Less(t, kmh, 90.0)
	assert.Greater(t, s.Trip().Distance, 0.0)

	d.ReportSpeed = true
	fix, err := d.Read()
	require.NoError(t, err)
	require.NotNil(t, fix.ReportedSpeed)
}
