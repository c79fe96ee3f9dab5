package speed

import (
	"math"

	"github.com/shaunagostinho/gps-speedo/internal/geo"
)

// IngestGeoFix turns a fix into a canonical sample. A usable device speed wins;
// otherwise speed is derived from the great-circle distance to prev over the
// time between the two fixes. Out-of-order and duplicate timestamps yield zero
// speed and zero distance. The caller keeps fix around as the next prev.
func IngestGeoFix(fix GeoFix, prev *GeoFix) Sample {
	s := Sample{Timestamp: fix.Timestamp, Source: SourceNone}

	var dt float64
	if prev != nil {
		dt = fix.Timestamp.Sub(prev.Timestamp).Seconds()
		if dt > 0 {
			s.Distance = geo.DistanceMeters(prev.Latitude, prev.Longitude, fix.Latitude, fix.Longitude)
			if s.Distance > 0 {
				s.Heading = geo.Bearing(prev.Latitude, prev.Longitude, fix.Latitude, fix.Longitude)
			}
		}
	}

	if v, ok := fix.reportedSpeed(); ok {
		s.Speed = v
		s.Source = SourceReported
		return s
	}
	if prev != nil {
		s.Source = SourceDerived
		if dt > 0 {
			s.Speed = s.Distance / dt
		}
	}
	return s
}

// Ingestor wraps IngestGeoFix with an optional glitch ceiling.
type Ingestor struct {
	// MaxSpeed, in m/s, drops derived samples faster than this as position
	// jumps. Zero disables the check.
	MaxSpeed float64
}

// Ingest is IngestGeoFix plus the jump filter. The second result is false
// when the sample was treated as a glitch and zeroed.
func (in Ingestor) Ingest(fix GeoFix, prev *GeoFix) (Sample, bool) {
	s := IngestGeoFix(fix, prev)
	if in.MaxSpeed > 0 && s.Source == SourceDerived && s.Speed > in.MaxSpeed {
		s.Speed = 0
		s.Distance = 0
		return s, false
	}
	if math.IsNaN(s.Speed) || math.IsInf(s.Speed, 0) {
		s.Speed = 0
	}
	return s, true
}
