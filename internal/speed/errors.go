package speed

import "errors"

// Sensor and sample errors. Providers wrap these with context; callers match
// them with errors.Is.
var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrSignalUnavailable = errors.New("signal unavailable")
	ErrTimeout           = errors.New("sensor timeout")
	ErrUnsupported       = errors.New("capability unsupported")
	ErrInvalidSample     = errors.New("invalid sample")
)

// ErrorKind returns a short stable name for err, for display and JSON.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrSignalUnavailable):
		return "signal_unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrInvalidSample):
		return "invalid_sample"
	}
	return "unknown"
}
