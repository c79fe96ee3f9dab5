package serialport

import (
	"errors"
	"fmt"
	"log"
	"time"

	"go.bug.st/serial"

	"github.com/shaunagostinho/gps-speedo/internal/speed"
)

// ReadTimeout bounds each read so pollers never hang on a silent device.
const ReadTimeout = 200 * time.Millisecond

// Open opens an 8N1 serial port and maps driver failures onto the sensor
// error taxonomy.
func Open(tag, path string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open %s: %w", tag, path, Classify(err))
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%s: set read timeout: %w", tag, err)
	}
	log.Printf("[%s] connected to %s at %d baud", tag, path, baud)
	return port, nil
}

type classified struct {
	kind  error
	cause error
}

func (c *classified) Error() string   { return c.kind.Error() + ": " + c.cause.Error() }
func (c *classified) Unwrap() []error { return []error{c.kind, c.cause} }

// Classify wraps a serial driver error so errors.Is matches the speed
// sentinels while errors.As still finds the *serial.PortError.
func Classify(err error) error {
	var pe *serial.PortError
	if !errors.As(err, &pe) {
		return &classified{kind: speed.ErrSignalUnavailable, cause: err}
	}
	switch pe.Code() {
	case serial.PermissionDenied:
		return &classified{kind: speed.ErrPermissionDenied, cause: err}
	case serial.PortNotFound, serial.InvalidSerialPort:
		return &classified{kind: speed.ErrUnsupported, cause: err}
	}
	return &classified{kind: speed.ErrSignalUnavailable, cause: err}
}
