package imu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/shaunagostinho/gps-speedo/internal/serialport"
	"github.com/shaunagostinho/gps-speedo/internal/speed"
)

// SerialProvider reads "x,y,z" accelerometer lines (m/s²) from a UART, as
// emitted by a microcontroller bridging an MPU-6050 or similar.
type SerialProvider struct {
	portPath string
	baudRate int
	port     serial.Port
	src      io.Reader
	scanner  *bufio.Scanner
	mu       sync.Mutex
	now      func() time.Time
}

// SerialConfig holds configuration for the serial accelerometer.
type SerialConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

func NewSerial(cfg SerialConfig) *SerialProvider {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	return &SerialProvider{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
		now:      time.Now,
	}
}

func newSerialReader(r io.Reader, now func() time.Time) *SerialProvider {
	return &SerialProvider{src: r, scanner: bufio.NewScanner(r), now: now}
}

func (s *SerialProvider) Name() string { return "Serial accelerometer" }

func (s *SerialProvider) Connect() error {
	port, err := serialport.Open("imu", s.portPath, s.baudRate)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.port = port
	s.src = port
	s.scanner = bufio.NewScanner(port)
	s.mu.Unlock()
	return nil
}

func (s *SerialProvider) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanner = nil
	s.src = nil
	if s.port != nil {
		err := s.port.Close()
		s.port = nil
		return err
	}
	return nil
}

// Read returns the next well-formed line. Malformed lines are skipped, up to
// a handful per call.
func (s *SerialProvider) Read() (*speed.MotionSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanner == nil {
		return nil, fmt.Errorf("imu: not connected: %w", speed.ErrSignalUnavailable)
	}
	for i := 0; i < 5; i++ {
		if !s.scanner.Scan() {
			// a stalled scanner never recovers, so start a new one
			err := s.scanner.Err()
			s.scanner = bufio.NewScanner(s.src)
			if err != nil && !errors.Is(err, io.ErrNoProgress) {
				return nil, fmt.Errorf("imu: read: %w", serialport.Classify(err))
			}
			return nil, fmt.Errorf("imu: no data: %w", speed.ErrTimeout)
		}
		if m, err := parseLine(s.scanner.Text()); err == nil {
			m.Timestamp = s.now()
			return m, nil
		}
	}
	return nil, fmt.Errorf("imu: no valid reading: %w", speed.ErrInvalidSample)
}

func parseLine(line string) (*speed.MotionSample, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("imu: want 3 fields, got %d: %w", len(parts), speed.ErrInvalidSample)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("imu: field %d: %v: %w", i, err, speed.ErrInvalidSample)
		}
		v[i] = f
	}
	return &speed.MotionSample{X: v[0], Y: v[1], Z: v[2]}, nil
}
