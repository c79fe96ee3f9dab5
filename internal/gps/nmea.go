package gps

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/shaunagostinho/gps-speedo/internal/serialport"
	"github.com/shaunagostinho/gps-speedo/internal/speed"
)

const knotsToMPS = 0.514444

// NMEAProvider reads standard NMEA 0183 sentences from a UART GPS.
// Compatible with u-blox NEO-M8N and any standard NMEA GPS.
type NMEAProvider struct {
	portPath string
	baudRate int
	port     serial.Port
	src      io.Reader // what scanner reads; rebuilt over it after a stall
	scanner  *bufio.Scanner
	mu       sync.Mutex
	last     nmeaState
}

// nmeaState accumulates RMC and GGA fields between reads.
type nmeaState struct {
	valid    bool
	lat      float64
	lon      float64
	speed    float64 // m/s
	hasSpeed bool
	alt      float64
	hasAlt   bool
	hdop     float64
	sats     int
	quality  int
	stamp    time.Time
	date     time.Time // from the last RMC, for GGA-only updates
}

// NMEAConfig holds configuration for the NMEA GPS provider.
type NMEAConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// NewNMEA creates a new NMEA GPS provider.
func NewNMEA(cfg NMEAConfig) *NMEAProvider {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600 // Standard NMEA default
	}
	return &NMEAProvider{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
	}
}

// newNMEAReader reads sentences from r instead of a serial port.
func newNMEAReader(r io.Reader) *NMEAProvider {
	return &NMEAProvider{src: r, scanner: bufio.NewScanner(r)}
}

func (n *NMEAProvider) Name() string { return "NMEA GPS" }

func (n *NMEAProvider) Connect() error {
	port, err := serialport.Open("gps", n.portPath, n.baudRate)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.port = port
	n.src = port
	n.scanner = bufio.NewScanner(port)
	n.mu.Unlock()
	return nil
}

// rescan replaces a scanner that has stopped. bufio.Scanner gives up for
// good after 100 empty reads, which a quiet port produces every read timeout.
// It returns the scanner's error unless that was only a stall.
func (n *NMEAProvider) rescan() error {
	err := n.scanner.Err()
	n.scanner = bufio.NewScanner(n.src)
	if errors.Is(err, io.ErrNoProgress) {
		return nil
	}
	return err
}

func (n *NMEAProvider) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scanner = nil
	n.src = nil
	if n.port != nil {
		err := n.port.Close()
		n.port = nil
		return err
	}
	return nil
}

// Read reads NMEA sentences until we have a complete fix update, or timeout.
func (n *NMEAProvider) Read() (*speed.GeoFix, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.scanner == nil {
		return nil, fmt.Errorf("gps: not connected: %w", speed.ErrSignalUnavailable)
	}

	// Read up to 20 lines to find RMC + GGA
	gotRMC := false
	gotGGA := false
	lines := 0
	var readErr error
	for i := 0; i < 20 && !(gotRMC && gotGGA); i++ {
		if !n.scanner.Scan() {
			readErr = n.rescan()
			break
		}
		lines++
		line := strings.TrimSpace(n.scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		if !validateNMEAChecksum(line) {
			continue
		}

		switch {
		case strings.HasPrefix(line, "$GPRMC"), strings.HasPrefix(line, "$GNRMC"):
			n.last.parseRMC(line)
			gotRMC = true
		case strings.HasPrefix(line, "$GPGGA"), strings.HasPrefix(line, "$GNGGA"):
			n.last.parseGGA(line)
			gotGGA = true
		}
	}

	if readErr != nil {
		return nil, fmt.Errorf("gps: read: %w", serialport.Classify(readErr))
	}
	if lines == 0 {
		return nil, fmt.Errorf("gps: no data from receiver: %w", speed.ErrTimeout)
	}
	if !n.last.valid || n.last.stamp.IsZero() {
		return nil, fmt.Errorf("gps: no fix: %w", speed.ErrSignalUnavailable)
	}
	return n.last.fix(), nil
}

func (s *nmeaState) fix() *speed.GeoFix {
	f := &speed.GeoFix{
		Latitude:  s.lat,
		Longitude: s.lon,
		Accuracy:  s.hdop * UERE,
		Timestamp: s.stamp,
	}
	if s.hasSpeed {
		v := s.speed
		f.ReportedSpeed = &v
	}
	if s.hasAlt {
		a := s.alt
		f.Altitude = &a
	}
	return f
}

func (s *nmeaState) parseRMC(line string) {
	// $GPRMC,hhmmss.ss,A,llll.ll,a,yyyyy.yy,a,x.x,x.x,ddmmyy,x.x,a*hh
	parts := splitNMEA(line)
	if len(parts) < 10 {
		return
	}

	s.valid = parts[2] == "A"
	if date, err := time.Parse("020106", parts[9]); err == nil {
		s.date = date
	}
	if ts, ok := parseNMEATime(s.date, parts[1]); ok {
		s.stamp = ts
	}

	if s.valid {
		s.lat = parseNMEACoord(parts[3], parts[4])
		s.lon = parseNMEACoord(parts[5], parts[6])

		s.hasSpeed = false
		if spd, err := strconv.ParseFloat(parts[7], 64); err == nil {
			s.speed = spd * knotsToMPS
			s.hasSpeed = true
		}
	}
}

func (s *nmeaState) parseGGA(line string) {
	// $GPGGA,hhmmss.ss,llll.ll,a,yyyyy.yy,a,x,xx,x.x,x.x,M,x.x,M,x.x,xxxx*hh
	parts := splitNMEA(line)
	if len(parts) < 11 {
		return
	}

	if fix, err := strconv.Atoi(parts[6]); err == nil {
		s.quality = fix
	}
	if sats, err := strconv.Atoi(parts[7]); err == nil {
		s.sats = sats
	}
	if hdop, err := strconv.ParseFloat(parts[8], 64); err == nil {
		s.hdop = hdop
	}
	if alt, err := strconv.ParseFloat(parts[9], 64); err == nil {
		s.alt = alt
		s.hasAlt = true
	}
}

// parseNMEATime combines an RMC date with an hhmmss.ss field.
func parseNMEATime(date time.Time, raw string) (time.Time, bool) {
	if date.IsZero() || len(raw) < 6 {
		return time.Time{}, false
	}
	hh, err1 := strconv.Atoi(raw[0:2])
	mm, err2 := strconv.Atoi(raw[2:4])
	secs, err3 := strconv.ParseFloat(raw[4:], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	whole := math.Floor(secs)
	ms := int(math.Round((secs - whole) * 1000))
	return time.Date(date.Year(), date.Month(), date.Day(), hh, mm, int(whole), ms*int(time.Millisecond), time.UTC), true
}

// splitNMEA splits a sentence and strips the checksum suffix.
func splitNMEA(line string) []string {
	if idx := strings.Index(line, "*"); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimPrefix(line, "$")
	return strings.Split(line, ",")
}

// parseNMEACoord converts NMEA ddmm.mmmm format to decimal degrees.
func parseNMEACoord(raw, dir string) float64 {
	if raw == "" || dir == "" {
		return 0
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	deg := math.Floor(val / 100)
	min := val - deg*100
	result := deg + min/60

	if dir == "S" || dir == "W" {
		result = -result
	}
	return result
}

// nmeaChecksum is the XOR of every byte between $ and *.
func nmeaChecksum(body string) byte {
	var calc byte
	for i := 0; i < len(body); i++ {
		calc ^= body[i]
	}
	return calc
}

// validateNMEAChecksum checks the XOR checksum after *.
func validateNMEAChecksum(line string) bool {
	idx := strings.Index(line, "*")
	if idx < 0 || idx+3 > len(line) {
		return false
	}
	expected, err := strconv.ParseUint(line[idx+1:idx+3], 16, 8)
	if err != nil {
		return false
	}
	return byte(expected) == nmeaChecksum(line[1:idx])
}
