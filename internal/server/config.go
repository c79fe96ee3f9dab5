package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/shaunagostinho/gps-speedo/internal/activity"
	"github.com/shaunagostinho/gps-speedo/internal/units"
)

// Config holds all speedometer configuration.
type Config struct {
	mu sync.RWMutex

	// Sensors
	GPS    GPSConfig    `yaml:"gps" json:"gps"`
	Motion MotionConfig `yaml:"motion" json:"motion"`

	// Synthetic speed source used when there are no sensors
	Simulation SimulationConfig `yaml:"simulation" json:"simulation"`

	Tracking TrackingConfig `yaml:"tracking" json:"tracking"`
	Display  DisplayConfig  `yaml:"display" json:"display"`
	Server   ServerConfig   `yaml:"server" json:"server"`

	path string // file path for save/load
}

type GPSConfig struct {
	Type        string `yaml:"type" json:"type"`          // "nmea", "demo" or "disabled"
	PortPath    string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyGPS
	BaudRate    int    `yaml:"baud_rate" json:"baudRate"`
	PollMs      int    `yaml:"poll_ms" json:"pollMs"`
	ReportSpeed bool   `yaml:"report_speed" json:"reportSpeed"` // demo only
}

type MotionConfig struct {
	Type     string `yaml:"type" json:"type"` // "serial", "demo" or "disabled"
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
	PollHz   int    `yaml:"poll_hz" json:"pollHz"`
}

type SimulationConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	Activity          string  `yaml:"activity" json:"activity"`
	Seed              int64   `yaml:"seed" json:"seed"` // 0 picks a random seed
	SwitchProbability float64 `yaml:"switch_probability" json:"switchProbability"`
}

type TrackingConfig struct {
	AutoStart   bool    `yaml:"auto_start" json:"autoStart"`
	MaxSpeedKMH float64 `yaml:"max_speed_kmh" json:"maxSpeedKmh"` // 0 disables the jump filter
	TickMs      int     `yaml:"tick_ms" json:"tickMs"`
}

type DisplayConfig struct {
	Units UnitsConfig `yaml:"units" json:"units"`
}

type UnitsConfig struct {
	Speed string `yaml:"speed" json:"speed"` // "kmh", "mph" or "mps"
}

type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr" json:"listenAddr"`
	BroadcastHz int    `yaml:"broadcast_hz" json:"broadcastHz"`
}

// DefaultPath is where the config lives when no path is given.
const DefaultPath = "/etc/gps-speedo/config.yaml"

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GPS: GPSConfig{
			Type:     "demo",
			PortPath: "/dev/ttyGPS",
			BaudRate: 9600,
			PollMs:   1000,
		},
		Motion: MotionConfig{
			Type:     "disabled",
			PortPath: "/dev/ttyIMU",
			BaudRate: 115200,
			PollHz:   50,
		},
		Simulation: SimulationConfig{
			Enabled:           false,
			Activity:          activity.Walking.String(),
			SwitchProbability: 0.05,
		},
		Tracking: TrackingConfig{
			AutoStart:   true,
			MaxSpeedKMH: 400,
			TickMs:      1000,
		},
		Display: DisplayConfig{
			Units: UnitsConfig{Speed: string(units.KMH)},
		},
		Server: ServerConfig{
			ListenAddr:  "127.0.0.1:8080",
			BroadcastHz: 4,
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		log.Printf("[config] %v, falling back to defaults for bad fields", err)
		cfg.repair()
	}
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		// Real env takes precedence
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: GPS_TYPE, GPS_PORT, GPS_BAUD, IMU_TYPE, IMU_PORT, IMU_BAUD,
// SIM_ENABLED, SIM_ACTIVITY, SIM_SEED, SPEED_UNIT, MAX_SPEED_KMH, LISTEN_ADDR
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GPS_TYPE"); v != "" {
		c.GPS.Type = v
	}
	if v := os.Getenv("GPS_PORT"); v != "" {
		c.GPS.PortPath = v
	}
	if v := os.Getenv("GPS_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.GPS.BaudRate = n
		}
	}
	if v := os.Getenv("IMU_TYPE"); v != "" {
		c.Motion.Type = v
	}
	if v := os.Getenv("IMU_PORT"); v != "" {
		c.Motion.PortPath = v
	}
	if v := os.Getenv("IMU_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Motion.BaudRate = n
		}
	}
	if v := os.Getenv("SIM_ENABLED"); v != "" {
		c.Simulation.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("SIM_ACTIVITY"); v != "" {
		c.Simulation.Activity = v
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Simulation.Seed = n
		}
	}
	if v := os.Getenv("SPEED_UNIT"); v != "" {
		c.Display.Units.Speed = v
	}
	if v := os.Getenv("MAX_SPEED_KMH"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Tracking.MaxSpeedKMH = n
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
}

// Validate checks the enumerated fields.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validate()
}

func (c *Config) validate() error {
	var bad []string
	switch c.GPS.Type {
	case "nmea", "demo", "disabled":
	default:
		bad = append(bad, fmt.Sprintf("gps.type %q", c.GPS.Type))
	}
	switch c.Motion.Type {
	case "serial", "demo", "disabled":
	default:
		bad = append(bad, fmt.Sprintf("motion.type %q", c.Motion.Type))
	}
	if _, err := activity.Parse(c.Simulation.Activity); err != nil {
		bad = append(bad, fmt.Sprintf("simulation.activity %q", c.Simulation.Activity))
	}
	if _, err := units.Parse(c.Display.Units.Speed); err != nil {
		bad = append(bad, fmt.Sprintf("display.units.speed %q", c.Display.Units.Speed))
	}
	if c.Simulation.SwitchProbability < 0 || c.Simulation.SwitchProbability > 1 {
		bad = append(bad, fmt.Sprintf("simulation.switch_probability %v", c.Simulation.SwitchProbability))
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(bad, ", "))
	}
	return nil
}

// repair resets whichever enumerated fields fail validation.
func (c *Config) repair() {
	def := DefaultConfig()
	switch c.GPS.Type {
	case "nmea", "demo", "disabled":
	default:
		c.GPS.Type = def.GPS.Type
	}
	switch c.Motion.Type {
	case "serial", "demo", "disabled":
	default:
		c.Motion.Type = def.Motion.Type
	}
	if _, err := activity.Parse(c.Simulation.Activity); err != nil {
		c.Simulation.Activity = def.Simulation.Activity
	}
	if _, err := units.Parse(c.Display.Units.Speed); err != nil {
		c.Display.Units.Speed = def.Display.Units.Speed
	}
	if c.Simulation.SwitchProbability < 0 || c.Simulation.SwitchProbability > 1 {
		c.Simulation.SwitchProbability = def.Simulation.SwitchProbability
	}
}

// SpeedUnit is the configured display unit, kmh if unparseable.
func (c *Config) SpeedUnit() units.Unit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, err := units.Parse(c.Display.Units.Speed)
	if err != nil {
		return units.KMH
	}
	return u
}

// DisplaySnapshot returns a copy of the display section.
func (c *Config) DisplaySnapshot() DisplayConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Display
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.path
	if path == "" {
		path = DefaultPath
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved. Updates that would leave the config invalid
// are rejected and nothing changes.
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}

	next := &Config{path: c.path}
	if err := json.Unmarshal(merged, next); err != nil {
		return fmt.Errorf("unmarshal merged config: %w", err)
	}
	if err := next.validate(); err != nil {
		return err
	}
	c.GPS = next.GPS
	c.Motion = next.Motion
	c.Simulation = next.Simulation
	c.Tracking = next.Tracking
	c.Display = next.Display
	c.Server = next.Server
	return nil
}

// RestartKeys lists the top-level sections a JSON patch touches that are only
// read at startup. Everything except display needs a restart to apply.
func RestartKeys(patch []byte) []string {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(patch, &top); err != nil {
		return nil
	}
	var keys []string
	for k := range top {
		if k != "display" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
