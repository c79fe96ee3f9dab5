package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaunagostinho/gps-speedo/internal/activity"
	"github.com/shaunagostinho/gps-speedo/internal/gps"
	"github.com/shaunagostinho/gps-speedo/internal/imu"
	"github.com/shaunagostinho/gps-speedo/internal/server"
	"github.com/shaunagostinho/gps-speedo/internal/speed"
	"github.com/shaunagostinho/gps-speedo/internal/units"
)

func main() {
	configPath := flag.String("config", server.DefaultPath, "Path to config file")
	demo := flag.Bool("demo", false, "Run with simulated GPS and accelerometer data")
	simulate := flag.Bool("simulate", false, "Run with no sensors, generating synthetic speed")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] gps-speedo starting")

	cfg := server.LoadConfig(*configPath)

	if *demo {
		cfg.GPS.Type = "demo"
		cfg.Motion.Type = "demo"
	}
	if *simulate {
		cfg.Simulation.Enabled = true
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	sim := buildSimulator(cfg, time.Now())
	var gpsProv gps.Provider
	var imuProv imu.Provider
	if sim != nil {
		log.Printf("[main] simulated mode (%s), sensors disabled", sim.Activity())
	} else {
		gpsProv = buildGPS(cfg)
		imuProv = buildIMU(cfg)
	}

	// Connect in the background; the dashboard starts regardless
	if gpsProv != nil {
		go connectWithRetry(ctx, "GPS", gpsProv, 10)
	}
	if imuProv != nil {
		go connectWithRetry(ctx, "IMU", imuProv, 10)
	}

	in := speed.Ingestor{MaxSpeed: units.KMHToMPS(cfg.Tracking.MaxSpeedKMH)}
	srv := server.New(cfg, server.NewTracker(in, sim), gpsProv, imuProv)
	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] server exited: %v", err)
	}

	closeQuietly("GPS", gpsProv)
	closeQuietly("IMU", imuProv)
}

func buildGPS(cfg *server.Config) gps.Provider {
	switch cfg.GPS.Type {
	case "nmea":
		return gps.NewNMEA(gps.NMEAConfig{
			PortPath: cfg.GPS.PortPath,
			BaudRate: cfg.GPS.BaudRate,
		})
	case "disabled":
		return nil
	default:
		d := gps.NewDemoGPS(time.Now().UnixNano())
		d.ReportSpeed = cfg.GPS.ReportSpeed
		return d
	}
}

func buildIMU(cfg *server.Config) imu.Provider {
	switch cfg.Motion.Type {
	case "serial":
		return imu.NewSerial(imu.SerialConfig{
			PortPath: cfg.Motion.PortPath,
			BaudRate: cfg.Motion.BaudRate,
		})
	case "demo":
		return imu.NewDemoProvider(time.Now().UnixNano())
	default:
		return nil
	}
}

// buildSimulator returns nil unless simulation is enabled.
func buildSimulator(cfg *server.Config, now time.Time) *speed.Simulator {
	if !cfg.Simulation.Enabled {
		return nil
	}
	a, err := activity.Parse(cfg.Simulation.Activity)
	if err != nil {
		a = activity.Walking
	}
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = now.UnixNano()
	}
	return speed.NewSimulator(speed.SimConfig{
		Activity:          a,
		SwitchProbability: cfg.Simulation.SwitchProbability,
		Period:            time.Duration(cfg.Tracking.TickMs) * time.Millisecond,
		Start:             now,
	}, rand.New(rand.NewSource(seed)))
}

// connectable is satisfied by both gps.Provider and imu.Provider.
type connectable interface {
	Connect() error
	Close() error
}

func closeQuietly(name string, c connectable) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Printf("[%s] close: %v", name, err)
	}
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, retries up to maxAttempts
// then continues at max interval indefinitely.
func connectWithRetry(ctx context.Context, name string, c connectable, maxAttempts int) {
	retry(ctx, name, c, maxAttempts, time.Second, 60*time.Second)
}

func retry(ctx context.Context, name string, c connectable, maxAttempts int, delay, maxDelay time.Duration) bool {
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if err := c.Connect(); err != nil {
			attempt++
			if attempt <= maxAttempts {
				log.Printf("[%s] connect attempt %d/%d failed: %v (retry in %v)",
					name, attempt, maxAttempts, err, delay)
			} else {
				log.Printf("[%s] connect attempt %d failed: %v (retry in %v)",
					name, attempt, err, delay)
			}

			select {
			case <-ctx.Done():
				return false
			case <-time.After(delay):
			}

			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		} else {
			log.Printf("[%s] connected successfully (attempt %d)", name, attempt+1)
			return true
		}
	}
}
