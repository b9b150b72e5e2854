package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/eyetrack/internal/config"
	"github.com/banshee-data/eyetrack/internal/db"
	"github.com/banshee-data/eyetrack/internal/eyes"
	"github.com/banshee-data/eyetrack/internal/monitor"
	"github.com/banshee-data/eyetrack/internal/pipeline"
	"github.com/banshee-data/eyetrack/internal/sensor"
	"github.com/banshee-data/eyetrack/internal/servo"
	"github.com/banshee-data/eyetrack/internal/version"
)

var (
	configPath   = flag.String("config", config.DefaultConfigPath, "Tuning config file (JSON)")
	servosPath   = flag.String("servos", config.DefaultServoConfigPath, "Servo travel table (JSON)")
	port         = flag.String("port", "/dev/ttyACM0", "Serial port of the ranging board (ignored in dev mode)")
	baudRate     = flag.Int("baud", 0, "Serial baud rate (0 uses the default)")
	dataBits     = flag.Int("data-bits", 0, "Serial data bits (0 uses 8)")
	stopBits     = flag.Int("stop-bits", 0, "Serial stop bits (0 uses 1)")
	parity       = flag.String("parity", "", "Serial parity: N, E or O")
	devMode      = flag.Bool("dev", false, "Run with a synthetic sensor and recorded servos")
	listen       = flag.String("listen", "localhost:8080", "Debug HTTP listen address (empty disables)")
	dbPath       = flag.String("db", "", "Diagnostics sqlite database (empty disables)")
	dbEvery      = flag.Int("db-sample-every", 20, "Log one tick in N to the database")
	plotDir      = flag.String("plot-dir", "", "Directory for PNG grid snapshots (empty disables)")
	plotEvery    = flag.Int("plot-every", 200, "Save one grid snapshot every N ticks")
	plotKeep     = flag.Int("plot-keep", 500, "Snapshots kept on disk, oldest removed first (0 keeps all)")
	printVersion = flag.Bool("version", false, "Print version and exit")
)

// options is the resolved command line.
type options struct {
	configPath string
	servosPath string
	port       string
	portOpts   sensor.PortOptions
	dev        bool
	listen     string
	dbPath     string
	dbEvery    int
	plotDir    string
	plotEvery  int
	plotKeep   int
}

func optionsFromFlags() options {
	return options{
		configPath: *configPath,
		servosPath: *servosPath,
		port:       *port,
		portOpts:   sensor.PortOptions{BaudRate: *baudRate, DataBits: *dataBits, StopBits: *stopBits, Parity: *parity},
		dev:        *devMode,
		listen:     *listen,
		dbPath:     *dbPath,
		dbEvery:    *dbEvery,
		plotDir:    *plotDir,
		plotEvery:  *plotEvery,
		plotKeep:   *plotKeep,
	}
}

func main() {
	flag.Parse()

	if *printVersion {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("starting %s", version.String())
	if err := run(ctx, optionsFromFlags()); err != nil {
		log.Fatalf("eyes: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

// run wires the collaborators and blocks until ctx is done or the loop fails.
func run(ctx context.Context, o options) error {
	tuning, err := config.LoadTuningConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load tuning config: %w", err)
	}
	servoCfg, err := config.LoadServoConfig(o.servosPath)
	if err != nil {
		return fmt.Errorf("failed to load servo config: %w", err)
	}
	gridSize := tuning.GetGridSize()

	table, roles := servo.TableFromConfig(servoCfg)
	channels, err := eyes.ChannelsFromRoles(roles)
	if err != nil {
		return err
	}

	var out servo.Actuator
	if o.dev {
		out = servo.NewRecorder(1024)
	} else {
		pca, bus, err := servo.OpenPCA9685(servoCfg.GetI2CBus(), servoCfg.GetAddress(), servoCfg.GetPWMFrequencyHz(), table)
		if err != nil {
			return fmt.Errorf("failed to open servo driver: %w", err)
		}
		defer bus.Close()
		defer func() {
			if err := pca.Release(); err != nil {
				log.Printf("failed to release servos: %v", err)
			}
		}()
		out = pca
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var src sensor.Sensor
	var serialSensor *sensor.Serial
	if o.dev {
		src, err = sensor.NewSynthetic(sensor.DefaultSyntheticConfig(gridSize))
		if err != nil {
			return err
		}
	} else {
		serialSensor, err = sensor.OpenSerial(o.port, o.portOpts, gridSize)
		if err != nil {
			return fmt.Errorf("failed to open sensor port %s: %w", o.port, err)
		}
		defer serialSensor.Close()
		src = serialSensor

		// run the monitor routine to manage IO on the serial port
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serialSensor.Monitor(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("sensor monitor stopped: %v", err)
				cancel()
			}
		}()
	}

	actuator, err := eyes.NewActuator(eyes.ConfigFromTuning(tuning, channels), out)
	if err != nil {
		return err
	}

	var proc *pipeline.Processor
	store := monitor.NewStore(tuning.GetMaxRangeMM(), func() pipeline.Stats { return proc.Stats() })
	plotter := monitor.NewGridPlotter(tuning.GetMaxRangeMM(), o.plotDir, o.plotEvery)
	plotter.Keep = o.plotKeep

	proc, err = pipeline.NewProcessor(pipeline.ConfigFromTuning(tuning), src, actuator, pipeline.WithObserver(store))
	if err != nil {
		return err
	}
	if o.plotDir != "" {
		if err := plotter.Start(); err != nil {
			return fmt.Errorf("failed to create plot directory: %w", err)
		}
		proc.AddObserver(plotter)
	}

	calib, err := proc.Initialize(loopCtx, gridSize)
	if err != nil {
		return err
	}
	store.SetCalibration(calib)

	var database *db.DB
	var runID string
	if o.dbPath != "" {
		database, err = db.NewDB(o.dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		runID, err = database.StartRun(time.Now(), calib, version.String(), tuning)
		if err != nil {
			return err
		}
		log.Printf("recording run %s to %s", runID, o.dbPath)
		proc.AddObserver(db.NewTickLogger(database, runID, o.dbEvery))
	}

	if o.listen != "" {
		mux := http.NewServeMux()
		store.AttachAdminRoutes(mux, plotter)
		if serialSensor != nil {
			serialSensor.AttachAdminRoutes(mux)
		}
		if database != nil {
			database.AttachAdminRoutes(mux)
		}
		server := &http.Server{Addr: o.listen, Handler: mux}

		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("debug server failed: %v", err)
				}
			}()
			<-loopCtx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
				server.Close()
			}
		}()
		log.Printf("debug server on http://%s/debug/", o.listen)
	}

	log.Printf("tracking on a %dx%d grid", gridSize, gridSize)
	err = proc.Run(loopCtx)
	cancel()

	if database != nil {
		if endErr := database.EndRun(runID, time.Now(), proc.Stats()); endErr != nil {
			log.Printf("failed to close run %s: %v", runID, endErr)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if ctx.Err() != nil {
			return nil
		}
		return errors.New("sensor stream ended")
	}
	return err
}
