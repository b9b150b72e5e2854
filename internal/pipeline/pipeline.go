// Package pipeline runs the per-frame loop: poll the sensor, diff the frame
// against the startup calibration, pick the focus point and step the eyes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/eyetrack/internal/config"
	"github.com/banshee-data/eyetrack/internal/eyes"
	"github.com/banshee-data/eyetrack/internal/monitoring"
	"github.com/banshee-data/eyetrack/internal/sensor"
	"github.com/banshee-data/eyetrack/internal/timeutil"
	"github.com/banshee-data/eyetrack/internal/tof"
)

var (
	// ErrSensorUnavailable is returned by Initialize when no usable frame
	// arrives within the calibration timeout.
	ErrSensorUnavailable = errors.New("sensor unavailable")
	// ErrNoFrame is returned by ProcessTick when the sensor has nothing new.
	ErrNoFrame = errors.New("no frame ready")
	// ErrFrameRead wraps transient read and framing failures. The tick is
	// skipped and no state changes.
	ErrFrameRead = errors.New("frame read failed")
	// ErrNotInitialized is returned by ProcessTick and Run before a
	// successful Initialize.
	ErrNotInitialized = errors.New("processor not initialized")
)

// DefaultHeartbeatEvery is the number of processed ticks between status lines.
const DefaultHeartbeatEvery = 100

// MinPollInterval is the shortest wait between sensor polls. Shorter or
// zero intervals are raised to it.
const MinPollInterval = time.Millisecond

// Config holds the loop timing and the per-frame thresholds.
type Config struct {
	Params             tof.Params
	PollInterval       time.Duration
	CalibrationTimeout time.Duration
	MaxBackoff         time.Duration
	HeartbeatEvery     int
}

// DefaultConfig returns the built-in loop configuration.
func DefaultConfig() Config {
	return Config{
		Params:             tof.DefaultParams(),
		PollInterval:       5 * time.Millisecond,
		CalibrationTimeout: 10 * time.Second,
		MaxBackoff:         250 * time.Millisecond,
		HeartbeatEvery:     DefaultHeartbeatEvery,
	}
}

// ConfigFromTuning builds the loop configuration from the tuning file.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Params:             tof.ParamsFromTuning(cfg),
		PollInterval:       cfg.GetPollInterval(),
		CalibrationTimeout: cfg.GetCalibrationTimeout(),
		MaxBackoff:         cfg.GetMaxBackoff(),
		HeartbeatEvery:     DefaultHeartbeatEvery,
	}
}

// Tick is everything one processed frame produced.
type Tick struct {
	Seq        uint64
	Time       time.Time
	DT         time.Duration
	Frame      tof.Frame
	Adjusted   tof.Grid[tof.AdjustedCell]
	Candidates []tof.FocusCandidate
	Counts     tof.ClassCounts
	POI        tof.POI
	State      eyes.State
	Position   eyes.Position
}

// Observer receives every processed tick. Observers run synchronously on
// the loop and must not retain or modify the grids.
type Observer interface {
	Observe(Tick)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Tick)

// Observe calls f(t).
func (f ObserverFunc) Observe(t Tick) { f(t) }

// Stats are the loop counters.
type Stats struct {
	Ticks      uint64 `json:"ticks"`
	EmptyPolls uint64 `json:"empty_polls"`
	ReadErrors uint64 `json:"read_errors"`
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock replaces the real clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(p *Processor) { p.clock = c }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(p *Processor) { p.observers = append(p.observers, o) }
}

// Processor owns the calibration and drives one sensor into one eye actuator.
type Processor struct {
	cfg       Config
	sensor    sensor.Sensor
	eyes      *eyes.Actuator
	clock     timeutil.Clock
	observers []Observer

	size  int
	calib tof.Calibration

	ticks      atomic.Uint64
	emptyPolls atomic.Uint64
	readErrors atomic.Uint64
	readErrLog *monitoring.Throttle
}

// NewProcessor wires a sensor to an eye actuator.
func NewProcessor(cfg Config, s sensor.Sensor, a *eyes.Actuator, opts ...Option) (*Processor, error) {
	if s == nil || a == nil {
		return nil, fmt.Errorf("pipeline: sensor and actuator are required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = DefaultHeartbeatEvery
	}
	if cfg.PollInterval < MinPollInterval {
		cfg.PollInterval = MinPollInterval
	}
	p := &Processor{
		cfg:    cfg,
		sensor: s,
		eyes:   a,
		clock:  timeutil.RealClock{},
	}
	for _, o := range opts {
		o(p)
	}
	p.readErrLog = monitoring.NewThrottleWithClock(5*time.Second, p.clock.Now)
	return p, nil
}

// AddObserver registers an observer. It must not be called while Run is
// active.
func (p *Processor) AddObserver(o Observer) {
	p.observers = append(p.observers, o)
}

// Calibration returns the baseline captured by Initialize.
func (p *Processor) Calibration() tof.Calibration { return p.calib }

// Stats returns a snapshot of the loop counters. Safe for concurrent use.
func (p *Processor) Stats() Stats {
	return Stats{
		Ticks:      p.ticks.Load(),
		EmptyPolls: p.emptyPolls.Load(),
		ReadErrors: p.readErrors.Load(),
	}
}

// Initialize waits for the first complete frame of gridSize zones and keeps
// it as the background calibration. Polls back off from PollInterval,
// doubling up to MaxBackoff, until CalibrationTimeout has passed.
func (p *Processor) Initialize(ctx context.Context, gridSize int) (tof.Calibration, error) {
	if err := tof.ValidateSize(gridSize); err != nil {
		return tof.Calibration{}, err
	}
	if gridSize != p.eyes.GridSize() {
		return tof.Calibration{}, fmt.Errorf("%w: sensor grid %d but eyes configured for %d",
			tof.ErrInvalidGridSize, gridSize, p.eyes.GridSize())
	}

	start := p.clock.Now()
	backoff := p.cfg.PollInterval
	var lastErr error
	attempts := 0

	for {
		attempts++
		if p.sensor.IsFrameReady() {
			f, err := p.sensor.ReadFrame()
			switch {
			case err != nil:
				lastErr = err
			case f.Size != gridSize || !f.Complete():
				lastErr = fmt.Errorf("%w: got %d zones, want %dx%d", tof.ErrInvalidGridSize, len(f.Cells), gridSize, gridSize)
			default:
				p.size = gridSize
				p.calib = tof.NewCalibration(f, p.cfg.Params.MaxRangeMM)
				monitoring.Logf("pipeline: calibrated %dx%d grid after %d attempts in %s",
					gridSize, gridSize, attempts, p.clock.Since(start))
				return p.calib, nil
			}
			if lastErr != nil {
				p.readErrLog.Logf("pipeline: calibration frame rejected: %v", lastErr)
			}
		}

		if p.clock.Since(start) >= p.cfg.CalibrationTimeout {
			if lastErr != nil {
				return tof.Calibration{}, fmt.Errorf("%w after %s: %w", ErrSensorUnavailable, p.cfg.CalibrationTimeout, lastErr)
			}
			return tof.Calibration{}, fmt.Errorf("%w: no frame within %s", ErrSensorUnavailable, p.cfg.CalibrationTimeout)
		}
		if err := timeutil.Wait(ctx, p.clock, backoff); err != nil {
			return tof.Calibration{}, err
		}
		backoff *= 2
		if p.cfg.MaxBackoff > 0 && backoff > p.cfg.MaxBackoff {
			backoff = p.cfg.MaxBackoff
		}
	}
}

// ProcessTick runs one iteration with dt since the previous processed
// frame. It returns ErrNoFrame when the sensor has nothing new and a
// wrapped ErrFrameRead when the read fails; in both cases nothing moves.
func (p *Processor) ProcessTick(dt time.Duration) (Tick, error) {
	if p.calib.IsZero() {
		return Tick{}, ErrNotInitialized
	}
	if !p.sensor.IsFrameReady() {
		p.emptyPolls.Add(1)
		return Tick{}, ErrNoFrame
	}
	f, err := p.sensor.ReadFrame()
	if errors.Is(err, sensor.ErrNoFrame) {
		p.emptyPolls.Add(1)
		return Tick{}, ErrNoFrame
	}
	if err != nil {
		p.readErrors.Add(1)
		return Tick{}, fmt.Errorf("%w: %w", ErrFrameRead, err)
	}
	if f.Size != p.size || !f.Complete() {
		p.readErrors.Add(1)
		return Tick{}, fmt.Errorf("%w: %w: got %d zones, want %dx%d",
			ErrFrameRead, tof.ErrInvalidGridSize, len(f.Cells), p.size, p.size)
	}

	adjusted := tof.Adjust(f, p.calib, p.cfg.Params)
	poi, cands := tof.SelectWithCandidates(adjusted, p.cfg.Params)
	pos := p.eyes.Tick(poi, dt)

	t := Tick{
		Seq:        p.ticks.Add(1),
		Time:       p.clock.Now(),
		DT:         dt,
		Frame:      f,
		Adjusted:   adjusted,
		Candidates: cands,
		Counts:     tof.Summarize(adjusted),
		POI:        poi,
		State:      p.eyes.State(),
		Position:   pos,
	}
	for _, o := range p.observers {
		o.Observe(t)
	}
	return t, nil
}

// Run polls the sensor every PollInterval and processes each new frame
// until ctx is done, returning ctx.Err().
func (p *Processor) Run(ctx context.Context) error {
	if p.calib.IsZero() {
		return ErrNotInitialized
	}
	last := p.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := p.clock.Now()
		t, err := p.ProcessTick(now.Sub(last))
		switch {
		case err == nil:
			last = now
			if t.Seq%uint64(p.cfg.HeartbeatEvery) == 0 {
				p.heartbeat(t)
			}
		case errors.Is(err, ErrNoFrame):
		case errors.Is(err, ErrFrameRead):
			p.readErrLog.Logf("pipeline: skipping tick: %v (total read errors: %d)", err, p.readErrors.Load())
		default:
			return err
		}
		if err := timeutil.Wait(ctx, p.clock, p.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (p *Processor) heartbeat(t Tick) {
	s := p.Stats()
	poi := "none"
	if t.POI.Valid() {
		poi = fmt.Sprintf("(%d,%d) %dmm score %d", t.POI.X, t.POI.Y, t.POI.DistanceMM, t.POI.Score)
	}
	monitoring.Logf("pipeline: tick %d: %s poi=%s pan=%.1f tilt=%.1f lid=%.1f zones valid=%d status=%d range=%d background=%d empty_polls=%d read_errors=%d",
		t.Seq, t.State, poi, t.Position.Pan, t.Position.Tilt, t.Position.LidOpen,
		t.Counts.Valid, t.Counts.InvalidStatus, t.Counts.OutOfRange, t.Counts.Background,
		s.EmptyPolls, s.ReadErrors)
}
