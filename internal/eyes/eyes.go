// Package eyes turns the focus point into gaze and eyelid servo positions.
//
// The actuator has two states. While a point of interest is present it tracks
// it, mapping the interior grid range onto the full servo range and easing
// towards it with the lids open. Without one it drifts back to centre and
// closes the lids. Positions persist between ticks; the easing step is the
// only temporal smoothing.
package eyes

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/eyetrack/internal/config"
	"github.com/banshee-data/eyetrack/internal/servo"
	"github.com/banshee-data/eyetrack/internal/tof"
)

// State is the actuator mode for the current tick.
type State int

const (
	Idle State = iota
	Tracking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Centre is the gaze target while idle.
const Centre = 50.0

// Position is the held eye pose. All values are normalized 0-100.
type Position struct {
	Pan     float64 `json:"pan"`
	Tilt    float64 `json:"tilt"`
	LidOpen float64 `json:"lid_open"`
}

// Channels are the PWM channels the actuator writes each tick.
type Channels struct {
	Pan           int
	Tilt          int
	LidUpperLeft  int
	LidLowerLeft  int
	LidUpperRight int
	LidLowerRight int
}

// ChannelsFromRoles resolves the role map produced by servo.TableFromConfig.
func ChannelsFromRoles(roles servo.Roles) (Channels, error) {
	var c Channels
	dst := map[string]*int{
		config.RolePan:           &c.Pan,
		config.RoleTilt:          &c.Tilt,
		config.RoleLidUpperLeft:  &c.LidUpperLeft,
		config.RoleLidLowerLeft:  &c.LidLowerLeft,
		config.RoleLidUpperRight: &c.LidUpperRight,
		config.RoleLidLowerRight: &c.LidLowerRight,
	}
	for _, role := range config.ServoRoles() {
		ch, ok := roles[role]
		if !ok {
			return Channels{}, fmt.Errorf("no channel for servo role %q", role)
		}
		*dst[role] = ch
	}
	return c, nil
}

// DefaultChannels is the wiring of the reference build: gaze on 0 and 1,
// lids on 2 to 5.
func DefaultChannels() Channels {
	return Channels{Pan: 0, Tilt: 1, LidUpperLeft: 2, LidLowerLeft: 3, LidUpperRight: 4, LidLowerRight: 5}
}

// Config tunes the actuator.
type Config struct {
	GridSize        int
	EaseFraction    float64
	LidEaseFraction float64
	// IdleHoldTicks keeps tracking the last target for this many consecutive
	// ticks without a point of interest. Zero switches to idle immediately.
	IdleHoldTicks int
	// NominalTick, when positive, is the frame period the ease fractions are
	// expressed for and ticks of other lengths are rescaled to it. Zero
	// applies the fractions once per processed frame whatever dt is.
	NominalTick time.Duration
	Channels    Channels
}

// DefaultConfig returns the reference tuning for an 8x8 grid.
func DefaultConfig() Config {
	return Config{
		GridSize:        8,
		EaseFraction:    0.1,
		LidEaseFraction: 0.1,
		Channels:        DefaultChannels(),
	}
}

// ConfigFromTuning builds an actuator Config from the tuning file.
func ConfigFromTuning(cfg *config.TuningConfig, ch Channels) Config {
	return Config{
		GridSize:        cfg.GetGridSize(),
		EaseFraction:    cfg.GetEaseFraction(),
		LidEaseFraction: cfg.GetLidEaseFraction(),
		IdleHoldTicks:   cfg.GetIdleHoldTicks(),
		NominalTick:     cfg.GetTickInterval(),
		Channels:        ch,
	}
}

// Validate reports configuration the actuator cannot run with.
func (c Config) Validate() error {
	if err := tof.ValidateSize(c.GridSize); err != nil {
		return err
	}
	if c.EaseFraction <= 0 || c.EaseFraction > 1 {
		return fmt.Errorf("ease fraction must be in (0, 1], got %f", c.EaseFraction)
	}
	if c.LidEaseFraction <= 0 || c.LidEaseFraction > 1 {
		return fmt.Errorf("lid ease fraction must be in (0, 1], got %f", c.LidEaseFraction)
	}
	if c.IdleHoldTicks < 0 {
		return fmt.Errorf("idle hold ticks must be non-negative, got %d", c.IdleHoldTicks)
	}
	if c.NominalTick < 0 {
		return fmt.Errorf("nominal tick must be non-negative, got %s", c.NominalTick)
	}
	return nil
}

// Actuator owns the eye pose and is the only writer to the eye servos.
// It is not safe for concurrent use.
type Actuator struct {
	cfg   Config
	out   servo.Actuator
	pos   Position
	state State

	target     Position
	missed     int
	haveTarget bool
}

// NewActuator returns an actuator at rest: gaze centred, lids closed.
func NewActuator(cfg Config, out servo.Actuator) (*Actuator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("eyes: nil servo actuator")
	}
	return &Actuator{
		cfg:    cfg,
		out:    out,
		pos:    Position{Pan: Centre, Tilt: Centre},
		target: Position{Pan: Centre, Tilt: Centre},
	}, nil
}

// Position returns the current held pose.
func (a *Actuator) Position() Position { return a.pos }

// State returns the state chosen on the last tick.
func (a *Actuator) State() State { return a.state }

// GridSize returns the grid resolution the actuator maps from.
func (a *Actuator) GridSize() int { return a.cfg.GridSize }

// Target converts a focus point to its gaze target. Interior zones 1..N-2
// span the servo range; grid row 1 is the top, so tilt is inverted.
func (a *Actuator) Target(poi tof.POI) Position {
	lo, hi := 1.0, float64(a.cfg.GridSize-2)
	return Position{
		Pan:     clamp(mapRange(float64(poi.X), lo, hi, 0, 100)),
		Tilt:    clamp(100 - mapRange(float64(poi.Y), lo, hi, 0, 100)),
		LidOpen: 100,
	}
}

// Tick advances the pose by one step of length dt toward the state's target
// and writes all six servo channels. It returns the new pose.
func (a *Actuator) Tick(poi tof.POI, dt time.Duration) Position {
	var target Position
	switch {
	case poi.Valid():
		a.state = Tracking
		a.missed = 0
		a.haveTarget = true
		a.target = a.Target(poi)
		target = a.target
	case a.haveTarget && a.missed < a.cfg.IdleHoldTicks:
		a.state = Tracking
		a.missed++
		target = a.target
	default:
		a.state = Idle
		a.haveTarget = false
		target = Position{Pan: Centre, Tilt: Centre, LidOpen: 0}
	}

	gaze := a.step(a.cfg.EaseFraction, dt)
	lid := a.step(a.cfg.LidEaseFraction, dt)
	a.pos.Pan = clamp(a.pos.Pan + gaze*(target.Pan-a.pos.Pan))
	a.pos.Tilt = clamp(a.pos.Tilt + gaze*(target.Tilt-a.pos.Tilt))
	a.pos.LidOpen = clamp(a.pos.LidOpen + lid*(target.LidOpen-a.pos.LidOpen))

	a.write()
	return a.pos
}

// step returns f unless NominalTick is set, in which case f is scaled to a
// tick of length dt so that n short ticks move as far as one tick n times
// as long.
func (a *Actuator) step(f float64, dt time.Duration) float64 {
	if dt <= 0 || a.cfg.NominalTick <= 0 || dt == a.cfg.NominalTick || f >= 1 {
		return f
	}
	ratio := float64(dt) / float64(a.cfg.NominalTick)
	return 1 - math.Pow(1-f, ratio)
}

func (a *Actuator) write() {
	ch := a.cfg.Channels
	a.out.SetChannelPosition(ch.Pan, a.pos.Pan)
	a.out.SetChannelPosition(ch.Tilt, a.pos.Tilt)
	a.out.SetChannelPosition(ch.LidUpperLeft, a.pos.LidOpen)
	a.out.SetChannelPosition(ch.LidLowerLeft, a.pos.LidOpen)
	a.out.SetChannelPosition(ch.LidUpperRight, a.pos.LidOpen)
	a.out.SetChannelPosition(ch.LidLowerRight, a.pos.LidOpen)
}

func mapRange(v, inLo, inHi, outLo, outHi float64) float64 {
	if inHi == inLo {
		return (outLo + outHi) / 2
	}
	return outLo + (v-inLo)*(outHi-outLo)/(inHi-inLo)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
