package tof

import (
	"fmt"

	"github.com/banshee-data/eyetrack/internal/config"
)

// Defaults for the frame processor and focus selector.
const (
	// DefaultMaxRangeMM is the furthest distance treated as a real reading.
	DefaultMaxRangeMM = 2000
	// DefaultNoiseRangeMM is the inclusive band around the calibration
	// baseline that is still considered background.
	DefaultNoiseRangeMM = 50
	// DefaultValidScoreMinimum is the number of valid cells (out of 9) a
	// 3×3 neighbourhood needs before its centre can become the focus.
	DefaultValidScoreMinimum = 6
	// NeighborhoodCells is the size of the 3×3 scoring block.
	NeighborhoodCells = 9
)

// DefaultAcceptedStatuses are the sensor status codes treated as confident:
// 5 is a fully valid range, 6 and 9 are valid with at least 50% confidence.
var DefaultAcceptedStatuses = []uint8{5, 6, 9}

// Params holds the tunable thresholds of the per-frame pipeline.
type Params struct {
	MaxRangeMM        int
	NoiseRangeMM      int
	AcceptedStatuses  []uint8
	ValidScoreMinimum int
}

// DefaultParams returns Params with the built-in defaults.
func DefaultParams() Params {
	statuses := make([]uint8, len(DefaultAcceptedStatuses))
	copy(statuses, DefaultAcceptedStatuses)
	return Params{
		MaxRangeMM:        DefaultMaxRangeMM,
		NoiseRangeMM:      DefaultNoiseRangeMM,
		AcceptedStatuses:  statuses,
		ValidScoreMinimum: DefaultValidScoreMinimum,
	}
}

// ParamsFromTuning builds Params from a loaded TuningConfig.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	raw := cfg.GetAcceptedStatuses()
	statuses := make([]uint8, 0, len(raw))
	for _, s := range raw {
		statuses = append(statuses, uint8(s))
	}
	return Params{
		MaxRangeMM:        cfg.GetMaxRangeMM(),
		NoiseRangeMM:      cfg.GetNoiseRangeMM(),
		AcceptedStatuses:  statuses,
		ValidScoreMinimum: cfg.GetValidScoreMinimum(),
	}
}

// Validate checks if the parameters are usable.
func (p Params) Validate() error {
	if p.MaxRangeMM <= 0 || p.MaxRangeMM > maxAdjusted {
		return fmt.Errorf("MaxRangeMM must be in (0, %d], got %d", maxAdjusted, p.MaxRangeMM)
	}
	if p.NoiseRangeMM < 0 {
		return fmt.Errorf("NoiseRangeMM must be non-negative, got %d", p.NoiseRangeMM)
	}
	if len(p.AcceptedStatuses) == 0 {
		return fmt.Errorf("AcceptedStatuses must not be empty")
	}
	if p.ValidScoreMinimum < 1 || p.ValidScoreMinimum > NeighborhoodCells {
		return fmt.Errorf("ValidScoreMinimum must be in [1, %d], got %d", NeighborhoodCells, p.ValidScoreMinimum)
	}
	return nil
}

// accepts reports whether status is in the accepted set.
func (p Params) accepts(status uint8) bool {
	for _, s := range p.AcceptedStatuses {
		if s == status {
			return true
		}
	}
	return false
}
