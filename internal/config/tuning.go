package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// maxConfigFileSize bounds how much we are willing to read from a config file.
const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// TuningConfig represents the root configuration for tuning parameters.
// Every field is optional; the Get* accessors supply the defaults for any
// field left out of the JSON file.
type TuningConfig struct {
	// Sensor grid
	GridSize   *int `json:"grid_size,omitempty"`
	MaxRangeMM *int `json:"max_range_mm,omitempty"`

	// Frame processor
	NoiseRangeMM     *int  `json:"noise_range_mm,omitempty"`
	AcceptedStatuses []int `json:"accepted_statuses,omitempty"`

	// Focus selector
	ValidScoreMinimum *int `json:"valid_score_minimum,omitempty"`

	// Eye actuator
	EaseFraction    *float64 `json:"ease_fraction,omitempty"`
	LidEaseFraction *float64 `json:"lid_ease_fraction,omitempty"`
	IdleHoldTicks   *int     `json:"idle_hold_ticks,omitempty"`

	// Loop timing (duration strings like "5ms"). TickInterval is the sensor
	// frame period the ease fractions are expressed for; "0s" applies them
	// once per processed frame.
	PollInterval       *string `json:"poll_interval,omitempty"`
	TickInterval       *string `json:"tick_interval,omitempty"`
	CalibrationTimeout *string `json:"calibration_timeout,omitempty"`
	MaxBackoff         *string `json:"max_backoff,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		GridSize:           ptrInt(8),
		MaxRangeMM:         ptrInt(2000),
		NoiseRangeMM:       ptrInt(50),
		AcceptedStatuses:   []int{5, 6, 9},
		ValidScoreMinimum:  ptrInt(6),
		EaseFraction:       ptrFloat64(0.1),
		LidEaseFraction:    ptrFloat64(0.1),
		IdleHoldTicks:      ptrInt(0),
		PollInterval:       ptrString("5ms"),
		TickInterval:       ptrString("0s"),
		CalibrationTimeout: ptrString("10s"),
		MaxBackoff:         ptrString("250ms"),
	}
}

// readConfigFile validates the path and size of a JSON config file and
// returns its contents.
func readConfigFile(path string) ([]byte, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// Fields omitted from the JSON file fall back to their defaults through the
// Get* accessors, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.GridSize != nil && *c.GridSize != 4 && *c.GridSize != 8 {
		return fmt.Errorf("grid_size must be 4 or 8, got %d", *c.GridSize)
	}

	if c.MaxRangeMM != nil && (*c.MaxRangeMM <= 0 || *c.MaxRangeMM > 32767) {
		return fmt.Errorf("max_range_mm must be in (0, 32767], got %d", *c.MaxRangeMM)
	}

	if c.NoiseRangeMM != nil && *c.NoiseRangeMM < 0 {
		return fmt.Errorf("noise_range_mm must be non-negative, got %d", *c.NoiseRangeMM)
	}

	for _, s := range c.AcceptedStatuses {
		if s < 0 || s > 255 {
			return fmt.Errorf("accepted_statuses entries must be in [0, 255], got %d", s)
		}
	}

	if c.ValidScoreMinimum != nil && (*c.ValidScoreMinimum < 1 || *c.ValidScoreMinimum > 9) {
		return fmt.Errorf("valid_score_minimum must be in [1, 9], got %d", *c.ValidScoreMinimum)
	}

	if c.EaseFraction != nil && (*c.EaseFraction <= 0 || *c.EaseFraction > 1) {
		return fmt.Errorf("ease_fraction must be in (0, 1], got %f", *c.EaseFraction)
	}
	if c.LidEaseFraction != nil && (*c.LidEaseFraction <= 0 || *c.LidEaseFraction > 1) {
		return fmt.Errorf("lid_ease_fraction must be in (0, 1], got %f", *c.LidEaseFraction)
	}

	if c.IdleHoldTicks != nil && *c.IdleHoldTicks < 0 {
		return fmt.Errorf("idle_hold_ticks must be non-negative, got %d", *c.IdleHoldTicks)
	}

	for name, v := range map[string]*string{
		"poll_interval":       c.PollInterval,
		"tick_interval":       c.TickInterval,
		"calibration_timeout": c.CalibrationTimeout,
		"max_backoff":         c.MaxBackoff,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
	}

	if c.PollInterval != nil && *c.PollInterval != "" && c.GetPollInterval() <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", *c.PollInterval)
	}

	return nil
}

// parseDurationOr parses s, returning def when s is unset or malformed.
func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// GetGridSize returns the grid_size value or the default.
func (c *TuningConfig) GetGridSize() int {
	if c.GridSize == nil {
		return 8
	}
	return *c.GridSize
}

// GetMaxRangeMM returns the max_range_mm value or the default.
func (c *TuningConfig) GetMaxRangeMM() int {
	if c.MaxRangeMM == nil {
		return 2000
	}
	return *c.MaxRangeMM
}

// GetNoiseRangeMM returns the noise_range_mm value or the default.
func (c *TuningConfig) GetNoiseRangeMM() int {
	if c.NoiseRangeMM == nil {
		return 50
	}
	return *c.NoiseRangeMM
}

// GetAcceptedStatuses returns the accepted sensor status codes or the default
// set {5, 6, 9}: 5 is a fully confident reading, 6 and 9 are at least 50%.
func (c *TuningConfig) GetAcceptedStatuses() []int {
	if len(c.AcceptedStatuses) == 0 {
		return []int{5, 6, 9}
	}
	out := make([]int, len(c.AcceptedStatuses))
	copy(out, c.AcceptedStatuses)
	return out
}

// GetValidScoreMinimum returns the valid_score_minimum value or the default.
func (c *TuningConfig) GetValidScoreMinimum() int {
	if c.ValidScoreMinimum == nil {
		return 6
	}
	return *c.ValidScoreMinimum
}

// GetEaseFraction returns the ease_fraction value or the default.
func (c *TuningConfig) GetEaseFraction() float64 {
	if c.EaseFraction == nil {
		return 0.1
	}
	return *c.EaseFraction
}

// GetLidEaseFraction returns the lid_ease_fraction value or the default.
func (c *TuningConfig) GetLidEaseFraction() float64 {
	if c.LidEaseFraction == nil {
		return 0.1
	}
	return *c.LidEaseFraction
}

// GetIdleHoldTicks returns the idle_hold_ticks value or the default (0: no debounce).
func (c *TuningConfig) GetIdleHoldTicks() int {
	if c.IdleHoldTicks == nil {
		return 0
	}
	return *c.IdleHoldTicks
}

// GetPollInterval parses and returns the PollInterval as a time.Duration.
func (c *TuningConfig) GetPollInterval() time.Duration {
	return parseDurationOr(c.PollInterval, 5*time.Millisecond)
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
// The default 0 means one easing step per processed frame.
func (c *TuningConfig) GetTickInterval() time.Duration {
	return parseDurationOr(c.TickInterval, 0)
}

// GetCalibrationTimeout parses and returns the CalibrationTimeout as a time.Duration.
func (c *TuningConfig) GetCalibrationTimeout() time.Duration {
	return parseDurationOr(c.CalibrationTimeout, 10*time.Second)
}

// GetMaxBackoff parses and returns the MaxBackoff as a time.Duration.
func (c *TuningConfig) GetMaxBackoff() time.Duration {
	return parseDurationOr(c.MaxBackoff, 250*time.Millisecond)
}
