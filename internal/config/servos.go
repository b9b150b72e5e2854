package config

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultServoConfigPath is the path to the canonical servo travel table.
const DefaultServoConfigPath = "config/servos.defaults.json"

// Servo roles. Each role maps to exactly one PWM channel.
const (
	RolePan           = "pan"
	RoleTilt          = "tilt"
	RoleLidUpperLeft  = "lid_upper_left"
	RoleLidLowerLeft  = "lid_lower_left"
	RoleLidUpperRight = "lid_upper_right"
	RoleLidLowerRight = "lid_lower_right"
)

// ServoRoles lists every role the eyes need, gaze first.
func ServoRoles() []string {
	return []string{RolePan, RoleTilt, RoleLidUpperLeft, RoleLidLowerLeft, RoleLidUpperRight, RoleLidLowerRight}
}

// PCA9685 limits.
const (
	maxPWMChannel = 15
	maxPWMTicks   = 4095
	minPWMFreqHz  = 24
	maxPWMFreqHz  = 1526
)

// ServoChannel is the calibrated travel of one servo. MinTicks is the pulse
// length at normalized position 0 and MaxTicks at 100; MinTicks may exceed
// MaxTicks for servos mounted in reverse.
type ServoChannel struct {
	Channel  int `json:"channel"`
	MinTicks int `json:"min_ticks"`
	MaxTicks int `json:"max_ticks"`
}

// ServoConfig is the actuator wiring and per-channel travel table.
type ServoConfig struct {
	I2CBus         string                  `json:"i2c_bus"`
	Address        uint16                  `json:"address"`
	PWMFrequencyHz *float64                `json:"pwm_frequency_hz,omitempty"`
	Channels       map[string]ServoChannel `json:"channels"`
}

// LoadServoConfig loads and validates a ServoConfig from a JSON file.
func LoadServoConfig(path string) (*ServoConfig, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &ServoConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse servo config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid servo configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every role is wired to a distinct, in-range channel.
func (c *ServoConfig) Validate() error {
	if c.PWMFrequencyHz != nil {
		if f := *c.PWMFrequencyHz; f < minPWMFreqHz || f > maxPWMFreqHz {
			return fmt.Errorf("pwm_frequency_hz must be in [%d, %d], got %f", minPWMFreqHz, maxPWMFreqHz, f)
		}
	}

	used := make(map[int]string, len(c.Channels))
	roles := make([]string, 0, len(c.Channels))
	for role := range c.Channels {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	for _, role := range roles {
		ch := c.Channels[role]
		if ch.Channel < 0 || ch.Channel > maxPWMChannel {
			return fmt.Errorf("%s: channel must be in [0, %d], got %d", role, maxPWMChannel, ch.Channel)
		}
		if other, ok := used[ch.Channel]; ok {
			return fmt.Errorf("%s: channel %d already used by %s", role, ch.Channel, other)
		}
		used[ch.Channel] = role
		if ch.MinTicks < 0 || ch.MinTicks > maxPWMTicks || ch.MaxTicks < 0 || ch.MaxTicks > maxPWMTicks {
			return fmt.Errorf("%s: ticks must be in [0, %d], got %d..%d", role, maxPWMTicks, ch.MinTicks, ch.MaxTicks)
		}
		if ch.MinTicks == ch.MaxTicks {
			return fmt.Errorf("%s: min_ticks and max_ticks must differ", role)
		}
	}

	for _, role := range ServoRoles() {
		if _, ok := c.Channels[role]; !ok {
			return fmt.Errorf("missing servo role %q", role)
		}
	}
	return nil
}

// GetI2CBus returns the configured I2C bus name or the default "1".
func (c *ServoConfig) GetI2CBus() string {
	if c.I2CBus == "" {
		return "1"
	}
	return c.I2CBus
}

// GetAddress returns the PCA9685 address or the default 0x40.
func (c *ServoConfig) GetAddress() uint16 {
	if c.Address == 0 {
		return 0x40
	}
	return c.Address
}

// GetPWMFrequencyHz returns the servo PWM frequency or the default 50Hz.
func (c *ServoConfig) GetPWMFrequencyHz() float64 {
	if c.PWMFrequencyHz == nil {
		return 50
	}
	return *c.PWMFrequencyHz
}
