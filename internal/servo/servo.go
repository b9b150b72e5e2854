// Package servo drives the eye servos: the actuator interface the eye
// controller writes to, the per-channel calibrated travel table, a PCA9685
// PWM driver and a recording actuator for tests and dev mode.
package servo

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/eyetrack/internal/config"
)

// Actuator accepts normalized servo positions (0-100) per PWM channel.
// Writes are fire-and-forget; implementations log their own failures.
type Actuator interface {
	SetChannelPosition(channel int, normalized float64)
}

// Travel is the calibrated pulse range of one servo. MinTicks is the PWM
// on-time at position 0 and MaxTicks at 100. Reversed servos have
// MinTicks > MaxTicks.
type Travel struct {
	Channel  int
	MinTicks int
	MaxTicks int
}

// clampNormalized restricts v to [0, 100]; NaN maps to 0.
func clampNormalized(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Ticks converts a normalized position to PWM ticks within the travel.
func (t Travel) Ticks(normalized float64) int {
	v := clampNormalized(normalized)
	ticks := float64(t.MinTicks) + (float64(t.MaxTicks-t.MinTicks) * v / 100)
	return int(math.Round(ticks))
}

// Normalized converts PWM ticks back to a position, clamped to [0, 100].
func (t Travel) Normalized(ticks int) float64 {
	span := t.MaxTicks - t.MinTicks
	if span == 0 {
		return 0
	}
	return clampNormalized(float64(ticks-t.MinTicks) * 100 / float64(span))
}

// Table is the travel of every wired channel, keyed by channel number.
type Table map[int]Travel

// Roles maps servo role names to channel numbers.
type Roles map[string]int

// TableFromConfig builds the travel table and role map from a loaded ServoConfig.
func TableFromConfig(cfg *config.ServoConfig) (Table, Roles) {
	table := make(Table, len(cfg.Channels))
	roles := make(Roles, len(cfg.Channels))
	for role, ch := range cfg.Channels {
		table[ch.Channel] = Travel{Channel: ch.Channel, MinTicks: ch.MinTicks, MaxTicks: ch.MaxTicks}
		roles[role] = ch.Channel
	}
	return table, roles
}

// Lookup returns the travel of channel.
func (t Table) Lookup(channel int) (Travel, error) {
	tr, ok := t[channel]
	if !ok {
		return Travel{}, fmt.Errorf("channel %d not in travel table", channel)
	}
	return tr, nil
}

// Channels returns the wired channel numbers in ascending order.
func (t Table) Channels() []int {
	out := make([]int, 0, len(t))
	for ch := range t {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}
