package servo

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/eyetrack/internal/config"
)

func testServoConfig() *config.ServoConfig {
	return &config.ServoConfig{
		Channels: map[string]config.ServoChannel{
			config.RolePan:           {Channel: 0, MinTicks: 205, MaxTicks: 410},
			config.RoleTilt:          {Channel: 1, MinTicks: 225, MaxTicks: 390},
			config.RoleLidUpperLeft:  {Channel: 2, MinTicks: 380, MaxTicks: 250},
			config.RoleLidLowerLeft:  {Channel: 3, MinTicks: 240, MaxTicks: 350},
			config.RoleLidUpperRight: {Channel: 4, MinTicks: 250, MaxTicks: 380},
			config.RoleLidLowerRight: {Channel: 5, MinTicks: 350, MaxTicks: 240},
		},
	}
}

func near(a, b, delta float64) bool {
	return math.Abs(a-b) <= delta
}

func TestTravel_Ticks(t *testing.T) {
	t.Parallel()
	tr := Travel{Channel: 0, MinTicks: 205, MaxTicks: 410}

	tests := []struct {
		name string
		in   float64
		want int
	}{
		{"zero", 0, 205},
		{"full", 100, 410},
		{"half", 50, 308},
		{"below range clamps", -20, 205},
		{"above range clamps", 250, 410},
		{"nan clamps to zero", math.NaN(), 205},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.Ticks(tt.in); got != tt.want {
				t.Errorf("Ticks(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestTravel_Reversed(t *testing.T) {
	t.Parallel()
	tr := Travel{Channel: 2, MinTicks: 380, MaxTicks: 250}

	for in, want := range map[float64]int{0: 380, 100: 250, 50: 315} {
		if got := tr.Ticks(in); got != want {
			t.Errorf("Ticks(%v) = %d, want %d", in, got, want)
		}
	}
	if got := tr.Normalized(250); !near(got, 100, 1e-9) {
		t.Errorf("Normalized(250) = %v, want 100", got)
	}
	if got := tr.Normalized(400); !near(got, 0, 1e-9) {
		t.Errorf("Normalized(400) = %v, want 0 (outside travel clamps)", got)
	}
}

func TestTravel_Normalized(t *testing.T) {
	t.Parallel()
	tr := Travel{MinTicks: 200, MaxTicks: 400}
	if got := tr.Normalized(250); !near(got, 25, 1e-9) {
		t.Errorf("Normalized(250) = %v, want 25", got)
	}
	if got := tr.Normalized(500); !near(got, 100, 1e-9) {
		t.Errorf("Normalized(500) = %v, want 100", got)
	}
	if got := (Travel{MinTicks: 300, MaxTicks: 300}).Normalized(300); got != 0 {
		t.Errorf("zero-width travel Normalized = %v, want 0", got)
	}
}

func TestTableFromConfig(t *testing.T) {
	t.Parallel()
	table, roles := TableFromConfig(testServoConfig())

	if len(table) != 6 || len(roles) != 6 {
		t.Fatalf("got %d travels and %d roles, want 6 of each", len(table), len(roles))
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5}, table.Channels()); diff != "" {
		t.Errorf("Channels() mismatch (-want +got):\n%s", diff)
	}
	if roles[config.RoleTilt] != 1 {
		t.Errorf("tilt channel = %d, want 1", roles[config.RoleTilt])
	}

	tr, err := table.Lookup(roles[config.RoleLidLowerRight])
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if want := (Travel{Channel: 5, MinTicks: 350, MaxTicks: 240}); tr != want {
		t.Errorf("Lookup = %+v, want %+v", tr, want)
	}

	if _, err := table.Lookup(9); err == nil {
		t.Error("Lookup(9) should fail for an unconfigured channel")
	}
}

// Gaze at the top-left interior zone drives pan fully left and tilt fully up,
// which must land on the calibrated corner of each travel.
func TestTravel_CornerRoundTrip(t *testing.T) {
	t.Parallel()
	table, roles := TableFromConfig(testServoConfig())
	pan, err := table.Lookup(roles[config.RolePan])
	if err != nil {
		t.Fatal(err)
	}
	tilt, err := table.Lookup(roles[config.RoleTilt])
	if err != nil {
		t.Fatal(err)
	}

	if got := pan.Ticks(0); !near(float64(got), float64(pan.MinTicks), 1) {
		t.Errorf("pan.Ticks(0) = %d, want %d", got, pan.MinTicks)
	}
	if got := tilt.Ticks(100); !near(float64(got), float64(tilt.MaxTicks), 1) {
		t.Errorf("tilt.Ticks(100) = %d, want %d", got, tilt.MaxTicks)
	}
	if got := pan.Normalized(pan.Ticks(0)); !near(got, 0, 1) {
		t.Errorf("pan round trip = %v, want 0", got)
	}
	if got := tilt.Normalized(tilt.Ticks(100)); !near(got, 100, 1) {
		t.Errorf("tilt round trip = %v, want 100", got)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()
	r := NewRecorder(3)

	if _, ok := r.Position(0); ok {
		t.Error("Position(0) reported a value before any write")
	}

	for i := 0; i < 5; i++ {
		r.SetChannelPosition(0, float64(i*10))
	}
	r.SetChannelPosition(1, 77)

	v, ok := r.Position(0)
	if !ok || v != 40 {
		t.Errorf("Position(0) = %v, %v; want 40, true", v, ok)
	}

	want := []Write{{0, 30}, {0, 40}, {1, 77}}
	if diff := cmp.Diff(want, r.Writes()); diff != "" {
		t.Errorf("Writes() mismatch (-want +got):\n%s", diff)
	}

	r.Reset()
	if n := len(r.Writes()); n != 0 {
		t.Errorf("Writes() after Reset has %d entries, want 0", n)
	}
	if v, _ := r.Position(1); v != 77 {
		t.Errorf("Position(1) after Reset = %v, want 77", v)
	}
}

var _ Actuator = (*Recorder)(nil)
var _ Actuator = (*PCA9685)(nil)
