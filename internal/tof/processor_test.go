package tof

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Order(t *testing.T) {
	t.Parallel()
	p := DefaultParams()

	tests := []struct {
		name     string
		cell     RawCell
		baseline int
		want     AdjustedCell
	}{
		{"rejected status wins over range", RawCell{DistanceMM: 0, Status: 3}, 2000, InvalidStatus},
		{"rejected status wins over foreground", RawCell{DistanceMM: 400, Status: 10}, 2000, InvalidStatus},
		{"status 255", RawCell{DistanceMM: 400, Status: 255}, 2000, InvalidStatus},
		{"zero distance", RawCell{DistanceMM: 0, Status: 5}, 2000, OutOfRange},
		{"beyond max range", RawCell{DistanceMM: 2001, Status: 5}, 2000, OutOfRange},
		{"exactly max range is background here", RawCell{DistanceMM: 2000, Status: 5}, 2000, Background},
		{"status 6 accepted", RawCell{DistanceMM: 400, Status: 6}, 2000, AdjustedCell(400)},
		{"status 9 accepted", RawCell{DistanceMM: 400, Status: 9}, 2000, AdjustedCell(400)},
		{"nearer than background", RawCell{DistanceMM: 800, Status: 5}, 1500, AdjustedCell(800)},
		{"further than background", RawCell{DistanceMM: 1800, Status: 5}, 1500, AdjustedCell(1800)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.cell, tt.baseline, p))
		})
	}
}

func TestClassify_NoiseBoundary(t *testing.T) {
	t.Parallel()
	p := DefaultParams()

	assert.Equal(t, Background, Classify(RawCell{DistanceMM: 1000, Status: 5}, 1000, p), "delta 0")
	assert.Equal(t, Background, Classify(RawCell{DistanceMM: 1050, Status: 5}, 1000, p), "delta +50")
	assert.Equal(t, Background, Classify(RawCell{DistanceMM: 950, Status: 5}, 1000, p), "delta -50")
	assert.Equal(t, AdjustedCell(1051), Classify(RawCell{DistanceMM: 1051, Status: 5}, 1000, p), "delta +51")
	assert.Equal(t, AdjustedCell(949), Classify(RawCell{DistanceMM: 949, Status: 5}, 1000, p), "delta -51")
}

func TestClassify_BackgroundIdempotence(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	for _, d := range []int{1, 50, 51, 300, 1999, 2000} {
		for _, s := range DefaultAcceptedStatuses {
			assert.Equal(t, Background, Classify(RawCell{DistanceMM: d, Status: s}, d, p), "d=%d s=%d", d, s)
		}
	}
}

func TestClassify_TunableStatuses(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.AcceptedStatuses = []uint8{5, 9}

	assert.Equal(t, InvalidStatus, Classify(RawCell{DistanceMM: 400, Status: 6}, 2000, p))
	assert.Equal(t, AdjustedCell(400), Classify(RawCell{DistanceMM: 400, Status: 9}, 2000, p))
}

func TestClassify_Saturates(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.MaxRangeMM = 40000 // bypasses Validate on purpose
	assert.Equal(t, AdjustedCell(32767), Classify(RawCell{DistanceMM: 39000, Status: 5}, 1000, p))
}

func TestAdjust_Partition(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	rng := rand.New(rand.NewSource(7))
	statuses := []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 255}

	for iter := 0; iter < 200; iter++ {
		calibFrame := NewGrid[RawCell](8)
		frame := NewGrid[RawCell](8)
		for i := range frame.Cells {
			calibFrame.Cells[i] = RawCell{DistanceMM: rng.Intn(2600), Status: 5}
			frame.Cells[i] = RawCell{DistanceMM: rng.Intn(2600), Status: statuses[rng.Intn(len(statuses))]}
		}
		calib := NewCalibration(calibFrame, p.MaxRangeMM)
		adj := Adjust(frame, calib, p)

		require.Len(t, adj.Cells, 64)
		counts := Summarize(adj)
		require.Equal(t, 64, counts.Total())

		for i, a := range adj.Cells {
			raw := frame.Cells[i]
			var want CellClass
			switch {
			case !p.accepts(raw.Status):
				want = ClassInvalidStatus
			case raw.DistanceMM == 0 || raw.DistanceMM > p.MaxRangeMM:
				want = ClassOutOfRange
			case abs(raw.DistanceMM-calib.Baseline(i)) <= p.NoiseRangeMM:
				want = ClassBackground
			default:
				want = ClassValid
			}
			require.Equal(t, want, a.Class(), "iter %d zone %d raw %+v baseline %d", iter, i, raw, calib.Baseline(i))
			if want == ClassValid {
				require.Equal(t, raw.DistanceMM, int(a))
			} else {
				require.LessOrEqual(t, int(a), 0)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestAdjust_IsPure(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	calib := NewCalibration(uniformFrame(4, 1500, 5), p.MaxRangeMM)
	frame := uniformFrame(4, 600, 5)
	before := frame.Cells[0]

	a := Adjust(frame, calib, p)
	b := Adjust(frame, calib, p)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Adjust is not deterministic (-first +second):\n%s", diff)
	}
	assert.Equal(t, before, frame.Cells[0])
}

func TestAdjust_SizeMismatch(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	calib := NewCalibration(uniformFrame(4, 1500, 5), p.MaxRangeMM)
	adj := Adjust(uniformFrame(8, 600, 5), calib, p)

	counts := Summarize(adj)
	assert.Equal(t, 16, counts.Valid)
	assert.Equal(t, 48, counts.InvalidStatus)

	var zero Calibration
	adj = Adjust(uniformFrame(4, 600, 5), zero, p)
	assert.Equal(t, 16, Summarize(adj).InvalidStatus)
}

func TestAdjustedCell_Class(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ClassValid, AdjustedCell(1).Class())
	assert.Equal(t, ClassBackground, Background.Class())
	assert.Equal(t, ClassInvalidStatus, InvalidStatus.Class())
	assert.Equal(t, ClassOutOfRange, OutOfRange.Class())
	assert.True(t, AdjustedCell(1).Valid())
	assert.False(t, Background.Valid())
	assert.Equal(t, "out_of_range", ClassOutOfRange.String())
	assert.Equal(t, "unknown", CellClass(99).String())
}

func TestParams(t *testing.T) {
	t.Parallel()
	assert.NoError(t, DefaultParams().Validate())

	bad := DefaultParams()
	bad.ValidScoreMinimum = 10
	assert.Error(t, bad.Validate())

	bad = DefaultParams()
	bad.AcceptedStatuses = nil
	assert.Error(t, bad.Validate())

	bad = DefaultParams()
	bad.MaxRangeMM = 0
	assert.Error(t, bad.Validate())

	bad = DefaultParams()
	bad.NoiseRangeMM = -1
	assert.Error(t, bad.Validate())

	// DefaultParams must not alias the package defaults
	p := DefaultParams()
	p.AcceptedStatuses[0] = 1
	assert.Equal(t, uint8(5), DefaultAcceptedStatuses[0])
}
