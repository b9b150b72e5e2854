package tof

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCalibration_Clamps(t *testing.T) {
	t.Parallel()
	f := uniformFrame(4, 1200, 5)
	setZone(f, 0, 0, 0, 5)    // no return
	setZone(f, 1, 0, 2500, 5) // beyond range
	setZone(f, 2, 0, 1, 5)    // minimum
	setZone(f, 3, 0, 2000, 5) // exactly max
	setZone(f, 0, 1, 900, 0)  // low confidence still used

	c := NewCalibration(f, 2000)
	assert.Equal(t, 4, c.Size())
	assert.False(t, c.IsZero())
	assert.Equal(t, 2000, c.Baseline(f.Idx(0, 0)))
	assert.Equal(t, 2000, c.Baseline(f.Idx(1, 0)))
	assert.Equal(t, 1, c.Baseline(f.Idx(2, 0)))
	assert.Equal(t, 2000, c.Baseline(f.Idx(3, 0)))
	assert.Equal(t, 900, c.Baseline(f.Idx(0, 1)))
	assert.Equal(t, 1200, c.Baseline(f.Idx(2, 2)))

	for i := range f.Cells {
		b := c.Baseline(i)
		assert.True(t, b >= 1 && b <= 2000, "baseline %d out of range at %d", b, i)
	}
}

func TestNewCalibration_DefaultRange(t *testing.T) {
	t.Parallel()
	c := NewCalibration(uniformFrame(4, 0, 5), 0)
	assert.Equal(t, DefaultMaxRangeMM, c.Baseline(0))
}

func TestCalibration_GridIsCopy(t *testing.T) {
	t.Parallel()
	c := NewCalibration(uniformFrame(4, 1000, 5), 2000)
	g := c.Grid()
	g.Cells[0] = 7
	assert.Equal(t, 1000, c.Baseline(0))
}

func TestCalibration_Zero(t *testing.T) {
	t.Parallel()
	var c Calibration
	assert.True(t, c.IsZero())
}
