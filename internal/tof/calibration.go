package tof

// Calibration is the per-zone background baseline captured from the first
// frame after startup. Every baseline lies in [1, MaxRangeMM]: zero and
// over-range readings are stored as MaxRangeMM, meaning far background.
// It is never persisted; each process start takes a fresh one.
type Calibration struct {
	baseline Grid[int]
}

// NewCalibration captures a baseline from frame. Status codes are ignored:
// a low-confidence zone still says something about where the background is.
func NewCalibration(frame Frame, maxRangeMM int) Calibration {
	if maxRangeMM <= 0 {
		maxRangeMM = DefaultMaxRangeMM
	}
	g := NewGrid[int](frame.Size)
	for i := range g.Cells {
		d := 0
		if i < len(frame.Cells) {
			d = frame.Cells[i].DistanceMM
		}
		if d <= 0 || d > maxRangeMM {
			d = maxRangeMM
		}
		g.Cells[i] = d
	}
	return Calibration{baseline: g}
}

// Size returns the grid resolution the calibration was taken at.
func (c Calibration) Size() int {
	return c.baseline.Size
}

// Baseline returns the background distance of flat index i.
func (c Calibration) Baseline(i int) int {
	return c.baseline.Cells[i]
}

// Grid returns a copy of the baseline grid for diagnostics.
func (c Calibration) Grid() Grid[int] {
	out := NewGrid[int](c.baseline.Size)
	copy(out.Cells, c.baseline.Cells)
	return out
}

// IsZero reports whether the calibration has not been captured yet.
func (c Calibration) IsZero() bool {
	return c.baseline.Size == 0
}
