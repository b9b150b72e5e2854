package tof

// Classify turns one raw zone into an AdjustedCell. The checks run in a
// fixed order: status, range, then background comparison.
func Classify(cell RawCell, baseline int, p Params) AdjustedCell {
	if !p.accepts(cell.Status) {
		return InvalidStatus
	}
	if cell.DistanceMM <= 0 || cell.DistanceMM > p.MaxRangeMM {
		return OutOfRange
	}
	delta := cell.DistanceMM - baseline
	if delta < 0 {
		delta = -delta
	}
	if delta <= p.NoiseRangeMM {
		return Background
	}
	if cell.DistanceMM > maxAdjusted {
		return AdjustedCell(maxAdjusted)
	}
	return AdjustedCell(cell.DistanceMM)
}

// Adjust classifies every zone of frame against calib. Zones without a
// matching calibration entry are marked InvalidStatus.
func Adjust(frame Frame, calib Calibration, p Params) Grid[AdjustedCell] {
	out := NewGrid[AdjustedCell](frame.Size)
	for i := range out.Cells {
		if i >= len(frame.Cells) || calib.IsZero() || i >= len(calib.baseline.Cells) {
			out.Cells[i] = InvalidStatus
			continue
		}
		out.Cells[i] = Classify(frame.Cells[i], calib.Baseline(i), p)
	}
	return out
}
