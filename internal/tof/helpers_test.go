package tof

// uniformFrame returns a size×size frame with every zone at distance/status.
func uniformFrame(size, distance int, status uint8) Frame {
	f := NewGrid[RawCell](size)
	for i := range f.Cells {
		f.Cells[i] = RawCell{DistanceMM: distance, Status: status, Targets: 1}
	}
	return f
}

// setZone overwrites one zone of f.
func setZone(f Frame, x, y, distance int, status uint8) {
	f.Cells[f.Idx(x, y)] = RawCell{DistanceMM: distance, Status: status, Targets: 1}
}

// adjustedFrom builds an adjusted grid directly from values.
func adjustedFrom(size int, vals ...AdjustedCell) Grid[AdjustedCell] {
	g := NewGrid[AdjustedCell](size)
	copy(g.Cells, vals)
	return g
}

// fillAdjusted returns a size×size adjusted grid with every zone set to v.
func fillAdjusted(size int, v AdjustedCell) Grid[AdjustedCell] {
	g := NewGrid[AdjustedCell](size)
	for i := range g.Cells {
		g.Cells[i] = v
	}
	return g
}
