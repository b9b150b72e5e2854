package tof

import "math"

// AdjustedCell is one classified zone. Positive values are valid foreground
// distances in mm; the sentinels below are all <= 0, so a single sign test
// tells whether a zone is usable.
type AdjustedCell int16

// Sentinel classifications.
const (
	// Background marks a reading within the noise band of the calibration.
	Background AdjustedCell = 0
	// InvalidStatus marks a reading whose status code is not accepted.
	InvalidStatus AdjustedCell = -1
	// OutOfRange marks a zero or over-range distance.
	OutOfRange AdjustedCell = -2
)

// maxAdjusted is the largest distance an AdjustedCell can carry.
const maxAdjusted = math.MaxInt16

// Valid reports whether the cell carries a foreground distance.
func (a AdjustedCell) Valid() bool {
	return a > 0
}

// CellClass enumerates the four mutually exclusive zone classifications.
type CellClass int

const (
	ClassValid CellClass = iota
	ClassInvalidStatus
	ClassOutOfRange
	ClassBackground
)

func (c CellClass) String() string {
	switch c {
	case ClassValid:
		return "valid"
	case ClassInvalidStatus:
		return "invalid_status"
	case ClassOutOfRange:
		return "out_of_range"
	case ClassBackground:
		return "background"
	default:
		return "unknown"
	}
}

// Class returns the classification of the cell.
func (a AdjustedCell) Class() CellClass {
	switch {
	case a > 0:
		return ClassValid
	case a == InvalidStatus:
		return ClassInvalidStatus
	case a == OutOfRange:
		return ClassOutOfRange
	default:
		return ClassBackground
	}
}

// ClassCounts tallies the classes of an adjusted grid.
type ClassCounts struct {
	Valid         int `json:"valid"`
	InvalidStatus int `json:"invalid_status"`
	OutOfRange    int `json:"out_of_range"`
	Background    int `json:"background"`
}

// Total returns the number of zones counted.
func (c ClassCounts) Total() int {
	return c.Valid + c.InvalidStatus + c.OutOfRange + c.Background
}

// Summarize counts each class in g.
func Summarize(g Grid[AdjustedCell]) ClassCounts {
	var c ClassCounts
	for _, a := range g.Cells {
		switch a.Class() {
		case ClassValid:
			c.Valid++
		case ClassInvalidStatus:
			c.InvalidStatus++
		case ClassOutOfRange:
			c.OutOfRange++
		case ClassBackground:
			c.Background++
		}
	}
	return c
}
