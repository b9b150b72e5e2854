package tof

import (
	"errors"
	"fmt"
)

// ErrInvalidGridSize is returned when a grid resolution cannot be processed.
var ErrInvalidGridSize = errors.New("invalid grid size")

// MinGridSize is the smallest grid with at least one interior cell.
const MinGridSize = 3

// Grid is a square Size×Size matrix stored row-major, index i = y*Size + x.
type Grid[T any] struct {
	Size  int
	Cells []T
}

// NewGrid allocates a zeroed grid of the given resolution.
func NewGrid[T any](size int) Grid[T] {
	if size < 0 {
		size = 0
	}
	return Grid[T]{Size: size, Cells: make([]T, size*size)}
}

// ValidateSize checks that size describes a grid this package can process.
func ValidateSize(size int) error {
	if size < MinGridSize {
		return fmt.Errorf("%w: %d (minimum %d)", ErrInvalidGridSize, size, MinGridSize)
	}
	return nil
}

// Idx returns the flat index of (x, y).
func (g Grid[T]) Idx(x, y int) int {
	return y*g.Size + x
}

// XY returns the coordinates of flat index i.
func (g Grid[T]) XY(i int) (x, y int) {
	return i % g.Size, i / g.Size
}

// At returns the cell at (x, y). The caller must ensure InBounds.
func (g Grid[T]) At(x, y int) T {
	return g.Cells[g.Idx(x, y)]
}

// InBounds reports whether (x, y) lies inside the grid.
func (g Grid[T]) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Size && y < g.Size
}

// IsEdge reports whether (x, y) is on the outer ring of the grid.
func (g Grid[T]) IsEdge(x, y int) bool {
	last := g.Size - 1
	return x == 0 || y == 0 || x == last || y == last
}

// Complete reports whether the cell slice matches the declared resolution.
func (g Grid[T]) Complete() bool {
	return g.Size >= 0 && len(g.Cells) == g.Size*g.Size
}

// RawCell is one sensor zone as reported by the ranging collaborator.
type RawCell struct {
	DistanceMM int   `json:"distance_mm"`
	Status     uint8 `json:"status"`
	Targets    int   `json:"targets"`
}

// Frame is one complete sensor reading.
type Frame = Grid[RawCell]

// NewFrame builds a frame from parallel per-zone slices. All slices must have
// size*size entries; targets may be nil.
func NewFrame(size int, distances []int, statuses []uint8, targets []int) (Frame, error) {
	if err := ValidateSize(size); err != nil {
		return Frame{}, err
	}
	n := size * size
	if len(distances) != n || len(statuses) != n {
		return Frame{}, fmt.Errorf("%w: expected %d zones, got %d distances and %d statuses",
			ErrInvalidGridSize, n, len(distances), len(statuses))
	}
	if targets != nil && len(targets) != n {
		return Frame{}, fmt.Errorf("%w: expected %d target counts, got %d", ErrInvalidGridSize, n, len(targets))
	}
	f := NewGrid[RawCell](size)
	for i := range f.Cells {
		f.Cells[i] = RawCell{DistanceMM: distances[i], Status: statuses[i]}
		if targets != nil {
			f.Cells[i].Targets = targets[i]
		}
	}
	return f, nil
}
