package tof

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid_Indexing(t *testing.T) {
	t.Parallel()
	g := NewGrid[int](8)
	require.Len(t, g.Cells, 64)

	assert.Equal(t, 0, g.Idx(0, 0))
	assert.Equal(t, 7, g.Idx(7, 0))
	assert.Equal(t, 8, g.Idx(0, 1))
	assert.Equal(t, 63, g.Idx(7, 7))

	x, y := g.XY(19)
	assert.Equal(t, 3, x)
	assert.Equal(t, 2, y)

	g.Cells[g.Idx(3, 2)] = 42
	assert.Equal(t, 42, g.At(3, 2))
}

func TestGrid_EdgesAndBounds(t *testing.T) {
	t.Parallel()
	g := NewGrid[int](4)

	for _, c := range []struct{ x, y int }{{0, 0}, {3, 0}, {0, 3}, {3, 3}, {1, 0}, {3, 2}} {
		assert.True(t, g.IsEdge(c.x, c.y), "(%d,%d) should be edge", c.x, c.y)
	}
	for _, c := range []struct{ x, y int }{{1, 1}, {2, 1}, {1, 2}, {2, 2}} {
		assert.False(t, g.IsEdge(c.x, c.y), "(%d,%d) should be interior", c.x, c.y)
	}

	assert.True(t, g.InBounds(0, 0))
	assert.True(t, g.InBounds(3, 3))
	assert.False(t, g.InBounds(-1, 0))
	assert.False(t, g.InBounds(4, 0))
	assert.False(t, g.InBounds(0, 4))
}

func TestValidateSize(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateSize(4))
	assert.NoError(t, ValidateSize(8))
	assert.NoError(t, ValidateSize(3))

	err := ValidateSize(2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidGridSize))
}

func TestNewFrame(t *testing.T) {
	t.Parallel()

	t.Run("parallel slices", func(t *testing.T) {
		t.Parallel()
		d := make([]int, 16)
		s := make([]uint8, 16)
		tg := make([]int, 16)
		d[5], s[5], tg[5] = 700, 5, 2
		f, err := NewFrame(4, d, s, tg)
		require.NoError(t, err)
		assert.Equal(t, RawCell{DistanceMM: 700, Status: 5, Targets: 2}, f.At(1, 1))
		assert.True(t, f.Complete())
	})

	t.Run("nil targets", func(t *testing.T) {
		t.Parallel()
		f, err := NewFrame(4, make([]int, 16), make([]uint8, 16), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, f.At(0, 0).Targets)
	})

	t.Run("length mismatch", func(t *testing.T) {
		t.Parallel()
		_, err := NewFrame(8, make([]int, 16), make([]uint8, 64), nil)
		assert.ErrorIs(t, err, ErrInvalidGridSize)
	})

	t.Run("target mismatch", func(t *testing.T) {
		t.Parallel()
		_, err := NewFrame(4, make([]int, 16), make([]uint8, 16), make([]int, 3))
		assert.ErrorIs(t, err, ErrInvalidGridSize)
	})

	t.Run("too small", func(t *testing.T) {
		t.Parallel()
		_, err := NewFrame(2, make([]int, 4), make([]uint8, 4), nil)
		assert.ErrorIs(t, err, ErrInvalidGridSize)
	})
}
