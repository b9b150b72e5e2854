package tof

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// NoFocusCoord is the coordinate reported when a frame has no focus point.
const NoFocusCoord = -255

// FocusCandidate is the neighbourhood summary of one interior zone.
type FocusCandidate struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	DistanceMM int     `json:"distance_mm"`
	Score      int     `json:"score"`
	AverageMM  float64 `json:"average_mm"`
}

// POI is the point of interest selected for a frame.
type POI struct {
	X          int `json:"x"`
	Y          int `json:"y"`
	DistanceMM int `json:"distance_mm"`
	Score      int `json:"score"`
}

// NoPOI is the point of interest of a frame without any candidate.
var NoPOI = POI{X: NoFocusCoord, Y: NoFocusCoord, DistanceMM: math.MaxInt32}

// Valid reports whether the POI refers to a real zone.
func (p POI) Valid() bool {
	return p.X >= 0 && p.Y >= 0
}

// NeighborhoodScore counts the valid zones in the 3×3 block centred on
// (x, y), the centre included. Zones outside the grid count as invalid.
func NeighborhoodScore(g Grid[AdjustedCell], x, y int) int {
	score := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if g.InBounds(nx, ny) && g.At(nx, ny).Valid() {
				score++
			}
		}
	}
	return score
}

// NeighborhoodAverage is the mean distance of the valid zones in the 3×3
// block centred on (x, y). When none is valid it falls back to the centre's
// own value.
func NeighborhoodAverage(g Grid[AdjustedCell], x, y int) float64 {
	vals := make([]float64, 0, NeighborhoodCells)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if g.InBounds(nx, ny) && g.At(nx, ny).Valid() {
				vals = append(vals, float64(g.At(nx, ny)))
			}
		}
	}
	if len(vals) == 0 {
		return float64(g.At(x, y))
	}
	return stat.Mean(vals, nil)
}

// Candidates summarises every interior zone in raster order. Edge zones are
// skipped: they lack a full neighbourhood and the outer ring of the sensor
// drops out more often.
func Candidates(g Grid[AdjustedCell]) []FocusCandidate {
	if g.Size < MinGridSize || !g.Complete() {
		return nil
	}
	inner := g.Size - 2
	out := make([]FocusCandidate, 0, inner*inner)
	for y := 1; y < g.Size-1; y++ {
		for x := 1; x < g.Size-1; x++ {
			out = append(out, FocusCandidate{
				X:          x,
				Y:          y,
				DistanceMM: int(g.At(x, y)),
				Score:      NeighborhoodScore(g, x, y),
				AverageMM:  NeighborhoodAverage(g, x, y),
			})
		}
	}
	return out
}

// Eligible reports whether c may become the focus under p.
func (c FocusCandidate) Eligible(p Params) bool {
	return c.DistanceMM > 0 && c.Score >= p.ValidScoreMinimum
}

// Select picks the nearest eligible interior zone. Ties keep the first zone
// in raster order. A frame with no eligible zone yields NoPOI.
func Select(g Grid[AdjustedCell], p Params) POI {
	return selectFrom(Candidates(g), p)
}

func selectFrom(cands []FocusCandidate, p Params) POI {
	best := NoPOI
	for _, c := range cands {
		if !c.Eligible(p) {
			continue
		}
		if c.DistanceMM < best.DistanceMM {
			best = POI{X: c.X, Y: c.Y, DistanceMM: c.DistanceMM, Score: c.Score}
		}
	}
	return best
}

// SelectWithCandidates is Select that also returns the candidate list it
// scored, for diagnostics.
func SelectWithCandidates(g Grid[AdjustedCell], p Params) (POI, []FocusCandidate) {
	cands := Candidates(g)
	return selectFrom(cands, p), cands
}
