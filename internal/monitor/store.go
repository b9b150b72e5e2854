// Package monitor is the optional debug surface of a running pipeline: the
// latest tick as JSON, an HTML heatmap of the adjusted grid, and PNG grid
// snapshots.
package monitor

import (
	"sync"

	"github.com/banshee-data/eyetrack/internal/pipeline"
	"github.com/banshee-data/eyetrack/internal/tof"
)

// Store keeps the latest processed tick for the HTTP handlers. It is the
// only state shared between the loop and the debug server.
type Store struct {
	maxRangeMM int
	stats      func() pipeline.Stats

	mu    sync.RWMutex
	tick  pipeline.Tick
	have  bool
	calib tof.Calibration
}

// NewStore returns a Store. stats, when non-nil, is read on every state
// request.
func NewStore(maxRangeMM int, stats func() pipeline.Stats) *Store {
	if maxRangeMM <= 0 {
		maxRangeMM = tof.DefaultMaxRangeMM
	}
	return &Store{maxRangeMM: maxRangeMM, stats: stats}
}

// Observe implements pipeline.Observer.
func (s *Store) Observe(t pipeline.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = t
	s.have = true
}

// SetCalibration records the baseline shown alongside each tick.
func (s *Store) SetCalibration(c tof.Calibration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calib = c
}

// Latest returns the most recent tick, and false before the first one.
func (s *Store) Latest() (pipeline.Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick, s.have
}

// State is the JSON document served at /debug/state.
type State struct {
	Seq         uint64          `json:"seq"`
	Time        string          `json:"time"`
	State       string          `json:"state"`
	POI         *tof.POI        `json:"poi"`
	Pan         float64         `json:"pan"`
	Tilt        float64         `json:"tilt"`
	LidOpen     float64         `json:"lid_open"`
	Counts      tof.ClassCounts `json:"counts"`
	Stats       *pipeline.Stats `json:"stats,omitempty"`
	Adjusted    [][]int         `json:"adjusted"`
	DistanceMM  [][]int         `json:"distance_mm"`
	Calibration [][]int         `json:"calibration,omitempty"`
}

// Snapshot builds the State document for the latest tick.
func (s *Store) Snapshot() (State, bool) {
	s.mu.RLock()
	t, have, calib := s.tick, s.have, s.calib
	s.mu.RUnlock()
	if !have {
		return State{}, false
	}

	st := State{
		Seq:        t.Seq,
		Time:       t.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		State:      t.State.String(),
		Pan:        t.Position.Pan,
		Tilt:       t.Position.Tilt,
		LidOpen:    t.Position.LidOpen,
		Counts:     t.Counts,
		Adjusted:   rows(t.Adjusted.Size, func(i int) int { return int(t.Adjusted.Cells[i]) }),
		DistanceMM: rows(t.Frame.Size, func(i int) int { return t.Frame.Cells[i].DistanceMM }),
	}
	if t.POI.Valid() {
		poi := t.POI
		st.POI = &poi
	}
	if s.stats != nil {
		stats := s.stats()
		st.Stats = &stats
	}
	if !calib.IsZero() {
		g := calib.Grid()
		st.Calibration = rows(g.Size, func(i int) int { return g.Cells[i] })
	}
	return st, true
}

// rows reshapes a flat row-major grid into a slice of rows.
func rows(size int, at func(i int) int) [][]int {
	out := make([][]int, size)
	for y := range out {
		out[y] = make([]int, size)
		for x := range out[y] {
			out[y][x] = at(y*size + x)
		}
	}
	return out
}
