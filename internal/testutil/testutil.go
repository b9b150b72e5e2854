// Package testutil provides shared test fixtures for ranging frames and the
// /debug/ admin pages.
package testutil

import (
	"net/http"
	"net/http/httptest"

	"github.com/banshee-data/eyetrack/internal/tof"
)

// UniformFrame returns a size×size frame with every zone at distance/status
// and one target.
func UniformFrame(size, distance int, status uint8) tof.Frame {
	f := tof.NewGrid[tof.RawCell](size)
	for i := range f.Cells {
		f.Cells[i] = tof.RawCell{DistanceMM: distance, Status: status, Targets: 1}
	}
	return f
}

// SetZone overwrites one zone of f.
func SetZone(f tof.Frame, x, y, distance int, status uint8) {
	f.Cells[f.Idx(x, y)] = tof.RawCell{DistanceMM: distance, Status: status, Targets: 1}
}

// FillAdjusted returns a size×size adjusted grid with every zone set to v.
func FillAdjusted(size int, v tof.AdjustedCell) tof.Grid[tof.AdjustedCell] {
	g := tof.NewGrid[tof.AdjustedCell](size)
	for i := range g.Cells {
		g.Cells[i] = v
	}
	return g
}

// DebugRequest creates a request that appears to come from loopback, which
// the /debug/ mux requires.
func DebugRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// ServeDebug sends a loopback GET for path through h and returns the recorder.
func ServeDebug(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, DebugRequest(http.MethodGet, path))
	return rec
}
