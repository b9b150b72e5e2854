package testutil

import (
	"net/http"
	"testing"

	"github.com/banshee-data/eyetrack/internal/tof"
)

func TestUniformFrameAndSetZone(t *testing.T) {
	f := UniformFrame(4, 1200, 5)
	if !f.Complete() {
		t.Fatal("frame should be complete")
	}
	SetZone(f, 1, 2, 300, 9)

	got := f.At(1, 2)
	if got.DistanceMM != 300 || got.Status != 9 || got.Targets != 1 {
		t.Errorf("zone (1,2) = %+v", got)
	}
	if f.At(0, 0).DistanceMM != 1200 {
		t.Errorf("zone (0,0) = %+v, want 1200mm", f.At(0, 0))
	}
}

func TestFillAdjusted(t *testing.T) {
	g := FillAdjusted(8, tof.Background)
	if len(g.Cells) != 64 {
		t.Fatalf("len = %d, want 64", len(g.Cells))
	}
	for i, c := range g.Cells {
		if c != tof.Background {
			t.Fatalf("cell %d = %d", i, c)
		}
	}
}

func TestServeDebug(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/ping", func(w http.ResponseWriter, r *http.Request) {
		if r.RemoteAddr != "127.0.0.1:12345" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if rec := ServeDebug(mux, "/debug/ping"); rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
