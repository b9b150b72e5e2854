package sensor

import (
	"math"
	"sync"

	"github.com/banshee-data/eyetrack/internal/tof"
)

// SyntheticConfig shapes the scene a Synthetic sensor renders.
type SyntheticConfig struct {
	Size         int
	BackgroundMM int
	BlobMM       int
	// Period is the number of frames for one lap of the blob's path.
	Period int
	// Present and Absent alternate the blob in and out of view, in frames.
	// Absent 0 keeps it always in view.
	Present int
	Absent  int
}

// DefaultSyntheticConfig is a 1.5m wall with a hand-sized blob at 40cm
// that circles the interior and leaves view now and then.
func DefaultSyntheticConfig(size int) SyntheticConfig {
	return SyntheticConfig{
		Size:         size,
		BackgroundMM: 1500,
		BlobMM:       400,
		Period:       400,
		Present:      600,
		Absent:       200,
	}
}

// Synthetic renders a moving 3x3 blob over a flat background. The first
// frame is always empty so calibration sees only the background.
type Synthetic struct {
	cfg   SyntheticConfig
	mu    sync.Mutex
	frame int
}

// NewSynthetic returns a Synthetic sensor for cfg.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if err := tof.ValidateSize(cfg.Size); err != nil {
		return nil, err
	}
	if cfg.Period <= 0 {
		cfg.Period = 1
	}
	return &Synthetic{cfg: cfg}, nil
}

// IsFrameReady always reports true; the scene is rendered on demand.
func (s *Synthetic) IsFrameReady() bool { return true }

// ReadFrame renders the next frame of the scene.
func (s *Synthetic) ReadFrame() (tof.Frame, error) {
	s.mu.Lock()
	n := s.frame
	s.frame++
	s.mu.Unlock()

	f := tof.NewGrid[tof.RawCell](s.cfg.Size)
	for i := range f.Cells {
		f.Cells[i] = tof.RawCell{DistanceMM: s.cfg.BackgroundMM, Status: 5, Targets: 1}
	}
	cx, cy, ok := s.BlobCentre(n)
	if !ok {
		return f, nil
	}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			x, y := cx+dx, cy+dy
			if !f.InBounds(x, y) {
				continue
			}
			d := s.cfg.BlobMM
			if dx != 0 || dy != 0 {
				d += 40
			}
			f.Cells[f.Idx(x, y)] = tof.RawCell{DistanceMM: d, Status: 5, Targets: 1}
		}
	}
	return f, nil
}

// BlobCentre returns the zone the blob is centred on in frame n, and false
// when the blob is out of view.
func (s *Synthetic) BlobCentre(n int) (x, y int, ok bool) {
	if n == 0 {
		return 0, 0, false
	}
	if s.cfg.Absent > 0 {
		cycle := s.cfg.Present + s.cfg.Absent
		if (n-1)%cycle >= s.cfg.Present {
			return 0, 0, false
		}
	}
	lo, hi := 1.0, float64(s.cfg.Size-2)
	mid, amp := (lo+hi)/2, (hi-lo)/2
	phase := 2 * math.Pi * float64(n%s.cfg.Period) / float64(s.cfg.Period)
	x = int(math.Round(mid + amp*math.Cos(phase)))
	y = int(math.Round(mid + amp*math.Sin(2*phase)))
	return x, y, true
}
