package monitor

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/eyetrack/internal/fsutil"
	"github.com/banshee-data/eyetrack/internal/monitoring"
	"github.com/banshee-data/eyetrack/internal/pipeline"
	"github.com/banshee-data/eyetrack/internal/tof"
)

// adjustedXYZ adapts an adjusted grid to plotter.GridXYZ. Columns are grid
// x, rows are flipped so grid row 0 is drawn at the top. Zones without a
// usable distance are NaN.
type adjustedXYZ struct {
	g   tof.Grid[tof.AdjustedCell]
	max float64
}

func (a adjustedXYZ) Dims() (c, r int) { return a.g.Size, a.g.Size }

func (a adjustedXYZ) Z(c, r int) float64 {
	v := a.g.At(c, a.g.Size-1-r)
	if !v.Valid() {
		return math.NaN()
	}
	return float64(v)
}

func (a adjustedXYZ) X(c int) float64 { return float64(c) }
func (a adjustedXYZ) Y(r int) float64 { return float64(r) }
func (a adjustedXYZ) Min() float64 { return 0 }
func (a adjustedXYZ) Max() float64 { return a.max }

// GridPlotter renders adjusted grids as PNG heatmaps. With a directory set
// it also acts as a pipeline observer saving every Every-th tick.
type GridPlotter struct {
	// FS receives the snapshots. Defaults to the OS filesystem.
	FS fsutil.FileSystem
	// Keep caps how many snapshots stay on disk; the oldest are removed
	// first. Zero keeps everything.
	Keep int

	maxRangeMM int
	outputDir  string
	every      uint64
	saved      int
	files      []string
	errLog     *monitoring.Throttle
}

// NewGridPlotter returns a plotter scaling colours to [0, maxRangeMM].
// outputDir may be empty when only Render is used.
func NewGridPlotter(maxRangeMM int, outputDir string, every int) *GridPlotter {
	if maxRangeMM <= 0 {
		maxRangeMM = tof.DefaultMaxRangeMM
	}
	if every <= 0 {
		every = 1
	}
	return &GridPlotter{
		FS:         fsutil.OSFileSystem{},
		maxRangeMM: maxRangeMM,
		outputDir:  outputDir,
		every:      uint64(every),
		errLog:     monitoring.NewThrottle(5 * time.Second),
	}
}

// Start creates the output directory.
func (gp *GridPlotter) Start() error {
	if gp.outputDir == "" {
		return fmt.Errorf("grid plotter has no output directory")
	}
	return gp.FS.MkdirAll(gp.outputDir, 0755)
}

// Plot builds the heatmap of one tick with its focus point marked.
func (gp *GridPlotter) Plot(t pipeline.Tick) (*plot.Plot, error) {
	if t.Adjusted.Size < 1 || !t.Adjusted.Complete() {
		return nil, fmt.Errorf("tick %d has no adjusted grid", t.Seq)
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Tick %d - %s (valid %d, background %d)", t.Seq, t.State, t.Counts.Valid, t.Counts.Background)
	p.X.Label.Text = "Zone X"
	p.Y.Label.Text = "Zone Y (flipped)"

	hm := plotter.NewHeatMap(adjustedXYZ{g: t.Adjusted, max: float64(gp.maxRangeMM)}, palette.Heat(32, 1))
	hm.NaN = color.Gray{Y: 40}
	p.Add(hm)

	if t.POI.Valid() {
		pts := plotter.XYs{{X: float64(t.POI.X), Y: float64(t.Adjusted.Size - 1 - t.POI.Y)}}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		sc.GlyphStyle.Radius = vg.Points(8)
		sc.GlyphStyle.Color = color.RGBA{B: 255, A: 255}
		p.Add(sc)
	}
	return p, nil
}

// Render writes the PNG heatmap of t to w.
func (gp *GridPlotter) Render(w io.Writer, t pipeline.Tick) error {
	p, err := gp.Plot(t)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(5*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save writes the heatmap of t to the output directory and returns the
// path, pruning the oldest snapshots beyond Keep.
func (gp *GridPlotter) Save(t pipeline.Tick) (string, error) {
	path := filepath.Join(gp.outputDir, fmt.Sprintf("tick_%08d.png", t.Seq))
	f, err := gp.FS.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := gp.Render(f, t); err != nil {
		f.Close()
		gp.FS.Remove(path)
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	gp.saved++
	gp.files = append(gp.files, path)

	for gp.Keep > 0 && len(gp.files) > gp.Keep {
		old := gp.files[0]
		gp.files = gp.files[1:]
		if err := gp.FS.Remove(old); err != nil {
			gp.errLog.Logf("monitor: failed to prune %s: %v", old, err)
		}
	}
	return path, nil
}

// Saved returns how many snapshots were written.
func (gp *GridPlotter) Saved() int { return gp.saved }

// Observe implements pipeline.Observer, saving every Every-th tick.
func (gp *GridPlotter) Observe(t pipeline.Tick) {
	if gp.outputDir == "" || t.Seq%gp.every != 0 {
		return
	}
	if _, err := gp.Save(t); err != nil {
		gp.errLog.Logf("monitor: %v", err)
	}
}
