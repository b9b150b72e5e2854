package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/eyetrack/internal/httputil"
	"github.com/banshee-data/eyetrack/internal/tof"
)

// viridis is the colour ramp of the grid heatmap, near to far.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// AttachAdminRoutes mounts the monitor pages on the /debug/ mux.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux, gp *GridPlotter) {
	debug := tsweb.Debugger(mux)
	debug.Handle("state", "Latest tick as JSON", http.HandlerFunc(s.handleState))
	debug.Handle("grid", "Heatmap of the latest adjusted grid", http.HandlerFunc(s.handleGrid))
	if gp != nil {
		debug.Handle("grid.png", "PNG heatmap of the latest adjusted grid", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, ok := s.Latest()
			if !ok {
				httputil.NotFound(w, "no tick processed yet")
				return
			}
			var buf bytes.Buffer
			if err := gp.Render(&buf, t); err != nil {
				httputil.InternalServerError(w, fmt.Sprintf("failed to render grid: %v", err))
				return
			}
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(buf.Bytes())
		}))
	}
}

func (s *Store) handleState(w http.ResponseWriter, r *http.Request) {
	st, ok := s.Snapshot()
	if !ok {
		httputil.NotFound(w, "no tick processed yet")
		return
	}
	httputil.WriteJSONOK(w, st)
}

// handleGrid renders the adjusted grid as a scatter of square zones coloured
// by distance, with the focus point overlaid. Rejected and background zones
// are drawn at 0.
func (s *Store) handleGrid(w http.ResponseWriter, r *http.Request) {
	t, ok := s.Latest()
	if !ok {
		httputil.NotFound(w, "no tick processed yet")
		return
	}
	g := t.Adjusted
	size := g.Size

	zones := make([]opts.ScatterData, 0, len(g.Cells))
	for i, c := range g.Cells {
		x, y := g.XY(i)
		v := 0
		if c.Valid() {
			v = int(c)
		}
		zones = append(zones, opts.ScatterData{
			Value:  []interface{}{x, size - 1 - y, v, c.Class().String()},
			Symbol: "rect",
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Eye tracking grid", Theme: "dark", Width: "720px", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Adjusted grid", Subtitle: subtitle(t.Seq, t.State.String(), t.POI)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -0.5, Max: float64(size) - 0.5, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -0.5, Max: float64(size) - 0.5, Name: "Y (flipped)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(s.maxRangeMM),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("zones", zones, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 600 / size}))

	if t.POI.Valid() {
		focus := []opts.ScatterData{{
			Name:   "focus",
			Value:  []interface{}{t.POI.X, size - 1 - t.POI.Y, t.POI.DistanceMM, "focus"},
			Symbol: "pin",
		}}
		scatter.AddSeries("focus", focus, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 300 / size}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func subtitle(seq uint64, state string, poi tof.POI) string {
	if !poi.Valid() {
		return fmt.Sprintf("tick=%d state=%s focus=none", seq, state)
	}
	return fmt.Sprintf("tick=%d state=%s focus=(%d,%d) %dmm score=%d", seq, state, poi.X, poi.Y, poi.DistanceMM, poi.Score)
}
