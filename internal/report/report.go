package report

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/banshee-data/confinement/internal/fsutil"
	"github.com/banshee-data/confinement/internal/monitoring"
	"github.com/banshee-data/confinement/internal/movingwindow"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var logf = monitoring.Stage("report")

// Profile is the ratio series of one route for one window size, ordered by
// seed position.
type Profile struct {
	RouteID      int64
	Size         float64
	Measures     []float64
	Confinement  []float64
	Constriction []float64
}

// Profiles groups the windows of a result by route and size. Seeds without
// a window for a size are absent from that size's profile.
func Profiles(res movingwindow.Result) []Profile {
	measure := make(map[[2]int64]float64, len(res.Seeds))
	for _, s := range res.Seeds {
		measure[[2]int64{s.RouteID, int64(s.ID)}] = s.Measure
	}

	type key struct {
		route int64
		size  float64
	}
	byKey := map[key]*Profile{}
	var keys []key
	windows := append([]movingwindow.Window(nil), res.Windows...)
	sort.SliceStable(windows, func(i, j int) bool {
		return measure[[2]int64{windows[i].RouteID, int64(windows[i].SeedID)}] <
			measure[[2]int64{windows[j].RouteID, int64(windows[j].SeedID)}]
	})
	for _, w := range windows {
		k := key{w.RouteID, w.Size}
		p, ok := byKey[k]
		if !ok {
			p = &Profile{RouteID: w.RouteID, Size: w.Size}
			byKey[k] = p
			keys = append(keys, k)
		}
		p.Measures = append(p.Measures, measure[[2]int64{w.RouteID, int64(w.SeedID)}])
		p.Confinement = append(p.Confinement, w.Confinement)
		p.Constriction = append(p.Constriction, w.Constriction)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].route != keys[j].route {
			return keys[i].route < keys[j].route
		}
		return keys[i].size < keys[j].size
	})
	out := make([]Profile, len(keys))
	for i, k := range keys {
		out[i] = *byKey[k]
	}
	return out
}

// Summary holds the distribution of a profile's ratios.
type Summary struct {
	RouteID          int64
	Size             float64
	Count            int
	MeanConfinement  float64
	StdConfinement   float64
	MeanConstriction float64
	StdConstriction  float64
}

// Summarize computes one Summary per profile. The standard deviation of a
// single value is zero.
func Summarize(profiles []Profile) []Summary {
	out := make([]Summary, 0, len(profiles))
	for _, p := range profiles {
		s := Summary{RouteID: p.RouteID, Size: p.Size, Count: len(p.Measures)}
		if s.Count > 0 {
			s.MeanConfinement, s.StdConfinement = meanStd(p.Confinement)
			s.MeanConstriction, s.StdConstriction = meanStd(p.Constriction)
		}
		out = append(out, s)
	}
	return out
}

func meanStd(x []float64) (float64, float64) {
	if len(x) == 1 {
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}

// Write renders the PNG profiles and the HTML page into dir and returns the
// written paths.
func Write(fsys fsutil.FileSystem, dir, title string, res movingwindow.Result) ([]string, error) {
	profiles := Profiles(res)
	if len(profiles) == 0 {
		logf("no windows to report")
		return nil, nil
	}
	var written []string

	for _, route := range routes(profiles) {
		data, err := RoutePNG(route, profiles)
		if err != nil {
			return written, fmt.Errorf("route %d profile: %w", route, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("route_%d_profile.png", route))
		if err := fsys.WriteFile(path, data, 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	var buf bytes.Buffer
	if err := RenderHTML(&buf, title, profiles); err != nil {
		return written, fmt.Errorf("html report: %w", err)
	}
	path := filepath.Join(dir, "profiles.html")
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return written, err
	}
	written = append(written, path)

	for _, s := range Summarize(profiles) {
		logf("route %d window %v: %d seeds, confinement %.3f±%.3f, constriction %.3f±%.3f",
			s.RouteID, s.Size, s.Count, s.MeanConfinement, s.StdConfinement, s.MeanConstriction, s.StdConstriction)
	}
	return written, nil
}

func routes(profiles []Profile) []int64 {
	var out []int64
	for _, p := range profiles {
		if len(out) == 0 || out[len(out)-1] != p.RouteID {
			out = append(out, p.RouteID)
		}
	}
	return out
}

// RoutePNG draws the confinement (solid) and constriction (dashed) profile
// of every window size on one route.
func RoutePNG(route int64, profiles []Profile) ([]byte, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Route %d - Confinement Profile", route)
	p.X.Label.Text = "Distance along route (m)"
	p.Y.Label.Text = "Ratio"
	p.Y.Min = 0
	p.Y.Max = 1

	i := 0
	for _, prof := range profiles {
		if prof.RouteID != route {
			continue
		}
		conf, err := plotter.NewLine(xys(prof.Measures, prof.Confinement))
		if err != nil {
			return nil, err
		}
		conf.Color = plotutil.Color(i)
		conf.Width = vg.Points(1)
		p.Add(conf)
		p.Legend.Add(fmt.Sprintf("%s%v", movingwindow.ConfinementPrefix, prof.Size), conf)

		cnst, err := plotter.NewLine(xys(prof.Measures, prof.Constriction))
		if err != nil {
			return nil, err
		}
		cnst.Color = plotutil.Color(i)
		cnst.Width = vg.Points(1)
		cnst.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(cnst)
		p.Legend.Add(fmt.Sprintf("%s%v", movingwindow.ConstrictionPrefix, prof.Size), cnst)
		i++
	}
	if i == 0 {
		return nil, fmt.Errorf("no profile for route %d", route)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	w, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i] = plotter.XY{X: x[i], Y: y[i]}
	}
	return pts
}

// RenderHTML writes one page with a line chart per route.
func RenderHTML(w io.Writer, title string, profiles []Profile) error {
	page := components.NewPage()
	page.PageTitle = title
	for _, route := range routes(profiles) {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
			charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Route %d", route), Subtitle: "confinement and constriction ratio by window size"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
			charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Distance (m)", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: 0, Max: 1, Name: "Ratio"}),
		)
		for _, prof := range profiles {
			if prof.RouteID != route {
				continue
			}
			line.AddSeries(movingwindow.ColumnName(movingwindow.ConfinementPrefix, prof.Size), lineData(prof.Measures, prof.Confinement))
			line.AddSeries(movingwindow.ColumnName(movingwindow.ConstrictionPrefix, prof.Size), lineData(prof.Measures, prof.Constriction),
				charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
		}
		page.AddCharts(line)
	}
	return page.Render(w)
}

func lineData(x, y []float64) []opts.LineData {
	out := make([]opts.LineData, len(x))
	for i := range x {
		out[i] = opts.LineData{Value: []interface{}{x[i], y[i]}}
	}
	return out
}
