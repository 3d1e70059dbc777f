package movingwindow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"

	"github.com/banshee-data/confinement/internal/confinement"
	"github.com/banshee-data/confinement/internal/geom"
	"github.com/banshee-data/confinement/internal/monitoring"
	"github.com/banshee-data/confinement/internal/network"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// Column prefixes of the pivoted seed table.
const (
	ConfinementPrefix  = "CONF_"
	ConstrictionPrefix = "CNST_"
)

// Config holds the sampler parameters.
type Config struct {
	// SeedDistance is the spacing between seeds along a route.
	SeedDistance float64
	// Windows are the window sizes, in output order. The largest one
	// bounds seed placement.
	Windows []float64
	// LengthTolerance is how far a candidate window may be from the
	// requested size and still be accepted.
	LengthTolerance float64
	// SplitTolerance is the coincidence radius used when cutting routes.
	SplitTolerance float64
	// Workers bounds the number of routes sampled at once. Zero means
	// GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the sampler defaults.
func DefaultConfig() Config {
	return Config{
		SeedDistance:    50,
		Windows:         []float64{100},
		LengthTolerance: 10,
		SplitTolerance:  0.01,
	}
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	if c.SeedDistance <= 0 {
		return fmt.Errorf("seed distance must be positive, got %v", c.SeedDistance)
	}
	if len(c.Windows) == 0 {
		return errors.New("at least one window size is required")
	}
	for _, w := range c.Windows {
		if w <= 0 {
			return fmt.Errorf("window size must be positive, got %v", w)
		}
	}
	if c.LengthTolerance < 0 || c.SplitTolerance < 0 {
		return errors.New("tolerances must not be negative")
	}
	return nil
}

// MaxWindow returns the largest window size.
func (c Config) MaxWindow() float64 {
	m := 0.0
	for _, w := range c.Windows {
		m = math.Max(m, w)
	}
	return m
}

// Seed is a sampling point on a route. Confinement and Constriction hold
// the window ratios keyed by window size; a size is missing when no window
// could be cut for it.
type Seed struct {
	ID           int
	RouteID      int64
	Route        int
	Measure      float64
	Point        orb.Point
	Confinement  map[float64]float64
	Constriction map[float64]float64
}

// Columns returns the pivoted ratios of the seed, one CONF_ and one CNST_
// column per window size.
func (s Seed) Columns() map[string]float64 {
	out := make(map[string]float64, 2*len(s.Confinement))
	for size, v := range s.Confinement {
		out[ColumnName(ConfinementPrefix, size)] = v
	}
	for size, v := range s.Constriction {
		out[ColumnName(ConstrictionPrefix, size)] = v
	}
	return out
}

// ColumnName returns the pivot column for a prefix and window size, e.g.
// CONF_100 or CNST_62.5.
func ColumnName(prefix string, size float64) string {
	return prefix + strconv.FormatFloat(size, 'f', -1, 64)
}

// Window is the sub-polyline of a route around one seed for one size.
type Window struct {
	SeedID       int
	RouteID      int64
	Size         float64
	Interval     geom.Interval
	Line         orb.LineString
	Confinement  float64
	Constriction float64
}

// Endpoint is one of the two bounds of a requested window.
type Endpoint struct {
	SeedID  int
	RouteID int64
	Size    float64
	Point   orb.Point
}

// Warning reports a seed and window size for which no window was cut.
type Warning struct {
	SeedID  int
	RouteID int64
	Size    float64
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("route %d seed %d window %v: %s", w.RouteID, w.SeedID, w.Size, w.Message)
}

// Result is the output of Sample.
type Result struct {
	Seeds     []Seed
	Windows   []Window
	Endpoints []Endpoint
	Warnings  []Warning
}

// Seeds returns the seed measures on a route of the given length. The first
// seed sits at maxWindow/2 and seeds advance by distance while the largest
// window around them ends strictly before the route end.
func Seeds(length, distance, maxWindow float64) []float64 {
	if distance <= 0 {
		return nil
	}
	half := maxWindow / 2
	var out []float64
	for s := half; s+half < length; s += distance {
		out = append(out, s)
	}
	return out
}

type routeResult struct {
	windows   []Window
	endpoints []Endpoint
	warnings  []Warning
}

// Sample places seeds on every route and summarises the attributed network
// inside every window. routes must have been dissolved from attributed
// reaches whose states are given in states. Seed IDs run 1..N in route
// order.
func Sample(ctx context.Context, routes []network.Route, states []confinement.State, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logf := monitoring.Stage("window")
	maxWindow := cfg.MaxWindow()
	sizes := append([]float64(nil), cfg.Windows...)

	out := &Result{}
	seedsOf := make([][]int, len(routes))
	for ri, r := range routes {
		for _, m := range Seeds(r.Length(), cfg.SeedDistance, maxWindow) {
			seedsOf[ri] = append(seedsOf[ri], len(out.Seeds))
			out.Seeds = append(out.Seeds, Seed{
				ID:           len(out.Seeds) + 1,
				RouteID:      r.RouteID,
				Route:        ri,
				Measure:      m,
				Point:        geom.PointAt(r.Line, m),
				Confinement:  map[float64]float64{},
				Constriction: map[float64]float64{},
			})
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]routeResult, len(routes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for ri := range routes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := routes[ri]
			var res routeResult
			for _, si := range seedsOf[ri] {
				seed := &out.Seeds[si]
				for _, size := range sizes {
					from, to := seed.Measure-size/2, seed.Measure+size/2
					res.endpoints = append(res.endpoints,
						Endpoint{SeedID: seed.ID, RouteID: r.RouteID, Size: size, Point: geom.PointAt(r.Line, from)},
						Endpoint{SeedID: seed.ID, RouteID: r.RouteID, Size: size, Point: geom.PointAt(r.Line, to)},
					)
					iv, ok := selectWindow(r.Length(), seed.Measure, size, cfg)
					if !ok {
						res.warnings = append(res.warnings, Warning{
							SeedID: seed.ID, RouteID: r.RouteID, Size: size,
							Message: fmt.Sprintf("no piece within %v of the window size", cfg.LengthTolerance),
						})
						continue
					}
					w := Window{
						SeedID:   seed.ID,
						RouteID:  r.RouteID,
						Size:     size,
						Interval: iv,
						Line:     geom.Substring(r.Line, iv.From, iv.To),
					}
					if ratios := confinement.Ratios(confinement.Collect(r, states, iv, "")); len(ratios) > 0 {
						w.Confinement = ratios[0].Confinement
						w.Constriction = ratios[0].Constriction
					}
					// Each seed belongs to exactly one route, so only this
					// goroutine writes its maps.
					seed.Confinement[size] = w.Confinement
					seed.Constriction[size] = w.Constriction
					res.windows = append(res.windows, w)
				}
			}
			results[ri] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, res := range results {
		out.Windows = append(out.Windows, res.windows...)
		out.Endpoints = append(out.Endpoints, res.endpoints...)
		out.Warnings = append(out.Warnings, res.warnings...)
	}
	for _, w := range out.Warnings {
		logf("warning: %s", w)
	}
	logf("%d routes, %d seeds, %d windows over sizes %v, %d warnings",
		len(routes), len(out.Seeds), len(out.Windows), sizes, len(out.Warnings))
	return out, nil
}

// selectWindow cuts the route at both window bounds and picks, among the
// pieces whose length is within the tolerance of size, the one whose
// midpoint is closest to the seed.
func selectWindow(length, seed, size float64, cfg Config) (geom.Interval, bool) {
	pieces := geom.Partition(length, []float64{seed - size/2, seed + size/2}, cfg.SplitTolerance)
	candidates := pieces[:0:0]
	for _, pc := range pieces {
		if math.Abs(pc.Length()-size) < cfg.LengthTolerance {
			candidates = append(candidates, pc)
		}
	}
	if len(candidates) == 0 {
		return geom.Interval{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return math.Abs(candidates[i].Mid()-seed) < math.Abs(candidates[j].Mid()-seed)
	})
	return candidates[0], true
}
