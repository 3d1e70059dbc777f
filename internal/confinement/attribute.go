package confinement

import (
	"context"
	"fmt"

	"github.com/banshee-data/confinement/internal/geom"
	"github.com/banshee-data/confinement/internal/monitoring"
	"github.com/banshee-data/confinement/internal/network"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// NearPoint is the centerline point nearest to a margin-segment end point.
// Origin is the ID of the margin segment it came from.
type NearPoint struct {
	Route   int
	Measure float64
	Point   orb.Point
	Origin  int
}

// piece is one interval of a single-side segmentation of a route.
type piece struct {
	geom.Interval
	line orb.LineString
	flag SideFlag
}

// sideState is the segmentation of every route for one bank.
type sideState struct {
	side   Side
	pieces [][]piece
	near   []NearPoint
}

// Attribution is the output of the confinement attributor.
type Attribution struct {
	Segments []Segment
	// Near holds the transfer points per side, kept for inspection.
	Near map[Side][]NearPoint
}

// Attribute transfers the margin segments onto the dissolved routes and
// returns the centerline cut into segments carrying per-bank flags and the
// derived Con_Type. reaches are the reaches the routes were dissolved from;
// every segment records the input index of the reach it lies on.
//
// The two banks are processed concurrently. ctx is checked between routes.
func Attribute(ctx context.Context, routes []network.Route, reaches []network.Reach, segs []MarginSegment, p Params) (*Attribution, error) {
	logf := monitoring.Stage("attribute")

	bySide := map[Side][]MarginSegment{}
	for _, s := range segs {
		bySide[s.Side] = append(bySide[s.Side], s)
	}

	var left, right *sideState
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		left, err = transfer(gctx, routes, bySide[SideLeft], SideLeft, p)
		return err
	})
	g.Go(func() error {
		var err error
		right, err = transfer(gctx, routes, bySide[SideRight], SideRight, p)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Attribution{Near: map[Side][]NearPoint{SideLeft: left.near, SideRight: right.near}}
	for ri, r := range routes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var cuts []float64
		for _, pc := range left.pieces[ri] {
			cuts = append(cuts, pc.From, pc.To)
		}
		for _, pc := range right.pieces[ri] {
			cuts = append(cuts, pc.From, pc.To)
		}
		cuts = append(cuts, r.Breaks()...)

		for _, iv := range geom.Partition(r.Length(), cuts, p.SplitTolerance) {
			mid := iv.Mid()
			seg := Segment{
				ID:       len(out.Segments) + 1,
				RouteID:  r.RouteID,
				Route:    ri,
				Interval: iv,
				Line:     geom.Substring(r.Line, iv.From, iv.To),
				Left:     flagAt(left.pieces[ri], mid),
				Right:    flagAt(right.pieces[ri], mid),
			}
			if len(r.Members) > 0 {
				seg.Reach = reaches[r.Members[r.MemberAt(mid)].Reach].Index
			}
			seg.Type = ConTypeOf(seg.Left.Confined(), seg.Right.Confined())
			out.Segments = append(out.Segments, seg)
		}
	}

	counts := map[ConType]int{}
	for _, s := range out.Segments {
		counts[s.Type]++
	}
	logf("%d segments: none=%d left=%d right=%d both=%d", len(out.Segments),
		counts[ConNone], counts[ConLeft], counts[ConRight], counts[ConBoth])
	return out, nil
}

func flagAt(pieces []piece, m float64) SideFlag {
	for _, pc := range pieces {
		if m >= pc.From && m <= pc.To {
			return pc.flag
		}
	}
	return NotApplicable
}

// transfer builds the segmentation of every route for one bank. Routes are
// cut at the centerline points nearest to the end points of every margin
// segment, pieces holding the centerline point nearest to a segment's
// midpoint are flagged, and the correction pass runs over the result.
func transfer(ctx context.Context, routes []network.Route, segs []MarginSegment, side Side, p Params) (*sideState, error) {
	st := &sideState{side: side, pieces: make([][]piece, len(routes))}
	if len(routes) == 0 {
		return st, nil
	}

	cuts := make([][]float64, len(routes))
	for _, s := range segs {
		for _, end := range []orb.Point{s.Line[0], s.Line[len(s.Line)-1]} {
			ri, m, _ := network.Nearest(routes, end)
			st.near = append(st.near, NearPoint{
				Route:   ri,
				Measure: m,
				Point:   geom.PointAt(routes[ri].Line, m),
				Origin:  s.ID,
			})
			cuts[ri] = append(cuts[ri], m)
		}
	}

	for ri, r := range routes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, iv := range geom.Partition(r.Length(), cuts[ri], p.SplitTolerance) {
			st.pieces[ri] = append(st.pieces[ri], piece{
				Interval: iv,
				line:     geom.Substring(r.Line, iv.From, iv.To),
			})
		}
	}

	for _, s := range segs {
		ri, m, _ := network.Nearest(routes, geom.Midpoint(s.Line))
		for i := range st.pieces[ri] {
			if st.pieces[ri][i].Contains(m, p.SplitTolerance) {
				st.pieces[ri][i].flag = Confirmed
			}
		}
	}

	corrected, err := correct(ctx, st, p.CorrectionRadius)
	if err != nil {
		return nil, err
	}
	st.pieces = corrected

	monitoring.Stage("attribute")("%s: %d margin segments, %d near points", side, len(segs), len(st.near))
	return st, nil
}

// correct applies the correction pass and returns a new segmentation. For
// every piece the near points within radius are collected. A piece touched
// by exactly one point sits at a route end and keeps its flag, as does a
// piece touched by none. Otherwise, if the points come from exactly two
// distinct margin segments the piece lies between two margins and its flag
// becomes Unconfirmed; in every other case it becomes Confirmed.
//
// Each piece is judged against the original near points only, never against
// another piece's corrected flag.
func correct(ctx context.Context, st *sideState, radius float64) ([][]piece, error) {
	out := make([][]piece, len(st.pieces))
	for ri, pieces := range st.pieces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[ri] = make([]piece, len(pieces))
		for i, pc := range pieces {
			out[ri][i] = pc
			bound := pc.line.Bound().Pad(radius)

			hits := 0
			origins := map[int]struct{}{}
			for _, np := range st.near {
				if !bound.Contains(np.Point) {
					continue
				}
				if geom.DistanceToLine(pc.line, np.Point) <= radius {
					hits++
					origins[np.Origin] = struct{}{}
				}
			}
			switch {
			case hits <= 1:
			case len(origins) == 2:
				out[ri][i].flag = Unconfirmed
			default:
				out[ri][i].flag = Confirmed
			}
		}
	}
	return out, nil
}

// Validate checks the invariants every attributed segment must satisfy.
func Validate(segs []Segment, routes []network.Route, tol float64) error {
	sums := make([]float64, len(routes))
	for _, s := range segs {
		if want := ConTypeOf(s.Left.Confined(), s.Right.Confined()); s.Type != want {
			return fmt.Errorf("segment %d: type %s does not match bank flags (%s)", s.ID, s.Type, want)
		}
		if s.Route >= 0 && s.Route < len(sums) {
			sums[s.Route] += s.Length()
		}
	}
	for i, r := range routes {
		if d := sums[i] - r.Length(); d > tol || d < -tol {
			return fmt.Errorf("route %d: segments sum to %.6f, route length %.6f", r.RouteID, sums[i], r.Length())
		}
	}
	return nil
}
