package confinement

import (
	"fmt"
	"math"

	"github.com/banshee-data/confinement/internal/geom"
	"github.com/banshee-data/confinement/internal/monitoring"
	"github.com/banshee-data/confinement/internal/network"
	"github.com/paulmach/orb"
)

// Banks is the output of the bank-side classifier.
type Banks struct {
	// Polygons are the fragments of the confined channel polygon cut by
	// the centerline.
	Polygons []BankPolygon
	// Margins are copies of the input margins with Side set.
	Margins []Margin
	// Segments are the margins cut where the centerline meets the
	// channel boundary, numbered 1..N.
	Segments    []MarginSegment
	Diagnostics []Diagnostic
}

// ClassifyBanks cuts the confined channel polygon with the centerline and
// labels every fragment LEFT or RIGHT. A fragment is LEFT when it holds the
// interior point of the one-sided left buffer of some centerline piece.
// Dangles inside the polygon are joined to the nearest point of its
// boundary so the centerline cuts it completely.
//
// Margins are then cut at the points where the cutting lines meet them and
// each piece takes the side of the fragment nearest its midpoint.
func ClassifyBanks(ext *Extraction, routes []network.Route, dangles []orb.Point, p Params) (*Banks, error) {
	logf := monitoring.Stage("banks")
	boundary := []orb.LineString(geom.Boundary(ext.Confined))

	var cuts []orb.LineString
	var leftPoints []orb.Point
	for _, r := range routes {
		pieces, err := geom.ClipLine(r.Line, ext.Confined, p.Epsilon)
		if err != nil {
			return nil, fmt.Errorf("clip route %d: %w", r.RouteID, err)
		}
		for _, piece := range pieces {
			cuts = append(cuts, piece)
			leftPoints = append(leftPoints, geom.LeftPoint(piece, p.BankOffset/2))
		}
	}
	nearLines := 0
	for _, d := range dangles {
		if !geom.Contains(ext.Confined, d, p.Epsilon) {
			continue
		}
		q, _ := geom.ClosestPoint(boundary, d)
		cuts = append(cuts, orb.LineString{d, q})
		nearLines++
	}

	faces, err := geom.Split(ext.Confined, cuts, p.Epsilon)
	if err != nil {
		return nil, fmt.Errorf("split confined channel: %w", err)
	}

	out := &Banks{}
	for _, f := range faces {
		side := SideRight
		fm := orb.MultiPolygon{f}
		for _, lp := range leftPoints {
			if geom.Contains(fm, lp, p.Epsilon) {
				side = SideLeft
				break
			}
		}
		out.Polygons = append(out.Polygons, BankPolygon{Polygon: f, Side: side})
	}

	var cutPoints []orb.Point
	for _, c := range cuts {
		cutPoints = append(cutPoints, c[0], c[len(c)-1])
	}
	for _, m := range ext.Margins {
		var at []float64
		for _, cp := range cutPoints {
			if meas, d := geom.Locate(m.Line, cp); d <= p.SplitTolerance {
				at = append(at, meas)
			}
		}
		ivs := geom.Partition(m.Length, at, p.SplitTolerance)
		mid := m.Length / 2
		for _, iv := range ivs {
			piece := geom.Substring(m.Line, iv.From, iv.To)
			seg := MarginSegment{
				ID:       len(out.Segments) + 1,
				MarginID: m.ID,
				Line:     piece,
				Side:     nearestSide(out.Polygons, geom.Midpoint(piece)),
			}
			if seg.Side == SideUnknown {
				out.Diagnostics = append(out.Diagnostics,
					warnf("margin %d: no bank fragment near segment %d, side left unassigned", m.ID, seg.ID))
			}
			if iv.Contains(mid, 0) && m.Side == SideUnknown {
				m.Side = seg.Side
			}
			out.Segments = append(out.Segments, seg)
		}
		out.Margins = append(out.Margins, m)
	}

	left := 0
	for _, bp := range out.Polygons {
		if bp.Side == SideLeft {
			left++
		}
	}
	logf("%d fragments (%d left), %d cut lines incl. %d near lines, %d margin segments",
		len(out.Polygons), left, len(cuts), nearLines, len(out.Segments))
	return out, nil
}

func nearestSide(polys []BankPolygon, pt orb.Point) Side {
	side, best := SideUnknown, math.Inf(1)
	for _, bp := range polys {
		mp := orb.MultiPolygon{bp.Polygon}
		d := geom.DistanceToBoundary(mp, pt)
		if geom.Contains(mp, pt, 0) {
			d = 0
		}
		if d < best {
			side, best = bp.Side, d
		}
	}
	return side
}
