package geom

import (
	"fmt"

	"github.com/paulmach/orb"
	sf "github.com/peterstace/simplefeatures/geom"
)

func sfSequence(pts []orb.Point) sf.Sequence {
	coords := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		coords = append(coords, p[0], p[1])
	}
	return sf.NewSequence(coords, sf.DimXY)
}

// sfLine converts ls with repeated points removed.
func sfLine(ls orb.LineString) sf.LineString {
	var pts orb.LineString
	for _, p := range ls {
		pts = appendDistinct(pts, p)
	}
	return sf.NewLineString(sfSequence(pts))
}

func sfLines(lines []orb.LineString) sf.Geometry {
	out := make([]sf.LineString, 0, len(lines))
	for _, ls := range lines {
		out = append(out, sfLine(ls))
	}
	return sf.NewMultiLineString(out).AsGeometry()
}

// sfArea converts mp to a single areal geometry. Each polygon is validated
// on its own; overlapping or edge-sharing parts are dissolved.
func sfArea(mp orb.MultiPolygon) (sf.Geometry, error) {
	mp = Orient(mp)
	parts := make([]sf.Geometry, 0, len(mp))
	for i, p := range mp {
		rings := make([]sf.LineString, len(p))
		for j, r := range p {
			rings[j] = sfLine(orb.LineString(r))
		}
		poly := sf.NewPolygon(rings)
		if err := poly.Validate(); err != nil {
			return sf.Geometry{}, fmt.Errorf("polygon %d: %v: %w", i, err, ErrInvalidGeometry)
		}
		parts = append(parts, poly.AsGeometry())
	}
	switch len(parts) {
	case 0:
		return sf.Geometry{}, nil
	case 1:
		return parts[0], nil
	}
	g, err := sf.UnionMany(parts)
	if err != nil {
		return sf.Geometry{}, fmt.Errorf("dissolve polygons: %w", err)
	}
	return g, nil
}

func orbLine(ls sf.LineString) orb.LineString {
	seq := ls.Coordinates()
	out := make(orb.LineString, seq.Length())
	for i := range out {
		xy := seq.GetXY(i)
		out[i] = orb.Point{xy.X, xy.Y}
	}
	return out
}

// orbPolygons returns the polygonal parts of g, oriented. Lower dimensional
// parts are dropped. The result is never nil.
func orbPolygons(g sf.Geometry) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for _, part := range g.Dump() {
		poly, ok := part.AsPolygon()
		if !ok {
			continue
		}
		var p orb.Polygon
		for _, r := range poly.DumpRings() {
			p = append(p, orb.Ring(orbLine(r)))
		}
		mp = append(mp, p)
	}
	if mp = Orient(mp); mp == nil {
		return orb.MultiPolygon{}
	}
	return mp
}

// orbLines returns the linear parts of g.
func orbLines(g sf.Geometry) []orb.LineString {
	var out []orb.LineString
	for _, part := range g.Dump() {
		if ls, ok := part.AsLineString(); ok {
			out = append(out, orbLine(ls))
		}
	}
	return out
}
