package geom

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	sf "github.com/peterstace/simplefeatures/geom"
)

// Intersection returns the area common to a and b. Boundaries shared by
// both with the same interior side are kept; touching with opposite
// interiors produces no area. An empty result is not an error.
func Intersection(a, b orb.MultiPolygon, eps float64) (orb.MultiPolygon, error) {
	a, b = Orient(a), Orient(b)
	if len(a) == 0 || len(b) == 0 {
		return orb.MultiPolygon{}, nil
	}
	if !a.Bound().Pad(eps).Intersects(b.Bound()) {
		return orb.MultiPolygon{}, nil
	}
	ga, err := sfArea(a)
	if err != nil {
		return nil, err
	}
	gb, err := sfArea(b)
	if err != nil {
		return nil, err
	}
	g, err := sf.Intersection(ga, gb)
	if err != nil {
		return nil, fmt.Errorf("intersection: %w", err)
	}
	return orbPolygons(g), nil
}

// SharedBoundary returns the parts of the boundary of a that lie on the
// boundary of b, as single-part polylines following the ring order of a.
// A ring lying entirely on b's boundary is returned closed. Runs separated
// by less than eps are joined.
func SharedBoundary(a, b orb.MultiPolygon, eps float64) (orb.MultiLineString, error) {
	a, b = Orient(a), Orient(b)
	if len(a) == 0 || len(b) == 0 {
		return nil, nil
	}
	edgesB := sfLines(Boundary(b))
	boundB := b.Bound().Pad(eps)

	var out orb.MultiLineString
	for _, ring := range Boundary(a) {
		if !ring.Bound().Pad(eps).Intersects(boundB) {
			continue
		}
		common, err := sf.Intersection(sfLine(ring).AsGeometry(), edgesB)
		if err != nil {
			return nil, fmt.Errorf("shared boundary: %w", err)
		}
		ivs := spans(ring, orbLines(common), eps)
		if len(ivs) == 0 {
			continue
		}
		total := Length(ring)
		if len(ivs) == 1 && ivs[0].From <= eps && ivs[0].To >= total-eps {
			out = append(out, ring)
			continue
		}

		// A run crossing the first vertex of the ring comes back as two
		// intervals, one at each end.
		var wrapped orb.LineString
		first, last := ivs[0], ivs[len(ivs)-1]
		if len(ivs) > 1 && first.From <= eps && last.To >= total-eps {
			wrapped = Substring(ring, last.From, total)
			for _, p := range Substring(ring, 0, first.To) {
				wrapped = appendDistinct(wrapped, p)
			}
			ivs = ivs[1 : len(ivs)-1]
		}
		for _, iv := range ivs {
			out = append(out, Substring(ring, iv.From, iv.To))
		}
		if wrapped != nil {
			out = append(out, wrapped)
		}
	}
	return out, nil
}

// ClipLine returns the parts of ls strictly inside mp, in order along ls.
// Parts running along the boundary are excluded.
func ClipLine(ls orb.LineString, mp orb.MultiPolygon, eps float64) ([]orb.LineString, error) {
	mp = Orient(mp)
	if len(ls) < 2 || len(mp) == 0 {
		return nil, nil
	}
	area, err := sfArea(mp)
	if err != nil {
		return nil, err
	}
	inside, err := sf.Intersection(sfLine(ls).AsGeometry(), area)
	if err != nil {
		return nil, fmt.Errorf("clip line: %w", err)
	}
	var pieces []orb.LineString
	for _, piece := range orbLines(inside) {
		if Contains(mp, Midpoint(piece), eps) {
			pieces = append(pieces, piece)
		}
	}
	var out []orb.LineString
	for _, iv := range spans(ls, pieces, eps) {
		out = append(out, Substring(ls, iv.From, iv.To))
	}
	return out, nil
}

// Split cuts mp along the given lines and returns the pieces. Every cut
// segment removes a strip eps wide that runs eps/2 past both of its ends,
// so a cut ending on the boundary separates the pieces either side of it.
// A cut that stops inside mp only notches it.
func Split(mp orb.MultiPolygon, cuts []orb.LineString, eps float64) ([]orb.Polygon, error) {
	area, err := sfArea(mp)
	if err != nil {
		return nil, err
	}
	if area.IsEmpty() {
		return nil, nil
	}
	var strips []sf.Geometry
	for _, c := range cuts {
		for i := 1; i < len(c); i++ {
			if s, ok := strip(c[i-1], c[i], eps/2); ok {
				strips = append(strips, s)
			}
		}
	}
	if len(strips) == 0 {
		return []orb.Polygon(orbPolygons(area)), nil
	}
	knife, err := sf.UnionMany(strips)
	if err != nil {
		return nil, fmt.Errorf("split: merge cuts: %w", err)
	}
	pieces, err := sf.Difference(area, knife)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	return []orb.Polygon(orbPolygons(pieces)), nil
}

// strip returns the rectangle of half-width w around segment ab, extended by
// w past both ends. A zero-length segment has none.
func strip(a, b orb.Point, w float64) (sf.Geometry, bool) {
	d := planar.Distance(a, b)
	if d == 0 {
		return sf.Geometry{}, false
	}
	ux, uy := (b[0]-a[0])/d*w, (b[1]-a[1])/d*w
	ring := orb.LineString{
		{a[0] - ux + uy, a[1] - uy - ux},
		{b[0] + ux + uy, b[1] + uy - ux},
		{b[0] + ux - uy, b[1] + uy + ux},
		{a[0] - ux - uy, a[1] - uy + ux},
		{a[0] - ux + uy, a[1] - uy - ux},
	}
	return sf.NewPolygon([]sf.LineString{sfLine(ring)}).AsGeometry(), true
}

// spans maps pieces lying on base to measure intervals along it, sorted and
// merged where they meet within eps. Pieces no longer than eps are dropped.
func spans(base orb.LineString, pieces []orb.LineString, eps float64) []Interval {
	total := Length(base)
	ivs := make([]Interval, 0, len(pieces))
	for _, piece := range pieces {
		l := Length(piece)
		if l <= eps {
			continue
		}
		m, _ := Locate(base, PointAt(piece, l/2))
		ivs = append(ivs, Interval{From: clamp(m-l/2, 0, total), To: clamp(m+l/2, 0, total)})
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].From < ivs[j].From })

	var out []Interval
	for _, iv := range ivs {
		if n := len(out); n > 0 && iv.From-out[n-1].To <= eps {
			out[n-1].To = math.Max(out[n-1].To, iv.To)
			continue
		}
		out = append(out, iv)
	}
	return out
}
