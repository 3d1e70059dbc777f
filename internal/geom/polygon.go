package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type location int

const (
	exterior location = iota
	onBoundary
	interior
)

// SignedArea returns the shoelace area of r, positive when r is
// counter-clockwise.
func SignedArea(r orb.Ring) float64 {
	sum := 0.0
	for i := 1; i < len(r); i++ {
		sum += cross(r[i-1], r[i])
	}
	if len(r) > 0 && !r[0].Equal(r[len(r)-1]) {
		sum += cross(r[len(r)-1], r[0])
	}
	return sum / 2
}

// Area returns the area of p with holes removed.
func Area(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	a := math.Abs(SignedArea(p[0]))
	for _, h := range p[1:] {
		a -= math.Abs(SignedArea(h))
	}
	return a
}

// MultiArea returns the summed area of mp.
func MultiArea(mp orb.MultiPolygon) float64 {
	a := 0.0
	for _, p := range mp {
		a += Area(p)
	}
	return a
}

// Orient returns a copy of mp with closed rings, counter-clockwise shells
// and clockwise holes. Rings with no area are dropped, as are polygons
// whose shell has none.
func Orient(mp orb.MultiPolygon) orb.MultiPolygon {
	var out orb.MultiPolygon
	for _, p := range mp {
		var np orb.Polygon
		for i, r := range p {
			r = closeRing(r)
			a := SignedArea(r)
			if len(r) < 4 || a == 0 {
				if i == 0 {
					break
				}
				continue
			}
			if (i == 0) != (a > 0) {
				r = orb.Ring(Reverse(orb.LineString(r)))
			}
			np = append(np, r)
		}
		if len(np) > 0 {
			out = append(out, np)
		}
	}
	return out
}

func closeRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r)+1)
	for _, p := range r {
		out = orb.Ring(appendDistinct(orb.LineString(out), p))
	}
	if len(out) > 0 && !out[0].Equal(out[len(out)-1]) {
		out = append(out, out[0])
	}
	return out
}

// Boundary returns every ring of mp as a closed polyline.
func Boundary(mp orb.MultiPolygon) orb.MultiLineString {
	var out orb.MultiLineString
	for _, p := range mp {
		for _, r := range p {
			out = append(out, orb.LineString(closeRing(r)))
		}
	}
	return out
}

// DistanceToBoundary returns the distance from pt to the nearest ring of mp.
func DistanceToBoundary(mp orb.MultiPolygon, pt orb.Point) float64 {
	d := math.Inf(1)
	for _, ls := range Boundary(mp) {
		d = math.Min(d, DistanceToLine(ls, pt))
	}
	return d
}

// locatePoint classifies pt against mp, treating points within eps of a
// ring as on the boundary.
func locatePoint(mp orb.MultiPolygon, bound orb.Bound, pt orb.Point, eps float64) location {
	if !bound.Pad(eps).Contains(pt) {
		return exterior
	}
	for _, p := range mp {
		for _, r := range p {
			if DistanceToLine(orb.LineString(r), pt) <= eps {
				return onBoundary
			}
		}
	}
	if planar.MultiPolygonContains(mp, pt) {
		return interior
	}
	return exterior
}

// Contains reports whether pt lies strictly inside mp, more than eps away
// from its boundary.
func Contains(mp orb.MultiPolygon, pt orb.Point, eps float64) bool {
	return locatePoint(mp, mp.Bound(), pt, eps) == interior
}

func cross(a, b orb.Point) float64 { return a[0]*b[1] - a[1]*b[0] }
