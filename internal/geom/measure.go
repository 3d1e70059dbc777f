package geom

import (
	"errors"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Epsilon is the default noding tolerance in map units.
const Epsilon = 1e-6

var (
	// ErrInvalidGeometry is returned when an input cannot be processed,
	// for example a ring that does not close after noding.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrEmptyResult is returned by callers that require a non-empty
	// result from a primitive.
	ErrEmptyResult = errors.New("empty geometry result")
)

// Interval is a measure range [From, To] along a polyline.
type Interval struct {
	From float64
	To   float64
}

// Length returns To - From.
func (iv Interval) Length() float64 { return iv.To - iv.From }

// Mid returns the measure halfway along the interval.
func (iv Interval) Mid() float64 { return (iv.From + iv.To) / 2 }

// Contains reports whether m lies within the interval widened by tol.
func (iv Interval) Contains(m, tol float64) bool {
	return m >= iv.From-tol && m <= iv.To+tol
}

// Overlap returns the length shared by the two intervals.
func (iv Interval) Overlap(o Interval) float64 {
	lo := math.Max(iv.From, o.From)
	hi := math.Min(iv.To, o.To)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Length returns the planar length of ls.
func Length(ls orb.LineString) float64 {
	return planar.Length(ls)
}

// Measures returns the cumulative distance along ls at every vertex.
func Measures(ls orb.LineString) []float64 {
	m := make([]float64, len(ls))
	for i := 1; i < len(ls); i++ {
		m[i] = m[i-1] + planar.Distance(ls[i-1], ls[i])
	}
	return m
}

// PointAt returns the point at distance m along ls. Measures outside the
// line are clamped to its end points.
func PointAt(ls orb.LineString, m float64) orb.Point {
	if len(ls) == 0 {
		return orb.Point{}
	}
	if m <= 0 {
		return ls[0]
	}
	acc := 0.0
	for i := 1; i < len(ls); i++ {
		d := planar.Distance(ls[i-1], ls[i])
		if d > 0 && acc+d >= m {
			return lerp(ls[i-1], ls[i], (m-acc)/d)
		}
		acc += d
	}
	return ls[len(ls)-1]
}

// Locate projects p onto ls and returns the measure of the nearest point on
// the line together with the distance from p to it. The first of several
// equally near points wins.
func Locate(ls orb.LineString, p orb.Point) (measure, dist float64) {
	switch len(ls) {
	case 0:
		return 0, math.Inf(1)
	case 1:
		return 0, planar.Distance(ls[0], p)
	}
	dist = math.Inf(1)
	acc := 0.0
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		seg := planar.Distance(a, b)
		t := projectParam(a, b, p)
		if d := planar.Distance(p, lerp(a, b, t)); d < dist {
			dist = d
			measure = acc + t*seg
		}
		acc += seg
	}
	return measure, dist
}

// Substring returns the part of ls between the two measures.
func Substring(ls orb.LineString, from, to float64) orb.LineString {
	if from > to {
		from, to = to, from
	}
	total := Length(ls)
	from = clamp(from, 0, total)
	to = clamp(to, 0, total)

	out := orb.LineString{PointAt(ls, from)}
	acc := 0.0
	for i := 1; i < len(ls); i++ {
		acc += planar.Distance(ls[i-1], ls[i])
		if acc > from && acc < to {
			out = appendDistinct(out, ls[i])
		}
	}
	out = appendDistinct(out, PointAt(ls, to))
	if len(out) == 1 {
		out = append(out, out[0])
	}
	return out
}

// Partition cuts [0, total] at the given measures and returns the resulting
// intervals in order. Cuts within tol of an end or of a previous cut are
// merged into it, so every interval is longer than tol unless total is.
func Partition(total float64, cuts []float64, tol float64) []Interval {
	sorted := append([]float64(nil), cuts...)
	sort.Float64s(sorted)

	breaks := []float64{0}
	for _, c := range sorted {
		if c <= tol || c >= total-tol {
			continue
		}
		if c-breaks[len(breaks)-1] <= tol {
			continue
		}
		breaks = append(breaks, c)
	}
	breaks = append(breaks, total)

	out := make([]Interval, 0, len(breaks)-1)
	for i := 1; i < len(breaks); i++ {
		out = append(out, Interval{From: breaks[i-1], To: breaks[i]})
	}
	return out
}

// SplitAt cuts ls at the given measures. See Partition for the merging rule.
func SplitAt(ls orb.LineString, cuts []float64, tol float64) []orb.LineString {
	ivs := Partition(Length(ls), cuts, tol)
	out := make([]orb.LineString, len(ivs))
	for i, iv := range ivs {
		out[i] = Substring(ls, iv.From, iv.To)
	}
	return out
}

// Midpoint returns the point halfway along ls.
func Midpoint(ls orb.LineString) orb.Point {
	return PointAt(ls, Length(ls)/2)
}

// LeftPoint returns the point offset to the left of ls, measured square to
// the segment that holds the line's midpoint. It is the interior point of a
// one-sided left buffer of width 2*offset.
func LeftPoint(ls orb.LineString, offset float64) orb.Point {
	if len(ls) < 2 {
		return Midpoint(ls)
	}
	half := Length(ls) / 2
	acc := 0.0
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		d := planar.Distance(a, b)
		if d == 0 {
			continue
		}
		if acc+d >= half || i == len(ls)-1 {
			p := lerp(a, b, clamp((half-acc)/d, 0, 1))
			nx, ny := -(b[1]-a[1])/d, (b[0]-a[0])/d
			return orb.Point{p[0] + nx*offset, p[1] + ny*offset}
		}
		acc += d
	}
	return ls[0]
}

// DistanceToLine returns the distance from p to the nearest point of ls.
func DistanceToLine(ls orb.LineString, p orb.Point) float64 {
	if len(ls) == 1 {
		return planar.Distance(ls[0], p)
	}
	d := math.Inf(1)
	for i := 1; i < len(ls); i++ {
		d = math.Min(d, planar.DistanceFromSegment(ls[i-1], ls[i], p))
	}
	return d
}

// ClosestPoint returns the point on lines nearest to p and the distance to
// it.
func ClosestPoint(lines []orb.LineString, p orb.Point) (orb.Point, float64) {
	best, bestD := orb.Point{}, math.Inf(1)
	for _, ls := range lines {
		if m, d := Locate(ls, p); d < bestD {
			best, bestD = PointAt(ls, m), d
		}
	}
	return best, bestD
}

// BoundDistance returns the distance from p to the nearest point of b, zero
// when p is inside.
func BoundDistance(b orb.Bound, p orb.Point) float64 {
	dx := math.Max(0, math.Max(b.Min[0]-p[0], p[0]-b.Max[0]))
	dy := math.Max(0, math.Max(b.Min[1]-p[1], p[1]-b.Max[1]))
	return math.Hypot(dx, dy)
}

// Reverse returns a reversed copy of ls.
func Reverse(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}

func lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}

// projectParam returns the clamped parameter of the projection of p onto ab.
func projectParam(a, b, p orb.Point) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return 0
	}
	return clamp(((p[0]-a[0])*dx+(p[1]-a[1])*dy)/l2, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func appendDistinct(ls orb.LineString, p orb.Point) orb.LineString {
	if len(ls) > 0 && ls[len(ls)-1].Equal(p) {
		return ls
	}
	return append(ls, p)
}
