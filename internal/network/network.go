package network

import (
	"math"
	"sort"

	"github.com/banshee-data/confinement/internal/geom"
	"github.com/paulmach/orb"
)

// Reach is one polyline of the input network, digitised in flow direction.
type Reach struct {
	// Index is the reach's position in the input dataset.
	Index   int
	RouteID int64
	Line    orb.LineString
	Attrs   map[string]interface{}
}

// Length returns the planar length of the reach.
func (r Reach) Length() float64 { return geom.Length(r.Line) }

// Member records the measure range a reach occupies on a route.
type Member struct {
	Reach    int
	Interval geom.Interval
}

// Route is a dissolved, junction-free polyline made of one or more reaches.
type Route struct {
	RouteID int64
	Line    orb.LineString
	Members []Member
}

// Length returns the planar length of the route.
func (r Route) Length() float64 { return geom.Length(r.Line) }

// Breaks returns the measures where one member hands over to the next.
func (r Route) Breaks() []float64 {
	if len(r.Members) < 2 {
		return nil
	}
	out := make([]float64, 0, len(r.Members)-1)
	for _, m := range r.Members[1:] {
		out = append(out, m.Interval.From)
	}
	return out
}

// MemberAt returns the index of the member covering measure m.
func (r Route) MemberAt(m float64) int {
	i := sort.Search(len(r.Members), func(i int) bool {
		return r.Members[i].Interval.To >= m
	})
	if i >= len(r.Members) {
		return len(r.Members) - 1
	}
	return i
}

// Overlap is the length of one member that falls inside a measure interval.
type Overlap struct {
	Member int
	Length float64
}

// Overlaps returns the members intersecting iv with their shared length.
func (r Route) Overlaps(iv geom.Interval) []Overlap {
	var out []Overlap
	for i, m := range r.Members {
		if m.Interval.From >= iv.To {
			break
		}
		if l := m.Interval.Overlap(iv); l > 0 {
			out = append(out, Overlap{Member: i, Length: l})
		}
	}
	return out
}

// Scope selects which reaches count towards a node's degree when deciding
// whether two reaches can be chained.
type Scope int

const (
	// ScopeNetwork counts every reach in the network, so routes never run
	// through a junction even when the other branch has another RouteID.
	ScopeNetwork Scope = iota
	// ScopeRoute counts only reaches sharing the RouteID.
	ScopeRoute
)

// endpoints snaps the first and last vertex of every reach with at least
// two vertices onto shared nodes, so end points within tol of each other
// compare equal. Nodes take the position of the first end point seen.
func endpoints(reaches []Reach, tol float64) map[int][2]orb.Point {
	if tol <= 0 {
		tol = geom.Epsilon
	}
	s := geom.NewSnapper(tol)
	out := make(map[int][2]orb.Point, len(reaches))
	for i, r := range reaches {
		if len(r.Line) < 2 {
			continue
		}
		out[i] = [2]orb.Point{s.Snap(r.Line[0]), s.Snap(r.Line[len(r.Line)-1])}
	}
	return out
}

func degrees(ends map[int][2]orb.Point, idx []int) map[orb.Point]int {
	deg := make(map[orb.Point]int)
	for _, i := range idx {
		deg[ends[i][0]]++
		deg[ends[i][1]]++
	}
	return deg
}

// Dissolve merges reaches sharing a RouteID into routes. Reaches are chained
// end to start wherever the shared node has degree two; every other node
// ends a route. End points closer than tol are the same node. Routes are
// returned ordered by RouteID, then by the input position of their first
// reach. Reaches with fewer than two vertices are skipped.
func Dissolve(reaches []Reach, scope Scope, tol float64) []Route {
	ends := endpoints(reaches, tol)
	groups := make(map[int64][]int)
	var all []int
	for i, r := range reaches {
		if _, ok := ends[i]; !ok {
			continue
		}
		groups[r.RouteID] = append(groups[r.RouteID], i)
		all = append(all, i)
	}
	ids := make([]int64, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	netDeg := degrees(ends, all)

	var routes []Route
	for _, id := range ids {
		members := groups[id]
		deg := netDeg
		if scope == ScopeRoute {
			deg = degrees(ends, members)
		}

		starts := make(map[orb.Point][]int)
		for _, i := range members {
			starts[ends[i][0]] = append(starts[ends[i][0]], i)
		}
		succ := make(map[int]int)
		hasPred := make(map[int]bool)
		for _, i := range members {
			end := ends[i][1]
			if deg[end] != 2 {
				continue
			}
			var next []int
			for _, j := range starts[end] {
				if j != i {
					next = append(next, j)
				}
			}
			if len(next) == 1 {
				succ[i] = next[0]
				hasPred[next[0]] = true
			}
		}

		visited := make(map[int]bool)
		walk := func(head int) {
			var chain []int
			for cur := head; !visited[cur]; {
				visited[cur] = true
				chain = append(chain, cur)
				nxt, ok := succ[cur]
				if !ok {
					break
				}
				cur = nxt
			}
			routes = append(routes, buildRoute(id, reaches, chain))
		}
		for _, i := range members {
			if !hasPred[i] && !visited[i] {
				walk(i)
			}
		}
		// Whatever is left belongs to closed loops.
		for _, i := range members {
			if !visited[i] {
				walk(i)
			}
		}
	}
	return routes
}

// buildRoute joins the chained reaches into one line. Each reach after the
// first drops its start vertex, which lies within tolerance of the end of
// the previous one. Member intervals are read off the measures of the
// joined line so they always add up to its length.
func buildRoute(id int64, reaches []Reach, chain []int) Route {
	r := Route{RouteID: id}
	last := make([]int, len(chain))
	for k, i := range chain {
		pts := reaches[i].Line
		if k > 0 {
			pts = pts[1:]
		}
		for _, p := range pts {
			if len(r.Line) > 0 && r.Line[len(r.Line)-1].Equal(p) {
				continue
			}
			r.Line = append(r.Line, p)
		}
		last[k] = len(r.Line) - 1
	}
	m := geom.Measures(r.Line)
	from := 0.0
	for k, i := range chain {
		to := m[last[k]]
		r.Members = append(r.Members, Member{Reach: i, Interval: geom.Interval{From: from, To: to}})
		from = to
	}
	return r
}

// Dangles returns the reach end points touched by no other reach, in input
// order.
func Dangles(reaches []Reach, tol float64) []orb.Point {
	ends := endpoints(reaches, tol)
	var idx []int
	for i := range reaches {
		if _, ok := ends[i]; ok {
			idx = append(idx, i)
		}
	}
	deg := degrees(ends, idx)
	var out []orb.Point
	for _, i := range idx {
		ls := reaches[i].Line
		if deg[ends[i][0]] == 1 {
			out = append(out, ls[0])
		}
		if deg[ends[i][1]] == 1 {
			out = append(out, ls[len(ls)-1])
		}
	}
	return out
}

// Lines returns the geometry of every route.
func Lines(routes []Route) []orb.LineString {
	out := make([]orb.LineString, len(routes))
	for i, r := range routes {
		out[i] = r.Line
	}
	return out
}

// Nearest finds the route and measure nearest to p. Ties go to the earlier
// route. It returns -1 when routes is empty.
func Nearest(routes []Route, p orb.Point) (route int, measure, dist float64) {
	route, dist = -1, math.Inf(1)
	for i, r := range routes {
		if geom.BoundDistance(r.Line.Bound(), p) > dist {
			continue
		}
		m, d := geom.Locate(r.Line, p)
		if d < dist {
			route, measure, dist = i, m, d
		}
	}
	return route, measure, dist
}
