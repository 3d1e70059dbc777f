package network

import (
	"testing"

	"github.com/banshee-data/confinement/internal/geom"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// y-shaped network: two tributaries (route 1 and 2) join route 3.
func yNetwork() []Reach {
	return []Reach{
		{Index: 0, RouteID: 1, Line: orb.LineString{{0, 10}, {10, 0}}},
		{Index: 1, RouteID: 2, Line: orb.LineString{{0, -10}, {10, 0}}},
		{Index: 2, RouteID: 3, Line: orb.LineString{{10, 0}, {30, 0}}},
		{Index: 3, RouteID: 3, Line: orb.LineString{{30, 0}, {50, 0}}},
	}
}

func TestDissolveChainsThroughDegreeTwoNodes(t *testing.T) {
	t.Parallel()
	routes := Dissolve(yNetwork(), ScopeNetwork, geom.Epsilon)
	require.Len(t, routes, 3)

	main := routes[2]
	assert.Equal(t, int64(3), main.RouteID)
	assert.Equal(t, orb.LineString{{10, 0}, {30, 0}, {50, 0}}, main.Line)
	want := []Member{
		{Reach: 2, Interval: geom.Interval{From: 0, To: 20}},
		{Reach: 3, Interval: geom.Interval{From: 20, To: 40}},
	}
	if diff := cmp.Diff(want, main.Members); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float64{20}, main.Breaks())
	assert.InDelta(t, 40, main.Length(), 1e-12)
	assert.Equal(t, 1, main.MemberAt(25))
	assert.Equal(t, 0, main.MemberAt(0))
}

func TestDissolveScope(t *testing.T) {
	t.Parallel()
	// A side branch with another RouteID joins at (30,0).
	reaches := append(yNetwork(), Reach{Index: 4, RouteID: 9, Line: orb.LineString{{30, 10}, {30, 0}}})

	network := Dissolve(reaches, ScopeNetwork, geom.Epsilon)
	var ids []int64
	for _, r := range network {
		ids = append(ids, r.RouteID)
	}
	assert.Equal(t, []int64{1, 2, 3, 3, 9}, ids, "junction at (30,0) splits route 3")

	perRoute := Dissolve(reaches, ScopeRoute, geom.Epsilon)
	ids = ids[:0]
	for _, r := range perRoute {
		ids = append(ids, r.RouteID)
	}
	assert.Equal(t, []int64{1, 2, 3, 9}, ids)
}

func TestDissolveLoop(t *testing.T) {
	t.Parallel()
	loop := []Reach{
		{RouteID: 1, Line: orb.LineString{{0, 0}, {10, 0}}},
		{RouteID: 1, Line: orb.LineString{{10, 0}, {10, 10}}},
		{RouteID: 1, Line: orb.LineString{{10, 10}, {0, 0}}},
	}
	routes := Dissolve(loop, ScopeNetwork, geom.Epsilon)
	require.Len(t, routes, 1)
	assert.Len(t, routes[0].Members, 3)
}

func TestDissolveNearEndpoints(t *testing.T) {
	t.Parallel()
	const tol = 0.01
	tests := []struct {
		name    string
		reaches []Reach
	}{
		{
			// Rounding to tol puts these ends in different cells.
			name: "straddling a cell edge",
			reaches: []Reach{
				{Index: 0, RouteID: 1, Line: orb.LineString{{0, 0}, {10.0049, 0}}},
				{Index: 1, RouteID: 1, Line: orb.LineString{{10.0051, 0}, {20, 0}}},
			},
		},
		{
			name: "gap below tolerance",
			reaches: []Reach{
				{Index: 0, RouteID: 1, Line: orb.LineString{{0, 0}, {10, 0}}},
				{Index: 1, RouteID: 1, Line: orb.LineString{{10.008, 0}, {15, 0}, {20, 0}}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routes := Dissolve(tt.reaches, ScopeNetwork, tol)
			require.Len(t, routes, 1)
			r := routes[0]
			require.Len(t, r.Members, 2)
			assert.Equal(t, 0.0, r.Members[0].Interval.From)
			assert.Equal(t, r.Members[0].Interval.To, r.Members[1].Interval.From)
			assert.InDelta(t, r.Length(), r.Members[1].Interval.To, 1e-12, "members cover the route line exactly")
			assert.InDelta(t, 20, r.Length(), 1e-12)

			// The break sits on the joint vertex of the route line.
			_, d := geom.Locate(r.Line, tt.reaches[0].Line[1])
			assert.InDelta(t, 0, d, 1e-12)
			assert.InDelta(t, geom.Length(tt.reaches[0].Line), r.Breaks()[0], 1e-12)

			assert.Equal(t, []orb.Point{{0, 0}, {20, 0}}, Dangles(tt.reaches, tol))
		})
	}
}

func TestDangles(t *testing.T) {
	t.Parallel()
	got := Dangles(yNetwork(), geom.Epsilon)
	assert.Equal(t, []orb.Point{{0, 10}, {0, -10}, {50, 0}}, got)
}

func TestOverlapsAndNearest(t *testing.T) {
	t.Parallel()
	routes := Dissolve(yNetwork(), ScopeNetwork, geom.Epsilon)
	main := routes[2]

	got := main.Overlaps(geom.Interval{From: 15, To: 30})
	assert.Equal(t, []Overlap{{Member: 0, Length: 5}, {Member: 1, Length: 10}}, got)

	idx, m, d := Nearest(routes, orb.Point{35, 2})
	assert.Equal(t, 2, idx)
	assert.InDelta(t, 25, m, 1e-12)
	assert.InDelta(t, 2, d, 1e-12)

	idx, _, _ = Nearest(nil, orb.Point{0, 0})
	assert.Equal(t, -1, idx)
}
