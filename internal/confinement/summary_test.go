package confinement

import (
	"testing"

	"github.com/banshee-data/confinement/internal/geom"
	"github.com/banshee-data/confinement/internal/network"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatios(t *testing.T) {
	t.Parallel()
	pieces := []Piece{
		{Key: "10", Length: 30, State: State{Confined: true}},
		{Key: "2", Length: 25, State: State{Confined: true, Constricted: true}},
		{Key: "2", Length: 75},
		{Key: "10", Length: 10},
		{Key: "b", Length: 4},
		{Key: "a", Length: 0},
	}

	got := Ratios(pieces)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"2", "10", "a", "b"}, []string{got[0].Key, got[1].Key, got[2].Key, got[3].Key})

	assert.InDelta(t, 100, got[0].Length, 1e-12)
	assert.InDelta(t, 0.25, got[0].Confinement, 1e-12)
	assert.InDelta(t, 0.25, got[0].Constriction, 1e-12)

	assert.InDelta(t, 0.75, got[1].Confinement, 1e-12)
	assert.Zero(t, got[1].Constriction)

	// Zero-length units report zero rather than NaN.
	assert.Zero(t, got[2].Confinement)
}

func TestCollect(t *testing.T) {
	t.Parallel()
	segs := []Segment{
		{RouteID: 1, Line: orb.LineString{{0, 0}, {40, 0}}, Type: ConNone},
		{RouteID: 1, Line: orb.LineString{{40, 0}, {70, 0}}, Type: ConBoth},
		{RouteID: 1, Line: orb.LineString{{70, 0}, {100, 0}}, Type: ConLeft},
	}
	reaches, states := SegmentReaches(segs)
	routes := network.Dissolve(reaches, network.ScopeRoute, geom.Epsilon)
	require.Len(t, routes, 1)

	pieces := Collect(routes[0], states, geom.Interval{From: 20, To: 80}, "w")
	require.Len(t, pieces, 3)
	r := Ratios(pieces)[0]
	assert.InDelta(t, 60, r.Length, 1e-9)
	assert.InDelta(t, 40.0/60, r.Confinement, 1e-9)
	assert.InDelta(t, 30.0/60, r.Constriction, 1e-9)
}
