package geom

import (
	"math"
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func TestLinearReferencing(t *testing.T) {
	t.Parallel()
	ls := orb.LineString{{0, 0}, {10, 0}, {10, 10}}

	assert.Equal(t, []float64{0, 10, 20}, Measures(ls))
	assert.InDelta(t, 20, Length(ls), 1e-12)
	assert.Equal(t, orb.Point{10, 5}, PointAt(ls, 15))
	assert.Equal(t, orb.Point{0, 0}, PointAt(ls, -3))
	assert.Equal(t, orb.Point{10, 10}, PointAt(ls, 99))

	m, d := Locate(ls, orb.Point{12, 4})
	assert.InDelta(t, 14, m, 1e-12)
	assert.InDelta(t, 2, d, 1e-12)

	sub := Substring(ls, 5, 15)
	assert.Equal(t, orb.LineString{{5, 0}, {10, 0}, {10, 5}}, sub)
	assert.InDelta(t, 10, Length(sub), 1e-12)

	assert.Equal(t, orb.Point{5, 0}, Midpoint(orb.LineString{{0, 0}, {10, 0}}))
}

func TestPartition(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cuts []float64
		want []Interval
	}{
		{"no cuts", nil, []Interval{{0, 100}}},
		{"ends ignored", []float64{0, 0.005, 99.999, 100}, []Interval{{0, 100}}},
		{"near cuts merged", []float64{60, 20, 20.004}, []Interval{{0, 20}, {20, 60}, {60, 100}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Partition(100, tt.cuts, 0.01))
		})
	}

	total := 0.0
	for _, piece := range SplitAt(orb.LineString{{0, 0}, {30, 40}}, []float64{10, 25}, 0.01) {
		total += Length(piece)
	}
	assert.InDelta(t, 50, total, 1e-9)
}

func TestIntervalOverlap(t *testing.T) {
	t.Parallel()
	iv := Interval{From: 10, To: 30}
	assert.Equal(t, 20.0, iv.Length())
	assert.Equal(t, 20.0, iv.Mid())
	assert.Equal(t, 10.0, iv.Overlap(Interval{From: 20, To: 50}))
	assert.Equal(t, 0.0, iv.Overlap(Interval{From: 30, To: 50}))
	assert.True(t, iv.Contains(30.005, 0.01))
	assert.False(t, iv.Contains(31, 0.01))
}

func TestLeftPoint(t *testing.T) {
	t.Parallel()
	p := LeftPoint(orb.LineString{{0, 0}, {100, 0}}, 0.5)
	assert.InDelta(t, 50, p[0], 1e-12)
	assert.InDelta(t, 0.5, p[1], 1e-12)

	// Heading south, left is east.
	p = LeftPoint(orb.LineString{{0, 10}, {0, 0}}, 1)
	assert.InDelta(t, 1, p[0], 1e-12)
	assert.InDelta(t, 5, p[1], 1e-12)
}

func TestIntersection(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		a, b     orb.MultiPolygon
		wantArea float64
		wantN    int
	}{
		{
			name:     "overlapping squares",
			a:        orb.MultiPolygon{square(0, 0, 10, 10)},
			b:        orb.MultiPolygon{square(5, 0, 15, 10)},
			wantArea: 50,
			wantN:    1,
		},
		{
			name:     "contained",
			a:        orb.MultiPolygon{square(0, 0, 100, 15)},
			b:        orb.MultiPolygon{square(-50, -50, 150, 50)},
			wantArea: 1500,
			wantN:    1,
		},
		{
			name:     "shared edge same side",
			a:        orb.MultiPolygon{square(0, -5, 100, 10)},
			b:        orb.MultiPolygon{square(-50, -20, 150, 10)},
			wantArea: 1500,
			wantN:    1,
		},
		{
			name:     "touching only",
			a:        orb.MultiPolygon{square(0, 0, 10, 10)},
			b:        orb.MultiPolygon{square(10, 0, 20, 10)},
			wantArea: 0,
			wantN:    0,
		},
		{
			name:     "disjoint",
			a:        orb.MultiPolygon{square(0, 0, 10, 10)},
			b:        orb.MultiPolygon{square(50, 50, 60, 60)},
			wantArea: 0,
			wantN:    0,
		},
		{
			name: "clockwise input",
			a: orb.MultiPolygon{{{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}}}},
			b: orb.MultiPolygon{square(5, 5, 15, 15)},
			wantArea: 25,
			wantN:    1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Intersection(tt.a, tt.b, Epsilon)
			require.NoError(t, err)
			assert.Len(t, got, tt.wantN)
			assert.InDelta(t, tt.wantArea, MultiArea(got), 1e-9)
		})
	}
}

func TestIntersectionWithHole(t *testing.T) {
	t.Parallel()
	donut := orb.Polygon{
		{{0, 0}, {20, 0}, {20, 20}, {0, 20}, {0, 0}},
		{{5, 5}, {5, 15}, {15, 15}, {15, 5}, {5, 5}},
	}
	got, err := Intersection(orb.MultiPolygon{donut}, orb.MultiPolygon{square(-1, -1, 30, 30)}, Epsilon)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0], 2)
	assert.InDelta(t, 300, MultiArea(got), 1e-9)
}

func TestSharedBoundary(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		a, b    orb.MultiPolygon
		lengths []float64
	}{
		{
			name:    "single edge",
			a:       orb.MultiPolygon{square(0, -5, 100, 10)},
			b:       orb.MultiPolygon{square(-50, -20, 150, 10)},
			lengths: []float64{100},
		},
		{
			name:    "run wraps ring start",
			a:       orb.MultiPolygon{square(0, 0, 10, 10)},
			b:       orb.MultiPolygon{square(0, 0, 15, 15)},
			lengths: []float64{20},
		},
		{
			name:    "two runs",
			a:       orb.MultiPolygon{square(0, 0, 10, 10)},
			b:       orb.MultiPolygon{square(-5, 0, 15, 10)},
			lengths: []float64{10, 10},
		},
		{
			name:    "split edge rejoined",
			a:       orb.MultiPolygon{{{{0, 0}, {4, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}},
			b:       orb.MultiPolygon{square(-5, -5, 15, 0)},
			lengths: []float64{10},
		},
		{
			name:    "whole ring",
			a:       orb.MultiPolygon{square(0, 0, 10, 10)},
			b:       orb.MultiPolygon{square(0, 0, 10, 10)},
			lengths: []float64{40},
		},
		{
			name: "none",
			a:    orb.MultiPolygon{square(0, 0, 10, 10)},
			b:    orb.MultiPolygon{square(-5, -5, 15, 15)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SharedBoundary(tt.a, tt.b, Epsilon)
			require.NoError(t, err)
			require.Len(t, got, len(tt.lengths))
			for i, ls := range got {
				assert.InDelta(t, tt.lengths[i], Length(ls), 1e-9)
			}
		})
	}

	t.Run("wrapped run is continuous", func(t *testing.T) {
		got, err := SharedBoundary(orb.MultiPolygon{square(0, 0, 10, 10)}, orb.MultiPolygon{square(0, 0, 15, 15)}, Epsilon)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, orb.LineString{{0, 10}, {0, 0}, {10, 0}}, got[0])
	})
}

func TestClipLine(t *testing.T) {
	t.Parallel()
	mp := orb.MultiPolygon{square(0, 0, 10, 10)}
	tests := []struct {
		name string
		ls   orb.LineString
		want []orb.LineString
	}{
		{"crossing", orb.LineString{{-5, 5}, {15, 5}}, []orb.LineString{{{0, 5}, {10, 5}}}},
		{"outside", orb.LineString{{-5, 20}, {15, 20}}, nil},
		{"along boundary", orb.LineString{{-5, 0}, {15, 0}}, nil},
		{"leaves and returns", orb.LineString{{2, 5}, {2, 15}, {8, 15}, {8, 5}}, []orb.LineString{{{2, 5}, {2, 10}}, {{8, 10}, {8, 5}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClipLine(tt.ls, mp, Epsilon)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()
	sq := orb.MultiPolygon{square(0, 0, 10, 10)}
	donut := orb.MultiPolygon{{
		{{0, 0}, {20, 0}, {20, 20}, {0, 20}, {0, 0}},
		{{5, 5}, {5, 15}, {15, 15}, {15, 5}, {5, 5}},
	}}
	tests := []struct {
		name  string
		mp    orb.MultiPolygon
		cuts  []orb.LineString
		areas []float64
	}{
		{"no cuts", sq, nil, []float64{100}},
		{"cut in two", sq, []orb.LineString{{{5, 0}, {5, 10}}}, []float64{50, 50}},
		{"cut overshooting", sq, []orb.LineString{{{5, -1}, {5, 11}}}, []float64{50, 50}},
		{"dangle only notches", sq, []orb.LineString{{{5, 0}, {5, 4}}}, []float64{100}},
		{"through a hole", donut, []orb.LineString{{{10, 0}, {10, 5}}, {{10, 15}, {10, 20}}}, []float64{150, 150}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.mp, tt.cuts, Epsilon)
			require.NoError(t, err)
			require.Len(t, got, len(tt.areas))
			var areas []float64
			for _, p := range got {
				areas = append(areas, Area(p))
			}
			sort.Float64s(areas)
			assert.InDeltaSlice(t, tt.areas, areas, 1e-4)
		})
	}
}

func TestIntersectionRejectsSelfIntersectingRing(t *testing.T) {
	t.Parallel()
	bowtie := orb.MultiPolygon{{{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}}}
	_, err := Intersection(bowtie, orb.MultiPolygon{square(0, 0, 10, 10)}, Epsilon)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestSnapper(t *testing.T) {
	t.Parallel()
	s := NewSnapper(0.01)
	first := s.Snap(orb.Point{0.0099, 5})
	// Floor puts these in different cells; the neighbour scan still merges them.
	assert.Equal(t, first, s.Snap(orb.Point{0.0101, 5}))
	assert.Equal(t, orb.Point{0.5, 5}, s.Snap(orb.Point{0.5, 5}))
}

func TestOrient(t *testing.T) {
	t.Parallel()
	cw := orb.MultiPolygon{{{{0, 0}, {0, 10}, {10, 10}, {10, 0}}}}
	got := Orient(cw)
	require.Len(t, got, 1)
	assert.Greater(t, SignedArea(got[0][0]), 0.0)
	assert.True(t, got[0][0][0].Equal(got[0][0][len(got[0][0])-1]))

	assert.Empty(t, Orient(orb.MultiPolygon{{{{0, 0}, {1, 1}, {2, 2}, {0, 0}}}}))
	assert.False(t, math.IsNaN(DistanceToBoundary(got, orb.Point{5, 5})))
}
