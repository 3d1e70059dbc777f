package dataset

import (
	"testing"

	"github.com/banshee-data/confinement/internal/confinement"
	"github.com/banshee-data/confinement/internal/fsutil"
	"github.com/banshee-data/confinement/internal/geom"
	"github.com/banshee-data/confinement/internal/movingwindow"
	"github.com/banshee-data/confinement/internal/network"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func networkFC() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	a := geojson.NewFeature(orb.LineString{{0, 0}, {50, 0}})
	a.Properties["RouteID"] = 3
	a.Properties["Name"] = "upper"
	b := geojson.NewFeature(orb.MultiLineString{{{50, 0}, {80, 0}}, {{80, 0}, {100, 0}}})
	b.Properties["RouteID"] = "3"
	fc.Append(a)
	fc.Append(b)
	return fc
}

func TestWriteReadRoundTrip(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, Write(fsys, "/p/Inputs/network.geojson", networkFC()))

	fc, err := Read(fsys, "/p/Inputs/network.geojson")
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	reaches, err := Reaches(fc, "RouteID")
	require.NoError(t, err)
	require.Len(t, reaches, 3)
	assert.Equal(t, int64(3), reaches[2].RouteID)
	assert.Equal(t, 1, reaches[2].Index, "parts keep their feature index")
	assert.Equal(t, "upper", reaches[0].Attrs["Name"])

	_, err = Read(fsys, "/p/missing.geojson")
	assert.Error(t, err)
}

func TestContracts(t *testing.T) {
	tests := []struct {
		name    string
		fc      func() *geojson.FeatureCollection
		check   func(*geojson.FeatureCollection) error
		wantErr error
	}{
		{
			name: "missing route field",
			fc:   networkFC,
			check: func(fc *geojson.FeatureCollection) error {
				_, err := Reaches(fc, "StreamID")
				return err
			},
			wantErr: ErrMissingField,
		},
		{
			name: "lines given as polygons",
			fc:   networkFC,
			check: func(fc *geojson.FeatureCollection) error {
				_, err := Polygons(fc, "valley bottom")
				return err
			},
			wantErr: ErrGeometryType,
		},
		{
			name: "state without flags",
			fc:   networkFC,
			check: func(fc *geojson.FeatureCollection) error {
				_, _, err := StateLines(fc, DefaultFields())
				return err
			},
			wantErr: ErrMissingField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.check(tt.fc()), tt.wantErr)
		})
	}
}

func TestPolygons(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}))
	fc.Append(geojson.NewFeature(orb.MultiPolygon{{{{5, 5}, {6, 5}, {6, 6}, {5, 5}}}, {{{8, 8}, {9, 8}, {9, 9}, {8, 8}}}}))

	mp, err := Polygons(fc, "channel")
	require.NoError(t, err)
	assert.Len(t, mp, 3)
}

func TestSegmentsFeedStateLines(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	reaches := []network.Reach{{Index: 0, RouteID: 7, Line: orb.LineString{{0, 0}, {100, 0}}, Attrs: map[string]interface{}{"Name": "main"}}}
	segs := []confinement.Segment{
		{ID: 1, RouteID: 7, Reach: 0, Interval: geom.Interval{From: 0, To: 40}, Line: orb.LineString{{0, 0}, {40, 0}},
			Left: confinement.Confirmed, Right: confinement.Confirmed, Type: confinement.ConBoth},
		{ID: 2, RouteID: 7, Reach: 0, Interval: geom.Interval{From: 40, To: 100}, Line: orb.LineString{{40, 0}, {100, 0}},
			Left: confinement.Unconfirmed, Type: confinement.ConNone},
	}
	fields := DefaultFields()
	require.NoError(t, Write(fsys, "/p/state.geojson", Segments(segs, reaches, fields)))

	fc, err := Read(fsys, "/p/state.geojson")
	require.NoError(t, err)
	props := fc.Features[0].Properties
	assert.Equal(t, "BOTH", props[FieldConType])
	assert.Equal(t, "main", props["Name"])
	assert.EqualValues(t, 1, props[FieldConLeft])
	assert.EqualValues(t, 1, props[FieldConRight])
	second := fc.Features[1].Properties
	require.Contains(t, second, FieldConLeft)
	assert.Nil(t, second[FieldConLeft], "unconfirmed is written as null")
	assert.EqualValues(t, 0, second[FieldConRight], "no margin is written as 0")

	got, states, err := StateLines(fc, fields)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[0].RouteID)
	assert.Equal(t, []confinement.State{{Confined: true, Constricted: true}, {}}, states)
}

func TestSeedsPivotColumns(t *testing.T) {
	seeds := []movingwindow.Seed{{
		ID: 1, RouteID: 2, Measure: 50, Point: orb.Point{50, 0},
		Confinement:  map[float64]float64{100: 0.5},
		Constriction: map[float64]float64{100: 0.25},
	}}
	fc := Seeds(seeds, []float64{100, 250}, DefaultFields())
	props := fc.Features[0].Properties
	assert.Equal(t, 0.5, props["CONF_100"])
	assert.Equal(t, 0.25, props["CNST_100"])
	v, ok := props["CONF_250"]
	assert.True(t, ok)
	assert.Nil(t, v, "missing window is null, not dropped")
}

func TestPropertyReaders(t *testing.T) {
	props := geojson.Properties{"f": 3.0, "s": " 12 ", "b": true, "frac": 2.5, "n": nil}

	n, err := Int(props, "f")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = Int(props, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	ok, err := Flag(props, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Int(props, "frac")
	assert.Error(t, err)

	_, err = Int(props, "absent")
	assert.ErrorIs(t, err, ErrMissingField)

	s, err := Text(props, "f")
	require.NoError(t, err)
	assert.Equal(t, "3", s)
}

func TestCustomRatiosKeepsEveryLine(t *testing.T) {
	fields := DefaultFields()
	fc := geojson.NewFeatureCollection()
	for _, l := range []struct {
		seg, name string
		line      orb.LineString
		confined  int
	}{
		{"A", "upper", orb.LineString{{0, 0}, {30, 0}}, 1},
		{"A", "lower", orb.LineString{{30, 0}, {40, 0}}, 0},
		{"B", "tail", orb.LineString{{40, 0}, {100, 0}}, 0},
	} {
		f := geojson.NewFeature(l.line)
		f.Properties[fields.SegmentID] = l.seg
		f.Properties[fields.Confinement] = l.confined
		f.Properties[fields.Constriction] = 0
		f.Properties["Name"] = l.name
		fc.Append(f)
	}
	lines, err := AttributedLines(fc, fields)
	require.NoError(t, err)

	ratios := []confinement.Ratio{
		{Key: "A", Length: 40, Confinement: 0.75},
		{Key: "B", Length: 60},
	}
	out := CustomRatios(lines, ratios, fields)
	require.Len(t, out.Features, 3)

	tests := []struct {
		name string
		conf float64
		line orb.LineString
	}{
		{"upper", 0.75, orb.LineString{{0, 0}, {30, 0}}},
		{"lower", 0.75, orb.LineString{{30, 0}, {40, 0}}},
		{"tail", 0, orb.LineString{{40, 0}, {100, 0}}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feat := out.Features[i]
			assert.Equal(t, tt.line, feat.Geometry)
			assert.Equal(t, tt.name, feat.Properties["Name"])
			assert.Contains(t, feat.Properties, fields.Confinement)
			assert.InDelta(t, tt.conf, feat.Properties[FieldConfValue], 1e-12)
			assert.Contains(t, feat.Properties, FieldConstrValue)
		})
	}
}
