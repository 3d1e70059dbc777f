// Package testutil provides shared geometry fixtures for tests.
package testutil

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Rect returns the axis-aligned rectangle [x0,x1]x[y0,y1] as a
// counter-clockwise multipolygon.
func Rect(x0, y0, x1, y1 float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}}
}

// Scenario is a channel, a valley bottom and a centerline network.
type Scenario struct {
	Name    string
	Channel orb.MultiPolygon
	Valley  orb.MultiPolygon
	Network []orb.LineString
	// RouteIDs holds one route ID per network line.
	RouteIDs []int64
}

// Unconfined is a straight 100-unit reach whose channel lies well inside
// the valley bottom.
func Unconfined() Scenario {
	return Scenario{
		Name:     "unconfined",
		Channel:  Rect(0, -5, 100, 5),
		Valley:   Rect(-50, -50, 150, 50),
		Network:  []orb.LineString{{{0, 0}, {100, 0}}},
		RouteIDs: []int64{1},
	}
}

// LeftConfined is a straight 100-unit reach whose channel shares its whole
// left edge with the valley bottom.
func LeftConfined() Scenario {
	return Scenario{
		Name:     "left-confined",
		Channel:  Rect(0, -5, 100, 10),
		Valley:   Rect(-50, -20, 150, 10),
		Network:  []orb.LineString{{{0, 0}, {100, 0}}},
		RouteIDs: []int64{1},
	}
}

// Constricted is a straight 100-unit reach confined on both banks.
func Constricted() Scenario {
	return Scenario{
		Name:     "constricted",
		Channel:  Rect(0, -5, 100, 10),
		Valley:   Rect(-50, -5, 150, 10),
		Network:  []orb.LineString{{{0, 0}, {100, 0}}},
		RouteIDs: []int64{1},
	}
}

// LongLeftConfined is LeftConfined stretched to length, split into two
// reaches of one route at the midpoint.
func LongLeftConfined(length float64) Scenario {
	mid := length / 2
	return Scenario{
		Name:     "long-left-confined",
		Channel:  Rect(0, -5, length, 10),
		Valley:   Rect(-50, -20, length+50, 10),
		Network:  []orb.LineString{{{0, 0}, {mid, 0}}, {{mid, 0}, {length, 0}}},
		RouteIDs: []int64{1, 1},
	}
}

// NetworkFC returns the scenario network as a feature collection with the
// route ID stored in routeField.
func (s Scenario) NetworkFC(routeField string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, ls := range s.Network {
		f := geojson.NewFeature(ls)
		f.Properties[routeField] = s.RouteIDs[i]
		f.Properties["ReachName"] = s.Name
		fc.Append(f)
	}
	return fc
}

// PolygonFC wraps a multipolygon in a one-feature collection.
func PolygonFC(mp orb.MultiPolygon) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(mp))
	return fc
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
