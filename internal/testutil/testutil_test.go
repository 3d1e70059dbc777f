package testutil

import (
	"testing"

	"github.com/paulmach/orb/planar"
)

func TestScenarios(t *testing.T) {
	for _, sc := range []Scenario{Unconfined(), LeftConfined(), Constricted(), LongLeftConfined(300)} {
		t.Run(sc.Name, func(t *testing.T) {
			if len(sc.Network) != len(sc.RouteIDs) {
				t.Fatalf("%d lines but %d route IDs", len(sc.Network), len(sc.RouteIDs))
			}
			if a := planar.Area(sc.Channel); a <= 0 {
				t.Errorf("channel area = %f, want counter-clockwise ring", a)
			}
			if a := planar.Area(sc.Valley); a <= 0 {
				t.Errorf("valley area = %f, want counter-clockwise ring", a)
			}
		})
	}
}

func TestAssertNoError(t *testing.T) {
	AssertNoError(t, nil)
}

func TestNetworkFC(t *testing.T) {
	sc := LongLeftConfined(200)
	fc := sc.NetworkFC("RouteID")
	if len(fc.Features) != 2 {
		t.Fatalf("got %d features, want 2", len(fc.Features))
	}
	if got := fc.Features[1].Properties["RouteID"]; got != int64(1) {
		t.Errorf("RouteID = %v, want 1", got)
	}
	if n := len(PolygonFC(sc.Channel).Features); n != 1 {
		t.Errorf("polygon features = %d, want 1", n)
	}
}
