package dataset

import (
	"fmt"

	"github.com/banshee-data/confinement/internal/confinement"
	"github.com/banshee-data/confinement/internal/movingwindow"
	"github.com/banshee-data/confinement/internal/network"
	"github.com/banshee-data/confinement/internal/segmentation"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Output field names.
const (
	FieldMarginID     = "MarginID"
	FieldSegmentID    = "SegmentID"
	FieldBankSide     = "BankSide"
	FieldLength       = "Length"
	FieldConType      = "Con_Type"
	FieldConLeft      = "Con_LEFT"
	FieldConRight     = "Con_RIGHT"
	FieldSeedID       = "SeedID"
	FieldSeg          = "Seg"
	FieldConfValue    = "CONF_Value"
	FieldConstrValue  = "CNST_Value"
	FieldReachIndex   = "ReachIdx"
	FieldMeasureFrom  = "FromMeas"
	FieldMeasureTo    = "ToMeas"
	FieldSeedPosition = "Position"
)

// Fields names the caller-configurable fields.
type Fields struct {
	RouteID      string
	Confinement  string
	Constriction string
	SegmentID    string
}

// DefaultFields returns the field names used when none are configured.
func DefaultFields() Fields {
	return Fields{
		RouteID:      "RouteID",
		Confinement:  "IsConfined",
		Constriction: "IsConstric",
		SegmentID:    "SegID",
	}
}

// Reaches converts a stream network into reaches. Multi-part features
// contribute one reach per part, all sharing the feature's properties and
// Index.
func Reaches(fc *geojson.FeatureCollection, routeField string) ([]network.Reach, error) {
	if err := (Contract{Name: "stream network", Fields: []string{routeField}, Lines: true}).Check(fc); err != nil {
		return nil, err
	}
	var out []network.Reach
	for i, f := range fc.Features {
		id, err := Int(f.Properties, routeField)
		if err != nil {
			return nil, fmt.Errorf("stream network feature %d: %w", i, err)
		}
		parts, err := lines(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("stream network feature %d: %w", i, err)
		}
		for _, ls := range parts {
			out = append(out, network.Reach{Index: i, RouteID: id, Line: ls, Attrs: f.Properties.Clone()})
		}
	}
	return out, nil
}

// Polygons reads a polygon input such as the channel or valley bottom.
func Polygons(fc *geojson.FeatureCollection, name string) (orb.MultiPolygon, error) {
	if err := (Contract{Name: name}).Check(fc); err != nil {
		return nil, err
	}
	return MultiPolygon(fc)
}

// StateLines reads an attributed network back as reaches with their
// confinement state, ready to dissolve by route.
func StateLines(fc *geojson.FeatureCollection, f Fields) ([]network.Reach, []confinement.State, error) {
	c := Contract{Name: "attributed network", Fields: []string{f.RouteID, f.Confinement, f.Constriction}, Lines: true}
	if err := c.Check(fc); err != nil {
		return nil, nil, err
	}
	var (
		reaches []network.Reach
		states  []confinement.State
	)
	for i, feat := range fc.Features {
		id, err := Int(feat.Properties, f.RouteID)
		if err != nil {
			return nil, nil, fmt.Errorf("attributed network feature %d: %w", i, err)
		}
		var st confinement.State
		if st.Confined, err = Flag(feat.Properties, f.Confinement); err != nil {
			return nil, nil, fmt.Errorf("attributed network feature %d: %w", i, err)
		}
		if st.Constricted, err = Flag(feat.Properties, f.Constriction); err != nil {
			return nil, nil, fmt.Errorf("attributed network feature %d: %w", i, err)
		}
		parts, _ := lines(feat.Geometry)
		for _, ls := range parts {
			reaches = append(reaches, network.Reach{Index: len(reaches), RouteID: id, Line: ls})
			states = append(states, st)
		}
	}
	return reaches, states, nil
}

// AttributedLines reads a network that already carries segment IDs and
// confinement flags.
func AttributedLines(fc *geojson.FeatureCollection, f Fields) ([]segmentation.Attributed, error) {
	c := Contract{Name: "segmented network", Fields: []string{f.SegmentID, f.Confinement, f.Constriction}, Lines: true}
	if err := c.Check(fc); err != nil {
		return nil, err
	}
	var out []segmentation.Attributed
	for i, feat := range fc.Features {
		id, err := Text(feat.Properties, f.SegmentID)
		if err != nil {
			return nil, fmt.Errorf("segmented network feature %d: %w", i, err)
		}
		var st confinement.State
		if st.Confined, err = Flag(feat.Properties, f.Confinement); err != nil {
			return nil, fmt.Errorf("segmented network feature %d: %w", i, err)
		}
		if st.Constricted, err = Flag(feat.Properties, f.Constriction); err != nil {
			return nil, fmt.Errorf("segmented network feature %d: %w", i, err)
		}
		parts, _ := lines(feat.Geometry)
		for _, ls := range parts {
			out = append(out, segmentation.Attributed{SegmentID: id, Line: ls, State: st, Attrs: feat.Properties.Clone()})
		}
	}
	return out, nil
}

// UserSegments reads caller-supplied segment lines.
func UserSegments(fc *geojson.FeatureCollection, idField string) ([]segmentation.UserSegment, error) {
	if err := (Contract{Name: "segments", Fields: []string{idField}, Lines: true}).Check(fc); err != nil {
		return nil, err
	}
	var out []segmentation.UserSegment
	for i, feat := range fc.Features {
		id, err := Text(feat.Properties, idField)
		if err != nil {
			return nil, fmt.Errorf("segments feature %d: %w", i, err)
		}
		parts, _ := lines(feat.Geometry)
		for _, ls := range parts {
			out = append(out, segmentation.UserSegment{ID: id, Line: ls})
		}
	}
	return out, nil
}

// ConfinedPolygon writes the confined channel polygon.
func ConfinedPolygon(mp orb.MultiPolygon) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(mp))
	return fc
}

// BankPolygons writes the channel fragments with their bank side.
func BankPolygons(polys []confinement.BankPolygon) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, bp := range polys {
		f := geojson.NewFeature(bp.Polygon)
		f.Properties[FieldBankSide] = bp.Side.String()
		fc.Append(f)
	}
	return fc
}

// Margins writes the confining margins.
func Margins(margins []confinement.Margin) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range margins {
		f := geojson.NewFeature(m.Line)
		f.Properties[FieldMarginID] = m.ID
		f.Properties[FieldBankSide] = m.Side.String()
		f.Properties[FieldLength] = m.Length
		fc.Append(f)
	}
	return fc
}

// MarginSegments writes the margins cut at the centerline.
func MarginSegments(segs []confinement.MarginSegment) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range segs {
		f := geojson.NewFeature(s.Line)
		f.Properties[FieldSegmentID] = s.ID
		f.Properties[FieldMarginID] = s.MarginID
		f.Properties[FieldBankSide] = s.Side.String()
		fc.Append(f)
	}
	return fc
}

// Segments writes the attributed centerline. Every segment carries the
// properties of the input reach it lies on, overlaid with the confinement
// fields.
func Segments(segs []confinement.Segment, reaches []network.Reach, f Fields) *geojson.FeatureCollection {
	attrs := map[int]geojson.Properties{}
	for _, r := range reaches {
		if _, ok := attrs[r.Index]; !ok && r.Attrs != nil {
			attrs[r.Index] = r.Attrs
		}
	}
	fc := geojson.NewFeatureCollection()
	for _, s := range segs {
		feat := geojson.NewFeature(s.Line)
		for k, v := range attrs[s.Reach] {
			feat.Properties[k] = v
		}
		feat.Properties[f.RouteID] = s.RouteID
		feat.Properties[FieldReachIndex] = s.Reach
		feat.Properties[FieldMeasureFrom] = s.Interval.From
		feat.Properties[FieldMeasureTo] = s.Interval.To
		feat.Properties[FieldConLeft] = sideValue(s.Left)
		feat.Properties[FieldConRight] = sideValue(s.Right)
		feat.Properties[FieldConType] = s.Type.String()
		feat.Properties[f.Confinement] = boolInt(s.IsConfined())
		feat.Properties[f.Constriction] = boolInt(s.IsConstricted())
		fc.Append(feat)
	}
	return fc
}

// sideValue renders a bank flag: 1 when confirmed, null when the correction
// pass withdrew it and 0 when no margin applied.
func sideValue(f confinement.SideFlag) interface{} {
	switch f {
	case confinement.Confirmed:
		return 1
	case confinement.Unconfirmed:
		return nil
	}
	return 0
}

// Units writes fixed or overlaid segments with their ratios.
func Units(units []segmentation.Unit, f Fields) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, u := range units {
		feat := geojson.NewFeature(u.Line)
		feat.Properties[f.SegmentID] = u.ID
		feat.Properties[f.RouteID] = u.RouteID
		feat.Properties[FieldMeasureFrom] = u.Interval.From
		feat.Properties[FieldMeasureTo] = u.Interval.To
		feat.Properties[FieldLength] = u.Length
		feat.Properties[FieldConfValue] = u.Confinement
		feat.Properties[FieldConstrValue] = u.Constriction
		fc.Append(feat)
	}
	return fc
}

// CustomRatios writes the segmented network back out with the ratios of
// each line's segment. Every input line keeps its geometry and properties.
func CustomRatios(lines []segmentation.Attributed, ratios []confinement.Ratio, f Fields) *geojson.FeatureCollection {
	byID := make(map[string]confinement.Ratio, len(ratios))
	for _, r := range ratios {
		byID[r.Key] = r
	}
	fc := geojson.NewFeatureCollection()
	for _, l := range lines {
		feat := geojson.NewFeature(l.Line)
		for k, v := range l.Attrs {
			feat.Properties[k] = v
		}
		if _, ok := feat.Properties[f.SegmentID]; !ok {
			feat.Properties[f.SegmentID] = l.SegmentID
		}
		if r, ok := byID[l.SegmentID]; ok {
			feat.Properties[FieldConfValue] = r.Confinement
			feat.Properties[FieldConstrValue] = r.Constriction
		} else {
			feat.Properties[FieldConfValue] = nil
			feat.Properties[FieldConstrValue] = nil
		}
		fc.Append(feat)
	}
	return fc
}

// Seeds writes the seed points with one CONF_ and one CNST_ column per
// window size. Sizes with no window are written as null.
func Seeds(seeds []movingwindow.Seed, sizes []float64, f Fields) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range seeds {
		feat := geojson.NewFeature(s.Point)
		feat.Properties[f.RouteID] = s.RouteID
		feat.Properties[FieldSeedID] = s.ID
		feat.Properties[FieldSeedPosition] = s.Measure
		cols := s.Columns()
		for _, size := range sizes {
			for _, prefix := range []string{movingwindow.ConfinementPrefix, movingwindow.ConstrictionPrefix} {
				name := movingwindow.ColumnName(prefix, size)
				if v, ok := cols[name]; ok {
					feat.Properties[name] = v
				} else {
					feat.Properties[name] = nil
				}
			}
		}
		fc.Append(feat)
	}
	return fc
}

// Windows writes the window lines.
func Windows(windows []movingwindow.Window, f Fields) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, w := range windows {
		feat := geojson.NewFeature(w.Line)
		feat.Properties[f.RouteID] = w.RouteID
		feat.Properties[FieldSeedID] = w.SeedID
		feat.Properties[FieldSeg] = w.Size
		feat.Properties[FieldConfValue] = w.Confinement
		feat.Properties[FieldConstrValue] = w.Constriction
		fc.Append(feat)
	}
	return fc
}

// Endpoints writes the window end points.
func Endpoints(points []movingwindow.Endpoint, f Fields) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		feat := geojson.NewFeature(p.Point)
		feat.Properties[f.RouteID] = p.RouteID
		feat.Properties[FieldSeedID] = p.SeedID
		feat.Properties[FieldSeg] = p.Size
		fc.Append(feat)
	}
	return fc
}
