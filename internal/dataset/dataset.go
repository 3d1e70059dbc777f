package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/confinement/internal/fsutil"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrMissingField is returned when a feature lacks a required field.
	ErrMissingField = errors.New("missing required field")
	// ErrGeometryType is returned when a dataset holds the wrong kind of
	// geometry.
	ErrGeometryType = errors.New("unexpected geometry type")
)

// maxDatasetSize caps the size of a dataset file read into memory.
const maxDatasetSize = 256 << 20

// Read loads a feature collection.
func Read(fsys fsutil.FileSystem, path string) (*geojson.FeatureCollection, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}
	if info.Size() > maxDatasetSize {
		return nil, fmt.Errorf("dataset %s too large: %d bytes (max %d)", path, info.Size(), maxDatasetSize)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	return fc, nil
}

// Write stores a feature collection as indented GeoJSON.
func Write(fsys fsutil.FileSystem, path string, fc *geojson.FeatureCollection) error {
	raw, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("encode dataset %s: %w", path, err)
	}
	buf.WriteByte('\n')
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

// Contract describes what a dataset must provide.
type Contract struct {
	// Name identifies the dataset in error messages.
	Name   string
	Fields []string
	// Lines requires (multi)linestrings; otherwise (multi)polygons.
	Lines bool
}

// Check verifies every feature against the contract.
func (c Contract) Check(fc *geojson.FeatureCollection) error {
	if len(fc.Features) == 0 {
		return fmt.Errorf("%s: no features", c.Name)
	}
	for i, f := range fc.Features {
		for _, field := range c.Fields {
			if _, ok := f.Properties[field]; !ok {
				return fmt.Errorf("%s feature %d: %q: %w", c.Name, i, field, ErrMissingField)
			}
		}
		switch f.Geometry.(type) {
		case orb.LineString, orb.MultiLineString:
			if c.Lines {
				continue
			}
		case orb.Polygon, orb.MultiPolygon:
			if !c.Lines {
				continue
			}
		}
		want := "polygon"
		if c.Lines {
			want = "line"
		}
		return fmt.Errorf("%s feature %d: got %s, want %s: %w", c.Name, i, geometryName(f.Geometry), want, ErrGeometryType)
	}
	return nil
}

func geometryName(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}

// MultiPolygon merges every polygon of the collection.
func MultiPolygon(fc *geojson.FeatureCollection) (orb.MultiPolygon, error) {
	var out orb.MultiPolygon
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			out = append(out, g)
		case orb.MultiPolygon:
			out = append(out, g...)
		default:
			return nil, fmt.Errorf("feature %d: %s: %w", i, geometryName(f.Geometry), ErrGeometryType)
		}
	}
	return out, nil
}

// lines returns the parts of a line feature.
func lines(g orb.Geometry) ([]orb.LineString, error) {
	switch g := g.(type) {
	case orb.LineString:
		return []orb.LineString{g}, nil
	case orb.MultiLineString:
		return g, nil
	}
	return nil, fmt.Errorf("%s: %w", geometryName(g), ErrGeometryType)
}

// Int reads an integer property. JSON numbers, numeric strings and
// booleans are accepted.
func Int(props geojson.Properties, field string) (int64, error) {
	v, ok := props[field]
	if !ok {
		return 0, fmt.Errorf("%q: %w", field, ErrMissingField)
	}
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%q: %v is not an integer", field, x)
		}
		return int64(x), nil
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", field, err)
		}
		return n, nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("%q: unsupported value %T", field, v)
}

// Flag reads a 0/1 property as a boolean.
func Flag(props geojson.Properties, field string) (bool, error) {
	n, err := Int(props, field)
	return n != 0, err
}

// Text reads a property as a string. Numbers are formatted without a
// trailing fraction when integral.
func Text(props geojson.Properties, field string) (string, error) {
	v, ok := props[field]
	if !ok {
		return "", fmt.Errorf("%q: %w", field, ErrMissingField)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case nil:
		return "", nil
	}
	return fmt.Sprint(v), nil
}

// boolInt renders a flag the way the output tables store it.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
