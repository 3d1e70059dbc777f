// Package config holds the run configuration shared by every command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/banshee-data/confinement/internal/fsutil"
	"github.com/banshee-data/confinement/internal/units"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("length", validateLength)
}

// validateLength accepts linear unit strings such as "5 Centimeters".
func validateLength(fl validator.FieldLevel) bool {
	_, err := units.ParseLength(fl.Field().String())
	return err == nil
}

// RunConfig is the root configuration of a run. Every field is optional;
// the Get methods supply the defaults, so partial files are safe.
type RunConfig struct {
	// Margin extraction
	FilterByLength *float64 `json:"filter_by_length,omitempty" yaml:"filter_by_length,omitempty" validate:"omitempty,gte=0"`

	// Attribution tolerances, as linear unit strings
	SplitTolerance   *string  `json:"split_tolerance,omitempty" yaml:"split_tolerance,omitempty" validate:"omitempty,length"`
	CorrectionRadius *string  `json:"correction_radius,omitempty" yaml:"correction_radius,omitempty" validate:"omitempty,length"`
	BankOffset       *float64 `json:"bank_offset,omitempty" yaml:"bank_offset,omitempty" validate:"omitempty,gt=0"`

	// Moving window
	SeedDistance          *float64  `json:"seed_distance,omitempty" yaml:"seed_distance,omitempty" validate:"omitempty,gt=0"`
	WindowSizes           []float64 `json:"window_sizes,omitempty" yaml:"window_sizes,omitempty" validate:"omitempty,dive,gt=0"`
	WindowLengthTolerance *float64  `json:"window_length_tolerance,omitempty" yaml:"window_length_tolerance,omitempty" validate:"omitempty,gte=0"`
	Workers               *int      `json:"workers,omitempty" yaml:"workers,omitempty" validate:"omitempty,gte=0"`

	// Fixed segments
	SegmentSize *float64 `json:"segment_size,omitempty" yaml:"segment_size,omitempty" validate:"omitempty,gt=0"`

	// Field names
	RouteField        *string `json:"route_field,omitempty" yaml:"route_field,omitempty" validate:"omitempty,min=1"`
	ConfinementField  *string `json:"confinement_field,omitempty" yaml:"confinement_field,omitempty" validate:"omitempty,min=1"`
	ConstrictionField *string `json:"constriction_field,omitempty" yaml:"constriction_field,omitempty" validate:"omitempty,min=1"`
	SegmentField      *string `json:"segment_field,omitempty" yaml:"segment_field,omitempty" validate:"omitempty,min=1"`

	// Optional outputs
	Database  *string `json:"database,omitempty" yaml:"database,omitempty"`
	ReportDir *string `json:"report_dir,omitempty" yaml:"report_dir,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultRunConfig returns a RunConfig with every field set to its default.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		FilterByLength:        ptrFloat64(5),
		SplitTolerance:        ptrString("1 Centimeters"),
		CorrectionRadius:      ptrString("5 Centimeters"),
		BankOffset:            ptrFloat64(1),
		SeedDistance:          ptrFloat64(50),
		WindowSizes:           []float64{100},
		WindowLengthTolerance: ptrFloat64(10),
		Workers:               ptrInt(0),
		SegmentSize:           ptrFloat64(200),
		RouteField:            ptrString("RouteID"),
		ConfinementField:      ptrString("IsConfined"),
		ConstrictionField:     ptrString("IsConstric"),
		SegmentField:          ptrString("SegID"),
	}
}

// LoadRunConfig loads a RunConfig from a .json, .yaml or .yml file of at
// most 1 MB.
func LoadRunConfig(path string) (*RunConfig, error) {
	return LoadRunConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadRunConfigFS is LoadRunConfig on an arbitrary filesystem.
func LoadRunConfigFS(fsys fsutil.FileSystem, path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RunConfig{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags and the cross-field rules.
func (c *RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.SplitTolerance != nil && c.CorrectionRadius != nil && c.GetCorrectionRadius() < c.GetSplitTolerance() {
		return fmt.Errorf("%w: correction_radius %q is smaller than split_tolerance %q",
			ErrInvalid, *c.CorrectionRadius, *c.SplitTolerance)
	}
	return nil
}

// Merge returns a copy of c with every field set in o taking precedence.
func (c *RunConfig) Merge(o *RunConfig) *RunConfig {
	out := *c
	if o == nil {
		return &out
	}
	if o.FilterByLength != nil {
		out.FilterByLength = o.FilterByLength
	}
	if o.SplitTolerance != nil {
		out.SplitTolerance = o.SplitTolerance
	}
	if o.CorrectionRadius != nil {
		out.CorrectionRadius = o.CorrectionRadius
	}
	if o.BankOffset != nil {
		out.BankOffset = o.BankOffset
	}
	if o.SeedDistance != nil {
		out.SeedDistance = o.SeedDistance
	}
	if len(o.WindowSizes) > 0 {
		out.WindowSizes = append([]float64(nil), o.WindowSizes...)
	}
	if o.WindowLengthTolerance != nil {
		out.WindowLengthTolerance = o.WindowLengthTolerance
	}
	if o.Workers != nil {
		out.Workers = o.Workers
	}
	if o.SegmentSize != nil {
		out.SegmentSize = o.SegmentSize
	}
	if o.RouteField != nil {
		out.RouteField = o.RouteField
	}
	if o.ConfinementField != nil {
		out.ConfinementField = o.ConfinementField
	}
	if o.ConstrictionField != nil {
		out.ConstrictionField = o.ConstrictionField
	}
	if o.SegmentField != nil {
		out.SegmentField = o.SegmentField
	}
	if o.Database != nil {
		out.Database = o.Database
	}
	if o.ReportDir != nil {
		out.ReportDir = o.ReportDir
	}
	return &out
}

// GetFilterByLength returns the filter_by_length value or the default.
func (c *RunConfig) GetFilterByLength() float64 {
	if c.FilterByLength == nil {
		return 5
	}
	return *c.FilterByLength
}

// GetSplitTolerance returns split_tolerance in metres or the default.
func (c *RunConfig) GetSplitTolerance() float64 {
	return lengthOr(c.SplitTolerance, 0.01)
}

// GetCorrectionRadius returns correction_radius in metres or the default.
func (c *RunConfig) GetCorrectionRadius() float64 {
	return lengthOr(c.CorrectionRadius, 0.05)
}

func lengthOr(s *string, def float64) float64 {
	if s == nil || *s == "" {
		return def
	}
	v, err := units.ParseLength(*s)
	if err != nil {
		return def // default on parse error
	}
	return v
}

// GetBankOffset returns the bank_offset value or the default.
func (c *RunConfig) GetBankOffset() float64 {
	if c.BankOffset == nil {
		return 1
	}
	return *c.BankOffset
}

// GetSeedDistance returns the seed_distance value or the default.
func (c *RunConfig) GetSeedDistance() float64 {
	if c.SeedDistance == nil {
		return 50
	}
	return *c.SeedDistance
}

// GetWindowSizes returns the window_sizes value or the default.
func (c *RunConfig) GetWindowSizes() []float64 {
	if len(c.WindowSizes) == 0 {
		return []float64{100}
	}
	return append([]float64(nil), c.WindowSizes...)
}

// GetWindowLengthTolerance returns the window_length_tolerance value or
// the default.
func (c *RunConfig) GetWindowLengthTolerance() float64 {
	if c.WindowLengthTolerance == nil {
		return 10
	}
	return *c.WindowLengthTolerance
}

// GetWorkers returns the worker count, GOMAXPROCS when unset or zero.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}

// GetSegmentSize returns the segment_size value or the default.
func (c *RunConfig) GetSegmentSize() float64 {
	if c.SegmentSize == nil {
		return 200
	}
	return *c.SegmentSize
}

func stringOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

// GetRouteField returns the route_field value or the default.
func (c *RunConfig) GetRouteField() string { return stringOr(c.RouteField, "RouteID") }

// GetConfinementField returns the confinement_field value or the default.
func (c *RunConfig) GetConfinementField() string { return stringOr(c.ConfinementField, "IsConfined") }

// GetConstrictionField returns the constriction_field value or the default.
func (c *RunConfig) GetConstrictionField() string { return stringOr(c.ConstrictionField, "IsConstric") }

// GetSegmentField returns the segment_field value or the default.
func (c *RunConfig) GetSegmentField() string { return stringOr(c.SegmentField, "SegID") }

// GetDatabase returns the results database path, empty when disabled.
func (c *RunConfig) GetDatabase() string { return stringOr(c.Database, "") }

// GetReportDir returns the report folder, empty when disabled.
func (c *RunConfig) GetReportDir() string { return stringOr(c.ReportDir, "") }
