package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/confinement/internal/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRunConfig(t *testing.T) {
	cfg := DefaultRunConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5.0, cfg.GetFilterByLength())
	assert.InDelta(t, 0.01, cfg.GetSplitTolerance(), 1e-12)
	assert.InDelta(t, 0.05, cfg.GetCorrectionRadius(), 1e-12)
	assert.Equal(t, 50.0, cfg.GetSeedDistance())
	assert.Equal(t, []float64{100}, cfg.GetWindowSizes())
	assert.Equal(t, 200.0, cfg.GetSegmentSize())
	assert.Equal(t, "RouteID", cfg.GetRouteField())
	assert.Positive(t, cfg.GetWorkers())
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	empty := &RunConfig{}
	def := DefaultRunConfig()

	assert.Equal(t, def.GetFilterByLength(), empty.GetFilterByLength())
	assert.Equal(t, def.GetSplitTolerance(), empty.GetSplitTolerance())
	assert.Equal(t, def.GetCorrectionRadius(), empty.GetCorrectionRadius())
	assert.Equal(t, def.GetBankOffset(), empty.GetBankOffset())
	assert.Equal(t, def.GetWindowLengthTolerance(), empty.GetWindowLengthTolerance())
	assert.Equal(t, def.GetConstrictionField(), empty.GetConstrictionField())
	assert.Empty(t, empty.GetDatabase())
}

func TestLoadRunConfig(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		body    string
		check   func(t *testing.T, cfg *RunConfig)
		wantErr string
	}{
		{
			name: "json",
			file: "run.json",
			body: `{"filter_by_length": 0, "window_sizes": [100, 250], "split_tolerance": "2 cm"}`,
			check: func(t *testing.T, cfg *RunConfig) {
				assert.Equal(t, 0.0, cfg.GetFilterByLength())
				assert.Equal(t, []float64{100, 250}, cfg.GetWindowSizes())
				assert.InDelta(t, 0.02, cfg.GetSplitTolerance(), 1e-12)
				assert.Equal(t, 50.0, cfg.GetSeedDistance(), "omitted fields keep defaults")
			},
		},
		{
			name: "yaml",
			file: "run.yaml",
			body: "seed_distance: 25\ncorrection_radius: 10 Centimeters\nroute_field: StreamID\n",
			check: func(t *testing.T, cfg *RunConfig) {
				assert.Equal(t, 25.0, cfg.GetSeedDistance())
				assert.InDelta(t, 0.1, cfg.GetCorrectionRadius(), 1e-12)
				assert.Equal(t, "StreamID", cfg.GetRouteField())
			},
		},
		{name: "bad extension", file: "run.toml", body: "", wantErr: "extension"},
		{name: "negative filter", file: "neg.json", body: `{"filter_by_length": -1}`, wantErr: "invalid configuration"},
		{name: "zero window", file: "win.yml", body: "window_sizes: [100, 0]\n", wantErr: "invalid configuration"},
		{name: "bad unit", file: "unit.json", body: `{"split_tolerance": "1 parsec"}`, wantErr: "invalid configuration"},
		{name: "radius below tolerance", file: "r.json", body: `{"split_tolerance": "1 m", "correction_radius": "5 cm"}`, wantErr: "smaller than"},
		{name: "malformed", file: "bad.json", body: `{`, wantErr: "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			cfg, err := LoadRunConfig(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestValidationErrorsWrapErrInvalid(t *testing.T) {
	cfg := &RunConfig{SeedDistance: ptrFloat64(0)}
	err := cfg.Validate()
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestLoadRunConfigTooLarge(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	big := `{"route_field": "` + strings.Repeat("x", 1<<20) + `"}`
	require.NoError(t, fsys.WriteFile("/cfg/big.json", []byte(big), 0o644))

	_, err := LoadRunConfigFS(fsys, "/cfg/big.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestMerge(t *testing.T) {
	base := DefaultRunConfig()
	override := &RunConfig{FilterByLength: ptrFloat64(12), WindowSizes: []float64{50}}

	got := base.Merge(override)
	assert.Equal(t, 12.0, got.GetFilterByLength())
	assert.Equal(t, []float64{50}, got.GetWindowSizes())
	assert.Equal(t, 200.0, got.GetSegmentSize())
	assert.Equal(t, 5.0, base.GetFilterByLength(), "base is not modified")
	assert.Equal(t, base.GetSeedDistance(), base.Merge(nil).GetSeedDistance())
}
