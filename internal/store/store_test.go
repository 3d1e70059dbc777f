package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/confinement/internal/confinement"
	"github.com/banshee-data/confinement/internal/geom"
	"github.com/banshee-data/confinement/internal/movingwindow"
	"github.com/banshee-data/confinement/internal/segmentation"
	"github.com/banshee-data/confinement/internal/timeutil"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.SetClock(timeutil.NewSteppingClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), time.Minute))
	return s
}

func TestOpenMigratesToLatest(t *testing.T) {
	s := openTestStore(t)

	latest, err := LatestMigration()
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	v, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, latest, v)

	require.NoError(t, s.MigrateUp(), "second migrate is a no-op")

	var journal string
	require.NoError(t, s.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.BeginRun(ctx, "margins", map[string]float64{"filter_by_length": 5})
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, id, StatusSuccess, ""))

	second, err := s.BeginRun(ctx, "window", nil)
	require.NoError(t, err)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID, "most recent first")
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)

	assert.Equal(t, StatusSuccess, runs[1].Status)
	require.NotNil(t, runs[1].FinishedAt)
	assert.True(t, runs[1].FinishedAt.After(runs[1].StartedAt))
	assert.JSONEq(t, `{"filter_by_length": 5}`, string(runs[1].Params))

	assert.ErrorIs(t, s.FinishRun(ctx, "missing", StatusFailed, "x"), ErrUnknownRun)
}

func TestRecordResults(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, err := s.BeginRun(ctx, "run", nil)
	require.NoError(t, err)

	require.NoError(t, s.RecordMargins(ctx, id, []confinement.Margin{
		{ID: 1, Line: orb.LineString{{0, 0}, {40, 0}}, Side: confinement.SideLeft, Length: 40},
	}))
	var geometry string
	require.NoError(t, s.QueryRow(`SELECT geometry FROM margins WHERE run_id = ?`, id).Scan(&geometry))
	assert.Equal(t, "LINESTRING(0 0,40 0)", geometry)

	require.NoError(t, s.RecordSegments(ctx, id, []confinement.Segment{
		{ID: 1, RouteID: 3, Interval: geom.Interval{From: 0, To: 40}, Line: orb.LineString{{0, 0}, {40, 0}},
			Left: confinement.Confirmed, Type: confinement.ConLeft},
		{ID: 2, RouteID: 3, Interval: geom.Interval{From: 40, To: 100}, Line: orb.LineString{{40, 0}, {100, 0}},
			Type: confinement.ConNone},
		{ID: 3, RouteID: 4, Interval: geom.Interval{From: 0, To: 10}, Line: orb.LineString{{0, 5}, {10, 5}},
			Type: confinement.ConNone},
	}))
	lengths, err := s.TypeLengths(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 40, lengths["LEFT"], 1e-9)
	assert.InDelta(t, 70, lengths["NONE"], 1e-9)

	require.NoError(t, s.RecordUnits(ctx, id, []segmentation.Unit{
		{ID: "1", RouteID: 3, Interval: geom.Interval{From: 0, To: 100}, Length: 100, Confinement: 0.4},
	}))

	res := movingwindow.Result{
		Seeds: []movingwindow.Seed{
			{ID: 2, RouteID: 3, Measure: 100, Point: orb.Point{100, 0}},
			{ID: 1, RouteID: 3, Measure: 50, Point: orb.Point{50, 0}},
		},
		Windows: []movingwindow.Window{
			{SeedID: 1, RouteID: 3, Size: 100, Interval: geom.Interval{From: 0, To: 100}, Confinement: 0.4},
			{SeedID: 2, RouteID: 3, Size: 100, Interval: geom.Interval{From: 50, To: 150}, Confinement: 0.2, Constriction: 0.1},
		},
	}
	require.NoError(t, s.RecordWindows(ctx, id, res))
	values, err := s.WindowValues(ctx, id)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, 1, values[0].SeedID, "ordered by measure")
	assert.Equal(t, 50.0, values[0].Measure)
	assert.Equal(t, 0.1, values[1].Constriction)
}

func TestRecordRollsBackOnConflict(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	id, err := s.BeginRun(ctx, "margins", nil)
	require.NoError(t, err)

	dup := []confinement.Margin{
		{ID: 1, Line: orb.LineString{{0, 0}, {1, 0}}, Length: 1},
		{ID: 1, Line: orb.LineString{{0, 0}, {1, 0}}, Length: 1},
	}
	assert.Error(t, s.RecordMargins(ctx, id, dup))

	var n int
	require.NoError(t, s.QueryRow(`SELECT COUNT(*) FROM margins`).Scan(&n))
	assert.Zero(t, n)
}
