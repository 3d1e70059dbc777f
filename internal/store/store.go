package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/banshee-data/confinement/internal/confinement"
	"github.com/banshee-data/confinement/internal/movingwindow"
	"github.com/banshee-data/confinement/internal/segmentation"
	"github.com/banshee-data/confinement/internal/timeutil"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/paulmach/orb/encoding/wkt"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUnknownRun is returned for a run ID that is not in the database.
var ErrUnknownRun = errors.New("unknown run")

// Run status values.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Store is the results database.
type Store struct {
	*sql.DB
	clock timeutil.Clock
}

// Open opens or creates the database at path and migrates it to the latest
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db, clock: timeutil.RealClock{}}
	if err := s.applyPragmas(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetClock replaces the clock used for run timestamps.
func (s *Store) SetClock(c timeutil.Clock) { s.clock = c }

func (s *Store) applyPragmas() error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// MigrateUp runs all pending migrations. Being at the latest version is
// not an error.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Not closing m: it would close the shared connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version and dirty state.
// Returns 0, false, nil on a database with no migrations applied.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// LatestMigration returns the highest version among the embedded
// migrations.
func LatestMigration() (uint, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, err
	}
	defer src.Close()
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, err
		}
		v = next
	}
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID         string
	Stage      string
	Status     string
	Params     json.RawMessage
	Message    string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// BeginRun records a new running stage and returns its ID. params is
// stored as JSON.
func (s *Store) BeginRun(ctx context.Context, stage string, params interface{}) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode run parameters: %w", err)
	}
	id := uuid.NewString()
	_, err = s.ExecContext(ctx,
		`INSERT INTO runs (run_id, stage, status, params_json, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, stage, StatusRunning, string(raw), timeutil.Format(s.clock.Now()))
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return id, nil
}

// FinishRun sets the final status of a run.
func (s *Store) FinishRun(ctx context.Context, id, status, message string) error {
	res, err := s.ExecContext(ctx,
		`UPDATE runs SET status = ?, message = ?, finished_at = ? WHERE run_id = ?`,
		status, message, timeutil.Format(s.clock.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	return nil
}

// Runs lists runs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT run_id, stage, status, COALESCE(params_json, ''), COALESCE(message, ''), started_at, finished_at
		 FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r        RunRecord
			params   string
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Stage, &r.Status, &params, &r.Message, &started, &finished); err != nil {
			return nil, err
		}
		if params != "" {
			r.Params = json.RawMessage(params)
		}
		if r.StartedAt, err = time.Parse(timeutil.Layout, started); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.ID, err)
		}
		if finished.Valid {
			t, err := time.Parse(timeutil.Layout, finished.String)
			if err != nil {
				return nil, fmt.Errorf("run %s: %w", r.ID, err)
			}
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// RecordMargins stores the confining margins of a run.
func (s *Store) RecordMargins(ctx context.Context, runID string, margins []confinement.Margin) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO margins (run_id, margin_id, bank_side, length, geometry) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, m := range margins {
			if _, err := stmt.ExecContext(ctx, runID, m.ID, m.Side.String(), m.Length, wkt.MarshalString(m.Line)); err != nil {
				return fmt.Errorf("margin %d: %w", m.ID, err)
			}
		}
		return nil
	})
}

// RecordSegments stores the attributed centerline of a run.
func (s *Store) RecordSegments(ctx context.Context, runID string, segs []confinement.Segment) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO segments (run_id, segment_id, route_id, reach_idx, from_meas, to_meas,
			 con_left, con_right, con_type, geometry) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, sg := range segs {
			if _, err := stmt.ExecContext(ctx, runID, sg.ID, sg.RouteID, sg.Reach,
				sg.Interval.From, sg.Interval.To,
				sg.Left.Confined(), sg.Right.Confined(), sg.Type.String(),
				wkt.MarshalString(sg.Line)); err != nil {
				return fmt.Errorf("segment %d: %w", sg.ID, err)
			}
		}
		return nil
	})
}

// RecordUnits stores fixed or overlaid segmentation units.
func (s *Store) RecordUnits(ctx context.Context, runID string, units []segmentation.Unit) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO units (run_id, unit_id, route_id, from_meas, to_meas, length, confinement, constriction)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, u := range units {
			if _, err := stmt.ExecContext(ctx, runID, u.ID, u.RouteID, u.Interval.From, u.Interval.To,
				u.Length, u.Confinement, u.Constriction); err != nil {
				return fmt.Errorf("unit %s: %w", u.ID, err)
			}
		}
		return nil
	})
}

// RecordWindows stores the seeds and window values of a moving-window run.
func (s *Store) RecordWindows(ctx context.Context, runID string, res movingwindow.Result) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		seedStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO seeds (run_id, seed_id, route_id, measure, x, y) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer seedStmt.Close()
		for _, sd := range res.Seeds {
			if _, err := seedStmt.ExecContext(ctx, runID, sd.ID, sd.RouteID, sd.Measure, sd.Point.X(), sd.Point.Y()); err != nil {
				return fmt.Errorf("seed %d: %w", sd.ID, err)
			}
		}

		winStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO window_values (run_id, seed_id, window_size, from_meas, to_meas, confinement, constriction)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer winStmt.Close()
		for _, w := range res.Windows {
			if _, err := winStmt.ExecContext(ctx, runID, w.SeedID, w.Size, w.Interval.From, w.Interval.To,
				w.Confinement, w.Constriction); err != nil {
				return fmt.Errorf("window seed %d size %v: %w", w.SeedID, w.Size, err)
			}
		}
		return nil
	})
}

// WindowValue is one seed's ratios for one window size.
type WindowValue struct {
	SeedID       int
	RouteID      int64
	Measure      float64
	Size         float64
	Confinement  float64
	Constriction float64
}

// WindowValues returns the window values of a run ordered by route and
// seed position.
func (s *Store) WindowValues(ctx context.Context, runID string) ([]WindowValue, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT w.seed_id, s.route_id, s.measure, w.window_size, w.confinement, w.constriction
		 FROM window_values w JOIN seeds s ON s.run_id = w.run_id AND s.seed_id = w.seed_id
		 WHERE w.run_id = ?
		 ORDER BY s.route_id, s.measure, w.window_size`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WindowValue
	for rows.Next() {
		var v WindowValue
		if err := rows.Scan(&v.SeedID, &v.RouteID, &v.Measure, &v.Size, &v.Confinement, &v.Constriction); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// TypeLengths sums segment length per confinement type for a run.
func (s *Store) TypeLengths(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT con_type, SUM(to_meas - from_meas) FROM segments WHERE run_id = ? GROUP BY con_type`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]float64{}
	for rows.Next() {
		var (
			typ    string
			length float64
		)
		if err := rows.Scan(&typ, &length); err != nil {
			return nil, err
		}
		out[typ] = length
	}
	return out, rows.Err()
}
