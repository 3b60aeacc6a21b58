// Package trajectory persists the per-frame camera motion estimated during a run
// and renders the cumulative camera path.
package trajectory

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Status values of a Sample
const (
	StatusReference  = "reference"
	StatusStabilized = "stabilized"
	StatusIdentity   = "identity"
	StatusDropped    = "dropped"
)

// Sample Motion of one frame relative to the previous one, plus the path so far
type Sample struct {
	RunID  string
	Frame  int
	Status string
	// Affine coefficients, previous -> current
	A, B, TX, C, D, TY float64
	// Cumulative camera path since the first frame
	PathX, PathY, PathAngle float64
	ElapsedMs               float64
}

// Store SQLite-backed sample store
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open trajectory db %s", path)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			status TEXT NOT NULL,
			a DOUBLE, b DOUBLE, tx DOUBLE,
			c DOUBLE, d DOUBLE, ty DOUBLE,
			path_x DOUBLE, path_y DOUBLE, path_angle DOUBLE,
			elapsed_ms DOUBLE,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, frame)
		);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create trajectory schema")
	}
	return &Store{db: db}, nil
}

// Record inserts s, replacing a previous sample of the same run and frame.
func (st *Store) Record(ctx context.Context, s Sample) error {
	_, err := st.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO samples
			(run_id, frame, status, a, b, tx, c, d, ty, path_x, path_y, path_angle, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Frame, s.Status, s.A, s.B, s.TX, s.C, s.D, s.TY,
		s.PathX, s.PathY, s.PathAngle, s.ElapsedMs)
	return errors.Wrapf(err, "record frame %d", s.Frame)
}

// Samples returns the samples of runID ordered by frame.
func (st *Store) Samples(ctx context.Context, runID string) ([]Sample, error) {
	rows, err := st.db.QueryContext(ctx, `
		SELECT run_id, frame, status, a, b, tx, c, d, ty, path_x, path_y, path_angle, elapsed_ms
		FROM samples WHERE run_id = ? ORDER BY frame`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query samples")
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.RunID, &s.Frame, &s.Status, &s.A, &s.B, &s.TX, &s.C, &s.D, &s.TY,
			&s.PathX, &s.PathY, &s.PathAngle, &s.ElapsedMs); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// Runs returns the run ids present in the store, most recent first.
func (st *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := st.db.QueryContext(ctx, `
		SELECT run_id FROM samples GROUP BY run_id ORDER BY MAX(timestamp) DESC, MAX(rowid) DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

func (st *Store) Close() error {
	return st.db.Close()
}
