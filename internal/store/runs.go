package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id has no row in the runs table.
var ErrRunNotFound = errors.New("run not found")

// Kind of data a run holds.
type Kind string

const (
	KindGeometry Kind = "geometry"
	KindBins     Kind = "bins"
)

// Run describes one persisted table set.
type Run struct {
	ID        uuid.UUID
	Survey    string
	Kind      Kind
	Nx, Ny    int // bins only
	MaxFold   int // bins only
	CreatedAt time.Time
}

const runColumns = `run_id, survey_name, kind, nx, ny, max_fold, created_at`

func insertRun(ctx context.Context, tx *sql.Tx, r *Run) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Survey, string(r.Kind), r.Nx, r.Ny, r.MaxFold, r.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func newRun(survey string, kind Kind) *Run {
	return &Run{
		ID:        uuid.New(),
		Survey:    survey,
		Kind:      kind,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r    Run
		kind string
		ms   int64
	)
	if err := row.Scan(&r.ID, &r.Survey, &kind, &r.Nx, &r.Ny, &r.MaxFold, &ms); err != nil {
		return nil, err
	}
	r.Kind = Kind(kind)
	r.CreatedAt = time.UnixMilli(ms).UTC()
	return &r, nil
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	return r, nil
}

// Runs lists runs oldest first. An empty kind lists every kind.
func (db *DB) Runs(ctx context.Context, kind Kind) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and, through the foreign keys, all its records.
func (db *DB) DeleteRun(ctx context.Context, id uuid.UUID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	logf("deleted run %s", id)
	return nil
}

// inTx runs fn in a transaction, committing when it returns nil.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
