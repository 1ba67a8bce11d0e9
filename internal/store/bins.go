package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/roll.survey/internal/binning"
)

// SaveBins stores the fold and offset grids of out under a new run. Only
// bins with traces are written; the trace ledger is not persisted.
func (db *DB) SaveBins(ctx context.Context, survey string, out *binning.Output) (*Run, error) {
	run := newRun(survey, KindBins)
	run.Nx, run.Ny, run.MaxFold = out.Nx, out.Ny, out.MaxFold

	cells := 0
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO bin_cells (run_id, ix, iy, fold, min_offset, max_offset) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare bin insert: %w", err)
		}
		defer stmt.Close()

		for ix := 0; ix < out.Nx; ix++ {
			for iy := 0; iy < out.Ny; iy++ {
				i := out.Index(ix, iy)
				if out.Fold[i] == 0 {
					continue
				}
				if _, err := stmt.ExecContext(ctx, run.ID, ix, iy, int64(out.Fold[i]),
					out.MinOffset[i], out.MaxOffset[i]); err != nil {
					return fmt.Errorf("failed to insert bin (%d, %d): %w", ix, iy, err)
				}
				cells++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logf("saved bin run %s: %d x %d grid, %d live bins", run.ID, out.Nx, out.Ny, cells)
	return run, nil
}

// LoadBins rebuilds the output of a bin run. Bins that were not stored come
// back empty, with infinite offsets.
func (db *DB) LoadBins(ctx context.Context, id uuid.UUID) (*binning.Output, error) {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Kind != KindBins {
		return nil, fmt.Errorf("run %s holds %s, not bins", id, run.Kind)
	}

	out, err := binning.NewOutput(run.Nx, run.Ny, 0)
	if err != nil {
		return nil, err
	}
	out.MaxFold = run.MaxFold

	rows, err := db.QueryContext(ctx,
		`SELECT ix, iy, fold, min_offset, max_offset FROM bin_cells WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query bin_cells: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ix, iy int
			fold   int64
			lo, hi float64
		)
		if err := rows.Scan(&ix, &iy, &fold, &lo, &hi); err != nil {
			return nil, fmt.Errorf("failed to scan bin: %w", err)
		}
		if ix < 0 || ix >= out.Nx || iy < 0 || iy >= out.Ny {
			return nil, fmt.Errorf("bin (%d, %d) outside %d x %d grid", ix, iy, out.Nx, out.Ny)
		}
		i := out.Index(ix, iy)
		out.Fold[i] = uint32(fold)
		out.MinOffset[i] = lo
		out.MaxOffset[i] = hi
	}
	return out, rows.Err()
}
