package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/roll.survey/internal/records"
)

const pointColumns = `line, point, idx, code, depth, east, north, loc_x, loc_y, elev, uniq, in_xps`

const relationColumns = `src_line, src_point, src_index, rec_no, rec_line, rec_min, rec_max, rec_index, uniq, in_sps, in_rps`

// SaveGeometry stores the record tables of survey under a new run.
func (db *DB) SaveGeometry(ctx context.Context, survey string, t *records.Tables) (*Run, error) {
	run := newRun(survey, KindGeometry)
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		if err := insertPoints(ctx, tx, "source_records", run.ID, t.Src); err != nil {
			return err
		}
		if err := insertPoints(ctx, tx, "receiver_records", run.ID, t.Rec); err != nil {
			return err
		}
		return insertRelations(ctx, tx, run.ID, t.Rel)
	})
	if err != nil {
		return nil, err
	}
	src, rec, rel := t.Counts()
	logf("saved geometry run %s: %d sources, %d receivers, %d relations", run.ID, src, rec, rel)
	return run, nil
}

// LoadGeometry reads back the record tables of a geometry run in the order
// they were saved.
func (db *DB) LoadGeometry(ctx context.Context, id uuid.UUID) (*records.Tables, error) {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Kind != KindGeometry {
		return nil, fmt.Errorf("run %s holds %s, not geometry", id, run.Kind)
	}

	t := &records.Tables{}
	if t.Src, err = db.loadPoints(ctx, "source_records", id); err != nil {
		return nil, err
	}
	if t.Rec, err = db.loadPoints(ctx, "receiver_records", id); err != nil {
		return nil, err
	}
	if t.Rel, err = db.loadRelations(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func insertPoints(ctx context.Context, tx *sql.Tx, table string, id uuid.UUID, pts []records.Point) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+table+` (run_id, seq, `+pointColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i := range pts {
		p := &pts[i]
		if _, err := stmt.ExecContext(ctx, id, i, p.Line, p.Point, p.Index, p.Code,
			p.Depth, p.East, p.North, p.LocX, p.LocY, p.Elev, p.Uniq, p.InXps); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

func insertRelations(ctx context.Context, tx *sql.Tx, id uuid.UUID, rel []records.Relation) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO relation_records (run_id, seq, `+relationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare relation insert: %w", err)
	}
	defer stmt.Close()

	for i := range rel {
		r := &rel[i]
		if _, err := stmt.ExecContext(ctx, id, i, r.SrcLine, r.SrcPoint, r.SrcIndex, r.RecNo,
			r.RecLine, r.RecMin, r.RecMax, r.RecIndex, r.Uniq, r.InSps, r.InRps); err != nil {
			return fmt.Errorf("failed to insert relation: %w", err)
		}
	}
	return nil
}

func (db *DB) loadPoints(ctx context.Context, table string, id uuid.UUID) ([]records.Point, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+pointColumns+` FROM `+table+` WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var pts []records.Point
	for rows.Next() {
		var p records.Point
		if err := rows.Scan(&p.Line, &p.Point, &p.Index, &p.Code, &p.Depth, &p.East, &p.North,
			&p.LocX, &p.LocY, &p.Elev, &p.Uniq, &p.InXps); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		pts = append(pts, p)
	}
	return pts, rows.Err()
}

func (db *DB) loadRelations(ctx context.Context, id uuid.UUID) ([]records.Relation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+relationColumns+` FROM relation_records WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query relation_records: %w", err)
	}
	defer rows.Close()

	var rel []records.Relation
	for rows.Next() {
		var r records.Relation
		if err := rows.Scan(&r.SrcLine, &r.SrcPoint, &r.SrcIndex, &r.RecNo, &r.RecLine,
			&r.RecMin, &r.RecMax, &r.RecIndex, &r.Uniq, &r.InSps, &r.InRps); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		rel = append(rel, r)
	}
	return rel, rows.Err()
}
