package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/roll.survey/internal/binning"
	"github.com/banshee-data/roll.survey/internal/progress"
	"github.com/banshee-data/roll.survey/internal/survey"
)

// UniqueStats reports the outcome of a unique offset pass.
type UniqueStats struct {
	Bins   int // bins with at least one ledger row
	Traces int // ledger rows examined
	Unique int // rows flagged
}

type slot struct{ offset, azimuth int64 }

// UniqueOffsets slots every ledger trace by offset and azimuth and flags the
// first trace of each distinct slot with binning.UniqueFlag. Flagged rows
// are moved to the front of their bin, keeping their relative order, and the
// bin's fold and offset range are recomputed over them. Running the pass
// again gives the same flags and ranges.
func UniqueOffsets(ctx context.Context, out *binning.Output, p survey.Unique, opts Options) (UniqueStats, error) {
	var st UniqueStats
	if out.Ledger == nil {
		return st, ErrNoLedger
	}
	if p.DOffset <= 0 || p.DAzimuth <= 0 {
		return st, fmt.Errorf("%w: unique offset slots must be positive, got %v m and %v deg",
			survey.ErrInvalidSurvey, p.DOffset, p.DAzimuth)
	}

	l := out.Ledger
	seen := make(map[slot]struct{}, l.MaxFold)
	scratch := make([]float32, l.MaxFold*binning.LedgerFields)
	tracker := progress.NewTracker(ctx, out.Nx*out.Ny, opts.Progress)

	for ix := 0; ix < out.Nx; ix++ {
		for iy := 0; iy < out.Ny; iy++ {
			if err := tracker.Step(); err != nil {
				return st, fmt.Errorf("unique offsets: %w", err)
			}
			rows := validRows(l, ix, iy)
			if len(rows) == 0 {
				continue
			}
			st.Bins++
			st.Traces += len(rows)
			clear(seen)

			n := 0
			for _, row := range rows {
				ko := math.Round(float64(row[binning.FieldOffset]) / p.DOffset)
				ka := math.Round(float64(row[binning.FieldAzimuth]) / p.DAzimuth)
				if opts.WriteBack {
					row[binning.FieldOffset] = float32(ko * p.DOffset)
					row[binning.FieldAzimuth] = float32(ka * p.DAzimuth)
				}
				key := slot{int64(ko), int64(ka)}
				if _, dup := seen[key]; dup {
					row[binning.FieldUnique] = 0
					continue
				}
				seen[key] = struct{}{}
				row[binning.FieldUnique] = binning.UniqueFlag
				n++
			}
			st.Unique += n

			partition(rows, scratch)

			k := out.Index(ix, iy)
			out.Fold[k] = uint32(n)
			out.MinOffset[k], out.MaxOffset[k] = math.Inf(1), math.Inf(-1)
			for _, row := range rows[:n] {
				off := float64(row[binning.FieldOffset])
				out.MinOffset[k] = math.Min(out.MinOffset[k], off)
				out.MaxOffset[k] = math.Max(out.MaxOffset[k], off)
			}
		}
	}
	logf("unique offsets (%v m, %v deg): %d of %d traces kept in %d bins",
		p.DOffset, p.DAzimuth, st.Unique, st.Traces, st.Bins)
	return st, nil
}

// partition reorders rows in place so flagged rows come first. The rows
// slices alias the ledger, so the values are copied through scratch.
func partition(rows [][]float32, scratch []float32) {
	off := 0
	for _, flagged := range []bool{true, false} {
		for _, row := range rows {
			if (row[binning.FieldUnique] == binning.UniqueFlag) == flagged {
				off += copy(scratch[off:], row)
			}
		}
	}
	off = 0
	for _, row := range rows {
		off += copy(row, scratch[off:off+binning.LedgerFields])
	}
}
