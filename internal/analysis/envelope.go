// Package analysis runs the post-binning passes over a binned Output: the
// fold and offset envelope, unique offset slotting, the RMS offset increment,
// offset/azimuth histograms, and the slices, spider and stack responses
// through a focus bin.
package analysis

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/roll.survey/internal/binning"
	"github.com/banshee-data/roll.survey/internal/monitoring"
	"github.com/banshee-data/roll.survey/internal/progress"
)

var logf = monitoring.Tagged("analysis")

// ErrNoLedger is returned by passes that need the per-trace ledger of a
// full binning run.
var ErrNoLedger = errors.New("output has no trace ledger; run a full binning first")

// ErrNoTraces is returned by the histograms when no ledger row qualifies.
var ErrNoTraces = errors.New("no traces to analyse")

// Options is shared by the ledger passes.
type Options struct {
	// UniqueOnly restricts a pass to rows flagged by UniqueOffsets. It has no
	// effect when no row carries the flag.
	UniqueOnly bool
	// WriteBack stores the slotted offset and azimuth in the ledger.
	WriteBack bool
	Progress  progress.Func
}

// Envelope summarises the fold and offset grids. Offsets are zero when no
// bin saw a trace.
type Envelope struct {
	MinFold, MaxFold           int
	MinMinOffset, MaxMinOffset float64
	MinMaxOffset, MaxMaxOffset float64
}

// ComputeEnvelope reduces the fold and offset grids of out. Empty bins keep
// their sentinel offsets, which are swapped so they never win a reduction.
func ComputeEnvelope(out *binning.Output) Envelope {
	var e Envelope
	if len(out.Fold) == 0 {
		return e
	}
	e.MinFold, e.MaxFold = int(out.Fold[0]), int(out.Fold[0])
	for _, f := range out.Fold {
		e.MinFold = min(e.MinFold, int(f))
		e.MaxFold = max(e.MaxFold, int(f))
	}

	mins := slices.Clone(out.MinOffset)
	e.MinMinOffset = finite(floats.Min(mins))
	swap(mins, math.Inf(1), math.Inf(-1))
	e.MaxMinOffset = finite(floats.Max(mins))

	maxs := slices.Clone(out.MaxOffset)
	e.MaxMaxOffset = finite(floats.Max(maxs))
	swap(maxs, math.Inf(-1), math.Inf(1))
	e.MinMaxOffset = finite(floats.Min(maxs))
	return e
}

func swap(v []float64, from, to float64) {
	for i := range v {
		if v[i] == from {
			v[i] = to
		}
	}
}

func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

// validRows returns the leading rows of a bin that hold a trace.
func validRows(l *binning.Ledger, ix, iy int) [][]float32 {
	n := 0
	for n < l.MaxFold && l.Row(ix, iy, n)[binning.FieldFold] > 0 {
		n++
	}
	return l.Rows(ix, iy, n)
}

// hasUniqueFlags reports whether any valid row carries the unique flag.
func hasUniqueFlags(l *binning.Ledger) bool {
	for ix := 0; ix < l.Nx; ix++ {
		for iy := 0; iy < l.Ny; iy++ {
			for _, row := range validRows(l, ix, iy) {
				if row[binning.FieldUnique] == binning.UniqueFlag {
					return true
				}
			}
		}
	}
	return false
}

// selector returns the row filter for a ledger pass.
func selector(l *binning.Ledger, uniqueOnly bool) func([]float32) bool {
	if uniqueOnly && hasUniqueFlags(l) {
		return func(row []float32) bool { return row[binning.FieldUnique] == binning.UniqueFlag }
	}
	return func([]float32) bool { return true }
}
