package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/roll.survey/internal/binning"
	"github.com/banshee-data/roll.survey/internal/progress"
)

// RMS holds the RMS offset increment per bin, indexed like binning.Output.
// Bins with fewer than three traces are zero.
type RMS struct {
	Nx, Ny   int
	Values   []float64
	Min, Max float64 // over bins with a value
}

// At returns the value of bin (ix, iy).
func (r *RMS) At(ix, iy int) float64 { return r.Values[ix*r.Ny+iy] }

// RMSOffsets measures how evenly the offsets of each bin are spread. For a
// bin with sorted offsets o[0..n-1] it is the RMS deviation of the increments
// o[i+1]-o[i] from the uniform step (o[n-1]-o[0])/(n-1).
func RMSOffsets(ctx context.Context, out *binning.Output, opts Options) (*RMS, error) {
	l := out.Ledger
	if l == nil {
		return nil, ErrNoLedger
	}
	use := selector(l, opts.UniqueOnly)
	r := &RMS{Nx: out.Nx, Ny: out.Ny, Values: make([]float64, out.Nx*out.Ny)}
	r.Min, r.Max = math.Inf(1), math.Inf(-1)

	tracker := progress.NewTracker(ctx, out.Nx*out.Ny, opts.Progress)
	var offsets, steps []float64
	bins := 0
	for ix := 0; ix < out.Nx; ix++ {
		for iy := 0; iy < out.Ny; iy++ {
			if err := tracker.Step(); err != nil {
				return nil, fmt.Errorf("rms offsets: %w", err)
			}
			if out.FoldAt(ix, iy) <= 2 {
				continue
			}
			offsets = offsets[:0]
			for _, row := range validRows(l, ix, iy) {
				if use(row) {
					offsets = append(offsets, float64(row[binning.FieldOffset]))
				}
			}
			if len(offsets) <= 2 {
				continue
			}
			v := rmsIncrement(offsets, &steps)
			r.Values[out.Index(ix, iy)] = v
			r.Min = math.Min(r.Min, v)
			r.Max = math.Max(r.Max, v)
			bins++
		}
	}
	if bins == 0 {
		r.Min, r.Max = 0, 0
	}
	logf("rms offsets: %d bins, range %.2f..%.2f m", bins, r.Min, r.Max)
	return r, nil
}

// rmsIncrement sorts offsets in place. steps is reused between bins.
func rmsIncrement(offsets []float64, steps *[]float64) float64 {
	sort.Float64s(offsets)
	n := len(offsets)
	ideal := (offsets[n-1] - offsets[0]) / float64(n-1)

	d := (*steps)[:0]
	for i := 1; i < n; i++ {
		d = append(d, offsets[i]-offsets[i-1])
	}
	floats.AddConst(-ideal, d)
	*steps = d
	return floats.Norm(d, 2) / math.Sqrt(float64(len(d)))
}
