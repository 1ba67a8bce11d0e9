package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/roll.survey/internal/binning"
	"github.com/banshee-data/roll.survey/internal/progress"
)

// FloorDB is the response, in dB, given to a wavenumber with no energy.
const FloorDB = -100.0

// KRange is a wavenumber axis in 1/m. Max is included.
type KRange struct {
	Min, Max, Step float64
}

// Default wavenumber axes: 0..50 /km for the radial stack, -50..50 /km for
// the Kx-Ky stack.
var (
	DefaultKrRange  = KRange{Min: 0, Max: 0.05, Step: 0.0005}
	DefaultKxyRange = KRange{Min: -0.05, Max: 0.05, Step: 0.001}
)

// Values returns the wavenumbers of the axis.
func (k KRange) Values() ([]float64, error) {
	if k.Step <= 0 || k.Max < k.Min {
		return nil, fmt.Errorf("invalid wavenumber range %v..%v step %v", k.Min, k.Max, k.Step)
	}
	n := int(math.Floor((k.Max-k.Min)/k.Step+1e-9)) + 1
	v := make([]float64, n)
	if n == 1 {
		v[0] = k.Min
		return v, nil
	}
	floats.Span(v, k.Min, k.Min+float64(n-1)*k.Step)
	return v, nil
}

// RadialStack is the stack response of every bin along one grid line as a
// function of radial wavenumber. Row i is bin i along the line.
type RadialStack struct {
	K  []float64
	DB *mat.Dense
}

// KxKyStack is the stack response of one bin over a square Kx-Ky grid.
// Rows follow Kx, columns Ky.
type KxKyStack struct {
	K  []float64
	DB *mat.Dense
}

// toDB converts a normalised amplitude to dB, clamped at FloorDB.
func toDB(a float64) float64 {
	if a <= 0 {
		return FloorDB
	}
	return math.Max(20*math.Log10(a), FloorDB)
}

// radialResponse returns |sum exp(2 pi i k r)| / len(offsets) in dB for every k.
func radialResponse(dst, ks, offsets []float64) {
	for j, k := range ks {
		if len(offsets) == 0 {
			dst[j] = FloorDB
			continue
		}
		var re, im float64
		for _, r := range offsets {
			s, c := math.Sincos(2 * math.Pi * k * r)
			re += c
			im += s
		}
		dst[j] = toDB(math.Hypot(re, im) / float64(len(offsets)))
	}
}

// InlineStack computes the radial stack response of every bin of row iy.
func InlineStack(ctx context.Context, out *binning.Output, iy int, k KRange, opts Options) (*RadialStack, error) {
	if iy < 0 || iy >= out.Ny {
		return nil, fmt.Errorf("row %d outside grid of %d rows", iy, out.Ny)
	}
	return lineStack(ctx, out, out.Nx, k, opts, func(i int) (int, int) { return i, iy })
}

// CrosslineStack computes the radial stack response of every bin of column ix.
func CrosslineStack(ctx context.Context, out *binning.Output, ix int, k KRange, opts Options) (*RadialStack, error) {
	if ix < 0 || ix >= out.Nx {
		return nil, fmt.Errorf("column %d outside grid of %d columns", ix, out.Nx)
	}
	return lineStack(ctx, out, out.Ny, k, opts, func(i int) (int, int) { return ix, i })
}

func lineStack(ctx context.Context, out *binning.Output, n int, k KRange, opts Options, bin func(int) (int, int)) (*RadialStack, error) {
	l := out.Ledger
	if l == nil {
		return nil, ErrNoLedger
	}
	ks, err := k.Values()
	if err != nil {
		return nil, err
	}
	use := selector(l, opts.UniqueOnly)
	st := &RadialStack{K: ks, DB: mat.NewDense(n, len(ks), nil)}
	tracker := progress.NewTracker(ctx, n, opts.Progress)
	var offsets []float64
	for i := 0; i < n; i++ {
		if err := tracker.Step(); err != nil {
			return nil, fmt.Errorf("radial stack: %w", err)
		}
		ix, iy := bin(i)
		offsets = offsets[:0]
		for _, row := range validRows(l, ix, iy) {
			if use(row) {
				offsets = append(offsets, float64(row[binning.FieldOffset]))
			}
		}
		radialResponse(st.DB.RawRowView(i), ks, offsets)
	}
	return st, nil
}

// OffsetVectors returns the x and y components of the source to receiver
// vector of every selected trace in bin (ix, iy).
func OffsetVectors(out *binning.Output, ix, iy int, opts Options) (dx, dy []float64, err error) {
	l := out.Ledger
	if l == nil {
		return nil, nil, ErrNoLedger
	}
	if ix < 0 || ix >= out.Nx || iy < 0 || iy >= out.Ny {
		return nil, nil, fmt.Errorf("bin (%d, %d) outside %d x %d grid", ix, iy, out.Nx, out.Ny)
	}
	use := selector(l, opts.UniqueOnly)
	for _, row := range validRows(l, ix, iy) {
		if !use(row) {
			continue
		}
		dx = append(dx, float64(row[binning.FieldRecX]-row[binning.FieldSrcX]))
		dy = append(dy, float64(row[binning.FieldRecY]-row[binning.FieldSrcY]))
	}
	return dx, dy, nil
}

// kxkyResponse fills dst with |sum exp(2 pi i (kx x + ky y))| / len(x) in dB.
func kxkyResponse(dst *mat.Dense, ks, x, y []float64) {
	for i, kx := range ks {
		for j, ky := range ks {
			if len(x) == 0 {
				dst.Set(i, j, FloorDB)
				continue
			}
			var re, im float64
			for p := range x {
				s, c := math.Sincos(2 * math.Pi * (kx*x[p] + ky*y[p]))
				re += c
				im += s
			}
			dst.Set(i, j, toDB(math.Hypot(re, im)/float64(len(x))))
		}
	}
}

// CellStack computes the Kx-Ky stack response of bin (ix, iy). Each pattern
// given adds its own Kx-Ky response in dB, which is how a source or
// receiver array filters the stack.
func CellStack(out *binning.Output, ix, iy int, k KRange, patterns [][]r3.Vector, opts Options) (*KxKyStack, error) {
	ks, err := k.Values()
	if err != nil {
		return nil, err
	}
	dx, dy, err := OffsetVectors(out, ix, iy, opts)
	if err != nil {
		return nil, err
	}
	st := &KxKyStack{K: ks, DB: mat.NewDense(len(ks), len(ks), nil)}
	kxkyResponse(st.DB, ks, dx, dy)
	for _, p := range patterns {
		resp := PatternResponse(ks, p)
		st.DB.Add(st.DB, resp)
	}
	return st, nil
}

// PatternResponse is the Kx-Ky response in dB of the elements of a source
// or receiver array.
func PatternResponse(ks []float64, elements []r3.Vector) *mat.Dense {
	x := make([]float64, len(elements))
	y := make([]float64, len(elements))
	for i, e := range elements {
		x[i], y[i] = e.X, e.Y
	}
	resp := mat.NewDense(len(ks), len(ks), nil)
	kxkyResponse(resp, ks, x, y)
	return resp
}
