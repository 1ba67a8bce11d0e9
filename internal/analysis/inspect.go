package analysis

import (
	"context"
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/binning"
)

// Attribute is the ledger value a line slice plots against the CMP position.
type Attribute int

const (
	AttrOffset Attribute = iota
	AttrAzimuth
)

func (a Attribute) field() int {
	if a == AttrAzimuth {
		return binning.FieldAzimuth
	}
	return binning.FieldOffset
}

// Segment is a horizontal tick from X0 to X1 at height Y: one trace drawn
// across the width of its bin.
type Segment struct {
	X0, X1, Y float64
}

// Leg is one spider leg of a bin: the source and receiver of a trace and
// the CMP they share.
type Leg struct {
	Src, Rec, Cmp r2.Point
}

// Bin addresses one cell of the output grid.
type Bin struct {
	X, Y int
}

// InlineSlice returns one segment per selected trace of row iy, centred on
// the trace's CMP x and halfWidth metres to either side.
func InlineSlice(out *binning.Output, iy int, attr Attribute, halfWidth float64, opts Options) ([]Segment, error) {
	if iy < 0 || iy >= out.Ny {
		return nil, fmt.Errorf("row %d outside grid of %d rows", iy, out.Ny)
	}
	return lineSlice(out, out.Nx, attr, binning.FieldCmpX, halfWidth, opts, func(i int) (int, int) { return i, iy })
}

// CrosslineSlice is InlineSlice along column ix, positioned by CMP y.
func CrosslineSlice(out *binning.Output, ix int, attr Attribute, halfWidth float64, opts Options) ([]Segment, error) {
	if ix < 0 || ix >= out.Nx {
		return nil, fmt.Errorf("column %d outside grid of %d columns", ix, out.Nx)
	}
	return lineSlice(out, out.Ny, attr, binning.FieldCmpY, halfWidth, opts, func(i int) (int, int) { return ix, i })
}

func lineSlice(out *binning.Output, n int, attr Attribute, pos int, halfWidth float64, opts Options, bin func(int) (int, int)) ([]Segment, error) {
	l := out.Ledger
	if l == nil {
		return nil, ErrNoLedger
	}
	use := selector(l, opts.UniqueOnly)
	var segs []Segment
	for i := 0; i < n; i++ {
		ix, iy := bin(i)
		for _, row := range validRows(l, ix, iy) {
			if !use(row) {
				continue
			}
			c := float64(row[pos])
			segs = append(segs, Segment{X0: c - halfWidth, X1: c + halfWidth, Y: float64(row[attr.field()])})
		}
	}
	return segs, nil
}

// Spider returns the legs of every selected trace in bin (ix, iy).
func Spider(out *binning.Output, ix, iy int, opts Options) ([]Leg, error) {
	l := out.Ledger
	if l == nil {
		return nil, ErrNoLedger
	}
	if ix < 0 || ix >= out.Nx || iy < 0 || iy >= out.Ny {
		return nil, fmt.Errorf("bin (%d, %d) outside %d x %d grid", ix, iy, out.Nx, out.Ny)
	}
	use := selector(l, opts.UniqueOnly)
	var legs []Leg
	for _, row := range validRows(l, ix, iy) {
		if !use(row) {
			continue
		}
		legs = append(legs, Leg{
			Src: r2.Point{X: float64(row[binning.FieldSrcX]), Y: float64(row[binning.FieldSrcY])},
			Rec: r2.Point{X: float64(row[binning.FieldRecX]), Y: float64(row[binning.FieldRecY])},
			Cmp: r2.Point{X: float64(row[binning.FieldCmpX]), Y: float64(row[binning.FieldCmpY])},
		})
	}
	return legs, nil
}

// FoldiestBin returns the first bin, in grid order, with the highest fold.
func FoldiestBin(out *binning.Output) Bin {
	var best Bin
	var fold uint32
	for ix := 0; ix < out.Nx; ix++ {
		for iy := 0; iy < out.Ny; iy++ {
			if f := out.FoldAt(ix, iy); f > fold {
				best, fold = Bin{X: ix, Y: iy}, f
			}
		}
	}
	return best
}

// InspectParams configures Inspect.
type InspectParams struct {
	BinSize  r2.Point // segment widths are half the bin size
	Kr       KRange
	Kxy      KRange
	Patterns [][]r3.Vector // element positions added to the cell stack
}

// Inspection holds the line and bin views through one focus bin.
type Inspection struct {
	Bin Bin

	OffsetInline     []Segment
	OffsetCrossline  []Segment
	AzimuthInline    []Segment
	AzimuthCrossline []Segment

	InlineStack    *RadialStack
	CrosslineStack *RadialStack
	CellStack      *KxKyStack
	Spider         []Leg
}

// Inspect computes the offset and azimuth slices and the radial stack
// responses along the row and column through b, and the Kx-Ky response and
// spider of b itself.
func Inspect(ctx context.Context, out *binning.Output, b Bin, p InspectParams, opts Options) (*Inspection, error) {
	if out.Ledger == nil {
		return nil, ErrNoLedger
	}
	ox, oy := p.BinSize.X/2, p.BinSize.Y/2
	in := &Inspection{Bin: b}
	var err error
	if in.OffsetInline, err = InlineSlice(out, b.Y, AttrOffset, ox, opts); err != nil {
		return nil, err
	}
	if in.AzimuthInline, err = InlineSlice(out, b.Y, AttrAzimuth, ox, opts); err != nil {
		return nil, err
	}
	if in.OffsetCrossline, err = CrosslineSlice(out, b.X, AttrOffset, oy, opts); err != nil {
		return nil, err
	}
	if in.AzimuthCrossline, err = CrosslineSlice(out, b.X, AttrAzimuth, oy, opts); err != nil {
		return nil, err
	}
	if in.InlineStack, err = InlineStack(ctx, out, b.Y, p.Kr, opts); err != nil {
		return nil, err
	}
	if in.CrosslineStack, err = CrosslineStack(ctx, out, b.X, p.Kr, opts); err != nil {
		return nil, err
	}
	if in.CellStack, err = CellStack(out, b.X, b.Y, p.Kxy, p.Patterns, opts); err != nil {
		return nil, err
	}
	if in.Spider, err = Spider(out, b.X, b.Y, opts); err != nil {
		return nil, err
	}
	logf("inspected bin (%d, %d): %d legs, %d inline and %d crossline traces",
		b.X, b.Y, len(in.Spider), len(in.OffsetInline), len(in.OffsetCrossline))
	return in, nil
}
