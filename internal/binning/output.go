// Package binning accumulates traces into the CMP output grid.
package binning

import (
	"fmt"
	"math"
)

// Ledger columns.
const (
	FieldStake = iota
	FieldLine
	FieldFold // 1-based slot number
	FieldSrcX
	FieldSrcY
	FieldRecX
	FieldRecY
	FieldCmpX
	FieldCmpY
	FieldTWT // ms
	FieldOffset
	FieldAzimuth // degrees, atan2 of the offset vector
	FieldUnique  // UniqueFlag for unique representatives

	LedgerFields
)

// UniqueFlag marks the representative trace of a unique offset slot.
const UniqueFlag = -1

// Ledger stores up to MaxFold trace rows for every bin.
type Ledger struct {
	Nx, Ny  int
	MaxFold int
	data    []float32
}

// NewLedger allocates a zeroed ledger.
func NewLedger(nx, ny, maxFold int) (*Ledger, error) {
	if nx <= 0 || ny <= 0 || maxFold <= 0 {
		return nil, fmt.Errorf("invalid ledger size %d x %d x %d", nx, ny, maxFold)
	}
	n := nx * ny * maxFold * LedgerFields
	if n/LedgerFields/maxFold/ny != nx {
		return nil, fmt.Errorf("ledger size %d x %d x %d overflows", nx, ny, maxFold)
	}
	return &Ledger{Nx: nx, Ny: ny, MaxFold: maxFold, data: make([]float32, n)}, nil
}

// Cell returns the MaxFold rows of one bin as a flat slice.
func (l *Ledger) Cell(ix, iy int) []float32 {
	stride := l.MaxFold * LedgerFields
	off := (ix*l.Ny + iy) * stride
	return l.data[off : off+stride : off+stride]
}

// Row returns trace slot k of a bin.
func (l *Ledger) Row(ix, iy, k int) []float32 {
	off := ((ix*l.Ny+iy)*l.MaxFold + k) * LedgerFields
	return l.data[off : off+LedgerFields : off+LedgerFields]
}

// Rows returns the n first rows of a bin, n capped at MaxFold.
func (l *Ledger) Rows(ix, iy, n int) [][]float32 {
	n = min(n, l.MaxFold)
	rows := make([][]float32, n)
	for k := range rows {
		rows[k] = l.Row(ix, iy, k)
	}
	return rows
}

// Output is the binned result over an Nx by Ny grid. Grids are stored with
// the crossline index varying fastest.
type Output struct {
	Nx, Ny    int
	Fold      []uint32
	MinOffset []float64 // +Inf where no trace landed
	MaxOffset []float64 // -Inf where no trace landed
	Ledger    *Ledger   // nil unless full analysis was requested
	MaxFold   int
}

// NewOutput allocates an empty grid. With maxFold > 0 a ledger is allocated
// as well.
func NewOutput(nx, ny, maxFold int) (*Output, error) {
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("invalid output grid %d x %d", nx, ny)
	}
	o := &Output{
		Nx:        nx,
		Ny:        ny,
		Fold:      make([]uint32, nx*ny),
		MinOffset: make([]float64, nx*ny),
		MaxOffset: make([]float64, nx*ny),
		MaxFold:   maxFold,
	}
	for i := range o.MinOffset {
		o.MinOffset[i] = math.Inf(1)
		o.MaxOffset[i] = math.Inf(-1)
	}
	if maxFold > 0 {
		l, err := NewLedger(nx, ny, maxFold)
		if err != nil {
			return nil, err
		}
		o.Ledger = l
	}
	return o, nil
}

// Index returns the flat index of bin (ix, iy).
func (o *Output) Index(ix, iy int) int {
	return ix*o.Ny + iy
}

// FoldAt returns the fold of bin (ix, iy).
func (o *Output) FoldAt(ix, iy int) uint32 {
	return o.Fold[o.Index(ix, iy)]
}

// Traces returns the total fold.
func (o *Output) Traces() int {
	n := 0
	for _, f := range o.Fold {
		n += int(f)
	}
	return n
}

// MaxFoldSeen returns the highest fold in the grid.
func (o *Output) MaxFoldSeen() int {
	m := uint32(0)
	for _, f := range o.Fold {
		m = max(m, f)
	}
	return int(m)
}

// Reset clears counters and offsets, keeping the allocation.
func (o *Output) Reset() {
	clear(o.Fold)
	for i := range o.MinOffset {
		o.MinOffset[i] = math.Inf(1)
		o.MaxOffset[i] = math.Inf(-1)
	}
	if o.Ledger != nil {
		clear(o.Ledger.data)
	}
}
