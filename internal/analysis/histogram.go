package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/roll.survey/internal/binning"
)

// Default histogram steps.
const (
	DefaultOffsetStep    = 50.0  // m, offset histogram
	DefaultAzimuthStep   = 5.0   // deg, azimuth/offset histogram
	DefaultAziOffsetStep = 100.0 // m, azimuth/offset histogram
)

const azimuthLo, azimuthHi = -180.0, 180.0

// Histogram counts ledger offsets in equal-width bins. Edges has one more
// element than Counts.
type Histogram struct {
	Edges  []float64
	Counts []float64
}

// Total returns the number of counted traces.
func (h *Histogram) Total() float64 { return floats.Sum(h.Counts) }

// AzimuthHistogram counts ledger traces by azimuth (rows) and offset
// (columns).
type AzimuthHistogram struct {
	AzimuthEdges []float64
	OffsetEdges  []float64
	Counts       *mat.Dense
}

// At returns the count of azimuth bin i and offset bin j.
func (h *AzimuthHistogram) At(i, j int) float64 { return h.Counts.At(i, j) }

// OffsetHistogram counts the offsets of every ledger trace in bins of dO
// metres from zero up to one step past the largest offset.
func OffsetHistogram(out *binning.Output, dO float64, opts Options) (*Histogram, error) {
	offsets, _, err := collect(out, opts)
	if err != nil {
		return nil, err
	}
	if dO <= 0 {
		dO = DefaultOffsetStep
	}
	sort.Float64s(offsets)
	nO := offsetBins(offsets[len(offsets)-1], dO)

	h := &Histogram{Edges: make([]float64, nO+1)}
	floats.Span(h.Edges, 0, float64(nO)*dO)
	h.Counts = stat.Histogram(nil, h.Edges, offsets, nil)
	return h, nil
}

// AzimuthOffsetHistogram counts traces in dA degree azimuth bins over
// [-180, 180] and dO metre offset bins. An azimuth of exactly 180 falls in
// the last azimuth bin.
func AzimuthOffsetHistogram(out *binning.Output, dA, dO float64, opts Options) (*AzimuthHistogram, error) {
	offsets, azimuths, err := collect(out, opts)
	if err != nil {
		return nil, err
	}
	if dA <= 0 {
		dA = DefaultAzimuthStep
	}
	if dO <= 0 {
		dO = DefaultAziOffsetStep
	}
	nA := int(math.Ceil((azimuthHi - azimuthLo) / dA))
	nO := offsetBins(floats.Max(offsets), dO)

	h := &AzimuthHistogram{
		AzimuthEdges: make([]float64, nA+1),
		OffsetEdges:  make([]float64, nO+1),
		Counts:       mat.NewDense(nA, nO, nil),
	}
	floats.Span(h.AzimuthEdges, azimuthLo, azimuthLo+float64(nA)*dA)
	floats.Span(h.OffsetEdges, 0, float64(nO)*dO)

	for i, off := range offsets {
		ia := min(max(int(math.Floor((azimuths[i]-azimuthLo)/dA)), 0), nA-1)
		io := min(max(int(math.Floor(off/dO)), 0), nO-1)
		h.Counts.Set(ia, io, h.Counts.At(ia, io)+1)
	}
	return h, nil
}

// offsetBins returns the number of dO bins that cover [0, ceil(maxOff/dO)·dO],
// with the upper edge itself inside the last bin.
func offsetBins(maxOff, dO float64) int {
	return int(math.Ceil(maxOff/dO)) + 1
}

// collect gathers offset and azimuth of the ledger rows selected by opts.
func collect(out *binning.Output, opts Options) (offsets, azimuths []float64, err error) {
	l := out.Ledger
	if l == nil {
		return nil, nil, ErrNoLedger
	}
	use := selector(l, opts.UniqueOnly)
	for ix := 0; ix < l.Nx; ix++ {
		for iy := 0; iy < l.Ny; iy++ {
			for _, row := range validRows(l, ix, iy) {
				if !use(row) {
					continue
				}
				offsets = append(offsets, math.Abs(float64(row[binning.FieldOffset])))
				azimuths = append(azimuths, float64(row[binning.FieldAzimuth]))
			}
		}
	}
	if len(offsets) == 0 {
		return nil, nil, ErrNoTraces
	}
	return offsets, azimuths, nil
}
