package analysis

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roll.survey/internal/binning"
	"github.com/banshee-data/roll.survey/internal/progress"
	"github.com/banshee-data/roll.survey/internal/survey"
	"github.com/banshee-data/roll.survey/internal/survey/surveytest"
)

type trace struct{ off, az float32 }

type cell struct{ ix, iy int }

// ledgerOutput builds a full output with the given traces per bin, setting
// fold and offset range the way the binning engine does.
func ledgerOutput(t *testing.T, nx, ny, maxFold int, bins map[cell][]trace) *binning.Output {
	t.Helper()
	out, err := binning.NewOutput(nx, ny, maxFold)
	require.NoError(t, err)
	for c, traces := range bins {
		k := out.Index(c.ix, c.iy)
		for n, tr := range traces {
			row := out.Ledger.Row(c.ix, c.iy, n)
			row[binning.FieldFold] = float32(n + 1)
			row[binning.FieldOffset] = tr.off
			row[binning.FieldAzimuth] = tr.az
			out.Fold[k]++
			out.MinOffset[k] = math.Min(out.MinOffset[k], float64(tr.off))
			out.MaxOffset[k] = math.Max(out.MaxOffset[k], float64(tr.off))
		}
	}
	return out
}

func offsetsOf(out *binning.Output, ix, iy int) []float32 {
	var got []float32
	for _, row := range validRows(out.Ledger, ix, iy) {
		got = append(got, row[binning.FieldOffset])
	}
	return got
}

func fullOrthogonal(t *testing.T) *binning.Output {
	t.Helper()
	s := surveytest.Orthogonal()
	out, err := binning.BinFromTemplates(context.Background(), s, surveytest.MustPrepare(s), binning.Options{Full: true})
	require.NoError(t, err)
	return out
}

func TestComputeEnvelope(t *testing.T) {
	out, err := binning.NewOutput(3, 1, 0)
	require.NoError(t, err)
	out.Fold[0], out.MinOffset[0], out.MaxOffset[0] = 3, 10, 50
	out.Fold[1], out.MinOffset[1], out.MaxOffset[1] = 1, 30, 30

	want := Envelope{MinFold: 0, MaxFold: 3, MinMinOffset: 10, MaxMinOffset: 30, MinMaxOffset: 30, MaxMaxOffset: 50}
	assert.Equal(t, want, ComputeEnvelope(out))
}

func TestComputeEnvelope_Empty(t *testing.T) {
	out, err := binning.NewOutput(2, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, Envelope{}, ComputeEnvelope(out))
}

func TestComputeEnvelope_MatchesGrid(t *testing.T) {
	out := fullOrthogonal(t)
	e := ComputeEnvelope(out)

	minMin, maxMax := math.Inf(1), math.Inf(-1)
	for k, f := range out.Fold {
		if f == 0 {
			continue
		}
		minMin = math.Min(minMin, out.MinOffset[k])
		maxMax = math.Max(maxMax, out.MaxOffset[k])
	}
	assert.Equal(t, 0, e.MinFold)
	assert.Equal(t, 4, e.MaxFold)
	assert.Equal(t, minMin, e.MinMinOffset)
	assert.Equal(t, maxMax, e.MaxMaxOffset)
	assert.LessOrEqual(t, e.MinMaxOffset, e.MaxMaxOffset)
	assert.LessOrEqual(t, e.MinMinOffset, e.MaxMinOffset)
}

var slotted = map[cell][]trace{
	{0, 0}: {{120, 10}, {150, 11}, {310, 10}, {260, 30}},
}

var slots = survey.Unique{Apply: true, DOffset: 200, DAzimuth: 5}

func TestUniqueOffsets(t *testing.T) {
	out := ledgerOutput(t, 1, 1, 6, slotted)

	st, err := UniqueOffsets(context.Background(), out, slots, Options{})
	require.NoError(t, err)
	assert.Equal(t, UniqueStats{Bins: 1, Traces: 4, Unique: 3}, st)

	assert.Equal(t, uint32(3), out.FoldAt(0, 0))
	assert.Equal(t, 120.0, out.MinOffset[0])
	assert.Equal(t, 310.0, out.MaxOffset[0])
	assert.Equal(t, []float32{120, 310, 260, 150}, offsetsOf(out, 0, 0), "flagged rows first, in order")

	var flags []float32
	for _, row := range validRows(out.Ledger, 0, 0) {
		flags = append(flags, row[binning.FieldUnique])
	}
	assert.Equal(t, []float32{-1, -1, -1, 0}, flags)
}

func TestUniqueOffsets_WriteBackIsIdempotent(t *testing.T) {
	out := ledgerOutput(t, 1, 1, 6, slotted)
	opts := Options{WriteBack: true}

	first, err := UniqueOffsets(context.Background(), out, slots, opts)
	require.NoError(t, err)
	assert.Equal(t, []float32{200, 400, 200, 200}, offsetsOf(out, 0, 0))
	assert.Equal(t, 200.0, out.MinOffset[0])
	assert.Equal(t, 400.0, out.MaxOffset[0])

	fold := slices.Clone(out.Fold)
	mins, maxs := slices.Clone(out.MinOffset), slices.Clone(out.MaxOffset)

	second, err := UniqueOffsets(context.Background(), out, slots, opts)
	require.NoError(t, err)
	assert.Equal(t, first.Unique, second.Unique)
	assert.Equal(t, fold, out.Fold)
	assert.Equal(t, mins, out.MinOffset)
	assert.Equal(t, maxs, out.MaxOffset)
}

func TestUniqueOffsets_OrthogonalTwice(t *testing.T) {
	out := fullOrthogonal(t)
	p := survey.Unique{Apply: true, DOffset: 50, DAzimuth: 10}
	opts := Options{WriteBack: true}

	first, err := UniqueOffsets(context.Background(), out, p, opts)
	require.NoError(t, err)
	assert.Equal(t, 48, first.Traces)
	assert.Equal(t, first.Unique, out.Traces())

	snapshot := struct {
		Fold     []uint32
		Min, Max []float64
	}{slices.Clone(out.Fold), slices.Clone(out.MinOffset), slices.Clone(out.MaxOffset)}

	second, err := UniqueOffsets(context.Background(), out, p, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	if diff := cmp.Diff(snapshot.Fold, out.Fold); diff != "" {
		t.Errorf("fold changed on second pass (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(snapshot.Min, out.MinOffset); diff != "" {
		t.Errorf("min offsets changed (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(snapshot.Max, out.MaxOffset); diff != "" {
		t.Errorf("max offsets changed (-first +second):\n%s", diff)
	}
}

func TestUniqueOffsets_Errors(t *testing.T) {
	noLedger, err := binning.NewOutput(1, 1, 0)
	require.NoError(t, err)
	_, err = UniqueOffsets(context.Background(), noLedger, slots, Options{})
	assert.ErrorIs(t, err, ErrNoLedger)

	out := ledgerOutput(t, 1, 1, 4, slotted)
	_, err = UniqueOffsets(context.Background(), out, survey.Unique{DOffset: 0, DAzimuth: 5}, Options{})
	assert.ErrorIs(t, err, survey.ErrInvalidSurvey)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = UniqueOffsets(ctx, out, slots, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, progress.ErrCancelled))
}

func TestRMSOffsets(t *testing.T) {
	out := ledgerOutput(t, 2, 2, 4, map[cell][]trace{
		{0, 0}: {{100, 0}, {400, 0}, {200, 0}},
		{0, 1}: {{10, 0}, {20, 0}},
		{1, 0}: {{100, 0}, {200, 0}, {300, 0}},
	})

	r, err := RMSOffsets(context.Background(), out, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 50, r.At(0, 0), 1e-9)
	assert.Equal(t, 0.0, r.At(0, 1), "two traces are not enough")
	assert.InDelta(t, 0, r.At(1, 0), 1e-9, "evenly spread")
	assert.Equal(t, 0.0, r.At(1, 1))
	assert.InDelta(t, 0, r.Min, 1e-9)
	assert.InDelta(t, 50, r.Max, 1e-9)
}

func TestRMSOffsets_NoBins(t *testing.T) {
	out := ledgerOutput(t, 1, 1, 4, map[cell][]trace{{0, 0}: {{10, 0}}})
	r, err := RMSOffsets(context.Background(), out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Min)
	assert.Equal(t, 0.0, r.Max)
}

var histTraces = map[cell][]trace{
	{0, 0}: {{10, -180}, {60, 0}},
	{0, 1}: {{60, 180}, {149, 45}},
}

func TestOffsetHistogram(t *testing.T) {
	out := ledgerOutput(t, 1, 2, 4, histTraces)

	h, err := OffsetHistogram(out, 50, Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 50, 100, 150, 200}, h.Edges)
	assert.Equal(t, []float64{1, 2, 1, 0}, h.Counts)
	assert.Equal(t, 4.0, h.Total())
}

func TestOffsetHistogram_UniqueOnly(t *testing.T) {
	out := ledgerOutput(t, 1, 2, 4, histTraces)

	h, err := OffsetHistogram(out, 50, Options{UniqueOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 4.0, h.Total(), "no flags yet, so every trace counts")

	out.Ledger.Row(0, 1, 1)[binning.FieldUnique] = binning.UniqueFlag
	h, err = OffsetHistogram(out, 50, Options{UniqueOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 0}, h.Counts)
}

func TestAzimuthOffsetHistogram(t *testing.T) {
	out := ledgerOutput(t, 1, 2, 4, histTraces)

	h, err := AzimuthOffsetHistogram(out, 90, 100, Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{-180, -90, 0, 90, 180}, h.AzimuthEdges)
	assert.Equal(t, []float64{0, 100, 200, 300}, h.OffsetEdges)

	r, c := h.Counts.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 3, c)
	assert.Equal(t, 1.0, h.At(0, 0))
	assert.Equal(t, 1.0, h.At(2, 0))
	assert.Equal(t, 1.0, h.At(2, 1))
	assert.Equal(t, 1.0, h.At(3, 0), "azimuth 180 lands in the last bin")

	total := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			total += h.At(i, j)
		}
	}
	assert.Equal(t, 4.0, total)
}

func TestHistograms_Orthogonal(t *testing.T) {
	out := fullOrthogonal(t)

	h, err := OffsetHistogram(out, DefaultOffsetStep, Options{})
	require.NoError(t, err)
	assert.Equal(t, 48.0, h.Total())
	e := ComputeEnvelope(out)
	assert.Greater(t, h.Edges[len(h.Edges)-1], e.MaxMaxOffset)

	ah, err := AzimuthOffsetHistogram(out, DefaultAzimuthStep, DefaultAziOffsetStep, Options{})
	require.NoError(t, err)
	r, _ := ah.Counts.Dims()
	assert.Equal(t, 72, r)
}

func TestHistograms_Errors(t *testing.T) {
	noLedger, err := binning.NewOutput(1, 1, 0)
	require.NoError(t, err)
	_, err = OffsetHistogram(noLedger, 50, Options{})
	assert.ErrorIs(t, err, ErrNoLedger)

	empty := ledgerOutput(t, 1, 1, 2, nil)
	_, err = AzimuthOffsetHistogram(empty, 5, 100, Options{})
	assert.ErrorIs(t, err, ErrNoTraces)
}
