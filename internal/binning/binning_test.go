package binning

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roll.survey/internal/geom"
	"github.com/banshee-data/roll.survey/internal/progress"
	"github.com/banshee-data/roll.survey/internal/records"
	"github.com/banshee-data/roll.survey/internal/reflector"
	"github.com/banshee-data/roll.survey/internal/survey"
	"github.com/banshee-data/roll.survey/internal/survey/surveytest"
)

// orthogonalRows are the populated bin rows of the orthogonal fixture. Each
// holds 2, 4, 4, 2 traces across the four columns.
var orthogonalRows = []int{0, 8, 12, 20}

func foldGrid(o *Output) [][]uint32 {
	g := make([][]uint32, o.Nx)
	for ix := range g {
		g[ix] = make([]uint32, o.Ny)
		for iy := range g[ix] {
			g[ix][iy] = o.FoldAt(ix, iy)
		}
	}
	return g
}

func binTemplates(t *testing.T, s *survey.Survey, full bool) *Output {
	t.Helper()
	tr := surveytest.MustPrepare(s)
	out, err := BinFromTemplates(context.Background(), s, tr, Options{Full: full})
	require.NoError(t, err)
	return out
}

func TestBinFromTemplates_Orthogonal(t *testing.T) {
	out := binTemplates(t, surveytest.Orthogonal(), false)
	require.Equal(t, 4, out.Nx)
	require.Equal(t, 22, out.Ny)
	assert.Nil(t, out.Ledger)
	assert.Equal(t, 48, out.Traces())

	perColumn := []uint32{2, 4, 4, 2}
	for ix := 0; ix < out.Nx; ix++ {
		for iy := 0; iy < out.Ny; iy++ {
			want := uint32(0)
			for _, row := range orthogonalRows {
				if iy == row {
					want = perColumn[ix]
				}
			}
			assert.Equal(t, want, out.FoldAt(ix, iy), "bin (%d, %d)", ix, iy)
		}
	}

	k := out.Index(1, 8)
	assert.InDelta(t, 210.37169486411426, out.MinOffset[k], 1e-9)
	assert.InDelta(t, 227.5, out.MaxOffset[k], 1e-9)
	k = out.Index(0, 0)
	assert.InDelta(t, math.Hypot(12.5, 10), out.MinOffset[k], 1e-9)
	assert.InDelta(t, math.Hypot(37.5, 10), out.MaxOffset[k], 1e-9)

	empty := out.Index(2, 3)
	assert.True(t, math.IsInf(out.MinOffset[empty], 1))
	assert.True(t, math.IsInf(out.MaxOffset[empty], -1))
}

func TestBinFromTemplates_FlatPlaneMatchesCMP(t *testing.T) {
	straight := binTemplates(t, surveytest.Orthogonal(), false)

	s := surveytest.Orthogonal()
	s.Binning.Method = survey.MethodPlane
	s.GlobalPlane = geom.NewPlane(r3.Vector{Z: -2000}, 0, 0)
	plane := binTemplates(t, s, false)

	assert.Equal(t, foldGrid(straight), foldGrid(plane))
	opt := cmpopts.EquateApprox(0, 1e-9)
	assert.True(t, cmp.Equal(straight.MinOffset, plane.MinOffset, opt))
	assert.True(t, cmp.Equal(straight.MaxOffset, plane.MaxOffset, opt))
}

func TestBinFromTemplates_Ledger(t *testing.T) {
	out := binTemplates(t, surveytest.Orthogonal(), true)
	require.NotNil(t, out.Ledger)
	assert.Equal(t, 8, out.Ledger.MaxFold)

	rows := out.Ledger.Rows(0, 0, int(out.FoldAt(0, 0)))
	require.Len(t, rows, 2)
	r := rows[0]
	assert.Equal(t, float32(1000), r[FieldStake])
	assert.Equal(t, float32(1000), r[FieldLine])
	assert.Equal(t, float32(1), r[FieldFold])
	assert.Equal(t, float32(0), r[FieldSrcX])
	assert.Equal(t, float32(12.5), r[FieldRecX])
	assert.Equal(t, float32(10), r[FieldRecY])
	assert.Equal(t, float32(6.25), r[FieldCmpX])
	assert.Equal(t, float32(5), r[FieldCmpY])
	off := math.Hypot(12.5, 10)
	assert.InDelta(t, off, r[FieldOffset], 1e-4)
	assert.InDelta(t, off*0.5, r[FieldTWT], 1e-4, "straight ray at 2000 m/s")
	assert.InDelta(t, math.Atan2(10, 12.5)*180/math.Pi, r[FieldAzimuth], 1e-4)
	assert.Equal(t, float32(0), r[FieldUnique])
	assert.Equal(t, float32(2), rows[1][FieldFold])

	// slots beyond the fold stay empty
	assert.Equal(t, float32(0), out.Ledger.Row(0, 0, 2)[FieldFold])
}

func TestBinFromTemplates_LedgerTruncation(t *testing.T) {
	s := surveytest.Orthogonal()
	s.Grid.MaxFold = 3
	tr := surveytest.MustPrepare(s)
	model, err := reflector.New(s.Binning.Method, tr, s.Angles, s.Binning.Velocity)
	require.NoError(t, err)
	out, err := NewOutput(tr.Nx, tr.Ny, s.Grid.MaxFold)
	require.NoError(t, err)
	e := NewEngine(s, tr, model, out)
	require.NoError(t, templateShots(s, e, progress.NewTracker(context.Background(), 0, nil)))

	assert.Equal(t, uint32(4), out.FoldAt(1, 0), "fold keeps counting past the ledger")
	assert.Equal(t, float32(3), out.Ledger.Row(1, 0, 2)[FieldFold])
	assert.Equal(t, 8, e.Stats().Truncated)
}

func TestBinFromTemplates_DerivedMaxFold(t *testing.T) {
	s := surveytest.Orthogonal()
	s.Grid.MaxFold = 0
	out := binTemplates(t, s, true)
	require.NotNil(t, out.Ledger)
	assert.Equal(t, 4, out.Ledger.MaxFold)
	assert.Equal(t, 4, out.MaxFold)
}

func TestBinFromTemplates_RadialOffsets(t *testing.T) {
	s := surveytest.Orthogonal()
	s.Offset.RadMin = 100
	s.Offset.RadMax = 250
	out := binTemplates(t, s, false)

	assert.Equal(t, uint32(0), out.FoldAt(1, 0))
	assert.Equal(t, uint32(4), out.FoldAt(1, 8))
	assert.Equal(t, uint32(0), out.FoldAt(1, 12))
	for ix := 0; ix < out.Nx; ix++ {
		for _, iy := range orthogonalRows {
			if f := out.FoldAt(ix, iy); f > 0 {
				k := out.Index(ix, iy)
				assert.GreaterOrEqual(t, out.MinOffset[k], 100.0)
				assert.LessOrEqual(t, out.MaxOffset[k], 250.0)
			}
		}
	}
}

func TestBinFromTemplates_OffsetRect(t *testing.T) {
	s := surveytest.Orthogonal()
	// receivers north-east of the source only
	s.Offset.Rect = geom.Rect(0, 0, 1000, 1000)
	out := binTemplates(t, s, false)
	assert.Equal(t, uint32(0), out.FoldAt(0, 12), "negative crossline offsets are cut")
	assert.Less(t, out.Traces(), 48)
}

func TestEngine_Shot(t *testing.T) {
	s := surveytest.Orthogonal()
	tr := surveytest.MustPrepare(s)
	out, err := NewOutput(tr.Nx, tr.Ny, 0)
	require.NoError(t, err)
	e := NewEngine(s, tr, &reflector.CMP{}, out)

	src := r3.Vector{X: 40, Y: 40}
	recs := []r3.Vector{
		{X: 50, Y: 40},  // offset 10
		{X: 58, Y: 40},  // offset 18
		{X: 42, Y: 40},  // offset 2
		{X: 100, Y: 0},  // cmp (70, 20): another bin
		{X: 160, Y: 40}, // cmp on the right edge of the area, outside the grid
		{X: 900, Y: 40}, // cmp outside the output area
	}
	assert.Equal(t, 4, e.Shot(src, recs))

	k := out.Index(1, 3)
	assert.Equal(t, uint32(3), out.Fold[k])
	assert.Equal(t, 2.0, out.MinOffset[k])
	assert.Equal(t, 18.0, out.MaxOffset[k])
	assert.Equal(t, uint32(1), out.FoldAt(2, 1))

	st := e.Stats()
	assert.Equal(t, 1, st.Shots)
	assert.Equal(t, 4, st.Traces)
	assert.Equal(t, 1, st.OutOfGrid)

	assert.Equal(t, 0, e.Shot(src, nil))
}

func TestBinFromGeometry_MatchesTemplates(t *testing.T) {
	fixtures := map[string]func() *survey.Survey{
		"orthogonal": surveytest.Orthogonal,
		"split line": surveytest.SplitLine,
		"rolled":     func() *survey.Survey { return surveytest.Rolled(3, 2) },
		"overlapped": func() *survey.Survey { return surveytest.Overlapped(4) },
	}
	for name, build := range fixtures {
		t.Run(name, func(t *testing.T) {
			s := build()
			tr := surveytest.MustPrepare(s)
			want, err := BinFromTemplates(context.Background(), s, tr, Options{})
			require.NoError(t, err)

			tables, err := records.Generate(context.Background(), s, tr, records.Options{})
			require.NoError(t, err)
			got, err := BinFromGeometry(context.Background(), s, tr, tables, Options{})
			require.NoError(t, err)

			assert.Equal(t, foldGrid(want), foldGrid(got))
			assert.Equal(t, want.Traces(), got.Traces())
			for i := range want.MinOffset {
				if want.Fold[i] > 0 {
					assert.InDelta(t, want.MinOffset[i], got.MinOffset[i], 1e-9)
					assert.InDelta(t, want.MaxOffset[i], got.MaxOffset[i], 1e-9)
				}
			}
		})
	}
}

// Shots that repeat a source station must still contribute their traces
// once, whichever strategy wrote the records.
func TestBinFromGeometry_RepeatedSourceStations(t *testing.T) {
	for _, strategy := range []records.Strategy{records.PerShot, records.PerTemplate} {
		t.Run(strategy.String(), func(t *testing.T) {
			s := surveytest.Overlapped(4)
			tr := surveytest.MustPrepare(s)
			want, err := BinFromTemplates(context.Background(), s, tr, Options{Full: true})
			require.NoError(t, err)

			tables, err := records.Generate(context.Background(), s, tr, records.Options{Strategy: strategy})
			require.NoError(t, err)
			shots := make(map[records.Key]int)
			for i := range tables.Src {
				shots[tables.Src[i].Key()]++
			}
			require.Less(t, len(shots), len(tables.Src), "fixture repeats source stations")

			before := tables.Clone()
			got, err := BinFromGeometry(context.Background(), s, tr, tables, Options{Full: true})
			require.NoError(t, err)

			assert.Equal(t, want.Traces(), got.Traces())
			assert.Equal(t, foldGrid(want), foldGrid(got))
			assert.Equal(t, want.MaxFoldSeen(), got.MaxFoldSeen())
			assert.Empty(t, cmp.Diff(before, tables), "record order is left as generated")
		})
	}
}

func TestBinFromGeometry_ImportedCoordinates(t *testing.T) {
	s := surveytest.Orthogonal()
	s.Grid.Origin.X = 400000
	s.Grid.Origin.Y = 7000000
	tr := surveytest.MustPrepare(s)
	want, err := BinFromTemplates(context.Background(), s, tr, Options{})
	require.NoError(t, err)

	tables, err := records.Generate(context.Background(), s, tr, records.Options{})
	require.NoError(t, err)
	for i := range tables.Src {
		tables.Src[i].LocX, tables.Src[i].LocY = 0, 0
	}
	for i := range tables.Rec {
		tables.Rec[i].LocX, tables.Rec[i].LocY = 0, 0
	}
	got, err := BinFromGeometry(context.Background(), s, tr, tables, Options{})
	require.NoError(t, err)
	assert.Equal(t, foldGrid(want), foldGrid(got))
}

func TestBinFromGeometry_Empty(t *testing.T) {
	s := surveytest.Orthogonal()
	tr := surveytest.MustPrepare(s)
	_, err := BinFromGeometry(context.Background(), s, tr, &records.Tables{}, Options{})
	assert.True(t, errors.Is(err, ErrNoGeometry))
}

func TestBinFromTemplates_Cancelled(t *testing.T) {
	s := surveytest.Rolled(20, 10)
	tr := surveytest.MustPrepare(s)
	ctx, cancel := context.WithCancel(context.Background())
	last := 0
	_, err := BinFromTemplates(ctx, s, tr, Options{Progress: func(p int) {
		last = p
		if p == 50 {
			cancel()
		}
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, progress.ErrCancelled))
	assert.Equal(t, 50, last)
}

func TestNewOutput(t *testing.T) {
	_, err := NewOutput(0, 5, 0)
	assert.Error(t, err)

	o, err := NewOutput(2, 3, 4)
	require.NoError(t, err)
	o.Fold[o.Index(1, 2)] = 7
	o.Ledger.Row(1, 2, 3)[FieldFold] = 4
	assert.Len(t, o.Ledger.Cell(1, 2), 4*LedgerFields)
	assert.Equal(t, float32(4), o.Ledger.Cell(1, 2)[3*LedgerFields+FieldFold])
	assert.Equal(t, 7, o.MaxFoldSeen())

	o.Reset()
	assert.Equal(t, 0, o.Traces())
	assert.Equal(t, float32(0), o.Ledger.Row(1, 2, 3)[FieldFold])
	assert.True(t, math.IsInf(o.MinOffset[0], 1))
}
