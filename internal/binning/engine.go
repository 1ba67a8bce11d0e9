package binning

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/geom"
	"github.com/banshee-data/roll.survey/internal/reflector"
	"github.com/banshee-data/roll.survey/internal/survey"
)

// Stats counts what happened to candidate traces.
type Stats struct {
	Shots     int // Shot calls
	Traces    int // binned
	OutOfGrid int // passed every filter but fell outside the grid
	Truncated int // binned, but the bin's ledger was already full
}

// Engine bins the traces of one shot at a time into an Output.
type Engine struct {
	s     *survey.Survey
	tr    *survey.Transforms
	model reflector.Model
	out   *Output
	stats Stats
}

// NewEngine returns an engine writing into out. The ledger is filled when
// out has one.
func NewEngine(s *survey.Survey, tr *survey.Transforms, model reflector.Model, out *Output) *Engine {
	return &Engine{s: s, tr: tr, model: model, out: out}
}

// Output returns the grid being written.
func (e *Engine) Output() *Output { return e.out }

// Stats returns the counters accumulated so far.
func (e *Engine) Stats() Stats { return e.stats }

// Shot bins every trace from src to recs that survives the reflection
// model, the output area, the offset rectangle and the radial offset range.
// It returns the number of traces binned.
func (e *Engine) Shot(src r3.Vector, recs []r3.Vector) int {
	e.stats.Shots++
	if len(recs) == 0 {
		return 0
	}
	cmps, recs := e.model.Reflect(src, recs)

	area := e.s.Output
	offRect := e.s.Offset.Rect
	limitRect := geom.IsSet(offRect)
	rMin, rMax := e.s.Offset.RadMin, e.s.Offset.RadMax

	n := 0
	for i, cmp := range cmps {
		if !geom.Contains(area, cmp.X, cmp.Y) {
			continue
		}
		rec := recs[i]
		dx, dy := rec.X-src.X, rec.Y-src.Y
		if limitRect && !geom.Contains(offRect, dx, dy) {
			continue
		}
		hyp := math.Hypot(dx, dy)
		if rMax > 0 && (hyp < rMin || hyp > rMax) {
			continue
		}
		ix, iy, ok := e.tr.BinIndex(cmp.X, cmp.Y)
		if !ok {
			e.stats.OutOfGrid++
			continue
		}
		e.add(ix, iy, src, rec, cmp, dx, dy, hyp)
		n++
	}
	e.stats.Traces += n
	return n
}

func (e *Engine) add(ix, iy int, src, rec, cmp r3.Vector, dx, dy, hyp float64) {
	o := e.out
	k := o.Index(ix, iy)
	fold := int(o.Fold[k])

	if o.Ledger != nil {
		if fold < o.Ledger.MaxFold {
			line, stake := e.tr.LineStake(cmp)
			row := o.Ledger.Row(ix, iy, fold)
			row[FieldStake] = float32(stake)
			row[FieldLine] = float32(line)
			row[FieldFold] = float32(fold + 1)
			row[FieldSrcX] = float32(src.X)
			row[FieldSrcY] = float32(src.Y)
			row[FieldRecX] = float32(rec.X)
			row[FieldRecY] = float32(rec.Y)
			row[FieldCmpX] = float32(cmp.X)
			row[FieldCmpY] = float32(cmp.Y)
			row[FieldTWT] = float32(e.model.TravelTime(src, cmp, rec))
			row[FieldOffset] = float32(hyp)
			row[FieldAzimuth] = float32(math.Atan2(dy, dx) * 180 / math.Pi)
			row[FieldUnique] = 0
		} else {
			e.stats.Truncated++
		}
	}

	o.Fold[k]++
	o.MinOffset[k] = math.Min(o.MinOffset[k], hyp)
	o.MaxOffset[k] = math.Max(o.MaxOffset[k], hyp)
}
