package binning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/geom"
	"github.com/banshee-data/roll.survey/internal/monitoring"
	"github.com/banshee-data/roll.survey/internal/progress"
	"github.com/banshee-data/roll.survey/internal/records"
	"github.com/banshee-data/roll.survey/internal/reflector"
	"github.com/banshee-data/roll.survey/internal/survey"
)

var logf = monitoring.Tagged("binning")

// ErrNoGeometry is returned when geometry binning is asked to work on empty
// tables.
var ErrNoGeometry = errors.New("no source, receiver or relation records")

// Options controls a binning run.
type Options struct {
	// Full also fills the per-trace ledger.
	Full     bool
	Progress progress.Func
}

// BinFromTemplates bins every shot of s by expanding its templates live.
// Seeds must have been prepared with tr. With opts.Full and no configured
// max fold, a basic pass runs first to size the ledger.
func BinFromTemplates(ctx context.Context, s *survey.Survey, tr *survey.Transforms, opts Options) (*Output, error) {
	return run(ctx, "templates", s.ShotCount(), s, tr, opts, func(e *Engine, t *progress.Tracker) error {
		return templateShots(s, e, t)
	})
}

// BinFromGeometry bins stored records. Missing local coordinates are derived
// from East/North in place; the binning order is applied to a copy.
func BinFromGeometry(ctx context.Context, s *survey.Survey, tr *survey.Transforms, tables *records.Tables, opts Options) (*Output, error) {
	if tables == nil || len(tables.Src) == 0 || len(tables.Rec) == 0 || len(tables.Rel) == 0 {
		return nil, ErrNoGeometry
	}
	tables.FillLocal(tr.ToLocal)
	sorted, spans := tables.PrepareForBinning()
	return run(ctx, "geometry", len(sorted.Src), s, tr, opts, func(e *Engine, t *progress.Tracker) error {
		return geometryShots(sorted, spans, e, t)
	})
}

// run sets up the model and grid, sizes the ledger and drives shots. total
// is the number of progress steps the driver takes.
func run(ctx context.Context, kind string, total int, s *survey.Survey, tr *survey.Transforms, opts Options,
	shots func(*Engine, *progress.Tracker) error) (*Output, error) {
	start := time.Now()
	model, err := reflector.New(s.Binning.Method, tr, s.Angles, s.Binning.Velocity)
	if err != nil {
		return nil, err
	}

	maxFold := 0
	if opts.Full {
		maxFold = s.Grid.MaxFold
		if maxFold <= 0 {
			if maxFold, err = deriveMaxFold(ctx, s, tr, model, shots); err != nil {
				return nil, err
			}
			logf("derived max fold %d from a basic %s pass", maxFold, kind)
		}
	}

	out, err := NewOutput(tr.Nx, tr.Ny, maxFold)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", survey.ErrInvalidSurvey, err)
	}
	e := NewEngine(s, tr, model, out)
	tracker := progress.NewTracker(ctx, total, opts.Progress)

	logf("binning %q from %s: %d x %d bins, %s model, full=%t", s.Name, kind, out.Nx, out.Ny, s.Binning.Method, opts.Full)
	if err := shots(e, tracker); err != nil {
		return nil, fmt.Errorf("binning from %s: %w", kind, err)
	}
	st := e.Stats()
	logf("%q: %d shots, %d traces, %d outside grid, %d beyond max fold, in %v",
		s.Name, st.Shots, st.Traces, st.OutOfGrid, st.Truncated, time.Since(start).Round(time.Millisecond))
	return out, nil
}

// deriveMaxFold runs a basic pass and returns the highest fold, at least 1.
func deriveMaxFold(ctx context.Context, s *survey.Survey, tr *survey.Transforms, model reflector.Model,
	shots func(*Engine, *progress.Tracker) error) (int, error) {
	out, err := NewOutput(tr.Nx, tr.Ny, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", survey.ErrInvalidSurvey, err)
	}
	if err := shots(NewEngine(s, tr, model, out), progress.NewTracker(ctx, 0, nil)); err != nil {
		return 0, err
	}
	return max(out.MaxFoldSeen(), 1), nil
}

func templateShots(s *survey.Survey, e *Engine, t *progress.Tracker) error {
	var recs []r3.Vector
	for nBlock := range s.Blocks {
		block := &s.Blocks[nBlock]
		for nTpl := range block.Templates {
			tpl := &block.Templates[nTpl]
			srcSeeds, recSeeds := tpl.Sources(), tpl.Receivers()
			it := tpl.Roll.Iter()
			for it.Next() {
				off := it.Offset()
				for _, srcSeed := range srcSeeds {
					for _, src := range srcSeed.PointsAt(off) {
						if err := t.Step(); err != nil {
							return err
						}
						if !geom.InBorder(block.SrcBorder, src) {
							continue
						}
						for _, recSeed := range recSeeds {
							recs = recs[:0]
							for _, rec := range recSeed.PointsAt(off) {
								if geom.InBorder(block.RecBorder, rec) {
									recs = append(recs, rec)
								}
							}
							e.Shot(src, recs)
						}
					}
				}
			}
		}
	}
	return nil
}

func geometryShots(tables *records.Tables, spans []records.Span, e *Engine, t *progress.Tracker) error {
	var (
		sel  []records.Point
		recs []r3.Vector
	)
	for i := range tables.Src {
		if err := t.Step(); err != nil {
			return err
		}
		span := spans[i]
		if span.Len() == 0 {
			continue
		}
		sel = records.SelectReceivers(tables.Rec, tables.Rel[span.Lo:span.Hi], sel[:0])
		recs = recs[:0]
		for j := range sel {
			recs = append(recs, sel[j].Local())
		}
		e.Shot(tables.Src[i].Local(), recs)
	}
	return nil
}
