package records

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/geom"
	"github.com/banshee-data/roll.survey/internal/monitoring"
	"github.com/banshee-data/roll.survey/internal/progress"
	"github.com/banshee-data/roll.survey/internal/survey"
)

var logf = monitoring.Tagged("geometry")

// Strategy selects how records are populated.
type Strategy int

const (
	// PerShot scans every receiver seed for every shot.
	PerShot Strategy = iota
	// PerTemplate expands the receivers once per template position and
	// stamps the resulting relation runs onto every shot.
	PerTemplate
)

func (s Strategy) String() string {
	switch s {
	case PerShot:
		return "shot"
	case PerTemplate:
		return "template"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy parses "shot" or "template".
func ParseStrategy(v string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "shot":
		return PerShot, nil
	case "template":
		return PerTemplate, nil
	}
	return 0, fmt.Errorf("%w: unknown geometry strategy %q", survey.ErrInvalidSurvey, v)
}

// Options controls a geometry run.
type Options struct {
	Strategy Strategy
	Progress progress.Func
}

const (
	// rows kept free before a table grows
	spareRows = 100
	relChunk  = 1000
	recChunk  = 10000
)

// builder accumulates records for one geometry run.
type builder struct {
	tr      *survey.Transforms
	tables  Tables
	seen    map[Key]int
	shot    int
	tracker *progress.Tracker
}

// Generate expands every block, template and roll position of s into
// source, receiver and relation records. Seeds must have been prepared with
// tr. The returned tables are finalized: deduplicated, flagged and sorted.
func Generate(ctx context.Context, s *survey.Survey, tr *survey.Transforms, opts Options) (*Tables, error) {
	start := time.Now()
	total := s.ShotCount()
	b := &builder{
		tr:      tr,
		seen:    make(map[Key]int),
		tracker: progress.NewTracker(ctx, total, opts.Progress),
	}
	b.tables.Src = make([]Point, 0, total)
	b.tables.Rel = make([]Relation, 0, total)
	b.tables.Rec = make([]Point, 0, recChunk)

	logf("generating %q with %d candidate shots, %s strategy", s.Name, total, opts.Strategy)

	for nBlock := range s.Blocks {
		block := &s.Blocks[nBlock]
		index := nBlock%10 + 1
		for nTpl := range block.Templates {
			tpl := &block.Templates[nTpl]
			it := tpl.Roll.Iter()
			for it.Next() {
				off := it.Offset()
				var err error
				if opts.Strategy == PerTemplate {
					err = b.stampTemplate(block, tpl, off, index)
				} else {
					err = b.perShot(block, tpl, off, index)
				}
				if err != nil {
					return nil, err
				}
			}
		}
	}

	t := &b.tables
	t.Finalize()
	logf("%q: %d sources, %d receivers, %d relations in %v",
		s.Name, len(t.Src), len(t.Rec), len(t.Rel), time.Since(start).Round(time.Millisecond))
	return t, nil
}

// station builds a record for a local position.
func (b *builder) station(v r3.Vector, index int) Point {
	line, point := b.tr.LineStake(v)
	e, n := b.tr.Global.Map(v.X, v.Y)
	return Point{
		Line:  line,
		Point: point,
		Index: index,
		East:  e,
		North: n,
		LocX:  v.X,
		LocY:  v.Y,
		Elev:  v.Z,
	}
}

// addSource records a kept shot and returns it.
func (b *builder) addSource(v r3.Vector, index int) Point {
	b.shot++
	p := b.station(v, index)
	b.tables.Src = append(b.tables.Src, p)
	return p
}

// addReceiver stores a receiver unless its station already exists.
func (b *builder) addReceiver(p Point) {
	k := p.Key()
	b.seen[k]++
	if b.seen[k] > 1 {
		return
	}
	if cap(b.tables.Rec)-len(b.tables.Rec) < spareRows {
		b.tables.Rec = slices.Grow(b.tables.Rec, recChunk)
	}
	b.tables.Rec = append(b.tables.Rec, p)
}

func (b *builder) addRelation(r Relation) {
	if cap(b.tables.Rel)-len(b.tables.Rel) < spareRows {
		b.tables.Rel = slices.Grow(b.tables.Rel, relChunk)
	}
	b.tables.Rel = append(b.tables.Rel, r)
}

// keptPoints returns the seed's points at off that lie inside the border.
func keptPoints(seed *survey.Seed, off r3.Vector, border func(r3.Vector) bool) []r3.Vector {
	pts := seed.PointsAt(off)
	out := make([]r3.Vector, 0, len(pts))
	for _, p := range pts {
		if border(p) {
			out = append(out, p)
		}
	}
	return out
}

func srcBorder(block *survey.Block) func(r3.Vector) bool {
	return func(v r3.Vector) bool { return geom.InBorder(block.SrcBorder, v) }
}

func recBorder(block *survey.Block) func(r3.Vector) bool {
	return func(v r3.Vector) bool { return geom.InBorder(block.RecBorder, v) }
}

// perShot visits every receiver of every receiver seed for every shot. A new
// relation record starts whenever the receiver line differs from that of the
// previous receiver in iteration order.
func (b *builder) perShot(block *survey.Block, tpl *survey.Template, off r3.Vector, index int) error {
	inSrc, inRec := srcBorder(block), recBorder(block)
	for _, srcSeed := range tpl.Sources() {
		for _, v := range srcSeed.PointsAt(off) {
			if err := b.tracker.Step(); err != nil {
				return err
			}
			if !inSrc(v) {
				continue
			}
			src := b.addSource(v, index)
			lastLine := -9999
			cur := -1
			for _, recSeed := range tpl.Receivers() {
				for _, rv := range recSeed.PointsAt(off) {
					if !inRec(rv) {
						continue
					}
					rec := b.station(rv, index)
					b.addReceiver(rec)

					if rec.Line != lastLine {
						lastLine = rec.Line
						b.addRelation(Relation{
							SrcLine:  src.Line,
							SrcPoint: src.Point,
							SrcIndex: index,
							RecNo:    b.shot,
							RecLine:  rec.Line,
							RecMin:   rec.Point,
							RecMax:   rec.Point,
							RecIndex: index,
							Uniq:     1,
						})
						cur = len(b.tables.Rel) - 1
						continue
					}
					r := &b.tables.Rel[cur]
					r.RecMin = min(r.RecMin, rec.Point)
					r.RecMax = max(r.RecMax, rec.Point)
				}
			}
		}
	}
	return nil
}

// run is one receiver line run of a relation template.
type run struct {
	line, lo, hi int
}

// stampTemplate expands the receivers of a template position once, builds
// its relation runs and copies them onto every kept shot.
func (b *builder) stampTemplate(block *survey.Block, tpl *survey.Template, off r3.Vector, index int) error {
	inSrc, inRec := srcBorder(block), recBorder(block)

	var runs []run
	recsDone := false
	expandReceivers := func() {
		recsDone = true
		for _, recSeed := range tpl.Receivers() {
			for _, rv := range keptPoints(recSeed, off, inRec) {
				rec := b.station(rv, index)
				b.addReceiver(rec)
				if n := len(runs); n > 0 && runs[n-1].line == rec.Line {
					runs[n-1].lo = min(runs[n-1].lo, rec.Point)
					runs[n-1].hi = max(runs[n-1].hi, rec.Point)
					continue
				}
				runs = append(runs, run{line: rec.Line, lo: rec.Point, hi: rec.Point})
			}
		}
	}

	for _, srcSeed := range tpl.Sources() {
		for _, v := range srcSeed.PointsAt(off) {
			if err := b.tracker.Step(); err != nil {
				return err
			}
			if !inSrc(v) {
				continue
			}
			if !recsDone {
				expandReceivers()
			}
			src := b.addSource(v, index)
			for _, r := range runs {
				b.addRelation(Relation{
					SrcLine:  src.Line,
					SrcPoint: src.Point,
					SrcIndex: index,
					RecNo:    b.shot,
					RecLine:  r.line,
					RecMin:   r.lo,
					RecMax:   r.hi,
					RecIndex: index,
					Uniq:     1,
				})
			}
		}
	}
	return nil
}
