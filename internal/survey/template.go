package survey

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/geom"
)

// Template is a set of seeds that is rolled across the survey.
type Template struct {
	Name  string
	Roll  Grow
	Seeds []Seed
}

// Validate checks the roll steps and that both seed roles are present.
func (t *Template) Validate() error {
	if err := t.Roll.Validate(); err != nil {
		return fmt.Errorf("template %q roll: %w", t.Name, err)
	}
	nSrc, nRec := t.SeedCounts()
	if nSrc == 0 {
		return fmt.Errorf("%w: template %q needs at least one source seed", ErrInvalidSurvey, t.Name)
	}
	if nRec == 0 {
		return fmt.Errorf("%w: template %q needs at least one receiver seed", ErrInvalidSurvey, t.Name)
	}
	return nil
}

// SeedCounts returns the number of source and receiver seeds.
func (t *Template) SeedCounts() (nSrc, nRec int) {
	for i := range t.Seeds {
		if t.Seeds[i].Source {
			nSrc++
		} else {
			nRec++
		}
	}
	return nSrc, nRec
}

// RollCount is the number of template positions.
func (t *Template) RollCount() int {
	return t.Roll.Len()
}

// RollOffsets returns every roll offset in nested order, dimension 0
// outermost. An unrolled template yields a single zero offset.
func (t *Template) RollOffsets() []r3.Vector {
	return t.Roll.Expand(r3.Vector{})
}

// ShotCount is the summed source point count times the roll count.
func (t *Template) ShotCount() int {
	n := 0
	for i := range t.Seeds {
		if t.Seeds[i].Source {
			n += t.Seeds[i].PointCount()
		}
	}
	return n * t.RollCount()
}

// Sources returns pointers to the source seeds in template order.
func (t *Template) Sources() []*Seed {
	return t.seeds(true)
}

// Receivers returns pointers to the receiver seeds in template order.
func (t *Template) Receivers() []*Seed {
	return t.seeds(false)
}

func (t *Template) seeds(source bool) []*Seed {
	out := make([]*Seed, 0, len(t.Seeds))
	for i := range t.Seeds {
		if t.Seeds[i].Source == source {
			out = append(out, &t.Seeds[i])
		}
	}
	return out
}

// rollRect extends a seed rectangle over every roll position. Each roll
// dimension moves the rectangle between 0 and (count-1)*inc independently.
func (t *Template) rollRect(r r2.Rect) r2.Rect {
	var lo, hi r2.Point
	for _, s := range t.Roll {
		if s.Count < 2 {
			continue
		}
		d := s.Increment.Mul(float64(s.Count - 1))
		lo.X += min(d.X, 0)
		lo.Y += min(d.Y, 0)
		hi.X += max(d.X, 0)
		hi.Y += max(d.Y, 0)
	}
	return geom.Translated(r, lo.X, lo.Y).Union(geom.Translated(r, hi.X, hi.Y))
}

// Extent holds the source, receiver and midpoint areas of a template.
type Extent struct {
	Src r2.Rect
	Rec r2.Rect
	Cmp r2.Rect
}

// Box is the union of source and receiver areas.
func (e Extent) Box() r2.Rect {
	return e.Src.Union(e.Rec)
}

// BoundingRect returns the template's source, receiver and CMP areas. With
// roll set, rolling seeds are extended over all roll positions. Set borders
// clip the source and receiver areas; the CMP area sits halfway between them
// and is empty when either clipped area is.
func (t *Template) BoundingRect(srcBorder, recBorder r2.Rect, roll bool) Extent {
	src, rec := r2.EmptyRect(), r2.EmptyRect()
	for i := range t.Seeds {
		s := &t.Seeds[i]
		r := s.BoundingRect()
		if roll && s.Rolls() {
			r = t.rollRect(r)
		}
		if s.Source {
			src = src.Union(r)
		} else {
			rec = rec.Union(r)
		}
	}

	if geom.IsSet(srcBorder) {
		src = src.Intersection(srcBorder)
	}
	if geom.IsSet(recBorder) {
		rec = rec.Intersection(recBorder)
	}

	ext := Extent{Src: src, Rec: rec, Cmp: r2.EmptyRect()}
	if !src.IsEmpty() && !rec.IsEmpty() {
		ext.Cmp = r2.RectFromPoints(
			r2.Point{X: (src.X.Lo + rec.X.Lo) / 2, Y: (src.Y.Lo + rec.Y.Lo) / 2},
			r2.Point{X: (src.X.Hi + rec.X.Hi) / 2, Y: (src.Y.Hi + rec.Y.Hi) / 2},
		)
	}
	return ext
}
