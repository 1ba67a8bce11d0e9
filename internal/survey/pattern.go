package survey

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/geom"
)

// NoPattern is the pattern reference of a seed without a field pattern.
// Seed.Pattern is otherwise a 1-based index into Survey.Patterns.
const NoPattern = 0

// PatternSeed is one grown group of elements inside a pattern.
type PatternSeed struct {
	Origin r3.Vector
	Grow   Grow
}

// Pattern is a source or receiver array (e.g. a geophone string) drawn
// around every point of a seed. Patterns are owned by the Survey and
// referenced from seeds by position.
type Pattern struct {
	Name  string
	Seeds []PatternSeed
}

// ElementCount is the total number of elements in the pattern.
func (p Pattern) ElementCount() int {
	n := 0
	for _, s := range p.Seeds {
		n += s.Grow.Len()
	}
	return n
}

// Elements returns every element position relative to the pattern origin.
func (p Pattern) Elements() []r3.Vector {
	pts := make([]r3.Vector, 0, p.ElementCount())
	for _, s := range p.Seeds {
		pts = append(pts, s.Grow.Expand(s.Origin)...)
	}
	return pts
}

// BoundingRect is the union of the pattern seed rectangles.
func (p Pattern) BoundingRect() r2.Rect {
	rect := r2.EmptyRect()
	for _, s := range p.Seeds {
		o := r2.Point{X: s.Origin.X, Y: s.Origin.Y}
		e := s.Origin.Add(s.Grow.Extent())
		rect = rect.Union(geom.SpanRect(o, r2.Point{X: e.X, Y: e.Y}))
	}
	return rect
}
