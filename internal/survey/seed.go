package survey

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/geom"
)

// SeedKind selects how a seed generates its points.
type SeedKind int

const (
	// RollingGrid seeds are grown grids that move with the template roll.
	RollingGrid SeedKind = iota
	// FixedGrid seeds are grown grids that stay put while the template rolls.
	FixedGrid
	Circle
	Spiral
	Well
)

var seedKindNames = [...]string{"rolling", "fixed", "circle", "spiral", "well"}

func (k SeedKind) String() string {
	if k < 0 || int(k) >= len(seedKindNames) {
		return fmt.Sprintf("SeedKind(%d)", int(k))
	}
	return seedKindNames[k]
}

// ParseSeedKind accepts the names returned by String, case-insensitively.
// "grid" is an alias of "rolling".
func ParseSeedKind(s string) (SeedKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "grid" || name == "" {
		return RollingGrid, nil
	}
	for i, n := range seedKindNames {
		if n == name {
			return SeedKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown seed kind %q", ErrInvalidSurvey, s)
}

// Seed is a group of sources or receivers inside a template.
type Seed struct {
	Name    string
	Kind    SeedKind
	Source  bool
	Origin  r3.Vector
	Pattern int  // 1-based position in Survey.Patterns, NoPattern for none
	Azimuth bool // orient the pattern along the line direction

	Grow   Grow
	Circle CircleParams
	Spiral SpiralParams
	Well   WellParams

	points   []r3.Vector
	prepared bool
}

// Rolls reports whether the seed moves with the template roll offset.
func (s *Seed) Rolls() bool {
	return s.Kind == RollingGrid
}

// Prepare computes the seed's point array. Well seeds need toLocal to bring
// their global trajectory into survey coordinates; other kinds ignore it.
func (s *Seed) Prepare(toLocal geom.Affine) error {
	var pts []r3.Vector
	switch s.Kind {
	case RollingGrid, FixedGrid:
		if err := s.Grow.Validate(); err != nil {
			return fmt.Errorf("seed %q: %w", s.Name, err)
		}
		pts = s.Grow.Expand(s.Origin)
	case Circle:
		pts = s.Circle.Points(s.Origin)
	case Spiral:
		pts = s.Spiral.Points(s.Origin)
	case Well:
		var err error
		if pts, err = s.Well.Points(toLocal); err != nil {
			return fmt.Errorf("seed %q: %w", s.Name, err)
		}
		s.Origin = s.Well.Head(toLocal)
	default:
		return fmt.Errorf("%w: seed %q has kind %v", ErrInvalidSurvey, s.Name, s.Kind)
	}
	s.points = pts
	s.prepared = true
	return nil
}

// Invalidate drops the cached points after Origin or Grow changed.
func (s *Seed) Invalidate() {
	s.points = nil
	s.prepared = false
}

// Points returns the seed's points relative to a zero roll offset. Grid,
// circle and spiral seeds are prepared on first use; an unprepared well seed
// has no points. The returned slice is shared and must not be modified.
func (s *Seed) Points() []r3.Vector {
	if !s.prepared && s.Kind != Well {
		if err := s.Prepare(geom.Identity()); err != nil {
			return nil
		}
	}
	return s.points
}

// PointCount is the number of points the seed generates.
func (s *Seed) PointCount() int {
	switch s.Kind {
	case RollingGrid, FixedGrid:
		return s.Grow.Len()
	case Circle:
		return s.Circle.Count()
	case Spiral:
		return s.Spiral.Count()
	case Well:
		return s.Well.Count()
	}
	return 0
}

// PointsAt returns the points for a template roll offset. Only rolling seeds
// are shifted; stationary seeds return their shared point slice.
func (s *Seed) PointsAt(offset r3.Vector) []r3.Vector {
	pts := s.Points()
	if !s.Rolls() || offset == (r3.Vector{}) {
		return pts
	}
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = p.Add(offset)
	}
	return out
}

// BoundingRect is the horizontal extent of the seed before rolling. Grid
// seeds span origin to origin plus the grow extent, with degenerate axes
// floored to geom.MinExtent.
func (s *Seed) BoundingRect() r2.Rect {
	o := r2.Point{X: s.Origin.X, Y: s.Origin.Y}
	switch s.Kind {
	case Circle:
		return s.Circle.BoundingRect(s.Origin)
	case Spiral:
		return s.Spiral.BoundingRect(s.Origin)
	case Well:
		rect := r2.EmptyRect()
		for _, p := range s.Points() {
			rect = rect.AddPoint(r2.Point{X: p.X, Y: p.Y})
		}
		if rect.IsEmpty() {
			return geom.SpanRect(o, o)
		}
		return geom.Floor(rect)
	default:
		e := s.Origin.Add(s.Grow.Extent())
		return geom.SpanRect(o, r2.Point{X: e.X, Y: e.Y})
	}
}
