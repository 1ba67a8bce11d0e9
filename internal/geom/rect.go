package geom

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// MinExtent is the width or height given to degenerate rectangles so that
// unions and intersections stay well defined.
const MinExtent = 1.0e-6

// Rect builds a rectangle from its left/top corner and size.
func Rect(x, y, w, h float64) r2.Rect {
	return r2.RectFromPoints(r2.Point{X: x, Y: y}, r2.Point{X: x + w, Y: y + h})
}

// SpanRect returns the normalized rectangle spanned by two corners, with
// zero-width or zero-height axes widened to MinExtent.
func SpanRect(p0, p1 r2.Point) r2.Rect {
	r := r2.RectFromPoints(p0, p1)
	return Floor(r)
}

// Floor widens degenerate axes of r to MinExtent, keeping the low edge.
func Floor(r r2.Rect) r2.Rect {
	if r.X.Length() == 0 {
		r.X = r1.Interval{Lo: r.X.Lo, Hi: r.X.Lo + MinExtent}
	}
	if r.Y.Length() == 0 {
		r.Y = r1.Interval{Lo: r.Y.Lo, Hi: r.Y.Lo + MinExtent}
	}
	return r
}

// IsSet reports whether a border rectangle should be applied. A zero-area or
// empty rectangle means "no border".
func IsSet(r r2.Rect) bool {
	return !r.IsEmpty() && r.X.Length() > 0 && r.Y.Length() > 0
}

// Contains reports whether (x, y) lies inside r, edges included.
func Contains(r r2.Rect, x, y float64) bool {
	return x >= r.X.Lo && x <= r.X.Hi && y >= r.Y.Lo && y <= r.Y.Hi
}

// ContainsVector tests the horizontal position of v against r.
func ContainsVector(r r2.Rect, v r3.Vector) bool {
	return Contains(r, v.X, v.Y)
}

// InBorder is like ContainsVector but treats an unset border as unbounded.
func InBorder(border r2.Rect, v r3.Vector) bool {
	return !IsSet(border) || Contains(border, v.X, v.Y)
}

// Translated shifts r by (dx, dy).
func Translated(r r2.Rect, dx, dy float64) r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: r.X.Lo + dx, Hi: r.X.Hi + dx},
		Y: r1.Interval{Lo: r.Y.Lo + dy, Hi: r.Y.Hi + dy},
	}
}

// Expanded grows r by d on every side.
func Expanded(r r2.Rect, d float64) r2.Rect {
	return r.ExpandedByMargin(d)
}
