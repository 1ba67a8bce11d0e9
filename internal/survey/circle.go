package survey

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// CircleParams places points at a fixed arc spacing around a circle.
type CircleParams struct {
	Radius   float64 // m
	Azimuth0 float64 // start angle, degrees counter-clockwise from +x
	Spacing  float64 // arc distance between points; negative walks clockwise
}

// DefaultCircle returns a 1 km circle with 25 m spacing.
func DefaultCircle() CircleParams {
	return CircleParams{Radius: 1000, Azimuth0: 0, Spacing: 25}
}

// Count is floor(2*pi*r/|d|), at least 1. A zero spacing gives one point.
func (c CircleParams) Count() int {
	s := math.Abs(c.Spacing)
	if s == 0 || c.Radius == 0 {
		return 1
	}
	return max(int(math.Abs(math.Floor(2*math.Pi*c.Radius/s))), 1)
}

// Points returns the circle points around origin. z is taken from origin.
func (c CircleParams) Points(origin r3.Vector) []r3.Vector {
	n := c.Count()
	p := c.Azimuth0 * math.Pi / 180
	q := 0.0
	if c.Radius != 0 {
		q = c.Spacing / c.Radius
	}

	pts := make([]r3.Vector, n)
	for i := range pts {
		a := float64(i)*q + p
		pts[i] = origin.Add(r3.Vector{X: math.Cos(a) * c.Radius, Y: math.Sin(a) * c.Radius})
	}
	return pts
}

// BoundingRect is the square around the circle.
func (c CircleParams) BoundingRect(origin r3.Vector) r2.Rect {
	r := math.Abs(c.Radius)
	return r2.RectFromCenterSize(r2.Point{X: origin.X, Y: origin.Y}, r2.Point{X: 2 * r, Y: 2 * r})
}
