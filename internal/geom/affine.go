// Package geom holds the 2D affine transforms, rectangle helpers and the
// plane and sphere reflectors shared by survey expansion and binning.
package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when an affine transform cannot be inverted.
var ErrSingular = errors.New("transform is not invertible")

// Affine is a 2D affine transform held as a 3x3 homogeneous matrix acting on
// column vectors. Builder methods post-multiply, so for
//
//	Identity().Translate(x, y).Rotate(a).Scale(sx, sy)
//
// a point is scaled first, then rotated, then translated.
type Affine struct {
	m *mat.Dense
	c [6]float64 // m11 m12 dx m21 m22 dy, cached for Map
}

// Identity returns the unit transform.
func Identity() Affine {
	return fromDense(mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}))
}

// NewAffine builds a transform from the six coefficients of
// x' = m11*x + m12*y + dx, y' = m21*x + m22*y + dy.
func NewAffine(m11, m12, dx, m21, m22, dy float64) Affine {
	return fromDense(mat.NewDense(3, 3, []float64{
		m11, m12, dx,
		m21, m22, dy,
		0, 0, 1,
	}))
}

func fromDense(m *mat.Dense) Affine {
	return Affine{
		m: m,
		c: [6]float64{m.At(0, 0), m.At(0, 1), m.At(0, 2), m.At(1, 0), m.At(1, 1), m.At(1, 2)},
	}
}

func (a Affine) matrix() *mat.Dense {
	if a.m == nil {
		return Identity().m
	}
	return a.m
}

func (a Affine) then(b *mat.Dense) Affine {
	var out mat.Dense
	out.Mul(a.matrix(), b)
	return fromDense(&out)
}

// Translate appends a translation.
func (a Affine) Translate(dx, dy float64) Affine {
	return a.then(mat.NewDense(3, 3, []float64{
		1, 0, dx,
		0, 1, dy,
		0, 0, 1,
	}))
}

// Rotate appends a counter-clockwise rotation given in degrees.
func (a Affine) Rotate(deg float64) Affine {
	s, c := sinCosDeg(deg)
	return a.then(mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}))
}

// Scale appends an axis aligned scaling.
func (a Affine) Scale(sx, sy float64) Affine {
	return a.then(mat.NewDense(3, 3, []float64{
		sx, 0, 0,
		0, sy, 0,
		0, 0, 1,
	}))
}

// Compose returns the transform that applies b first, then a.
func (a Affine) Compose(b Affine) Affine {
	return a.then(b.matrix())
}

// Inverted returns the inverse transform, or ErrSingular. The inverse is
// formed from the 2x2 adjugate so that axis aligned grids invert to exact
// reciprocals.
func (a Affine) Inverted() (Affine, error) {
	m := a.matrix()
	det := mat.Det(m.Slice(0, 2, 0, 2))
	if math.Abs(det) < 1e-12 || math.IsNaN(det) {
		return Affine{}, fmt.Errorf("determinant %g: %w", det, ErrSingular)
	}
	c := a.Coefficients()
	m11, m12, dx, m21, m22, dy := c[0], c[1], c[2], c[3], c[4], c[5]
	if m12 == 0 && m21 == 0 {
		det = m11 * m22
	}
	return NewAffine(
		m22/det, -m12/det, (m12*dy-m22*dx)/det,
		-m21/det, m11/det, (m21*dx-m11*dy)/det,
	), nil
}

// Map transforms a coordinate pair.
func (a Affine) Map(x, y float64) (float64, float64) {
	if a.m == nil {
		return x, y
	}
	c := a.c
	return c[0]*x + c[1]*y + c[2], c[3]*x + c[4]*y + c[5]
}

// MapPoint transforms an r2.Point.
func (a Affine) MapPoint(p r2.Point) r2.Point {
	x, y := a.Map(p.X, p.Y)
	return r2.Point{X: x, Y: y}
}

// MapXY transforms the horizontal part of v and keeps its z value.
func (a Affine) MapXY(v r3.Vector) r3.Vector {
	x, y := a.Map(v.X, v.Y)
	return r3.Vector{X: x, Y: y, Z: v.Z}
}

// Coefficients returns m11, m12, dx, m21, m22, dy.
func (a Affine) Coefficients() [6]float64 {
	if a.m == nil {
		return Identity().c
	}
	return a.c
}

// sinCosDeg snaps quarter turns so that right-angle grids stay exact.
func sinCosDeg(deg float64) (s, c float64) {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	switch d {
	case 0:
		return 0, 1
	case 90:
		return 1, 0
	case 180:
		return 0, -1
	case 270:
		return -1, 0
	}
	return math.Sincos(deg * math.Pi / 180)
}
