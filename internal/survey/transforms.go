package survey

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/geom"
)

// ErrScaleMismatch is returned when a sphere reflector is used with
// different x and y grid scales.
var ErrScaleMismatch = errors.New("x and y grid scales differ")

// Transforms is the set of mappings derived from the bin grid and output
// area. It is computed once per run and passed to everything that maps
// coordinates.
type Transforms struct {
	Global  geom.Affine // local grid to global projected coordinates
	ToLocal geom.Affine // inverse of Global
	Bin     geom.Affine // local coordinates to continuous bin index
	Cmp     geom.Affine // bin index back to local coordinates
	Stake   geom.Affine // local to (stake, line), with the display bin shift
	Stake2  geom.Affine // local to (stake, line), used for numbering records

	Nx, Ny int

	LocalPlane  geom.Plane
	LocalSphere geom.Sphere
}

// CalcTransforms builds the transform stack and re-expresses the global
// reflectors in local coordinates.
func (s *Survey) CalcTransforms() (*Transforms, error) {
	g := s.Grid
	tr := &Transforms{}

	tr.Global = geom.Identity().
		Translate(g.Origin.X, g.Origin.Y).
		Rotate(g.Azimuth).
		Scale(g.Scale.X, g.Scale.Y)
	toLocal, err := tr.Global.Inverted()
	if err != nil {
		return nil, fmt.Errorf("%w: global transform: %w", ErrInvalidSurvey, err)
	}
	tr.ToLocal = toLocal

	tr.LocalPlane = localPlane(s.GlobalPlane, tr.ToLocal)

	if g.Scale.X == g.Scale.Y {
		o := tr.ToLocal.MapXY(s.GlobalSphere.Origin)
		o.Z = s.GlobalSphere.Origin.Z * g.Scale.X
		tr.LocalSphere = geom.Sphere{Origin: o, Radius: s.GlobalSphere.Radius * g.Scale.X}
	} else if s.Binning.Method == MethodSphere {
		return nil, fmt.Errorf("%w: %w (%v, %v)", ErrInvalidSurvey, ErrScaleMismatch, g.Scale.X, g.Scale.Y)
	}

	w, h := s.Output.X.Length(), s.Output.Y.Length()
	x0, y0 := s.Output.X.Lo, s.Output.Y.Lo
	if g.BinSize.X <= 0 || g.BinSize.Y <= 0 {
		return nil, fmt.Errorf("%w: bin size must be positive", ErrInvalidSurvey)
	}
	tr.Nx = int(math.Ceil(w / g.BinSize.X))
	tr.Ny = int(math.Ceil(h / g.BinSize.Y))

	if tr.Bin, err = geom.Identity().Translate(x0, y0).Scale(g.BinSize.X, g.BinSize.Y).Inverted(); err != nil {
		return nil, fmt.Errorf("%w: bin transform: %w", ErrInvalidSurvey, err)
	}

	if tr.Nx > 0 && tr.Ny > 0 {
		tr.Cmp = geom.Identity().Translate(x0, y0).Scale(w/float64(tr.Nx), h/float64(tr.Ny))
	} else {
		tr.Cmp = geom.Identity().Translate(x0, y0)
	}

	ds, dl := g.StakeSize.X, g.StakeSize.Y
	s0, l0 := g.StakeOrigin.X, g.StakeOrigin.Y
	if tr.Stake, err = geom.Identity().
		Translate(-g.BinShift.X, -g.BinShift.Y).
		Scale(ds, dl).
		Translate(-s0, -l0).
		Inverted(); err != nil {
		return nil, fmt.Errorf("%w: stake transform: %w", ErrInvalidSurvey, err)
	}
	if tr.Stake2, err = geom.Identity().Scale(ds, dl).Translate(-s0, -l0).Inverted(); err != nil {
		return nil, fmt.Errorf("%w: stake transform: %w", ErrInvalidSurvey, err)
	}
	return tr, nil
}

// localPlane refits a global plane from three points mapped into local
// coordinates. Mapping the normal directly is wrong once the scale is not 1.
func localPlane(global geom.Plane, toLocal geom.Affine) geom.Plane {
	o := global.Anchor
	p := o.Add(r3.Vector{X: 1000})
	q := o.Add(r3.Vector{Y: 1000})

	o2 := toLocal.MapXY(o)
	p2 := toLocal.MapXY(p)
	p2.Z = global.DepthAt(p.X, p.Y)
	q2 := toLocal.MapXY(q)
	q2.Z = global.DepthAt(q.X, q.Y)

	return geom.PlaneFromPoints(o2, p2, q2)
}

// LineStake returns the (line, point) numbers of a local position.
func (t *Transforms) LineStake(v r3.Vector) (line, point int) {
	x, y := t.Stake2.Map(v.X, v.Y)
	return int(y), int(x)
}

// BinIndex maps a local position to its grid cell. The continuous index is
// truncated toward zero; ok is false for cells outside the grid.
func (t *Transforms) BinIndex(x, y float64) (ix, iy int, ok bool) {
	fx, fy := t.Bin.Map(x, y)
	if fx <= -1 || fy <= -1 {
		return 0, 0, false
	}
	ix, iy = int(fx), int(fy)
	if ix >= t.Nx || iy >= t.Ny {
		return 0, 0, false
	}
	return ix, iy, true
}

// BinCenter returns the local centre of a grid cell.
func (t *Transforms) BinCenter(ix, iy int) r2.Point {
	return t.Cmp.MapPoint(r2.Point{X: float64(ix) + 0.5, Y: float64(iy) + 0.5})
}

// ToGlobal maps a local position to global coordinates, keeping z.
func (t *Transforms) ToGlobal(v r3.Vector) r3.Vector {
	return t.Global.MapXY(v)
}
