package geom

import (
	"math"

	"github.com/golang/geo/r3"
)

// Sphere is a spherical reflector (a salt dome, say).
type Sphere struct {
	Origin r3.Vector
	Radius float64
}

// DefaultSphere is a 2000 m radius sphere centred at 4000 m depth.
func DefaultSphere() Sphere {
	return Sphere{Origin: r3.Vector{Z: -4000}, Radius: 2000}
}

// DepthAt returns the top of the sphere below (x, y), or +Inf when (x, y)
// lies outside its horizontal footprint.
func (s Sphere) DepthAt(x, y float64) float64 {
	l := math.Hypot(x-s.Origin.X, y-s.Origin.Y)
	if l > s.Radius {
		return math.Inf(1)
	}
	return s.Origin.Z + math.Sqrt(s.Radius*s.Radius-l*l)
}

// Reflect returns the reflection point on the sphere for a source/receiver
// pair. The point lies on the unit bisector of the rays from the centre to
// src and rec; the angle of incidence is measured between that bisector and
// the ray back to the source and must lie in [aoiMin, aoiMax] degrees.
func (s Sphere) Reflect(src, rec r3.Vector, aoiMin, aoiMax float64) (r3.Vector, bool) {
	a := src.Sub(s.Origin).Normalize()
	b := rec.Sub(s.Origin).Normalize()
	mid := a.Add(b).Mul(0.5)
	if mid.Norm2() == 0 {
		return r3.Vector{}, false
	}
	mid = mid.Normalize()
	ref := s.Origin.Add(mid.Mul(s.Radius))
	up := src.Sub(ref).Normalize()
	aoi := math.Acos(clamp(mid.Dot(up), -1, 1)) * 180 / math.Pi
	if aoi < aoiMin || aoi > aoiMax {
		return r3.Vector{}, false
	}
	return ref, true
}
