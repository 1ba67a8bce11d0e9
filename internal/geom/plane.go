package geom

import (
	"math"

	"github.com/golang/geo/r3"
)

// Plane is a (dipping) reflector. Subsurface depths are negative z values.
// The normal points upward for dips below 90 degrees.
type Plane struct {
	Anchor  r3.Vector
	Azimuth float64 // degrees, direction of maximum dip
	Dip     float64 // degrees

	normal r3.Vector
	dist   float64
}

// DefaultPlane is a flat reflector at 2000 m depth.
func DefaultPlane() Plane {
	return NewPlane(r3.Vector{X: 0, Y: 0, Z: -2000}, 0, 0)
}

// NewPlane builds a plane through anchor with the given azimuth and dip.
func NewPlane(anchor r3.Vector, azimuth, dip float64) Plane {
	p := Plane{Anchor: anchor, Azimuth: azimuth, Dip: dip}
	p.calcNormal()
	return p
}

// PlaneFromAnchorNormal builds a plane through anchor perpendicular to n.
func PlaneFromAnchorNormal(anchor, n r3.Vector) Plane {
	n = n.Normalize()
	if n.Z < 0 {
		n = n.Mul(-1)
	}
	dip := math.Acos(clamp(n.Dot(r3.Vector{Z: 1}), -1, 1)) * 180 / math.Pi
	azi := math.Atan2(n.Y, n.X)*180/math.Pi + 180
	return NewPlane(anchor, azi, dip)
}

// PlaneFromPoints fits a plane through three non-collinear points; p0 becomes
// the anchor.
func PlaneFromPoints(p0, p1, p2 r3.Vector) Plane {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	return PlaneFromAnchorNormal(p0, n)
}

func (p *Plane) calcNormal() {
	sd, cd := math.Sincos(-p.Dip * math.Pi / 180)
	sa, ca := math.Sincos(p.Azimuth * math.Pi / 180)
	p.normal = r3.Vector{X: sd * ca, Y: sd * sa, Z: cd}
	p.dist = -p.normal.Dot(p.Anchor)
}

// Normal returns the unit normal.
func (p Plane) Normal() r3.Vector { return p.normal }

// Dist returns d in the plane equation n·x + d = 0.
func (p Plane) Dist() float64 { return p.dist }

// DistanceTo returns the signed distance from pt to the plane.
func (p Plane) DistanceTo(pt r3.Vector) float64 {
	return p.normal.Dot(pt) + p.dist
}

// Mirror reflects pt across the plane.
func (p Plane) Mirror(pt r3.Vector) r3.Vector {
	return pt.Sub(p.normal.Mul(2 * p.DistanceTo(pt)))
}

// Project drops pt perpendicularly onto the plane.
func (p Plane) Project(pt r3.Vector) r3.Vector {
	return pt.Sub(p.normal.Mul(p.DistanceTo(pt)))
}

// DepthAt returns the plane's z value at (x, y); a vertical plane yields 0.
func (p Plane) DepthAt(x, y float64) float64 {
	if p.normal.Z == 0 {
		return 0
	}
	return -(p.normal.X*x + p.normal.Y*y + p.dist) / p.normal.Z
}

// Intersect returns where the segment from -> to crosses the plane, provided
// the angle between the segment and the normal lies in [aoiMin, aoiMax]
// degrees. The segment parameter is measured back from to.
func (p Plane) Intersect(from, to r3.Vector, aoiMin, aoiMax float64) (r3.Vector, bool) {
	ray := to.Sub(from)
	denom := p.normal.Dot(ray)
	if denom == 0 {
		return r3.Vector{}, false
	}
	u := (p.normal.Dot(to) + p.dist) / denom
	if u < 0 || u > 1 {
		return r3.Vector{}, false
	}
	aoi := math.Acos(clamp(denom/ray.Norm(), -1, 1)) * 180 / math.Pi
	if aoi < aoiMin || aoi > aoiMax {
		return r3.Vector{}, false
	}
	return to.Sub(ray.Mul(u)), true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
