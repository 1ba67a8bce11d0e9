// Package reflector maps a shot and its receivers to reflection points.
//
// Three models are provided: straight-ray common midpoint, a dipping plane
// and a sphere. Every model returns index aligned CMP and receiver slices;
// receivers that do not reflect inside the configured angle window are
// dropped from both.
package reflector

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/roll.survey/internal/geom"
	"github.com/banshee-data/roll.survey/internal/survey"
)

// Model is a reflection model.
type Model interface {
	// Reflect returns the reflection points of src for every receiver that
	// produces one, together with those receivers. cmps and recsOut have
	// the same length. recs is not modified.
	Reflect(src r3.Vector, recs []r3.Vector) (cmps, recsOut []r3.Vector)

	// TravelTime returns the travel time of a trace in ms.
	TravelTime(src, cmp, rec r3.Vector) float64

	// Method identifies the model.
	Method() survey.BinningMethod
}

// Slowness converts a velocity in m/s to ms per metre. Non-positive
// velocities give zero, so all travel times become 0.
func Slowness(velocity float64) float64 {
	if velocity <= 0 {
		return 0
	}
	return 1000 / velocity
}

// New returns the model for method, using the local reflectors in tr.
func New(method survey.BinningMethod, tr *survey.Transforms, angles survey.Angles, velocity float64) (Model, error) {
	slow := Slowness(velocity)
	switch method {
	case survey.MethodCMP:
		return &CMP{Slowness: slow}, nil
	case survey.MethodPlane:
		return &Plane{Plane: tr.LocalPlane, Angles: angles, Slowness: slow}, nil
	case survey.MethodSphere:
		if tr.LocalSphere.Radius <= 0 {
			return nil, fmt.Errorf("%w: sphere radius must be positive", survey.ErrInvalidSurvey)
		}
		return &Sphere{Sphere: tr.LocalSphere, Angles: angles, Slowness: slow}, nil
	default:
		return nil, fmt.Errorf("%w: unknown binning method %v", survey.ErrInvalidSurvey, method)
	}
}

// CMP is the straight-ray model: the reflection point is the arithmetic
// midpoint and no receiver is ever dropped.
type CMP struct {
	Slowness float64
}

// Reflect implements Model.
func (m *CMP) Reflect(src r3.Vector, recs []r3.Vector) ([]r3.Vector, []r3.Vector) {
	cmps := make([]r3.Vector, len(recs))
	for i, rec := range recs {
		cmps[i] = src.Add(rec).Mul(0.5)
	}
	return cmps, recs
}

// TravelTime is the straight source to receiver distance times slowness.
func (m *CMP) TravelTime(src, _, rec r3.Vector) float64 {
	return rec.Sub(src).Norm() * m.Slowness
}

// Method implements Model.
func (m *CMP) Method() survey.BinningMethod { return survey.MethodCMP }

// Plane reflects off a dipping plane. The source is mirrored in the plane and
// the segment from the mirrored source to each receiver is intersected with
// it.
type Plane struct {
	Plane    geom.Plane
	Angles   survey.Angles
	Slowness float64
}

// Reflect implements Model.
func (m *Plane) Reflect(src r3.Vector, recs []r3.Vector) ([]r3.Vector, []r3.Vector) {
	mirror := m.Plane.Mirror(src)
	cmps := make([]r3.Vector, 0, len(recs))
	kept := make([]r3.Vector, 0, len(recs))
	for _, rec := range recs {
		p, ok := m.Plane.Intersect(mirror, rec, m.Angles.ReflectMin, m.Angles.ReflectMax)
		if !ok {
			continue
		}
		cmps = append(cmps, p)
		kept = append(kept, rec)
	}
	return cmps, kept
}

// TravelTime implements Model.
func (m *Plane) TravelTime(src, cmp, rec r3.Vector) float64 {
	return twoLeg(src, cmp, rec) * m.Slowness
}

// Method implements Model.
func (m *Plane) Method() survey.BinningMethod { return survey.MethodPlane }

// Sphere reflects off the outside of a sphere.
type Sphere struct {
	Sphere   geom.Sphere
	Angles   survey.Angles
	Slowness float64
}

// Reflect implements Model.
func (m *Sphere) Reflect(src r3.Vector, recs []r3.Vector) ([]r3.Vector, []r3.Vector) {
	cmps := make([]r3.Vector, 0, len(recs))
	kept := make([]r3.Vector, 0, len(recs))
	for _, rec := range recs {
		p, ok := m.Sphere.Reflect(src, rec, m.Angles.ReflectMin, m.Angles.ReflectMax)
		if !ok {
			continue
		}
		cmps = append(cmps, p)
		kept = append(kept, rec)
	}
	return cmps, kept
}

// TravelTime implements Model.
func (m *Sphere) TravelTime(src, cmp, rec r3.Vector) float64 {
	return twoLeg(src, cmp, rec) * m.Slowness
}

// Method implements Model.
func (m *Sphere) Method() survey.BinningMethod { return survey.MethodSphere }

func twoLeg(src, cmp, rec r3.Vector) float64 {
	return cmp.Sub(src).Norm() + rec.Sub(cmp).Norm()
}
