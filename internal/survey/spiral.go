package survey

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// SpiralParams describes an Archimedean spiral r = a*theta with points at a
// fixed arc spacing between RadMin and RadMax.
type SpiralParams struct {
	RadMin   float64 // m
	RadMax   float64 // m
	RadInc   float64 // radius gained per full turn
	Azimuth0 float64 // degrees
	Spacing  float64 // arc distance; negative mirrors the spiral (clockwise)
}

// DefaultSpiral returns a 200..1000 m spiral, 200 m per turn, 50 m spacing.
func DefaultSpiral() SpiralParams {
	return SpiralParams{RadMin: 200, RadMax: 1000, RadInc: 200, Azimuth0: 0, Spacing: 50}
}

// spiralArcLength is the arc length from the pole to angle t for r = a*t.
func spiralArcLength(t, a float64) float64 {
	rt := math.Sqrt(1 + t*t)
	return 0.5 * a * (t*rt + math.Log(t+rt))
}

// spiralArcDerivative is ds/dt of spiralArcLength.
func spiralArcDerivative(t, a float64) float64 {
	rt := math.Sqrt(1 + t*t)
	return 0.5 * a * (rt + t*t/rt + (1+t/rt)/(t+rt))
}

// spiralAngle inverts spiralArcLength with at most 4 Newton steps, stopping
// once the arc error is below 5 cm.
func spiralAngle(s, a float64) float64 {
	t := math.Sqrt(2 * s / a)
	for range 4 {
		e := spiralArcLength(t, a) - s
		if e < 0.05 {
			break
		}
		t -= e / spiralArcDerivative(t, a)
	}
	return t
}

func (sp SpiralParams) coeff() float64 { return sp.RadInc / (2 * math.Pi) }

// Count is the number of whole spacings that fit on the arc between RadMin
// and RadMax. A zero RadInc or spacing gives one point.
func (sp SpiralParams) Count() int {
	d := math.Abs(sp.Spacing)
	if sp.RadInc <= 0 || d == 0 {
		return 1
	}
	c := sp.coeff()
	sMin := spiralArcLength(sp.RadMin/c, c)
	sMax := spiralArcLength(sp.RadMax/c, c)
	return max(int(math.Floor((sMax-sMin)/d)), 0)
}

// Points returns the spiral points around origin.
func (sp SpiralParams) Points(origin r3.Vector) []r3.Vector {
	n := sp.Count()
	if sp.RadInc <= 0 || sp.Spacing == 0 {
		return []r3.Vector{origin.Add(r3.Vector{X: sp.RadMin})}
	}

	c := sp.coeff()
	d := math.Abs(sp.Spacing)
	sign := math.Copysign(1, sp.Spacing)
	p := sp.Azimuth0 * math.Pi / 180
	sMin := spiralArcLength(sp.RadMin/c, c)

	pts := make([]r3.Vector, n)
	for i := range pts {
		t := spiralAngle(sMin+float64(i)*d, c)
		r := t * c
		a := t + p*sign
		pts[i] = origin.Add(r3.Vector{X: math.Cos(a) * r, Y: math.Sin(a*sign) * r})
	}
	return pts
}

// BoundingRect is the square around the outer radius.
func (sp SpiralParams) BoundingRect(origin r3.Vector) r2.Rect {
	r := math.Abs(sp.RadMax)
	return r2.RectFromCenterSize(r2.Point{X: origin.X, Y: origin.Y}, r2.Point{X: 2 * r, Y: 2 * r})
}
