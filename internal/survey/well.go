package survey

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/roll.survey/internal/geom"
)

// Station is one survey station of a well trajectory in global coordinates.
// Z is elevation (negative below datum).
type Station struct {
	MD    float64 // measured (along hole) depth
	East  float64
	North float64
	Z     float64
}

// WellParams places NAHD points down a well, starting at along-hole depth
// AHD0 and spaced DAHD apart.
type WellParams struct {
	Name     string
	Stations []Station
	AHD0     float64
	DAHD     float64
	NAHD     int
}

// DefaultWell returns the along-hole sampling defaults with no trajectory.
func DefaultWell() WellParams {
	return WellParams{AHD0: 1000, DAHD: 15, NAHD: 12}
}

// Validate checks that the trajectory can be interpolated.
func (w WellParams) Validate() error {
	if len(w.Stations) < 2 {
		return fmt.Errorf("%w: well %q needs at least 2 stations, got %d", ErrInvalidSurvey, w.Name, len(w.Stations))
	}
	for i := 1; i < len(w.Stations); i++ {
		if w.Stations[i].MD <= w.Stations[i-1].MD {
			return fmt.Errorf("%w: well %q measured depth not increasing at station %d", ErrInvalidSurvey, w.Name, i)
		}
	}
	if w.NAHD < 1 {
		return fmt.Errorf("%w: well %q needs at least one sample, got %d", ErrInvalidSurvey, w.Name, w.NAHD)
	}
	return nil
}

// Count is the number of well points.
func (w WellParams) Count() int {
	return max(w.NAHD, 0)
}

// Points resamples the trajectory at the along-hole depths and maps the
// horizontal position into local survey coordinates. Depths past either end
// of the trajectory are clamped to it.
func (w WellParams) Points(toLocal geom.Affine) ([]r3.Vector, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	n := len(w.Stations)
	md := make([]float64, n)
	east := make([]float64, n)
	north := make([]float64, n)
	z := make([]float64, n)
	for i, s := range w.Stations {
		md[i], east[i], north[i], z[i] = s.MD, s.East, s.North, s.Z
	}

	var fe, fn, fz interp.PiecewiseLinear
	if err := fe.Fit(md, east); err != nil {
		return nil, fmt.Errorf("fit well %q easting: %w", w.Name, err)
	}
	if err := fn.Fit(md, north); err != nil {
		return nil, fmt.Errorf("fit well %q northing: %w", w.Name, err)
	}
	if err := fz.Fit(md, z); err != nil {
		return nil, fmt.Errorf("fit well %q elevation: %w", w.Name, err)
	}

	lo, hi := md[0], md[n-1]
	pts := make([]r3.Vector, w.NAHD)
	for i := range pts {
		d := w.AHD0 + float64(i)*w.DAHD
		d = min(max(d, lo), hi)
		glob := r3.Vector{X: fe.Predict(d), Y: fn.Predict(d), Z: fz.Predict(d)}
		pts[i] = toLocal.MapXY(glob)
	}
	return pts, nil
}

// Head returns the first station in local coordinates.
func (w WellParams) Head(toLocal geom.Affine) r3.Vector {
	if len(w.Stations) == 0 {
		return r3.Vector{}
	}
	s := w.Stations[0]
	return toLocal.MapXY(r3.Vector{X: s.East, Y: s.North, Z: s.Z})
}
