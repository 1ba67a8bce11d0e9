package survey

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roll.survey/internal/geom"
)

func TestSeed_SinglePoint(t *testing.T) {
	s := Seed{Name: "rec", Origin: r3.Vector{X: 125, Y: 310, Z: -2}, Grow: MustPad3()}

	pts := s.Points()
	require.Len(t, pts, 1)
	assert.Equal(t, s.Origin, pts[0])

	r := s.BoundingRect()
	assert.Equal(t, 125.0, r.X.Lo)
	assert.Equal(t, 310.0, r.Y.Lo)
	assert.InDelta(t, geom.MinExtent, r.X.Length(), 1e-9)
	assert.InDelta(t, geom.MinExtent, r.Y.Length(), 1e-9)
}

func TestSeed_BoundingRectNormalized(t *testing.T) {
	s := Seed{Origin: r3.Vector{X: 100, Y: 100}, Grow: MustPad3(Step(3, 0, -50, 0), Step(5, -10, 0, 0))}
	r := s.BoundingRect()
	assert.Equal(t, 60.0, r.X.Lo)
	assert.Equal(t, 100.0, r.X.Hi)
	assert.Equal(t, 0.0, r.Y.Lo)
	assert.Equal(t, 100.0, r.Y.Hi)
}

func TestSeed_PointsAtRollsOnlyRollingSeeds(t *testing.T) {
	roll := r3.Vector{X: 50, Y: 0}
	rolling := Seed{Kind: RollingGrid, Grow: MustPad3(Step(2, 25, 0, 0))}
	fixed := Seed{Kind: FixedGrid, Grow: MustPad3(Step(2, 25, 0, 0))}

	assert.Equal(t, []r3.Vector{{X: 50}, {X: 75}}, rolling.PointsAt(roll))
	assert.Equal(t, []r3.Vector{{X: 0}, {X: 25}}, fixed.PointsAt(roll))
	assert.Equal(t, []r3.Vector{{X: 0}, {X: 25}}, rolling.Points(), "cached points are not shifted")
}

func TestSeed_Invalidate(t *testing.T) {
	s := Seed{Grow: MustPad3(Step(2, 10, 0, 0))}
	require.Len(t, s.Points(), 2)
	s.Grow = MustPad3(Step(5, 10, 0, 0))
	assert.Len(t, s.Points(), 2, "points are cached until invalidated")
	s.Invalidate()
	assert.Len(t, s.Points(), 5)
}

func TestCircle(t *testing.T) {
	c := DefaultCircle()
	assert.Equal(t, 251, c.Count())

	origin := r3.Vector{X: 10, Y: 20, Z: 5}
	pts := c.Points(origin)
	require.Len(t, pts, 251)
	assert.InDelta(t, 1010, pts[0].X, 1e-9)
	assert.InDelta(t, 20, pts[0].Y, 1e-9)
	for _, p := range pts {
		assert.InDelta(t, 1000, math.Hypot(p.X-origin.X, p.Y-origin.Y), 1e-6)
		assert.Equal(t, 5.0, p.Z)
	}
	// consecutive points are one spacing apart along the arc
	arc := 1000 * math.Acos((pts[0].Sub(origin)).Dot(pts[1].Sub(origin))/1e6)
	assert.InDelta(t, 25, arc, 1e-6)

	assert.Equal(t, 1, CircleParams{Radius: 1000}.Count())
	assert.Equal(t, 1, CircleParams{Radius: 1, Spacing: 100}.Count())

	r := c.BoundingRect(origin)
	assert.Equal(t, -990.0, r.X.Lo)
	assert.Equal(t, 1020.0, r.Y.Hi)
}

func TestSpiral(t *testing.T) {
	sp := DefaultSpiral()
	// 15105 m of arc between 200 and 1000 m radius at 50 m spacing
	assert.Equal(t, 302, sp.Count())

	pts := sp.Points(r3.Vector{})
	require.Len(t, pts, 302)
	assert.InDelta(t, 200, pts[0].Norm(), 0.1)
	for i, p := range pts {
		r := math.Hypot(p.X, p.Y)
		assert.GreaterOrEqual(t, r, 199.9)
		assert.LessOrEqual(t, r, 1000.1)
		if i > 0 {
			assert.Greater(t, r, math.Hypot(pts[i-1].X, pts[i-1].Y), "radius grows along the spiral")
			assert.LessOrEqual(t, p.Sub(pts[i-1]).Norm(), 50.1)
		}
	}

	// a negative spacing mirrors the spiral in y
	mirror := sp
	mirror.Spacing = -50
	mp := mirror.Points(r3.Vector{})
	require.Len(t, mp, len(pts))
	assert.InDelta(t, pts[10].X, mp[10].X, 1e-9)
	assert.InDelta(t, -pts[10].Y, mp[10].Y, 1e-9)

	assert.Equal(t, 1, SpiralParams{RadMin: 100, RadMax: 200}.Count())
}

func TestSpiralAngleInvertsArcLength(t *testing.T) {
	a := 200 / (2 * math.Pi)
	for _, theta := range []float64{1, 6.3, 12, 31} {
		s := spiralArcLength(theta, a)
		got := spiralAngle(s, a)
		assert.InDelta(t, theta, got, 1e-3)
		assert.InDelta(t, s, spiralArcLength(got, a), 0.05)
	}
}

func TestWell(t *testing.T) {
	w := DefaultWell()
	w.Name = "W-1"
	w.Stations = []Station{
		{MD: 0, East: 5000, North: 7000, Z: 10},
		{MD: 1000, East: 5000, North: 7000, Z: -990},
		{MD: 2000, East: 5600, North: 7800, Z: -1790},
	}

	toLocal, err := geom.Identity().Translate(5000, 7000).Inverted()
	require.NoError(t, err)

	pts, err := w.Points(toLocal)
	require.NoError(t, err)
	require.Len(t, pts, 12)

	// 1000 m is the kick-off station
	assert.InDelta(t, 0, pts[0].X, 1e-9)
	assert.InDelta(t, -990, pts[0].Z, 1e-9)
	// 1150 m is 15% along the deviated leg
	assert.InDelta(t, 0.15*600, pts[10].X, 1e-9)
	assert.InDelta(t, 0.15*800, pts[10].Y, 1e-9)
	assert.InDelta(t, -990-0.15*800, pts[10].Z, 1e-9)

	head := w.Head(toLocal)
	assert.Equal(t, r3.Vector{X: 0, Y: 0, Z: 10}, head)

	// depths past the trajectory are clamped to its end
	w.AHD0 = 1950
	w.DAHD = 100
	w.NAHD = 3
	pts, err = w.Points(toLocal)
	require.NoError(t, err)
	assert.Equal(t, pts[1], pts[2])
	assert.InDelta(t, 600, pts[2].X, 1e-9)
}

func TestWell_Validate(t *testing.T) {
	w := DefaultWell()
	assert.True(t, errors.Is(w.Validate(), ErrInvalidSurvey))

	w.Stations = []Station{{MD: 100}, {MD: 100}}
	assert.True(t, errors.Is(w.Validate(), ErrInvalidSurvey))

	s := Seed{Kind: Well, Well: w}
	assert.Error(t, s.Prepare(geom.Identity()))
	assert.Empty(t, s.Points())
}

func TestParseSeedKind(t *testing.T) {
	for _, k := range []SeedKind{RollingGrid, FixedGrid, Circle, Spiral, Well} {
		got, err := ParseSeedKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseSeedKind(" Grid ")
	require.NoError(t, err)
	assert.Equal(t, RollingGrid, got)

	_, err = ParseSeedKind("hexagon")
	assert.True(t, errors.Is(err, ErrInvalidSurvey))
	assert.Equal(t, "SeedKind(9)", SeedKind(9).String())
}
