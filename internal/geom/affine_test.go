package geom

import (
	"errors"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffine_BuilderOrder(t *testing.T) {
	// scale first, then rotate, then translate
	tr := Identity().Translate(100, 200).Rotate(90).Scale(2, 2)

	x, y := tr.Map(1, 0)
	assert.Equal(t, 100.0, x)
	assert.Equal(t, 202.0, y)
}

func TestAffine_ZeroValueIsIdentity(t *testing.T) {
	var tr Affine
	x, y := tr.Map(3, 4)
	assert.Equal(t, 3.0, x)
	assert.Equal(t, 4.0, y)
	assert.Equal(t, Identity().Coefficients(), tr.Coefficients())
}

func TestAffine_InvertedRoundTrip(t *testing.T) {
	tr := Identity().Translate(512000, 6780000).Rotate(30).Scale(1.5, 0.75)
	inv, err := tr.Inverted()
	require.NoError(t, err)

	for _, p := range []r2.Point{{X: 0, Y: 0}, {X: 1250, Y: -300}, {X: -77.5, Y: 4000}} {
		q := inv.MapPoint(tr.MapPoint(p))
		assert.InDelta(t, p.X, q.X, 1e-6)
		assert.InDelta(t, p.Y, q.Y, 1e-6)
	}
}

func TestAffine_SingularScale(t *testing.T) {
	tests := []struct {
		name   string
		sx, sy float64
	}{
		{"zero x scale", 0, 1},
		{"zero y scale", 1, 0},
		{"both zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Identity().Scale(tt.sx, tt.sy).Inverted()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSingular))
		})
	}
}

func TestAffine_BinIndexTransform(t *testing.T) {
	fwd := Identity().Translate(1000, 2000).Scale(25, 12.5)
	bin, err := fwd.Inverted()
	require.NoError(t, err)

	x, y := bin.Map(1030, 2020)
	assert.InDelta(t, 1.2, x, 1e-12)
	assert.InDelta(t, 1.6, y, 1e-12)
}

func TestAffine_MapXYKeepsZ(t *testing.T) {
	tr := Identity().Translate(10, 20)
	v := tr.MapXY(r3.Vector{X: 1, Y: 2, Z: -35})
	assert.Equal(t, r3.Vector{X: 11, Y: 22, Z: -35}, v)
}

func TestAffine_Compose(t *testing.T) {
	a := Identity().Translate(5, 0)
	b := Identity().Scale(2, 3)
	x, y := a.Compose(b).Map(1, 1)
	assert.Equal(t, 7.0, x)
	assert.Equal(t, 3.0, y)
}

func TestSinCosDeg_QuarterTurns(t *testing.T) {
	for deg, want := range map[float64][2]float64{
		0: {0, 1}, 90: {1, 0}, 180: {0, -1}, 270: {-1, 0}, -90: {-1, 0}, 450: {1, 0},
	} {
		s, c := sinCosDeg(deg)
		assert.Equal(t, want[0], s, "sin(%v)", deg)
		assert.Equal(t, want[1], c, "cos(%v)", deg)
	}
}
