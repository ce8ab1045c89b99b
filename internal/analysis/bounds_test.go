package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/fano_analyzer_go/internal/testutil"
)

func mixedBounds() *Bounds {
	b := Unbounded()
	b.Lower[ParamAmplitude], b.Upper[ParamAmplitude] = -5, 0 // two-sided
	b.Lower[ParamWidth] = 0                                  // lower only
	b.Upper[ParamAsymmetry] = 2                              // upper only
	return b
}

func TestBoundTransformRoundTrip(t *testing.T) {
	bt := boundTransform{b: mixedBounds()}
	p := []float64{-2, 5, 1.5, 0.1, 0.5}
	got := bt.toExternal(bt.toInternal(p))
	testutil.RequireSliceNearlyEqual(t, got, p, 1e-9)
}

func TestBoundTransformStaysInside(t *testing.T) {
	b := mixedBounds()
	bt := boundTransform{b: b}
	for _, u := range testutil.GaussianNoise(11, 100, 200) {
		p := bt.toExternal([]float64{u, u, u, u, u})
		for k, v := range p {
			assert.GreaterOrEqual(t, v, b.Lower[k], ParamNames[k])
			assert.LessOrEqual(t, v, b.Upper[k], ParamNames[k])
		}
	}
}

func TestBoundTransformInactive(t *testing.T) {
	bt := boundTransform{}
	p := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, p, bt.toExternal(p))
	assert.Equal(t, p, bt.toInternal(p))
	assert.Nil(t, bt.clamp(p))
	assert.NoError(t, bt.validate())
	assert.False(t, bt.active())
}

func TestBoundTransformClamp(t *testing.T) {
	bt := boundTransform{b: mixedBounds()}
	p := []float64{-10, 5, -1, 3, 0.5}
	moved := bt.clamp(p)
	assert.Equal(t, []string{"amplitude", "gamma", "q"}, moved)

	assert.InDelta(t, -5+5*clampInset, p[ParamAmplitude], 1e-12)
	assert.InDelta(t, clampInset, p[ParamWidth], 1e-12)
	assert.InDelta(t, 2-2*clampInset, p[ParamAsymmetry], 1e-12)
	assert.Equal(t, 5.0, p[ParamCenter])
	assert.Equal(t, 0.5, p[ParamOffset])
}

func TestBoundTransformValidate(t *testing.T) {
	b := Unbounded()
	b.Lower[ParamCenter], b.Upper[ParamCenter] = 2, 1
	assert.ErrorIs(t, boundTransform{b: b}.validate(), ErrInvalidInput)

	b = Unbounded()
	b.Upper[ParamOffset] = math.NaN()
	assert.ErrorIs(t, boundTransform{b: b}.validate(), ErrInvalidInput)

	require.NoError(t, boundTransform{b: PhysicalBounds()}.validate())
}

func TestPhysicalBounds(t *testing.T) {
	b := PhysicalBounds()
	assert.Equal(t, 0.0, b.Lower[ParamWidth])
	for k := 0; k < NumFanoParams; k++ {
		assert.True(t, math.IsInf(b.Upper[k], 1))
		if k != ParamWidth {
			assert.True(t, math.IsInf(b.Lower[k], -1))
		}
	}
}
