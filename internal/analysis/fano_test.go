package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/fano_analyzer_go/internal/testutil"
)

var referenceParams = FanoParameters{Amplitude: -2, Center: 5, Width: 1.5, Asymmetry: 0.1, Offset: 0.5}

func TestEvaluateFanoMatchesClosedForm(t *testing.T) {
	x := testutil.Linspace(0, 10, 200)
	got, err := EvaluateFano(x, referenceParams)
	require.NoError(t, err)
	want := testutil.Fano(x, -2, 5, 1.5, 0.1, 0.5)
	testutil.RequireSliceNearlyEqual(t, got, want, 1e-12)
}

func TestEvaluateFanoSpecialPoints(t *testing.T) {
	p := FanoParameters{Amplitude: 3, Center: 1, Width: 2, Asymmetry: 0.5, Offset: -1}
	got, err := EvaluateFano([]float64{1, 1e12}, p)
	require.NoError(t, err)
	assert.InDelta(t, 3*0.25-1, got[0], 1e-12) // eps = 0: a q^2 + offset
	assert.InDelta(t, 3-1, got[1], 1e-6)       // eps -> inf: a + offset
}

func TestEvaluateFanoDeterministic(t *testing.T) {
	x := testutil.Linspace(-3, 3, 77)
	first, err := EvaluateFano(x, referenceParams)
	require.NoError(t, err)
	second, err := EvaluateFano(x, referenceParams)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEvaluateFanoZeroWidth(t *testing.T) {
	p := referenceParams
	p.Width = 0
	_, err := EvaluateFano([]float64{1, 2}, p)
	assert.ErrorIs(t, err, ErrNumericFault)
}

func TestFWHM(t *testing.T) {
	x := testutil.Indices(100)
	w, err := FWHM(x, testutil.TriangularPeak(100, 50, 10))
	require.NoError(t, err)
	assert.InDelta(t, 18.0, w, 1e-12)

	w, err = FWHM(x, testutil.DC(4, 100))
	require.NoError(t, err)
	assert.Zero(t, w)
}

func TestInitialGuessTriangularPeak(t *testing.T) {
	const hwhm = 10.0
	x := testutil.Indices(100)
	g, err := InitialGuess(x, testutil.TriangularPeak(100, 50, hwhm))
	require.NoError(t, err)

	assert.InDelta(t, 50.0, g.Center, 1)
	testutil.RequireWithinRelative(t, hwhm, g.Width, 0.2)
	assert.Equal(t, -1.0, g.Amplitude)
	assert.Equal(t, 0.0, g.Offset)
	assert.Equal(t, DefaultAsymmetry, g.Asymmetry)
}

func TestInitialGuessDecreasingAxis(t *testing.T) {
	x := make([]float64, 100)
	for i := range x {
		x[i] = 1000 - float64(i)
	}
	g, err := InitialGuess(x, testutil.TriangularPeak(100, 30, 5))
	require.NoError(t, err)
	assert.Equal(t, 970.0, g.Center)
	assert.Greater(t, g.Width, 0.0)
}

func TestInitialGuessInvalid(t *testing.T) {
	_, err := InitialGuess([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = InitialGuess(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
