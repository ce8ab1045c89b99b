package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/fano_analyzer_go/internal/testutil"
)

func TestChiSquaredIdentical(t *testing.T) {
	y := testutil.GaussianNoise(1, 3, 64)
	chi2, err := ChiSquared(y, y, testutil.DC(0.1, len(y)))
	require.NoError(t, err)
	assert.Equal(t, 0.0, chi2)
}

func TestChiSquaredValue(t *testing.T) {
	chi2, err := ChiSquared([]float64{1, 2}, []float64{0, 0}, []float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, chi2, 1e-12)
}

func TestChiSquaredZeroError(t *testing.T) {
	_, err := ChiSquared([]float64{1, 2}, []float64{1, 2}, []float64{1, 0})
	assert.ErrorIs(t, err, ErrNumericFault)
}

func TestChiSquaredInvalid(t *testing.T) {
	_, err := ChiSquared([]float64{1, 2}, []float64{1}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ChiSquared(nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReducedChiSquared(t *testing.T) {
	assert.InDelta(t, 5.0, ReducedChiSquared(10, 7, 5), 1e-12)
	assert.True(t, math.IsNaN(ReducedChiSquared(10, 5, 5)))
	assert.True(t, math.IsNaN(ReducedChiSquared(10, 3, 5)))
}
