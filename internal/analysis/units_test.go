package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWavelengthToFrequencyAtReference(t *testing.T) {
	freq, err := WavelengthToFrequency([]float64{0}, 1569.810)
	require.NoError(t, err)
	require.Len(t, freq, 1)
	assert.InDelta(t, 190973.72166058313, freq[0], 1e-3)
	assert.InDelta(t, SpeedOfLight/1569.810e-9/1e9, freq[0], 1e-3)
}

func TestWavelengthToFrequencyDecreasing(t *testing.T) {
	freq, err := WavelengthToFrequency([]float64{0, 0.5, 1}, 1569.810)
	require.NoError(t, err)
	assert.Greater(t, freq[0], freq[1])
	assert.Greater(t, freq[1], freq[2])
	assert.InDelta(t, 190852.1450716509, freq[2], 1e-3)
}

func TestWavelengthToFrequencyErrors(t *testing.T) {
	_, err := WavelengthToFrequency(nil, 1569.810)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = WavelengthToFrequency([]float64{1, -10}, 10)
	assert.ErrorIs(t, err, ErrNumericFault)
}

func TestTimeToWavelength(t *testing.T) {
	got := TimeToWavelength([]float64{0, 0.5, 2}, 5.18)
	assert.InDeltaSlice(t, []float64{0, 2.59, 10.36}, got, 1e-12)
	assert.Empty(t, TimeToWavelength(nil, 5.18))
}
