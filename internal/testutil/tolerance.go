package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireSliceNearlyEqual fails t if got and want differ in length or if
// any element pair exceeds eps (absolute tolerance).
func RequireSliceNearlyEqual(t testing.TB, got, want []float64, eps float64) {
	t.Helper()
	require.Len(t, got, len(want), "length mismatch")
	for i := range got {
		diff := math.Abs(got[i] - want[i])
		require.LessOrEqualf(t, diff, eps, "index %d: got %v, want %v", i, got[i], want[i])
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t testing.TB, data []float64) {
	t.Helper()
	for i, v := range data {
		require.Falsef(t, math.IsNaN(v) || math.IsInf(v, 0), "index %d: non-finite value %v", i, v)
	}
}

// RequireWithinRelative fails t unless |got - want| <= rel * |want|.
func RequireWithinRelative(t testing.TB, want, got, rel float64, msgAndArgs ...any) {
	t.Helper()
	require.LessOrEqual(t, math.Abs(got-want), rel*math.Abs(want), msgAndArgs...)
}
