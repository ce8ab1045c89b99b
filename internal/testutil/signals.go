// Package testutil holds deterministic signals and tolerance helpers for tests.
package testutil

import (
	"math"
	"math/rand"
)

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// Indices returns 0, 1, ..., n-1 as float64.
func Indices(n int) []float64 {
	return Linspace(0, float64(n-1), n)
}

// GaussianNoise generates normal noise with a fixed seed for reproducibility.
func GaussianNoise(seed int64, sigma float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = rng.NormFloat64() * sigma
	}
	return out
}

// Fano evaluates a (q + eps)^2 / (1 + eps^2) + offset with eps = 2 (x - x0) / gamma.
// It is written out independently of the analysis package so tests can
// check that package against it.
func Fano(x []float64, a, x0, gamma, q, offset float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		eps := 2 * (v - x0) / gamma
		out[i] = a*(q+eps)*(q+eps)/(1+eps*eps) + offset
	}
	return out
}

// TriangularPeak returns a unit-height triangle centred at index center whose
// half width at half maximum is hwhm samples.
func TriangularPeak(n, center int, hwhm float64) []float64 {
	out := make([]float64, n)
	base := 2 * hwhm
	for i := range out {
		out[i] = math.Max(0, 1-math.Abs(float64(i-center))/base)
	}
	return out
}

// Add returns the element-wise sum of a and b, truncated to the shorter one.
func Add(a, b []float64) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] + b[i]
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}
