package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultAsymmetry seeds q. It is not derived from the data.
const DefaultAsymmetry = 0.1

// fanoAt evaluates the line shape at a single x. No guard on gamma.
func fanoAt(x float64, p FanoParameters) float64 {
	eps := 2 * (x - p.Center) / p.Width
	return p.Amplitude*(p.Asymmetry+eps)*(p.Asymmetry+eps)/(1+eps*eps) + p.Offset
}

// EvaluateFano evaluates the Fano line shape
//
//	eps = 2 (x - x0) / gamma
//	y   = a (q + eps)^2 / (1 + eps^2) + offset
//
// at every x. gamma == 0 is a NumericFault.
func EvaluateFano(x []float64, p FanoParameters) ([]float64, error) {
	if p.Width == 0 {
		return nil, numericFault("fano width gamma is zero")
	}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = fanoAt(v, p)
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return nil, numericFault("non-finite fano value at index %d", i)
		}
	}
	return y, nil
}

// FWHM returns x[last] - x[first] over the indices where y exceeds
// (max(y) + min(y)) / 2. It returns 0 when nothing exceeds that level,
// e.g. for flat data.
//
// This assumes a single dominant peak. Several peaks above the half level
// are merged into one wide span, and monotonic data yields the distance to
// the end of the trace.
func FWHM(x, y []float64) (float64, error) {
	if err := checkXY(x, y); err != nil {
		return 0, err
	}
	halfMax := (floats.Max(y) + floats.Min(y)) / 2
	first, last := -1, -1
	for i, v := range y {
		if v > halfMax {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, nil
	}
	return x[last] - x[first], nil
}

// InitialGuess derives a crude Fano seed from the shape of (x, y):
//
//	amplitude = -(max(y) - min(y))
//	center    = x[argmax(y)]
//	gamma     = |FWHM| / 2
//	q         = 0.1
//	offset    = min(y)
//
// The negative amplitude encodes the dip convention of the instrument. The
// result is only good enough to start a nonlinear solver; gamma is 0 when
// FWHM finds no span.
func InitialGuess(x, y []float64) (FanoParameters, error) {
	if err := checkXY(x, y); err != nil {
		return FanoParameters{}, err
	}
	width, err := FWHM(x, y)
	if err != nil {
		return FanoParameters{}, err
	}
	maxY, minY := floats.Max(y), floats.Min(y)
	return FanoParameters{
		Amplitude: -(maxY - minY),
		Center:    x[floats.MaxIdx(y)],
		Width:     math.Abs(width / 2),
		Asymmetry: DefaultAsymmetry,
		Offset:    minY,
	}, nil
}

func checkXY(x, y []float64) error {
	if len(x) != len(y) {
		return invalidInput("x has %d points, y has %d", len(x), len(y))
	}
	if len(y) == 0 {
		return invalidInput("empty data")
	}
	return nil
}
