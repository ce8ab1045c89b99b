package analysis

import (
	"gonum.org/v1/gonum/stat"
)

// DefaultSmoothWindow is the moving-window size used when none is configured.
const DefaultSmoothWindow = 10

// Smooth runs a moving window of half-width windowSize/2 over y and returns
// the window mean and population standard deviation at every index.
//
// Windows are truncated at the ends, never padded:
//
//	i < half:            y[0 : i+half]
//	i >= len(y) - half:  y[i-half : len(y)]
//	otherwise:           y[i-half : i+half]
//
// The interior window is therefore 2*half samples wide and sits one sample
// to the left of i. A windowSize below 2 gives empty interior windows, which
// is reported as ErrNumericFault.
func Smooth(y []float64, windowSize int) (SmoothedSeries, error) {
	if len(y) == 0 {
		return SmoothedSeries{}, invalidInput("cannot smooth an empty series")
	}
	half := windowSize / 2
	if half < 0 {
		half = 0
	}
	n := len(y)

	out := SmoothedSeries{
		Values: make([]float64, n),
		Errors: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		var lo, hi int
		switch {
		case i < half:
			lo, hi = 0, i+half
		case i >= n-half:
			lo, hi = i-half, n
		default:
			lo, hi = i-half, i+half
		}
		if hi > n {
			hi = n
		}
		if hi <= lo {
			return SmoothedSeries{}, numericFault("empty smoothing window at index %d (window size %d)", i, windowSize)
		}
		if hi-lo == 1 {
			out.Values[i], out.Errors[i] = y[lo], 0
			continue
		}
		// nil weights: unweighted mean and population std, as numpy.std does.
		out.Values[i], out.Errors[i] = stat.PopMeanStdDev(y[lo:hi], nil)
	}
	return out, nil
}
