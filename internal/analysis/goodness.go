package analysis

import "math"

// ChiSquared returns sum(((yData - yModel) / errs)^2).
// A zero error term is a NumericFault rather than a silent +Inf.
func ChiSquared(yData, yModel, errs []float64) (float64, error) {
	if len(yData) != len(yModel) || len(yData) != len(errs) {
		return 0, invalidInput("length mismatch: data %d, model %d, errors %d", len(yData), len(yModel), len(errs))
	}
	if len(yData) == 0 {
		return 0, invalidInput("empty data")
	}
	chi2 := 0.0
	for i := range yData {
		if errs[i] == 0 {
			return 0, numericFault("zero error at index %d", i)
		}
		r := (yData[i] - yModel[i]) / errs[i]
		chi2 += r * r
	}
	if math.IsNaN(chi2) || math.IsInf(chi2, 0) {
		return 0, numericFault("chi-squared is not finite")
	}
	return chi2, nil
}

// ReducedChiSquared divides chi2 by the degrees of freedom n - nParams.
// It returns NaN when there are no degrees of freedom left.
func ReducedChiSquared(chi2 float64, n, nParams int) float64 {
	dof := n - nParams
	if dof <= 0 {
		return math.NaN()
	}
	return chi2 / float64(dof)
}

// unitErrors returns a slice of n ones, the weights of an unweighted fit.
func unitErrors(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
