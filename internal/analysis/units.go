package analysis

import "math"

// SpeedOfLight in m/s (exact).
const SpeedOfLight = 299792458.0

// TimeToWavelength scales a time axis (s) into a wavelength offset (nm)
// using the sweep rate scaleNmPerSecond.
func TimeToWavelength(t []float64, scaleNmPerSecond float64) []float64 {
	out := make([]float64, len(t))
	for i, v := range t {
		out[i] = v * scaleNmPerSecond
	}
	return out
}

// WavelengthToFrequency converts wavelength offsets x (nm, relative to
// referenceNm) into optical frequency in GHz:
//
//	f = c / ((x + ref) * 1e-9) / 1e9
//
// A zero absolute wavelength is reported as ErrNumericFault instead of
// producing Inf.
func WavelengthToFrequency(x []float64, referenceNm float64) ([]float64, error) {
	if len(x) == 0 {
		return nil, invalidInput("empty wavelength axis")
	}
	freq := make([]float64, len(x))
	for i, v := range x {
		wvl := v + referenceNm
		if wvl == 0 {
			return nil, numericFault("zero wavelength at index %d", i)
		}
		f := SpeedOfLight / (wvl * 1e-9) / 1e9
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, numericFault("non-finite frequency at index %d (wavelength %v nm)", i, wvl)
		}
		freq[i] = f
	}
	return freq, nil
}
