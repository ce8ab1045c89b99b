package analysis

import (
	"math"

	"github.com/user/fano_analyzer_go/internal/parser"
)

// NumFanoParams is the number of free parameters in the Fano line shape.
const NumFanoParams = 5

// Parameter indices into FanoParameters.Vector() and FitResult.Covariance.
const (
	ParamAmplitude = iota
	ParamCenter
	ParamWidth
	ParamAsymmetry
	ParamOffset
)

// ParamNames labels the parameters in vector order.
var ParamNames = [NumFanoParams]string{"amplitude", "center", "gamma", "q", "offset"}

// FanoParameters holds one point in Fano parameter space.
type FanoParameters struct {
	Amplitude float64 `json:"amplitude" yaml:"amplitude" toml:"amplitude"` // a
	Center    float64 `json:"center" yaml:"center" toml:"center"`          // x0
	Width     float64 `json:"gamma" yaml:"gamma" toml:"gamma"`             // gamma (full width)
	Asymmetry float64 `json:"q" yaml:"q" toml:"q"`                         // Fano factor q
	Offset    float64 `json:"offset" yaml:"offset" toml:"offset"`          // baseline
}

// Vector returns the parameters in ParamNames order.
func (p FanoParameters) Vector() []float64 {
	return []float64{p.Amplitude, p.Center, p.Width, p.Asymmetry, p.Offset}
}

// FanoParametersFromVector is the inverse of Vector. v must have NumFanoParams entries.
func FanoParametersFromVector(v []float64) FanoParameters {
	return FanoParameters{
		Amplitude: v[ParamAmplitude],
		Center:    v[ParamCenter],
		Width:     v[ParamWidth],
		Asymmetry: v[ParamAsymmetry],
		Offset:    v[ParamOffset],
	}
}

// SmoothedSeries is the output of Smooth: the windowed mean and the
// population standard deviation of the same window, point by point.
type SmoothedSeries struct {
	Values []float64
	Errors []float64
}

// Bounds constrains the fit. A nil Bounds means unconstrained.
// Use math.Inf for an open side.
type Bounds struct {
	Lower [NumFanoParams]float64
	Upper [NumFanoParams]float64
}

// Unbounded returns Bounds with every side open.
func Unbounded() *Bounds {
	b := &Bounds{}
	for i := 0; i < NumFanoParams; i++ {
		b.Lower[i] = math.Inf(-1)
		b.Upper[i] = math.Inf(1)
	}
	return b
}

// PhysicalBounds returns the constraint set gamma >= 0, everything else open.
func PhysicalBounds() *Bounds {
	b := Unbounded()
	b.Lower[ParamWidth] = 0
	return b
}

// FitResult is the outcome of a successful Fano fit.
type FitResult struct {
	Params            FanoParameters
	Initial           FanoParameters // seed actually handed to the optimizer
	Covariance        [][]float64    // NumFanoParams x NumFanoParams, ParamNames order
	ChiSquared        float64
	ReducedChiSquared float64
	DegreesOfFreedom  int
	NumPoints         int
	Weighted          bool // true when yerr was supplied
	Bounded           bool
	Warnings          []string
}

// Uncertainties returns sqrt(diag(Covariance)).
func (r *FitResult) Uncertainties() []float64 {
	out := make([]float64, NumFanoParams)
	for k := 0; k < NumFanoParams && k < len(r.Covariance); k++ {
		out[k] = math.Sqrt(r.Covariance[k][k])
	}
	return out
}

// Linewidth returns gamma and its one-sigma uncertainty.
func (r *FitResult) Linewidth() (float64, float64) {
	return r.Params.Width, r.Uncertainties()[ParamWidth]
}

// Options drives Analyze. Zero values are not meaningful; use DefaultOptions.
type Options struct {
	SegmentStart     int
	SegmentEnd       int     // exclusive, clamped to the trace length
	ScaleNmPerSecond float64 // time -> wavelength offset factor
	ReferenceNm      float64
	SmoothEnabled    bool
	SmoothWindow     int
	FitSmoothed      bool // fit the smoothed series weighted by its std instead of the raw trace
	Bounds           *Bounds
	MaxIterations    int
	AbsoluteSigma    bool
	InitialGuess     *FanoParameters
	Render           RenderFunc
}

// DefaultOptions mirrors the acquisition the analyzer was built around:
// a 100k point capture, 5.18 nm/s sweep, 1569.810 nm reference.
func DefaultOptions() Options {
	return Options{
		SegmentStart:     100,
		SegmentEnd:       100000,
		ScaleNmPerSecond: 5.18,
		ReferenceNm:      1569.810,
		SmoothEnabled:    true,
		SmoothWindow:     10,
		MaxIterations:    DefaultMaxIterations,
	}
}

// AnalysisResults holds every intermediate product of one pipeline run.
type AnalysisResults struct {
	Source         string
	Frequency      []float64 // GHz
	Signal         []float64 // raw segment
	Smoothed       *SmoothedSeries
	FitY           []float64
	FitErr         []float64 // nil when the fit was unweighted
	Model          []float64
	Fit            *FitResult
	ChiSquared     float64
	AnalysisErrors []string
}

// NewAnalysisResults returns an empty result bound to trace.
func NewAnalysisResults(trace *parser.Trace) *AnalysisResults {
	return &AnalysisResults{
		Source:         trace.Source,
		AnalysisErrors: make([]string, 0),
	}
}
