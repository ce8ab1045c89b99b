package analysis

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/fano_analyzer_go/internal/parser"
	"github.com/user/fano_analyzer_go/internal/testutil"
)

const (
	testInterval = 1e-4 // s per sample
	testPoints   = 2000
)

// sweepTrace builds a capture whose samples trace a Fano resonance on the
// frequency axis Analyze derives with DefaultOptions' sweep and reference.
func sweepTrace(t *testing.T, seed int64) (*parser.Trace, FanoParameters) {
	t.Helper()
	opts := DefaultOptions()
	trace := parser.NewTrace(make([]float64, testPoints), testInterval, "synthetic")
	freq, err := WavelengthToFrequency(TimeToWavelength(trace.TimeAxis(), opts.ScaleNmPerSecond), opts.ReferenceNm)
	require.NoError(t, err)

	want := FanoParameters{Amplitude: -2, Center: freq[testPoints/2], Width: 10, Asymmetry: 0.1, Offset: 0.5}
	clean, err := EvaluateFano(freq, want)
	require.NoError(t, err)
	copy(trace.Samples, testutil.Add(clean, testutil.GaussianNoise(seed, noiseSigma, testPoints)))
	return trace, want
}

func sweepOptions() Options {
	opts := DefaultOptions()
	opts.SegmentStart = 0
	opts.SegmentEnd = testPoints
	return opts
}

func requireStage(t *testing.T, err error, stage string, kind error) {
	t.Helper()
	var se *StageError
	require.True(t, errors.As(err, &se), "want *StageError, got %v", err)
	assert.Equal(t, stage, se.Stage)
	assert.ErrorIs(t, err, kind)
}

func TestAnalyzeRecoversLinewidth(t *testing.T) {
	trace, want := sweepTrace(t, 42)

	res, err := Analyze(trace, sweepOptions(), zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, res.Fit)

	gamma, sigma := res.Fit.Linewidth()
	testutil.RequireWithinRelative(t, want.Width, gamma, 0.1)
	assert.Greater(t, sigma, 0.0)
	assert.InDelta(t, want.Center, res.Fit.Params.Center, 1)

	assert.Equal(t, "synthetic", res.Source)
	assert.Len(t, res.Frequency, testPoints)
	assert.Len(t, res.Signal, testPoints)
	assert.Len(t, res.Model, testPoints)
	require.NotNil(t, res.Smoothed)
	assert.Len(t, res.Smoothed.Values, testPoints)
	assert.Nil(t, res.FitErr)
	assert.InDelta(t, res.Fit.ChiSquared, res.ChiSquared, 1e-6*res.ChiSquared)
}

func TestAnalyzeFitSmoothed(t *testing.T) {
	trace, want := sweepTrace(t, 5)
	opts := sweepOptions()
	opts.FitSmoothed = true

	res, err := Analyze(trace, opts, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, res.Fit.Weighted)
	assert.Equal(t, res.Smoothed.Values, res.FitY)
	assert.Equal(t, res.Smoothed.Errors, res.FitErr)
	testutil.RequireWithinRelative(t, want.Width, res.Fit.Params.Width, 0.1)
}

func TestAnalyzeSkipsSmoothing(t *testing.T) {
	trace, _ := sweepTrace(t, 6)
	opts := sweepOptions()
	opts.SmoothEnabled = false

	res, err := Analyze(trace, opts, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, res.Smoothed)
}

func TestAnalyzeSegmentClampWarning(t *testing.T) {
	trace, _ := sweepTrace(t, 7)
	opts := sweepOptions()
	opts.SegmentEnd = 10 * testPoints

	res, err := Analyze(trace, opts, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, res.Signal, testPoints)
	assert.True(t, containsSubstring(res.AnalysisErrors, "clamped"))
}

func TestAnalyzeUsesSuppliedGuess(t *testing.T) {
	trace, want := sweepTrace(t, 8)
	opts := sweepOptions()
	guess := want
	guess.Width = 8
	opts.InitialGuess = &guess

	res, err := Analyze(trace, opts, zerolog.Nop())
	require.NoError(t, err)
	assert.InDelta(t, 8.0, res.Fit.Initial.Width, 1e-9)
	testutil.RequireWithinRelative(t, want.Width, res.Fit.Params.Width, 0.1)
}

func TestAnalyzeStageErrors(t *testing.T) {
	trace, _ := sweepTrace(t, 9)

	_, err := Analyze(nil, sweepOptions(), zerolog.Nop())
	requireStage(t, err, StageSegment, ErrInvalidInput)

	noInterval := parser.NewTrace(trace.Samples, 0, "x")
	_, err = Analyze(noInterval, sweepOptions(), zerolog.Nop())
	requireStage(t, err, StageSegment, ErrInvalidInput)

	opts := sweepOptions()
	opts.SegmentStart = testPoints + 5
	_, err = Analyze(trace, opts, zerolog.Nop())
	requireStage(t, err, StageSegment, ErrInvalidInput)

	opts = sweepOptions()
	opts.ReferenceNm = 0
	_, err = Analyze(trace, opts, zerolog.Nop())
	requireStage(t, err, StageConvert, ErrNumericFault)

	opts = sweepOptions()
	opts.SmoothWindow = 1
	_, err = Analyze(trace, opts, zerolog.Nop())
	requireStage(t, err, StageSmooth, ErrNumericFault)

	flat := parser.NewTrace(testutil.DC(1, testPoints), testInterval, "flat")
	opts = sweepOptions()
	opts.FitSmoothed = true
	_, err = Analyze(flat, opts, zerolog.Nop())
	requireStage(t, err, StageSmooth, ErrNumericFault)

	opts = sweepOptions()
	opts.SegmentStart, opts.SegmentEnd = 0, 3
	_, err = Analyze(trace, opts, zerolog.Nop())
	requireStage(t, err, StageFit, ErrInvalidInput)
}

func TestAnalyzeConvergenceFailure(t *testing.T) {
	trace, want := sweepTrace(t, 5)

	opts := sweepOptions()
	opts.MaxIterations = 1
	opts.InitialGuess = &FanoParameters{
		Amplitude: -1,
		Center:    want.Center + 3*want.Width,
		Width:     4 * want.Width,
		Asymmetry: 1,
		Offset:    0,
	}
	res, err := Analyze(trace, opts, zerolog.Nop())
	assert.Nil(t, res)
	requireStage(t, err, StageFit, ErrConvergence)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "convergence", se.Kind())
}
