package analysis

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/user/fano_analyzer_go/internal/parser"
)

// Analyze runs one trace through the full pipeline:
//
//	segment -> time -> wavelength -> frequency -> (smooth) -> guess -> fit -> chi2
//
// Any failure is returned as a *StageError naming the stage; no partial
// results are returned.
func Analyze(trace *parser.Trace, opts Options, logger zerolog.Logger) (*AnalysisResults, error) {
	if trace == nil || trace.Len() == 0 {
		return nil, stageErr(StageSegment, invalidInput("trace is nil or empty, cannot analyze"))
	}
	if trace.SamplingInterval <= 0 {
		return nil, stageErr(StageSegment, invalidInput("trace %q has no sampling interval", trace.Source))
	}

	results := NewAnalysisResults(trace)
	log := logger.With().Str("source", trace.Source).Logger()

	timeAxis, signal, err := trace.Segment(opts.SegmentStart, opts.SegmentEnd)
	if err != nil {
		return nil, stageErr(StageSegment, fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	if opts.SegmentEnd > trace.Len() {
		results.AnalysisErrors = append(results.AnalysisErrors,
			fmt.Sprintf("Segment end %d beyond trace length %d, clamped.", opts.SegmentEnd, trace.Len()))
	}
	results.Signal = signal
	log.Debug().Int("points", len(signal)).Float64("interval_s", trace.SamplingInterval).Msg("segment selected")

	wavelength := TimeToWavelength(timeAxis, opts.ScaleNmPerSecond)
	freq, err := WavelengthToFrequency(wavelength, opts.ReferenceNm)
	if err != nil {
		return nil, stageErr(StageConvert, err)
	}
	results.Frequency = freq

	fitY, fitErr := signal, []float64(nil)
	if opts.SmoothEnabled || opts.FitSmoothed {
		window := opts.SmoothWindow
		if window == 0 {
			window = DefaultSmoothWindow
		}
		smoothed, err := Smooth(signal, window)
		if err != nil {
			return nil, stageErr(StageSmooth, err)
		}
		results.Smoothed = &smoothed
		if opts.FitSmoothed {
			fitY, fitErr = smoothed.Values, smoothed.Errors
			for _, e := range fitErr {
				if e == 0 {
					return nil, stageErr(StageSmooth, numericFault("smoothed series has zero local deviation; widen the window or fit the raw trace"))
				}
			}
		}
	}
	results.FitY, results.FitErr = fitY, fitErr

	guess := opts.InitialGuess
	if guess == nil {
		g, err := InitialGuess(freq, fitY)
		if err != nil {
			return nil, stageErr(StageGuess, err)
		}
		guess = &g
	}
	log.Debug().Floats64("guess", guess.Vector()).Msg("initial guess")

	fitter := &Fitter{
		Bounds:        opts.Bounds,
		MaxIterations: opts.MaxIterations,
		AbsoluteSigma: opts.AbsoluteSigma,
		Render:        opts.Render,
		Logger:        log,
	}
	fit, err := fitter.Fit(freq, fitY, fitErr, guess)
	if err != nil {
		return nil, stageErr(StageFit, err)
	}
	results.Fit = fit
	results.AnalysisErrors = append(results.AnalysisErrors, fit.Warnings...)

	model, err := EvaluateFano(freq, fit.Params)
	if err != nil {
		return nil, stageErr(StageGoodness, err)
	}
	results.Model = model

	weights := fitErr
	if weights == nil {
		weights = unitErrors(len(fitY))
	}
	chi2, err := ChiSquared(fitY, model, weights)
	if err != nil {
		return nil, stageErr(StageGoodness, err)
	}
	results.ChiSquared = chi2

	gamma, sigma := fit.Linewidth()
	log.Info().
		Float64("gamma_ghz", gamma).
		Float64("gamma_err_ghz", sigma).
		Float64("center_ghz", fit.Params.Center).
		Float64("chi2", chi2).
		Msg("fit complete")

	return results, nil
}
