package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/user/fano_analyzer_go/internal/analysis"
	"github.com/user/fano_analyzer_go/internal/testutil"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func fittedResults(t *testing.T) *analysis.AnalysisResults {
	t.Helper()
	params := analysis.FanoParameters{Amplitude: -2, Center: 5, Width: 1.5, Asymmetry: 0.1, Offset: 0.5}
	x := testutil.Linspace(0, 10, 300)
	model, err := analysis.EvaluateFano(x, params)
	require.NoError(t, err)
	signal := testutil.Add(model, testutil.GaussianNoise(1, 0.01, len(x)))
	smoothed, err := analysis.Smooth(signal, 10)
	require.NoError(t, err)

	cov := [][]float64{
		{4e-4, 1e-5, -2e-4, 1e-6, 3e-4},
		{1e-5, 1e-4, 0, 2e-6, 0},
		{-2e-4, 0, 9e-4, -1e-6, -1e-4},
		{1e-6, 2e-6, -1e-6, 1e-6, 0},
		{3e-4, 0, -1e-4, 0, 4e-4},
	}
	return &analysis.AnalysisResults{
		Source:    "synthetic.npy",
		Frequency: x,
		Signal:    signal,
		Smoothed:  &smoothed,
		FitY:      signal,
		Model:     model,
		Fit: &analysis.FitResult{
			Params:            params,
			Initial:           analysis.FanoParameters{Amplitude: -1.9, Center: 4.9, Width: 0.8, Asymmetry: 0.1, Offset: -1.5},
			Covariance:        cov,
			ChiSquared:        0.029,
			ReducedChiSquared: 0.029 / 295,
			DegreesOfFreedom:  295,
			NumPoints:         300,
		},
		ChiSquared:     0.029,
		AnalysisErrors: []string{"initial guess clamped into bounds for gamma"},
	}
}

func TestCreateFitPlot(t *testing.T) {
	img, err := CreateFitPlot(fittedResults(t), "Fano Fit")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	_, err = CreateFitPlot(&analysis.AnalysisResults{}, "empty")
	assert.Error(t, err)
}

func TestCreateResidualPlot(t *testing.T) {
	res := fittedResults(t)
	img, err := CreateResidualPlot(res)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	res.FitErr = testutil.DC(0.01, len(res.FitY))
	img, err = CreateResidualPlot(res)
	require.NoError(t, err)
	assert.NotEmpty(t, img)
}

func TestCreateCorrelationHeatmap(t *testing.T) {
	res := fittedResults(t)
	img, err := CreateCorrelationHeatmap(res.Fit, "Correlation")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	_, err = CreateCorrelationHeatmap(&analysis.FitResult{}, "none")
	assert.Error(t, err)
}

func TestCorrelation(t *testing.T) {
	corr := Correlation([][]float64{
		{4, 2, 0},
		{2, 9, 0},
		{0, 0, 0},
	})
	assert.InDelta(t, 1.0, corr[0][0], 1e-12)
	assert.InDelta(t, 1.0, corr[1][1], 1e-12)
	assert.InDelta(t, 2.0/6.0, corr[0][1], 1e-12)
	assert.Equal(t, corr[0][1], corr[1][0])
	assert.True(t, math.IsNaN(corr[2][2]))
	assert.True(t, math.IsNaN(corr[0][2]))
}

func TestDecimate(t *testing.T) {
	x := testutil.Indices(10000)
	pts := decimate(x, x, 1000)
	assert.LessOrEqual(t, len(pts), 1000)
	assert.Equal(t, 0.0, pts[0].X)

	y := testutil.DC(1, 5)
	y[2] = math.NaN()
	assert.Len(t, decimate(testutil.Indices(5), y, 0), 4)
}

func TestBuildPDFReport(t *testing.T) {
	res := fittedResults(t)
	fitImg, err := CreateFitPlot(res, "Fano Fit")
	require.NoError(t, err)
	heatImg, err := CreateCorrelationHeatmap(res.Fit, "Correlation")
	require.NoError(t, err)

	meta := ReportMeta{
		RunID:            "run-1",
		Source:           res.Source,
		ReferenceNm:      1569.810,
		ScaleNmPerSecond: 5.18,
		SmoothWindow:     10,
		GeneratedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	path := filepath.Join(t.TempDir(), "report.pdf")
	err = BuildPDFReport(path, meta, res, map[string][]byte{PlotFit: fitImg, PlotCorrelation: heatImg})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestWritePDFReportWithoutFit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDFReport(&buf, ReportMeta{Source: "x"}, &analysis.AnalysisResults{}, nil))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestWriteSummaryYAML(t *testing.T) {
	res := fittedResults(t)
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, "run-7", res, "yaml"))

	var got Summary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-7", got.RunID)
	assert.Equal(t, res.Fit.Params, got.Params)
	assert.InDelta(t, 0.03, got.Uncertainties.Width, 1e-12)
	require.NotNil(t, got.ReducedChiSquared)
	assert.InDelta(t, 0.029/295, *got.ReducedChiSquared, 1e-15)
	assert.Equal(t, res.AnalysisErrors, got.Warnings)
}

func TestWriteSummaryJSON(t *testing.T) {
	res := fittedResults(t)
	res.Fit.ReducedChiSquared = math.NaN()
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, "", res, "json"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.NotContains(t, got, "reduced_chi_squared")
	assert.NotContains(t, got, "run_id")
	assert.Equal(t, "synthetic.npy", got["source"])
	assert.Contains(t, got, "covariance")
}

func TestWriteSummaryErrors(t *testing.T) {
	assert.Error(t, WriteSummary(&bytes.Buffer{}, "", fittedResults(t), "xml"))
	assert.Error(t, WriteSummary(&bytes.Buffer{}, "", &analysis.AnalysisResults{}, "yaml"))
}

func TestPNGSinkConcurrent(t *testing.T) {
	dir := t.TempDir()
	sink := PNGSink(dir, "fit")
	x := testutil.Linspace(0, 1, 50)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = sink(x, x, x)
		}(i)
	}
	wg.Wait()
	require.NoError(t, errors.Join(errs...))

	files, err := filepath.Glob(filepath.Join(dir, "fit_*.png"))
	require.NoError(t, err)
	assert.Len(t, files, 4)
}

func TestPNGSinkRejectsMismatch(t *testing.T) {
	sink := PNGSink(t.TempDir(), "fit")
	assert.Error(t, sink([]float64{1, 2}, []float64{1}, []float64{1, 2}))
}

func TestPNGSinkCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "renders")
	sink := PNGSink(dir, "fit")
	x := testutil.Linspace(0, 1, 20)

	require.NoError(t, sink(x, x, x))
	assert.FileExists(t, filepath.Join(dir, "fit_001.png"))
}
