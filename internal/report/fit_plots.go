package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/user/fano_analyzer_go/internal/analysis"
)

// maxPlotPoints caps the number of points drawn per series; raw captures
// run to 1e5 samples.
const maxPlotPoints = 4000

var (
	dataColor     = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	smoothedColor = color.RGBA{B: 255, A: 255}
	fitColor      = color.RGBA{R: 255, A: 255}
	guessColor    = color.RGBA{R: 255, G: 165, A: 255}
)

// CreateFitPlot draws the fitted segment: raw data, smoothed series (if
// any), the initial guess and the fitted curve, against frequency in GHz.
func CreateFitPlot(results *analysis.AnalysisResults, title string) ([]byte, error) {
	if results == nil || results.Fit == nil || len(results.Frequency) == 0 {
		return nil, fmt.Errorf("no fit results to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frequency (GHz)"
	p.Y.Label.Text = "Amplitude (a.u.)"
	p.Add(plotter.NewGrid())

	x := results.Frequency
	if err := addLine(p, "data", x, results.Signal, dataColor, 1, nil); err != nil {
		return nil, err
	}
	if results.Smoothed != nil {
		if err := addLine(p, "smoothed", x, results.Smoothed.Values, smoothedColor, 1, nil); err != nil {
			return nil, err
		}
	}
	if guess, err := analysis.EvaluateFano(x, results.Fit.Initial); err == nil {
		dash := []vg.Length{vg.Points(4), vg.Points(4)}
		if err := addLine(p, "initial guess", x, guess, guessColor, 1, dash); err != nil {
			return nil, err
		}
	}
	if err := addLine(p, "fit", x, results.Model, fitColor, 2, nil); err != nil {
		return nil, err
	}

	p.Legend.Top = true
	p.Legend.XOffs = vg.Points(-10)
	return writePNG(p, vg.Points(800), vg.Points(400))
}

// CreateResidualPlot draws (y - model) / yerr for the fitted series.
func CreateResidualPlot(results *analysis.AnalysisResults) ([]byte, error) {
	if results == nil || results.Fit == nil || len(results.Model) == 0 {
		return nil, fmt.Errorf("no fit results to plot")
	}
	res := make([]float64, len(results.Model))
	for i := range res {
		r := results.FitY[i] - results.Model[i]
		if results.FitErr != nil {
			r /= results.FitErr[i]
		}
		res[i] = r
	}

	p := plot.New()
	p.Title.Text = "Fit Residuals"
	p.X.Label.Text = "Frequency (GHz)"
	if results.FitErr != nil {
		p.Y.Label.Text = "(y - model) / σ"
	} else {
		p.Y.Label.Text = "y - model"
	}
	p.Add(plotter.NewGrid())

	zeroLine, err := plotter.NewLine(plotter.XYs{
		{X: results.Frequency[0], Y: 0},
		{X: results.Frequency[len(results.Frequency)-1], Y: 0},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create zero line: %w", err)
	}
	zeroLine.Color = color.Gray{Y: 128}
	zeroLine.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	p.Add(zeroLine)

	if err := addLine(p, "", results.Frequency, res, dataColor, 1, nil); err != nil {
		return nil, err
	}
	return writePNG(p, vg.Points(800), vg.Points(250))
}

// CreateDataFitPlot is the minimal data-vs-fit figure used by render hooks.
func CreateDataFitPlot(x, yObserved, yFit []float64, title string) ([]byte, error) {
	if len(x) == 0 || len(x) != len(yObserved) || len(x) != len(yFit) {
		return nil, fmt.Errorf("data and fit must be non-empty and of equal length")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())
	if err := addLine(p, "data", x, yObserved, dataColor, 1, nil); err != nil {
		return nil, err
	}
	if err := addLine(p, "fit", x, yFit, fitColor, 2, nil); err != nil {
		return nil, err
	}
	p.Legend.Top = true
	return writePNG(p, vg.Points(800), vg.Points(400))
}

func addLine(p *plot.Plot, label string, x, y []float64, c color.Color, width float64, dash []vg.Length) error {
	pts := decimate(x, y, maxPlotPoints)
	if len(pts) == 0 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create line %q: %w", label, err)
	}
	line.Color = c
	line.LineStyle.Width = vg.Points(width)
	line.LineStyle.Dashes = dash
	p.Add(line)
	if label != "" {
		p.Legend.Add(label, line)
	}
	return nil
}

// decimate keeps every k-th finite point so that at most limit remain.
func decimate(x, y []float64, limit int) plotter.XYs {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	step := 1
	if limit > 0 && n > limit {
		step = int(math.Ceil(float64(n) / float64(limit)))
	}
	pts := make(plotter.XYs, 0, n/step+1)
	for i := 0; i < n; i += step {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsInf(x[i], 0) || math.IsInf(y[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
	}
	return pts
}

func writePNG(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	writer, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create plot writer: %w", err)
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write plot to buffer: %w", err)
	}
	return buf.Bytes(), nil
}
