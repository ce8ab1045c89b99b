package report

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/user/fano_analyzer_go/internal/analysis"
)

// correlationGrid exposes a square correlation matrix as a plotter.GridXYZ.
// Row 0 is drawn at the top so the layout reads like the printed table.
type correlationGrid struct {
	corr [][]float64
}

func (g correlationGrid) Dims() (c, r int) { return len(g.corr), len(g.corr) }
func (g correlationGrid) Z(c, r int) float64 {
	return g.corr[len(g.corr)-1-r][c]
}
func (g correlationGrid) X(c int) float64 { return float64(c) }
func (g correlationGrid) Y(r int) float64 { return float64(r) }

// Correlation converts a covariance matrix into correlation coefficients.
// Entries involving a zero or non-finite variance are NaN.
func Correlation(cov [][]float64) [][]float64 {
	n := len(cov)
	corr := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
		for j := range corr[i] {
			d := math.Sqrt(cov[i][i] * cov[j][j])
			if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
				corr[i][j] = math.NaN()
				continue
			}
			corr[i][j] = cov[i][j] / d
		}
	}
	return corr
}

// CreateCorrelationHeatmap draws the parameter correlation matrix of a fit
// on a diverging blue-red scale fixed to [-1, 1].
func CreateCorrelationHeatmap(fit *analysis.FitResult, plotTitle string) ([]byte, error) {
	if fit == nil || len(fit.Covariance) != analysis.NumFanoParams {
		return nil, fmt.Errorf("no covariance to plot heatmap")
	}
	corr := Correlation(fit.Covariance)
	grid := correlationGrid{corr: corr}

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-1)
	cmap.SetMax(1)

	hm := plotter.NewHeatMap(grid, cmap.Palette(255))
	hm.Min = -1
	hm.Max = 1
	hm.NaN = color.Gray{Y: 200}

	p := plot.New()
	p.Title.Text = plotTitle
	p.Add(hm)

	n := analysis.NumFanoParams
	xTicks := make([]plot.Tick, n)
	yTicks := make([]plot.Tick, n)
	for i, name := range analysis.ParamNames {
		xTicks[i] = plot.Tick{Value: float64(i), Label: name}
		yTicks[n-1-i] = plot.Tick{Value: float64(n - 1 - i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)
	p.X.Min, p.X.Max = -0.5, float64(n)-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(n)-0.5

	// Annotate each cell with its coefficient.
	labels := make(plotter.XYs, 0, n*n)
	texts := make([]string, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			labels = append(labels, plotter.XY{X: float64(c), Y: float64(n - 1 - r)})
			texts = append(texts, fmt.Sprintf("%.2f", corr[r][c]))
		}
	}
	cellLabels, err := plotter.NewLabels(plotter.XYLabels{XYs: labels, Labels: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to create heatmap labels: %w", err)
	}
	p.Add(cellLabels)

	return writePNG(p, vg.Points(500), vg.Points(450))
}
