package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog/log"

	"github.com/user/fano_analyzer_go/internal/analysis"
)

const (
	pdfPageWidthPortrait  = 210.0 // A4, mm
	pdfPageHeightPortrait = 297.0
	pdfMargin             = 15.0
	pdfContentWidth       = pdfPageWidthPortrait - (2 * pdfMargin)
)

// Plot keys understood by BuildPDFReport.
const (
	PlotFit         = "fit"
	PlotResiduals   = "residuals"
	PlotCorrelation = "correlation"
)

// ReportMeta describes the run a report belongs to.
type ReportMeta struct {
	RunID            string
	Source           string
	ReferenceNm      float64
	ScaleNmPerSecond float64
	SmoothWindow     int
	FitSmoothed      bool
	GeneratedAt      time.Time
}

// pdfStyler holds reusable styling and state for PDF generation
type pdfStyler struct {
	pdf         *gofpdf.Fpdf
	styles      map[string]func()
	lineHeight  float64
	currentY    float64 // manually tracked Y for flowing content
	pageHeight  float64
	contentTopY float64
}

func newPDFStyler(pdf *gofpdf.Fpdf) *pdfStyler {
	s := &pdfStyler{
		pdf:         pdf,
		styles:      make(map[string]func()),
		lineHeight:  6,
		pageHeight:  pdfPageHeightPortrait - pdfMargin,
		contentTopY: pdfMargin,
	}
	s.currentY = s.contentTopY
	s.defineStyles()
	return s
}

func (s *pdfStyler) defineStyles() {
	s.styles["h1"] = func() {
		s.pdf.SetFont("Arial", "B", 16)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["h2"] = func() {
		s.pdf.SetFont("Arial", "B", 13)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["normal"] = func() {
		s.pdf.SetFont("Arial", "", 10)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableHeader"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetFillColor(200, 200, 200)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableCell"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(50, 50, 50)
	}
	s.styles["warning"] = func() {
		s.pdf.SetFont("Arial", "I", 9)
		s.pdf.SetTextColor(200, 0, 0)
	}
}

func (s *pdfStyler) applyStyle(styleName string) {
	if fn, ok := s.styles[styleName]; ok {
		fn()
	} else {
		s.styles["normal"]()
	}
}

func (s *pdfStyler) checkAddPage(neededHeight float64) {
	if s.currentY+neededHeight > s.pageHeight {
		s.pdf.AddPage()
		s.currentY = s.contentTopY
	}
}

func (s *pdfStyler) writeParagraph(text string, styleName string, align string) {
	s.applyStyle(styleName)
	lines := s.pdf.SplitLines([]byte(text), pdfContentWidth)
	s.checkAddPage(float64(len(lines)) * s.lineHeight)

	s.pdf.SetXY(pdfMargin, s.currentY)
	s.pdf.MultiCell(pdfContentWidth, s.lineHeight, text, "", align, false)
	s.currentY = s.pdf.GetY() + 1
}

func (s *pdfStyler) addSpacer(height float64) {
	s.checkAddPage(height)
	s.currentY += height
}

func (s *pdfStyler) addImage(imageBytes []byte, imageName string, width float64, height float64, caption string) {
	s.pdf.RegisterImageReader(imageName, "PNG", bytes.NewReader(imageBytes))

	if width > pdfContentWidth {
		ratio := pdfContentWidth / width
		width = pdfContentWidth
		height *= ratio
	}
	captionHeight := 0.0
	if caption != "" {
		captionHeight = s.lineHeight + 1
	}
	s.checkAddPage(height + captionHeight)

	x := pdfMargin + (pdfContentWidth-width)/2
	s.pdf.Image(imageName, x, s.currentY, width, height, false, "PNG", 0, "")
	s.currentY += height

	if caption != "" {
		s.addSpacer(1)
		s.writeParagraph(caption, "normal", "C")
	}
	s.addSpacer(2)
}

// writeTable draws a bordered table with relative column widths.
func (s *pdfStyler) writeTable(headers []string, colWidthsRel []float64, rows [][]string) {
	colWidthsAbs := make([]float64, len(colWidthsRel))
	for i, rel := range colWidthsRel {
		colWidthsAbs[i] = rel * pdfContentWidth
	}
	s.checkAddPage(s.lineHeight * float64(len(rows)+1))

	sX := pdfMargin
	s.applyStyle("tableHeader")
	for i, header := range headers {
		s.pdf.SetXY(sX, s.currentY)
		s.pdf.CellFormat(colWidthsAbs[i], s.lineHeight, header, "1", 0, "C", true, 0, "")
		sX += colWidthsAbs[i]
	}
	s.currentY += s.lineHeight

	s.applyStyle("tableCell")
	for _, row := range rows {
		s.checkAddPage(s.lineHeight)
		sX = pdfMargin
		for i, cell := range row {
			s.pdf.SetXY(sX, s.currentY)
			s.pdf.CellFormat(colWidthsAbs[i], s.lineHeight, cell, "1", 0, "C", false, 0, "")
			sX += colWidthsAbs[i]
		}
		s.currentY += s.lineHeight
	}
}

// BuildPDFReport writes the fit report for one analysis to filepath.
func BuildPDFReport(filepath string, meta ReportMeta, results *analysis.AnalysisResults, plotImages map[string][]byte) error {
	pdf := buildPDF(meta, results, plotImages)
	return pdf.OutputFileAndClose(filepath)
}

// WritePDFReport is BuildPDFReport for an arbitrary writer.
func WritePDFReport(w io.Writer, meta ReportMeta, results *analysis.AnalysisResults, plotImages map[string][]byte) error {
	pdf := buildPDF(meta, results, plotImages)
	return pdf.Output(w)
}

func buildPDF(meta ReportMeta, results *analysis.AnalysisResults, plotImages map[string][]byte) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AddPage()

	styler := newPDFStyler(pdf)

	styler.writeParagraph("Fano Resonance Fit Report", "h1", "C")
	styler.addSpacer(3)
	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	styler.writeParagraph(fmt.Sprintf("Run %s, generated %s", meta.RunID, generated.Format(time.RFC3339)), "normal", "L")
	styler.writeParagraph(fmt.Sprintf("Source: %s", meta.Source), "normal", "L")
	styler.writeParagraph(fmt.Sprintf("Reference wavelength %.3f nm, sweep %.3f nm/s", meta.ReferenceNm, meta.ScaleNmPerSecond), "normal", "L")
	if meta.FitSmoothed {
		styler.writeParagraph(fmt.Sprintf("Fitted smoothed series (window %d), weighted by local standard deviation.", meta.SmoothWindow), "normal", "L")
	} else {
		styler.writeParagraph("Fitted raw series, unit weights.", "normal", "L")
	}
	styler.addSpacer(4)

	if results == nil || results.Fit == nil {
		styler.writeParagraph("No fit results to display.", "normal", "L")
		return pdf
	}
	fit := results.Fit

	styler.writeParagraph("Fitted Parameters", "h2", "L")
	sigma := fit.Uncertainties()
	seed := fit.Initial.Vector()
	rows := make([][]string, 0, analysis.NumFanoParams)
	for k, v := range fit.Params.Vector() {
		rows = append(rows, []string{
			analysis.ParamNames[k],
			fmt.Sprintf("%.6g", v),
			fmt.Sprintf("%.3g", sigma[k]),
			relative(sigma[k], v),
			fmt.Sprintf("%.6g", seed[k]),
		})
	}
	styler.writeTable(
		[]string{"Parameter", "Value", "Std. Error", "Rel. Error", "Initial Guess"},
		[]float64{0.2, 0.2, 0.2, 0.2, 0.2},
		rows,
	)
	styler.addSpacer(3)

	gamma, gammaErr := fit.Linewidth()
	styler.writeParagraph(fmt.Sprintf("Linewidth: %.4f +/- %.4f GHz", gamma, gammaErr), "normal", "L")
	styler.writeParagraph(fmt.Sprintf("Chi-squared: %.4g over %d points (%d dof), reduced %.4g",
		fit.ChiSquared, fit.NumPoints, fit.DegreesOfFreedom, fit.ReducedChiSquared), "normal", "L")
	styler.addSpacer(3)

	styler.writeParagraph("Covariance Matrix", "h2", "L")
	covRows := make([][]string, 0, analysis.NumFanoParams)
	for i, row := range fit.Covariance {
		cells := []string{analysis.ParamNames[i]}
		for _, v := range row {
			cells = append(cells, fmt.Sprintf("%.3e", v))
		}
		covRows = append(covRows, cells)
	}
	covHeaders := append([]string{""}, analysis.ParamNames[:]...)
	styler.writeTable(covHeaders, []float64{0.15, 0.17, 0.17, 0.17, 0.17, 0.17}, covRows)
	styler.addSpacer(3)

	if len(results.AnalysisErrors) > 0 {
		styler.writeParagraph("Warnings", "h2", "L")
		for _, w := range results.AnalysisErrors {
			styler.writeParagraph("- "+w, "warning", "L")
		}
		styler.addSpacer(3)
	}

	plotDefs := []struct {
		Key     string
		Caption string
		Width   float64
		Aspect  float64
	}{
		{PlotFit, "Data, smoothed series, initial guess and fitted Fano line shape", pdfContentWidth, 0.5},
		{PlotResiduals, "Fit residuals", pdfContentWidth, 250.0 / 800.0},
		{PlotCorrelation, "Parameter correlation matrix", pdfContentWidth * 0.6, 0.9},
	}
	for _, pDef := range plotDefs {
		imgBytes, ok := plotImages[pDef.Key]
		if !ok || len(imgBytes) == 0 {
			log.Debug().Str("plot", pDef.Key).Msg("plot not available for report")
			continue
		}
		styler.addImage(imgBytes, pDef.Key, pDef.Width, pDef.Width*pDef.Aspect, pDef.Caption)
	}
	return pdf
}

func relative(sigma, value float64) string {
	if value == 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", 100*math.Abs(sigma/value))
}
