package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/user/fano_analyzer_go/internal/analysis"
	"github.com/user/fano_analyzer_go/internal/config"
	"github.com/user/fano_analyzer_go/internal/parser"
	"github.com/user/fano_analyzer_go/internal/report"
	"github.com/user/fano_analyzer_go/internal/store"
)

// App drives one or more traces through analysis and the report outputs.
type App struct {
	cfg    config.Config
	opts   analysis.Options
	logger zerolog.Logger
	now    func() time.Time
}

// NewApp validates cfg and prepares the pipeline options.
func NewApp(cfg config.Config, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, opts: opts, logger: logger, now: time.Now}, nil
}

func (a *App) sendStatus(message string) {
	a.logger.Info().Msg(message)
}

// RunOne analyzes a single trace file and writes its outputs. If writing
// fails no results are returned.
func (a *App) RunOne(ctx context.Context, path string) (*analysis.AnalysisResults, error) {
	a.sendStatus(fmt.Sprintf("Loading: %s", path))
	trace, err := a.cfg.Source(path).LoadTrace(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	a.logParseErrors(trace)
	a.sendStatus(fmt.Sprintf("Loaded %d samples, interval %.3g s.", trace.Len(), trace.SamplingInterval))

	opts := a.opts
	if a.cfg.Output.RenderFitPNGs {
		opts.Render = report.PNGSink(a.cfg.Output.Dir, baseName(path)+"_render")
	}
	results, err := analysis.Analyze(trace, opts, a.logger)
	if err != nil {
		return nil, err
	}
	if err := a.writeOutputs(ctx, results, nil); err != nil {
		return nil, err
	}
	return results, nil
}

// RunBatch analyzes every path concurrently and writes outputs for the
// traces that fitted. It returns an error if any trace failed.
func (a *App) RunBatch(ctx context.Context, paths []string) ([]analysis.BatchItem, error) {
	sources := make([]parser.TraceSource, len(paths))
	for i, p := range paths {
		sources[i] = a.cfg.Source(p)
	}
	opts := a.opts
	if a.cfg.Output.RenderFitPNGs {
		opts.Render = report.PNGSink(a.cfg.Output.Dir, "batch_render")
	}

	a.sendStatus(fmt.Sprintf("Analyzing %d traces with %d workers...", len(paths), a.cfg.Workers))
	items, err := analysis.AnalyzeBatch(ctx, sources, opts, a.cfg.Workers, a.logger)
	if err != nil {
		return items, err
	}

	var st *store.Store
	if a.cfg.Output.Record {
		st, err = store.Open(a.cfg.Output.DBPath)
		if err != nil {
			return items, fmt.Errorf("failed to open db: %w", err)
		}
		defer st.Close()
	}

	failed := 0
	for i, item := range items {
		if item.Err != nil {
			failed++
			a.logger.Error().Err(item.Err).Str("source", paths[i]).Str("kind", analysis.ErrorKind(item.Err)).Msg("trace failed")
			continue
		}
		if err := a.writeOutputs(ctx, item.Results, st); err != nil {
			failed++
			a.logger.Error().Err(err).Str("source", paths[i]).Msg("writing outputs failed")
		}
	}
	a.sendStatus(fmt.Sprintf("Batch complete: %d of %d traces fitted.", len(items)-failed, len(items)))
	if failed > 0 {
		return items, fmt.Errorf("%d of %d traces failed", failed, len(items))
	}
	return items, nil
}

// writeOutputs renders plots, the PDF report and the summary for results and
// records the run. st may be nil, in which case a store is opened on demand.
func (a *App) writeOutputs(ctx context.Context, results *analysis.AnalysisResults, st *store.Store) error {
	out := a.cfg.Output
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	run, err := store.NewRun(results, a.now())
	if err != nil {
		return err
	}
	base := filepath.Join(out.Dir, baseName(results.Source))

	if len(results.AnalysisErrors) > 0 {
		a.sendStatus("Analysis Warnings:")
		for _, e := range results.AnalysisErrors {
			a.logger.Warn().Msg(e)
		}
	}

	if out.PDF {
		a.sendStatus("Generating plots...")
		plotImages := make(map[string][]byte)
		plotConfigs := []struct {
			Name string
			Make func() ([]byte, error)
		}{
			{report.PlotFit, func() ([]byte, error) { return report.CreateFitPlot(results, "Fano Fit: "+filepath.Base(results.Source)) }},
			{report.PlotResiduals, func() ([]byte, error) { return report.CreateResidualPlot(results) }},
			{report.PlotCorrelation, func() ([]byte, error) {
				return report.CreateCorrelationHeatmap(results.Fit, "Parameter Correlation")
			}},
		}
		for _, pc := range plotConfigs {
			imgBytes, errPlt := pc.Make()
			if errPlt != nil {
				a.logger.Warn().Err(errPlt).Str("plot", pc.Name).Msg("error generating plot")
				continue
			}
			plotImages[pc.Name] = imgBytes
		}

		pdfPath := base + "_report.pdf"
		a.sendStatus(fmt.Sprintf("Generating PDF: %s...", pdfPath))
		meta := report.ReportMeta{
			RunID:            run.ID,
			Source:           results.Source,
			ReferenceNm:      a.opts.ReferenceNm,
			ScaleNmPerSecond: a.opts.ScaleNmPerSecond,
			SmoothWindow:     a.opts.SmoothWindow,
			FitSmoothed:      a.opts.FitSmoothed,
			GeneratedAt:      run.CreatedAt,
		}
		if err := report.BuildPDFReport(pdfPath, meta, results, plotImages); err != nil {
			return fmt.Errorf("error generating PDF report: %w", err)
		}
	}

	if out.Summary != "" {
		var buf bytes.Buffer
		if err := report.WriteSummary(&buf, run.ID, results, out.Summary); err != nil {
			return err
		}
		summaryPath := base + "_summary." + out.Summary
		if err := os.WriteFile(summaryPath, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
		a.sendStatus(fmt.Sprintf("Summary written: %s", summaryPath))
	}

	if out.Record {
		if st == nil {
			st, err = store.Open(out.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open db: %w", err)
			}
			defer st.Close()
		}
		if err := st.InsertRun(ctx, run); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		a.logger.Debug().Str("run_id", run.ID).Msg("run recorded")
	}
	return nil
}

func (a *App) logParseErrors(trace *parser.Trace) {
	if len(trace.ParseErrors) == 0 {
		return
	}
	a.sendStatus("Parsing Warnings/Errors:")
	for _, e := range trace.ParseErrors {
		a.logger.Warn().Str("source", trace.Source).Msg(e)
	}
}

func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
