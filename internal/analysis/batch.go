package analysis

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/user/fano_analyzer_go/internal/parser"
)

// BatchItem is the outcome for one trace of AnalyzeBatch.
type BatchItem struct {
	Source  string
	Results *AnalysisResults
	Err     error
}

// AnalyzeBatch loads and analyzes independent traces concurrently, one
// pipeline per trace. Items keep the order of sources. A failing trace does
// not stop the others; only context cancellation aborts the batch.
//
// opts.Render is shared by every worker and must be safe for concurrent use.
func AnalyzeBatch(ctx context.Context, sources []parser.TraceSource, opts Options, workers int, logger zerolog.Logger) ([]BatchItem, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	items := make([]BatchItem, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trace, err := src.LoadTrace(ctx)
			if err != nil {
				items[i] = BatchItem{Err: err}
				logger.Warn().Err(err).Int("index", i).Msg("trace load failed")
				return nil
			}
			res, err := Analyze(trace, opts, logger)
			items[i] = BatchItem{Source: trace.Source, Results: res, Err: err}
			if err != nil {
				logger.Warn().Err(err).Str("source", trace.Source).Msg("analysis failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, nil
}
