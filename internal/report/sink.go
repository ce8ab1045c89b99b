package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/fano_analyzer_go/internal/analysis"
)

// PNGSink returns a render hook that writes every fit it sees as
// <dir>/<prefix>_NNN.png, creating dir if needed. The hook is safe for
// concurrent use, so one sink can serve a whole batch.
func PNGSink(dir, prefix string) analysis.RenderFunc {
	var (
		mu    sync.Mutex
		count int
	)
	return func(x, yObserved, yFit []float64) error {
		mu.Lock()
		count++
		name := filepath.Join(dir, fmt.Sprintf("%s_%03d.png", prefix, count))
		mu.Unlock()

		img, err := CreateDataFitPlot(x, yObserved, yFit, "Fano fit")
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create plot dir: %w", err)
		}
		if err := os.WriteFile(name, img, 0o644); err != nil {
			return fmt.Errorf("failed to write fit plot: %w", err)
		}
		return nil
	}
}
