package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/fano_analyzer_go/internal/parser"
)

type stubSource struct {
	trace *parser.Trace
	err   error
}

func (s stubSource) LoadTrace(ctx context.Context) (*parser.Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.trace, s.err
}

func TestAnalyzeBatch(t *testing.T) {
	good, want := sweepTrace(t, 21)
	good.Source = "good"
	short := parser.NewTrace([]float64{1, 2, 3}, testInterval, "short")
	loadErr := errors.New("scope offline")

	var renders atomic.Int32
	opts := sweepOptions()
	opts.Render = func(_, _, _ []float64) error {
		renders.Add(1)
		return nil
	}

	sources := []parser.TraceSource{
		stubSource{trace: good},
		stubSource{err: loadErr},
		stubSource{trace: short},
	}
	items, err := AnalyzeBatch(context.Background(), sources, opts, 2, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.NoError(t, items[0].Err)
	assert.Equal(t, "good", items[0].Source)
	assert.InDelta(t, want.Width, items[0].Results.Fit.Params.Width, 0.1*want.Width)

	assert.ErrorIs(t, items[1].Err, loadErr)
	assert.Nil(t, items[1].Results)

	assert.ErrorIs(t, items[2].Err, ErrInvalidInput)
	assert.Equal(t, "short", items[2].Source)

	assert.Equal(t, int32(1), renders.Load())
}

func TestAnalyzeBatchMatchesSequential(t *testing.T) {
	a, _ := sweepTrace(t, 31)
	b, _ := sweepTrace(t, 32)
	opts := sweepOptions()

	items, err := AnalyzeBatch(context.Background(), []parser.TraceSource{stubSource{trace: a}, stubSource{trace: b}}, opts, 0, zerolog.Nop())
	require.NoError(t, err)

	for i, tr := range []*parser.Trace{a, b} {
		seq, err := Analyze(tr, opts, zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, items[i].Err)
		assert.Equal(t, seq.Fit.Params, items[i].Results.Fit.Params)
	}
}

func TestAnalyzeBatchCancelled(t *testing.T) {
	trace, _ := sweepTrace(t, 41)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AnalyzeBatch(ctx, []parser.TraceSource{stubSource{trace: trace}}, sweepOptions(), 1, zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}
