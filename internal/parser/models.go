package parser

import (
	"context"
	"fmt"
)

// DefaultDivisions is the number of horizontal divisions on the scope screen.
const DefaultDivisions = 10

// Trace is one captured amplitude record. Samples are evenly spaced by
// SamplingInterval seconds, starting at t = 0.
type Trace struct {
	Samples          []float64
	SamplingInterval float64  // seconds per sample
	Source           string   // file path or instrument id
	ParseErrors      []string // non-fatal problems met while loading
}

// NewTrace wraps samples with their sampling interval.
func NewTrace(samples []float64, samplingInterval float64, source string) *Trace {
	return &Trace{
		Samples:          samples,
		SamplingInterval: samplingInterval,
		Source:           source,
		ParseErrors:      make([]string, 0),
	}
}

// Len returns the number of samples.
func (t *Trace) Len() int { return len(t.Samples) }

// TimeAxis returns i * SamplingInterval for every sample.
func (t *Trace) TimeAxis() []float64 {
	out := make([]float64, len(t.Samples))
	for i := range out {
		out[i] = float64(i) * t.SamplingInterval
	}
	return out
}

// Segment returns the time axis and samples in [start, end). end is clamped
// to the trace length; the time axis keeps its absolute offset.
func (t *Trace) Segment(start, end int) ([]float64, []float64, error) {
	if end > len(t.Samples) {
		end = len(t.Samples)
	}
	if start < 0 || start >= end {
		return nil, nil, fmt.Errorf("invalid segment [%d, %d) for trace of %d samples", start, end, len(t.Samples))
	}
	timeAxis := make([]float64, end-start)
	samples := make([]float64, end-start)
	for i := start; i < end; i++ {
		timeAxis[i-start] = float64(i) * t.SamplingInterval
		samples[i-start] = t.Samples[i]
	}
	return timeAxis, samples, nil
}

// SamplingIntervalFromScope derives the sample spacing from the horizontal
// scale of the capture: divisions * timePerDiv spread over n samples.
func SamplingIntervalFromScope(timePerDiv float64, divisions, n int) (float64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("cannot derive sampling interval for %d samples", n)
	}
	if timePerDiv <= 0 || divisions <= 0 {
		return 0, fmt.Errorf("invalid horizontal scale: %g s/div over %d divisions", timePerDiv, divisions)
	}
	return float64(divisions) * timePerDiv / float64(n), nil
}

// TraceSource supplies raw traces. Instrument drivers live outside this
// module; FileSource reads captures they saved.
type TraceSource interface {
	LoadTrace(ctx context.Context) (*Trace, error)
}
