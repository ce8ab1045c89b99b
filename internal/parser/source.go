package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// FileSource loads a trace that an acquisition run saved to disk.
//
// The sampling interval comes from, in order: SamplingInterval if positive,
// the file itself (time column of a CSV), or the scope's horizontal scale
// TimePerDiv * Divisions spread over the sample count.
type FileSource struct {
	Path             string
	SamplingInterval float64
	TimePerDiv       float64
	Divisions        int
}

// LoadTrace implements TraceSource.
func (s FileSource) LoadTrace(ctx context.Context) (*Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	trace, err := LoadTraceFile(s.Path)
	if err != nil {
		return nil, err
	}

	switch {
	case s.SamplingInterval > 0:
		trace.SamplingInterval = s.SamplingInterval
	case trace.SamplingInterval > 0:
	default:
		divisions := s.Divisions
		if divisions == 0 {
			divisions = DefaultDivisions
		}
		interval, err := SamplingIntervalFromScope(s.TimePerDiv, divisions, trace.Len())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Path, err)
		}
		trace.SamplingInterval = interval
	}
	return trace, nil
}

// LoadTraceFile picks a reader by file extension (.npy or .csv/.txt).
func LoadTraceFile(path string) (*Trace, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".npy":
		return ParseTraceNPY(path)
	case ".csv", ".txt":
		return ParseTraceCSV(path)
	default:
		return nil, fmt.Errorf("unsupported trace file extension %q (want .npy or .csv)", ext)
	}
}
