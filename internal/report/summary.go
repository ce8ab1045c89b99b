package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/user/fano_analyzer_go/internal/analysis"
)

// Summary is the machine-readable digest of one analysis.
type Summary struct {
	RunID             string                  `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Source            string                  `json:"source" yaml:"source"`
	Points            int                     `json:"points" yaml:"points"`
	Params            analysis.FanoParameters `json:"params" yaml:"params"`
	Uncertainties     analysis.FanoParameters `json:"uncertainties" yaml:"uncertainties"`
	Initial           analysis.FanoParameters `json:"initial" yaml:"initial"`
	ChiSquared        float64                 `json:"chi_squared" yaml:"chi_squared"`
	ReducedChiSquared *float64                `json:"reduced_chi_squared,omitempty" yaml:"reduced_chi_squared,omitempty"`
	DegreesOfFreedom  int                     `json:"dof" yaml:"dof"`
	Covariance        [][]float64             `json:"covariance" yaml:"covariance"`
	Warnings          []string                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewSummary condenses results. results.Fit must be set.
func NewSummary(runID string, results *analysis.AnalysisResults) (*Summary, error) {
	if results == nil || results.Fit == nil {
		return nil, fmt.Errorf("no fit results to summarize")
	}
	fit := results.Fit
	s := &Summary{
		RunID:            runID,
		Source:           results.Source,
		Points:           fit.NumPoints,
		Params:           fit.Params,
		Uncertainties:    analysis.FanoParametersFromVector(fit.Uncertainties()),
		Initial:          fit.Initial,
		ChiSquared:       results.ChiSquared,
		DegreesOfFreedom: fit.DegreesOfFreedom,
		Covariance:       fit.Covariance,
		Warnings:         results.AnalysisErrors,
	}
	if !math.IsNaN(fit.ReducedChiSquared) {
		r := fit.ReducedChiSquared
		s.ReducedChiSquared = &r
	}
	return s, nil
}

// WriteSummary encodes the summary of results as "yaml" or "json".
func WriteSummary(w io.Writer, runID string, results *analysis.AnalysisResults, format string) error {
	s, err := NewSummary(runID, results)
	if err != nil {
		return err
	}
	switch format {
	case "yaml", "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode yaml summary: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode json summary: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown summary format %q (want yaml or json)", format)
	}
}
