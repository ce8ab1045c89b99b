// Package config loads analysis settings from YAML or TOML files.
package config

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/user/fano_analyzer_go/internal/analysis"
	"github.com/user/fano_analyzer_go/internal/parser"
)

// Bounds modes accepted in fit.bounds.
const (
	BoundsNone     = "none"
	BoundsPhysical = "physical"
	BoundsCustom   = "custom"
)

// Config is the on-disk configuration. Keys left out of the file keep the
// values from Default.
type Config struct {
	Scope      ScopeConfig      `yaml:"scope" toml:"scope"`
	Segment    SegmentConfig    `yaml:"segment" toml:"segment"`
	Conversion ConversionConfig `yaml:"conversion" toml:"conversion"`
	Smoothing  SmoothingConfig  `yaml:"smoothing" toml:"smoothing"`
	Fit        FitConfig        `yaml:"fit" toml:"fit"`
	Output     OutputConfig     `yaml:"output" toml:"output"`
	Workers    int              `yaml:"workers" toml:"workers"`
}

// ScopeConfig describes how the trace was captured.
type ScopeConfig struct {
	TimePerDiv       float64 `yaml:"time_per_div" toml:"time_per_div"` // seconds
	Divisions        int     `yaml:"divisions" toml:"divisions"`
	SamplingInterval float64 `yaml:"sampling_interval" toml:"sampling_interval"` // overrides the scope settings when > 0
}

// SegmentConfig selects the sample range to fit.
type SegmentConfig struct {
	Start int `yaml:"start" toml:"start"`
	End   int `yaml:"end" toml:"end"`
}

// ConversionConfig maps time to wavelength to frequency.
type ConversionConfig struct {
	ScaleNmPerSecond float64 `yaml:"scale_nm_per_s" toml:"scale_nm_per_s"`
	ReferenceNm      float64 `yaml:"reference_nm" toml:"reference_nm"`
}

// SmoothingConfig controls the moving-window smoother.
type SmoothingConfig struct {
	Enabled     bool `yaml:"enabled" toml:"enabled"`
	Window      int  `yaml:"window" toml:"window"`
	FitSmoothed bool `yaml:"fit_smoothed" toml:"fit_smoothed"`
}

// FitConfig controls the optimizer.
type FitConfig struct {
	Bounds        string                   `yaml:"bounds" toml:"bounds"`
	Lower         []float64                `yaml:"lower,omitempty" toml:"lower,omitempty"`
	Upper         []float64                `yaml:"upper,omitempty" toml:"upper,omitempty"`
	MaxIterations int                      `yaml:"max_iterations" toml:"max_iterations"`
	AbsoluteSigma bool                     `yaml:"absolute_sigma" toml:"absolute_sigma"`
	InitialGuess  *analysis.FanoParameters `yaml:"initial_guess,omitempty" toml:"initial_guess,omitempty"`
}

// OutputConfig chooses which artifacts a run writes.
type OutputConfig struct {
	Dir           string `yaml:"dir" toml:"dir"`
	PDF           bool   `yaml:"pdf" toml:"pdf"`
	Summary       string `yaml:"summary" toml:"summary"` // yaml, json or empty for none
	RenderFitPNGs bool   `yaml:"render_fit_pngs" toml:"render_fit_pngs"`
	DBPath        string `yaml:"db_path" toml:"db_path"`
	Record        bool   `yaml:"record" toml:"record"`
}

// Default returns the settings of the reference acquisition.
func Default() Config {
	opts := analysis.DefaultOptions()
	return Config{
		Scope: ScopeConfig{
			TimePerDiv: 0.01,
			Divisions:  parser.DefaultDivisions,
		},
		Segment: SegmentConfig{
			Start: opts.SegmentStart,
			End:   opts.SegmentEnd,
		},
		Conversion: ConversionConfig{
			ScaleNmPerSecond: opts.ScaleNmPerSecond,
			ReferenceNm:      opts.ReferenceNm,
		},
		Smoothing: SmoothingConfig{
			Enabled: opts.SmoothEnabled,
			Window:  opts.SmoothWindow,
		},
		Fit: FitConfig{
			Bounds:        BoundsNone,
			MaxIterations: opts.MaxIterations,
		},
		Output: OutputConfig{
			Dir:     ".",
			PDF:     true,
			Summary: "yaml",
			DBPath:  DefaultDBPath(),
			Record:  true,
		},
	}
}

// Load reads path on top of Default. The format follows the extension:
// .toml for TOML, .yaml or .yml for YAML. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension %q (want .yaml or .toml)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings that Analyze cannot recover from.
func (c Config) Validate() error {
	if c.Segment.Start < 0 || c.Segment.End <= c.Segment.Start {
		return fmt.Errorf("segment [%d, %d) is empty", c.Segment.Start, c.Segment.End)
	}
	if c.Scope.SamplingInterval <= 0 && (c.Scope.TimePerDiv <= 0 || c.Scope.Divisions <= 0) {
		return fmt.Errorf("need scope.sampling_interval or positive scope.time_per_div and scope.divisions")
	}
	if c.Conversion.ReferenceNm <= 0 {
		return fmt.Errorf("conversion.reference_nm must be positive")
	}
	if (c.Smoothing.Enabled || c.Smoothing.FitSmoothed) && c.Smoothing.Window < 2 {
		return fmt.Errorf("smoothing.window must be at least 2, got %d", c.Smoothing.Window)
	}
	if c.Fit.MaxIterations < 0 {
		return fmt.Errorf("fit.max_iterations must not be negative")
	}
	if _, err := c.bounds(); err != nil {
		return err
	}
	switch c.Output.Summary {
	case "", "yaml", "json":
	default:
		return fmt.Errorf("output.summary must be yaml, json or empty, got %q", c.Output.Summary)
	}
	return nil
}

func (c Config) bounds() (*analysis.Bounds, error) {
	switch c.Fit.Bounds {
	case "", BoundsNone:
		return nil, nil
	case BoundsPhysical:
		return analysis.PhysicalBounds(), nil
	case BoundsCustom:
		if len(c.Fit.Lower) != analysis.NumFanoParams || len(c.Fit.Upper) != analysis.NumFanoParams {
			return nil, fmt.Errorf("fit.lower and fit.upper need %d values each", analysis.NumFanoParams)
		}
		b := analysis.Unbounded()
		for i := 0; i < analysis.NumFanoParams; i++ {
			lo, hi := c.Fit.Lower[i], c.Fit.Upper[i]
			if math.IsNaN(lo) || math.IsNaN(hi) || lo >= hi {
				return nil, fmt.Errorf("fit bounds for %s: lower %g must be below upper %g", analysis.ParamNames[i], lo, hi)
			}
			b.Lower[i], b.Upper[i] = lo, hi
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown fit.bounds %q (want none, physical or custom)", c.Fit.Bounds)
	}
}

// Options converts the configuration into pipeline options.
func (c Config) Options() (analysis.Options, error) {
	b, err := c.bounds()
	if err != nil {
		return analysis.Options{}, err
	}
	opts := analysis.DefaultOptions()
	opts.SegmentStart = c.Segment.Start
	opts.SegmentEnd = c.Segment.End
	opts.ScaleNmPerSecond = c.Conversion.ScaleNmPerSecond
	opts.ReferenceNm = c.Conversion.ReferenceNm
	opts.SmoothEnabled = c.Smoothing.Enabled
	opts.SmoothWindow = c.Smoothing.Window
	opts.FitSmoothed = c.Smoothing.FitSmoothed
	opts.Bounds = b
	opts.MaxIterations = c.Fit.MaxIterations
	opts.AbsoluteSigma = c.Fit.AbsoluteSigma
	if c.Fit.InitialGuess != nil {
		g := *c.Fit.InitialGuess
		opts.InitialGuess = &g
	}
	return opts, nil
}

// Source builds the trace source for path from the scope settings.
func (c Config) Source(path string) parser.FileSource {
	return parser.FileSource{
		Path:             path,
		SamplingInterval: c.Scope.SamplingInterval,
		TimePerDiv:       c.Scope.TimePerDiv,
		Divisions:        c.Scope.Divisions,
	}
}

// Encode writes c in the given format ("yaml" or "toml").
func (c Config) Encode(w io.Writer, format string) error {
	switch format {
	case "yaml", "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return enc.Close()
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		_, err := w.Write(buf.Bytes())
		return err
	default:
		return fmt.Errorf("unknown config format %q (want yaml or toml)", format)
	}
}
