// Package main provides the CLI entrypoint for fano_analyzer.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/user/fano_analyzer_go/internal/analysis"
	"github.com/user/fano_analyzer_go/internal/config"
	"github.com/user/fano_analyzer_go/internal/store"
)

var (
	configPath string
	logLevel   string
	jsonLogs   bool
)

// fitFlags mirror the config keys a run can override on the command line.
type fitFlags struct {
	samplingInterval float64
	timePerDiv       float64
	start            int
	end              int
	scale            float64
	reference        float64
	window           int
	noSmooth         bool
	fitSmoothed      bool
	bounds           string
	maxIterations    int
	absoluteSigma    bool
	outDir           string
	noPDF            bool
	summary          string
	renderPNGs       bool
	noRecord         bool
	dbPath           string
	workers          int
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		var stageErr *analysis.StageError
		if errors.As(err, &stageErr) {
			log.Error().Str("stage", stageErr.Stage).Str("kind", stageErr.Kind()).Err(stageErr.Err).Msg("analysis failed")
		} else {
			log.Error().Err(err).Msg("fano_analyzer failed")
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fano_analyzer",
		Short:         "Fit Fano line shapes to swept-laser oscilloscope traces",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(logLevel, jsonLogs)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit JSON logs instead of console output")

	rootCmd.AddCommand(newFitCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func setupLogging(level string, asJSON bool) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if asJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}

func newFitCmd() *cobra.Command {
	flags := &fitFlags{}
	cmd := &cobra.Command{
		Use:   "fit <trace.npy|trace.csv>",
		Short: "Fit a single trace and write its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppFromFlags(cmd, flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			results, err := app.RunOne(ctx, args[0])
			if err != nil {
				return err
			}
			gamma, sigma := results.Fit.Linewidth()
			fmt.Fprintf(cmd.OutOrStdout(), "gamma = %.6g +/- %.3g GHz\n", gamma, sigma)
			return nil
		},
	}
	registerFitFlags(cmd, flags)
	return cmd
}

func newBatchCmd() *cobra.Command {
	flags := &fitFlags{}
	cmd := &cobra.Command{
		Use:   "batch <trace>...",
		Short: "Fit many traces concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppFromFlags(cmd, flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			items, err := app.RunBatch(ctx, args)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tGAMMA (GHz)\tSIGMA\tCHI2\tSTATUS")
			for i, item := range items {
				if item.Err != nil {
					fmt.Fprintf(w, "%s\t-\t-\t-\t%s\n", args[i], analysis.ErrorKind(item.Err))
					continue
				}
				if item.Results == nil {
					continue
				}
				gamma, sigma := item.Results.Fit.Linewidth()
				fmt.Fprintf(w, "%s\t%.6g\t%.3g\t%.4g\tok\n", args[i], gamma, sigma, item.Results.ChiSquared)
			}
			if ferr := w.Flush(); ferr != nil && err == nil {
				err = ferr
			}
			return err
		},
	}
	registerFitFlags(cmd, flags)
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "concurrent fits (0 = number of CPUs)")
	return cmd
}

func registerFitFlags(cmd *cobra.Command, f *fitFlags) {
	def := config.Default()
	cmd.Flags().Float64Var(&f.samplingInterval, "sampling-interval", 0, "seconds per sample; overrides the scope settings")
	cmd.Flags().Float64Var(&f.timePerDiv, "time-per-div", def.Scope.TimePerDiv, "scope horizontal scale in seconds per division")
	cmd.Flags().IntVar(&f.start, "start", def.Segment.Start, "first sample of the fitted segment")
	cmd.Flags().IntVar(&f.end, "end", def.Segment.End, "end of the fitted segment (exclusive)")
	cmd.Flags().Float64Var(&f.scale, "scale", def.Conversion.ScaleNmPerSecond, "laser sweep speed in nm/s")
	cmd.Flags().Float64Var(&f.reference, "reference", def.Conversion.ReferenceNm, "reference wavelength in nm")
	cmd.Flags().IntVar(&f.window, "window", def.Smoothing.Window, "smoothing window in samples")
	cmd.Flags().BoolVar(&f.noSmooth, "no-smooth", false, "skip the smoothing step")
	cmd.Flags().BoolVar(&f.fitSmoothed, "fit-smoothed", false, "fit the smoothed series weighted by its local deviation")
	cmd.Flags().StringVar(&f.bounds, "bounds", def.Fit.Bounds, "parameter bounds: none or physical")
	cmd.Flags().IntVar(&f.maxIterations, "max-iter", def.Fit.MaxIterations, "optimizer iteration limit")
	cmd.Flags().BoolVar(&f.absoluteSigma, "absolute-sigma", false, "do not rescale the covariance by reduced chi-squared")
	cmd.Flags().StringVarP(&f.outDir, "out", "o", def.Output.Dir, "output directory")
	cmd.Flags().BoolVar(&f.noPDF, "no-pdf", false, "skip the PDF report")
	cmd.Flags().StringVar(&f.summary, "summary", def.Output.Summary, "summary format: yaml, json or none")
	cmd.Flags().BoolVar(&f.renderPNGs, "render-pngs", false, "write a data/fit PNG for every fit")
	cmd.Flags().BoolVar(&f.noRecord, "no-record", false, "do not record the run in the history database")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "history database path")
}

func newAppFromFlags(cmd *cobra.Command, f *fitFlags) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFitFlags(cmd, f, &cfg)
	return NewApp(cfg, log.Logger)
}

// applyFitFlags copies every flag the user set explicitly over cfg.
func applyFitFlags(cmd *cobra.Command, f *fitFlags, cfg *config.Config) {
	applyFloatFlag(cmd, "sampling-interval", &cfg.Scope.SamplingInterval, f.samplingInterval)
	applyFloatFlag(cmd, "time-per-div", &cfg.Scope.TimePerDiv, f.timePerDiv)
	applyIntFlag(cmd, "start", &cfg.Segment.Start, f.start)
	applyIntFlag(cmd, "end", &cfg.Segment.End, f.end)
	applyFloatFlag(cmd, "scale", &cfg.Conversion.ScaleNmPerSecond, f.scale)
	applyFloatFlag(cmd, "reference", &cfg.Conversion.ReferenceNm, f.reference)
	applyIntFlag(cmd, "window", &cfg.Smoothing.Window, f.window)
	applyBoolFlag(cmd, "no-smooth", &cfg.Smoothing.Enabled, !f.noSmooth)
	applyBoolFlag(cmd, "fit-smoothed", &cfg.Smoothing.FitSmoothed, f.fitSmoothed)
	applyStringFlag(cmd, "bounds", &cfg.Fit.Bounds, f.bounds)
	applyIntFlag(cmd, "max-iter", &cfg.Fit.MaxIterations, f.maxIterations)
	applyBoolFlag(cmd, "absolute-sigma", &cfg.Fit.AbsoluteSigma, f.absoluteSigma)
	applyStringFlag(cmd, "out", &cfg.Output.Dir, f.outDir)
	applyBoolFlag(cmd, "no-pdf", &cfg.Output.PDF, !f.noPDF)
	applyBoolFlag(cmd, "render-pngs", &cfg.Output.RenderFitPNGs, f.renderPNGs)
	applyBoolFlag(cmd, "no-record", &cfg.Output.Record, !f.noRecord)
	applyStringFlag(cmd, "db", &cfg.Output.DBPath, f.dbPath)
	applyIntFlag(cmd, "workers", &cfg.Workers, f.workers)
	if cmd.Flags().Changed("summary") {
		if f.summary == "none" {
			cfg.Output.Summary = ""
		} else {
			cfg.Output.Summary = f.summary
		}
	}
}

func applyStringFlag(cmd *cobra.Command, name string, target *string, value string) {
	if cmd.Flags().Changed(name) {
		*target = value
	}
}

func applyIntFlag(cmd *cobra.Command, name string, target *int, value int) {
	if cmd.Flags().Changed(name) {
		*target = value
	}
}

func applyFloatFlag(cmd *cobra.Command, name string, target *float64, value float64) {
	if cmd.Flags().Changed(name) {
		*target = value
	}
}

func applyBoolFlag(cmd *cobra.Command, name string, target *bool, value bool) {
	if cmd.Flags().Changed(name) {
		*target = value
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		source string
		since  string
		limit  int
		dbPath string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded fit runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openHistory(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			filter := store.RunFilter{Source: source, Limit: limit}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since (want YYYY-MM-DD): %w", err)
				}
				filter.Since = &t
			}
			runs, err := st.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tSOURCE\tGAMMA (GHz)\tSIGMA\tCHI2")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.6g\t%.3g\t%.4g\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Source,
					r.Params.Width, r.Uncertainties.Width, r.ChiSquared)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "only runs of this trace")
	cmd.Flags().StringVar(&since, "since", "", "only runs on or after YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs (0 = all)")
	cmd.Flags().StringVar(&dbPath, "db", "", "history database path")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the parameters of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openHistory(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()
			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run:     %s\ncreated: %s\nsource:  %s\npoints:  %d\n",
				run.ID, run.CreatedAt.Local().Format(time.RFC3339), run.Source, run.Points)
			values, sigmas := run.Params.Vector(), run.Uncertainties.Vector()
			for i, name := range analysis.ParamNames {
				fmt.Fprintf(out, "  %-10s %14.6g +/- %.3g\n", name, values[i], sigmas[i])
			}
			fmt.Fprintf(out, "chi2:    %.6g (reduced %.4g)\n", run.ChiSquared, run.ReducedChiSquared)
			for _, w := range run.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
	show.Flags().StringVar(&dbPath, "db", "", "history database path")
	cmd.AddCommand(show)
	return cmd
}

func openHistory(dbPath string) (*store.Store, error) {
	if dbPath == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		dbPath = cfg.Output.DBPath
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout(), format)
		},
	}
	show.Flags().StringVar(&format, "format", "yaml", "output format: yaml or toml")

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to --config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeDefaultConfig(configPath, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(show, initCmd)
	return cmd
}

func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s (use --force to overwrite)", path)
		}
	}
	format := "yaml"
	if strings.HasSuffix(strings.ToLower(path), ".toml") {
		format = "toml"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := config.Default().Encode(f, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("config written")
	return nil
}
