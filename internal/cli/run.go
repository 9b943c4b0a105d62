package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rowbound/rowbound/internal/config"
	"github.com/rowbound/rowbound/internal/engine"
	"github.com/rowbound/rowbound/internal/loader"
	"github.com/rowbound/rowbound/internal/manifest"
	"github.com/rowbound/rowbound/internal/store"
	"github.com/rowbound/rowbound/internal/suite"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Parallel    int
	NoWriteBack bool
	Ledger      string
	Watch       bool
}

// RunCaseResult is one case's outcome in the run report.
type RunCaseResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Rows       int    `json:"rows"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunResult holds the overall run report.
type RunResult struct {
	RunID   string          `json:"run_id"`
	Suite   string          `json:"suite"`
	Cases   []RunCaseResult `json:"cases"`
	Passed  int             `json:"passed"`
	Failed  int             `json:"failed"`
	Skipped int             `json:"skipped"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <manifest.cue>",
		Short: "Run a suite from a manifest",
		Long: `Compile a CUE suite manifest, bind its cases to their data sources,
and execute every case, one plan per data row.

Actual results are written back into the data sources unless write-back
is disabled. With a ledger configured, every run is recorded for the
history command.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed or were skipped
  2 - Command error (bad manifest, unreadable configuration, etc.)

Examples:
  rowbound run ./suite.cue
  rowbound run ./suite.cue --parallel 4 --no-write-back
  rowbound run ./suite.cue --ledger ./runs.db --format json
  rowbound run ./suite.cue --watch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "max cases run concurrently (0 = use configuration)")
	cmd.Flags().BoolVar(&opts.NoWriteBack, "no-write-back", false, "do not write actual results into data sources")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "record the run in this SQLite ledger (overrides configuration)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-run when the manifest or its data sources change")

	return cmd
}

func runSuite(opts *RunOptions, manifestPath string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cfg, cmd)

	// Interrupt cancels the run; unfinished cases report as skipped.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.Watch {
		return watchSuite(ctx, opts, cfg, logger, manifestPath, cmd)
	}
	return executeOnce(ctx, opts, cfg, logger, manifestPath, cmd)
}

// executeOnce compiles the manifest, runs the suite, and renders the
// report. A run with failed or skipped cases returns ExitFailure after
// rendering.
func executeOnce(ctx context.Context, opts *RunOptions, cfg *config.Config, logger *slog.Logger, manifestPath string, cmd *cobra.Command) error {
	m, err := manifest.Compile(manifestPath)
	if err != nil {
		return failJSON(opts.RootOptions, cmd, ErrCodeManifest,
			WrapExitError(ExitCommandError, "failed to compile manifest", err))
	}
	s, err := manifest.Build(m)
	if err != nil {
		return failJSON(opts.RootOptions, cmd, ErrCodeManifest,
			WrapExitError(ExitCommandError, "failed to build suite", err))
	}

	runnerOpts := []suite.RunnerOption{
		suite.WithLogger(logger),
		suite.WithRegistry(newRegistry(cfg)),
		suite.WithParallelism(parallelism(opts, cfg)),
		suite.WithWriteBack(cfg.WriteBackEnabled() && !opts.NoWriteBack),
	}

	if path := ledgerPath(opts, cfg); path != "" {
		st, err := store.Open(path)
		if err != nil {
			return failJSON(opts.RootOptions, cmd, ErrCodeLedger,
				WrapExitError(ExitCommandError, "failed to open run ledger", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing run ledger", "error", closeErr)
			}
		}()
		runnerOpts = append(runnerOpts, suite.WithLedger(st))
	}

	runner := suite.NewRunner(s, runnerOpts...)
	summary, _ := runner.Run(ctx) // cancellation shows up as skipped cases

	result := buildRunResult(summary)
	if opts.Format == "json" {
		return outputRunJSON(cmd, result)
	}
	return outputRunText(cmd, result)
}

// parallelism resolves the case concurrency: the flag wins when set.
func parallelism(opts *RunOptions, cfg *config.Config) int {
	if opts.Parallel > 0 {
		return opts.Parallel
	}
	return cfg.Parallelism
}

// ledgerPath resolves the run ledger location: the flag wins when set.
func ledgerPath(opts *RunOptions, cfg *config.Config) string {
	if opts.Ledger != "" {
		return opts.Ledger
	}
	return cfg.Ledger
}

// newRegistry builds the adapter registry, honoring the configured
// delimited-source separator.
func newRegistry(cfg *config.Config) *loader.Registry {
	reg := loader.NewRegistry()
	if comma := cfg.DelimiterRune(); comma != ',' {
		reg.Register(loader.KindDelimited, loader.NewDelimited(loader.WithComma(comma)))
	}
	return reg
}

// buildRunResult flattens a run summary into the report shape.
func buildRunResult(summary *suite.Summary) RunResult {
	result := RunResult{
		RunID:   summary.RunID,
		Suite:   summary.Suite,
		Cases:   make([]RunCaseResult, 0, len(summary.Cases)),
		Passed:  summary.Passed(),
		Failed:  summary.Failed(),
		Skipped: summary.Skipped(),
	}
	for _, c := range summary.Cases {
		cr := RunCaseResult{
			Name:       c.Name,
			Status:     string(c.Status),
			DurationMS: c.Duration.Milliseconds(),
		}
		if c.Report != nil {
			cr.Rows = len(c.Report.Outcomes)
		}
		if c.Err != nil {
			cr.Error = c.Err.Error()
		}
		result.Cases = append(result.Cases, cr)
	}
	return result
}

// outputRunJSON outputs the run report as a JSON envelope.
func outputRunJSON(cmd *cobra.Command, result RunResult) error {
	w := cmd.OutOrStdout()
	if result.Failed == 0 && result.Skipped == 0 {
		return jsonOK(w, result)
	}

	message := runFailureMessage(result)
	if err := jsonFail(w, result, ErrCodeRunFailed, message); err != nil {
		return err
	}
	return NewExitError(ExitFailure, message)
}

// outputRunText outputs the run report as per-case lines and a summary.
func outputRunText(cmd *cobra.Command, result RunResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Suite %s (run %s)\n", result.Suite, result.RunID)
	for _, c := range result.Cases {
		switch engine.Status(c.Status) {
		case engine.StatusPassed:
			fmt.Fprintf(w, "✓ %s (%d rows, %dms)\n", c.Name, c.Rows, c.DurationMS)
		case engine.StatusSkipped:
			fmt.Fprintf(w, "- %s (skipped)\n", c.Name)
		default:
			fmt.Fprintf(w, "✗ %s\n", c.Name)
			if c.Error != "" {
				fmt.Fprintf(w, "  %s\n", c.Error)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run Summary: %d passed, %d failed, %d skipped\n",
		result.Passed, result.Failed, result.Skipped)

	if result.Failed > 0 || result.Skipped > 0 {
		return NewExitError(ExitFailure, runFailureMessage(result))
	}
	return nil
}

// runFailureMessage summarizes why a run did not pass.
func runFailureMessage(result RunResult) string {
	if result.Failed > 0 {
		return fmt.Sprintf("%d case(s) failed", result.Failed)
	}
	return fmt.Sprintf("%d case(s) skipped", result.Skipped)
}
