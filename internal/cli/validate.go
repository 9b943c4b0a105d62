package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowbound/rowbound/internal/manifest"
	"github.com/rowbound/rowbound/internal/suite"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidateCaseResult is one case's validation outcome, as JSON.
type ValidateCaseResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ValidateResult holds the validate output.
type ValidateResult struct {
	Suite  string               `json:"suite"`
	Cases  []ValidateCaseResult `json:"cases"`
	Valid  int                  `json:"valid"`
	Broken int                  `json:"broken"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <manifest.cue>",
		Short: "Check a manifest against its data without running anything",
		Long: `Compile a manifest, load its data sources, and build the plan for
every case without executing a single command.

Validation catches what would stop a run before its first command:
unreadable or malformed sources, cases with no data rows, and row-bound
slots with no source to draw from.

Exit codes:
  0 - every case is runnable
  1 - one or more cases are broken
  2 - command error (bad manifest, config problems)

Examples:
  rowbound validate suite.cue
  rowbound validate suite.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, manifestPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cfg, cmd)

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

	runner := suite.NewRunner(s,
		suite.WithLogger(logger),
		suite.WithRegistry(newRegistry(cfg)))

	result := buildValidateResult(s.Name(), runner.Validate(ctx))

	if opts.Format == "json" {
		return outputValidateJSON(cmd, result)
	}
	return outputValidateText(cmd, result)
}

func buildValidateResult(suiteName string, results []suite.CaseResult) ValidateResult {
	out := ValidateResult{Suite: suiteName, Cases: make([]ValidateCaseResult, 0, len(results))}
	for _, r := range results {
		vc := ValidateCaseResult{Name: r.Name, Status: string(r.Status)}
		if r.Err != nil {
			vc.Error = r.Err.Error()
			out.Broken++
		} else {
			out.Valid++
		}
		out.Cases = append(out.Cases, vc)
	}
	return out
}

func outputValidateJSON(cmd *cobra.Command, result ValidateResult) error {
	if result.Broken == 0 {
		return jsonOK(cmd.OutOrStdout(), result)
	}
	msg := fmt.Sprintf("%d case(s) broken", result.Broken)
	if err := jsonFail(cmd.OutOrStdout(), result, ErrCodeValidation, msg); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

func outputValidateText(cmd *cobra.Command, result ValidateResult) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Suite %s\n", result.Suite)
	for _, vc := range result.Cases {
		if vc.Error == "" {
			fmt.Fprintf(out, "✓ %s\n", vc.Name)
			continue
		}
		fmt.Fprintf(out, "✗ %s\n", vc.Name)
		fmt.Fprintf(out, "  %s\n", vc.Error)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Validation: %d valid, %d broken\n", result.Valid, result.Broken)

	if result.Broken > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) broken", result.Broken))
	}
	return nil
}
