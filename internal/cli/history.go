package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowbound/rowbound/internal/config"
	"github.com/rowbound/rowbound/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Ledger string
	RunID  string
	Case   string
	Limit  int
}

// HistoryRun is one recorded run, as JSON.
type HistoryRun struct {
	ID       string    `json:"id"`
	Suite    string    `json:"suite"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Total    int       `json:"total"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
	Skipped  int       `json:"skipped"`
}

// HistoryOutcome is one recorded plan execution, as JSON.
type HistoryOutcome struct {
	RunID      string   `json:"run_id"`
	Case       string   `json:"case"`
	Row        int      `json:"row"`
	Status     string   `json:"status"`
	Actual     string   `json:"actual,omitempty"`
	Args       []string `json:"args,omitempty"`
	Message    string   `json:"message,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// RunListResult holds the default history output.
type RunListResult struct {
	Runs []HistoryRun `json:"runs"`
}

// RunDetailResult holds the --run history output.
type RunDetailResult struct {
	Run      HistoryRun       `json:"run"`
	Outcomes []HistoryOutcome `json:"outcomes"`
}

// CaseHistoryResult holds the --case history output.
type CaseHistoryResult struct {
	Case     string           `json:"case"`
	Outcomes []HistoryOutcome `json:"outcomes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the run ledger",
		Long: `Read past runs from the SQLite run ledger.

Without flags, lists recent runs newest first. With --run, shows one
run and every plan outcome it recorded. With --case, shows how a single
case fared across runs.

Exit codes:
  0 - query answered
  2 - command error (no ledger, unknown run)

Examples:
  rowbound history
  rowbound history --ledger ./runs.db --limit 5
  rowbound history --run 0198f2c7-4d11-7c3a-b2a4-6f0d6f6f4b21
  rowbound history --case countItems --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "path to the run ledger (overrides configuration)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one run and its recorded outcomes")
	cmd.Flags().StringVar(&opts.Case, "case", "", "show one case across runs")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum entries to show (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	if opts.RunID != "" && opts.Case != "" {
		return NewExitError(ExitCommandError, "--run and --case are mutually exclusive, pick one")
	}

	st, err := openLedger(opts, cfg, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	switch {
	case opts.RunID != "":
		return historyRun(ctx, opts, st, cmd)
	case opts.Case != "":
		return historyCase(ctx, opts, st, cmd)
	default:
		return historyRecent(ctx, opts, st, cmd)
	}
}

// openLedger opens the ledger named by the flag, falling back to the
// configured path. history never creates a ledger: a path that does not
// exist is a command error, not an empty history.
func openLedger(opts *HistoryOptions, cfg *config.Config, cmd *cobra.Command) (*store.Store, error) {
	path := opts.Ledger
	if path == "" {
		path = cfg.Ledger
	}
	if path == "" {
		return nil, failJSON(opts.RootOptions, cmd, ErrCodeLedger,
			NewExitError(ExitCommandError, "no ledger to read: pass --ledger or set ledger in rowbound.yaml"))
	}

	if _, err := os.Stat(path); err != nil {
		return nil, failJSON(opts.RootOptions, cmd, ErrCodeLedger,
			WrapExitError(ExitCommandError, "failed to open run ledger", err))
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, failJSON(opts.RootOptions, cmd, ErrCodeLedger,
			WrapExitError(ExitCommandError, "failed to open run ledger", err))
	}
	return st, nil
}

func historyRecent(ctx context.Context, opts *HistoryOptions, st *store.Store, cmd *cobra.Command) error {
	runs, err := st.RecentRuns(ctx, opts.Limit)
	if err != nil {
		return failJSON(opts.RootOptions, cmd, ErrCodeLedger,
			WrapExitError(ExitCommandError, "failed to query runs", err))
	}

	result := RunListResult{Runs: make([]HistoryRun, 0, len(runs))}
	for _, run := range runs {
		result.Runs = append(result.Runs, historyRunOf(run))
	}

	if opts.Format == "json" {
		return jsonOK(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	if len(result.Runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for _, run := range result.Runs {
		fmt.Fprintf(out, "%s  %s  %s  %d passed, %d failed, %d skipped\n",
			run.ID, formatLedgerTime(run.Started), run.Suite,
			run.Passed, run.Failed, run.Skipped)
	}
	return nil
}

func historyRun(ctx context.Context, opts *HistoryOptions, st *store.Store, cmd *cobra.Command) error {
	run, err := st.ReadRun(ctx, opts.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failJSON(opts.RootOptions, cmd, ErrCodeLedger,
				NewExitError(ExitCommandError, fmt.Sprintf("no run %q in the ledger", opts.RunID)))
		}
		return failJSON(opts.RootOptions, cmd, ErrCodeLedger,
			WrapExitError(ExitCommandError, "failed to read run", err))
	}

	outcomes, err := st.ReadOutcomes(ctx, opts.RunID)
	if err != nil {
		return failJSON(opts.RootOptions, cmd, ErrCodeLedger,
			WrapExitError(ExitCommandError, "failed to read outcomes", err))
	}

	result := RunDetailResult{
		Run:      historyRunOf(run),
		Outcomes: historyOutcomesOf(outcomes),
	}

	if opts.Format == "json" {
		return jsonOK(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", result.Run.ID)
	fmt.Fprintf(out, "Suite:    %s\n", result.Run.Suite)
	fmt.Fprintf(out, "Started:  %s\n", formatLedgerTime(result.Run.Started))
	fmt.Fprintf(out, "Finished: %s\n", formatLedgerTime(result.Run.Finished))
	fmt.Fprintf(out, "Cases:    %d total, %d passed, %d failed, %d skipped\n",
		result.Run.Total, result.Run.Passed, result.Run.Failed, result.Run.Skipped)

	if len(result.Outcomes) > 0 {
		fmt.Fprintln(out)
		for _, o := range result.Outcomes {
			fmt.Fprintf(out, "%s\n", formatOutcome(o))
		}
	}
	return nil
}

func historyCase(ctx context.Context, opts *HistoryOptions, st *store.Store, cmd *cobra.Command) error {
	outcomes, err := st.CaseHistory(ctx, opts.Case, opts.Limit)
	if err != nil {
		return failJSON(opts.RootOptions, cmd, ErrCodeLedger,
			WrapExitError(ExitCommandError, "failed to query case history", err))
	}

	result := CaseHistoryResult{
		Case:     opts.Case,
		Outcomes: historyOutcomesOf(outcomes),
	}

	if opts.Format == "json" {
		return jsonOK(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	if len(result.Outcomes) == 0 {
		fmt.Fprintf(out, "No recorded outcomes for case %s.\n", opts.Case)
		return nil
	}

	fmt.Fprintf(out, "History for %s\n", opts.Case)
	lastRun := ""
	for _, o := range result.Outcomes {
		if o.RunID != lastRun {
			fmt.Fprintf(out, "run %s\n", o.RunID)
			lastRun = o.RunID
		}
		fmt.Fprintf(out, "  %s\n", formatOutcome(o))
	}
	return nil
}

func historyRunOf(run store.Run) HistoryRun {
	return HistoryRun{
		ID:       run.ID,
		Suite:    run.Suite,
		Started:  run.Started,
		Finished: run.Finished,
		Total:    run.Total,
		Passed:   run.Passed,
		Failed:   run.Failed,
		Skipped:  run.Skipped,
	}
}

func historyOutcomesOf(outcomes []store.Outcome) []HistoryOutcome {
	out := make([]HistoryOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, HistoryOutcome{
			RunID:      o.RunID,
			Case:       o.Case,
			Row:        o.Row,
			Status:     o.Status,
			Actual:     o.Actual,
			Args:       o.Args,
			Message:    o.Message,
			DurationMS: o.Duration.Milliseconds(),
		})
	}
	return out
}

// formatOutcome renders one recorded outcome as a ✓/✗ line. A row of -1
// means the failure happened before any row ran.
func formatOutcome(o HistoryOutcome) string {
	name := o.Case
	if o.Row >= 0 {
		name = fmt.Sprintf("%s[%d]", o.Case, o.Row)
	}

	switch o.Status {
	case "passed":
		line := "✓ " + name
		if o.Actual != "" {
			line += " -> " + o.Actual
		}
		return fmt.Sprintf("%s (%dms)", line, o.DurationMS)
	case "skipped":
		return "- " + name
	default:
		line := "✗ " + name
		if o.Message != "" {
			line += ": " + o.Message
		}
		return fmt.Sprintf("%s (%dms)", line, o.DurationMS)
	}
}

// formatLedgerTime renders ledger timestamps in UTC so output does not
// depend on the local zone.
func formatLedgerTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
