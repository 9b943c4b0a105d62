package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rowbound/rowbound/internal/dataset"
	"github.com/rowbound/rowbound/internal/engine"
	"github.com/rowbound/rowbound/internal/loader"
	"github.com/rowbound/rowbound/internal/store"
	"github.com/rowbound/rowbound/internal/writeback"
)

// Runner executes a suite under a set of policy knobs.
//
// The zero knobs are conservative: sequential cases, write-back on, no
// ledger, discarded logs. Construct one Runner per run configuration; the
// same Runner may be reused for repeated runs.
type Runner struct {
	suite       *Suite
	registry    *loader.Registry
	ledger      *store.Store
	ids         RunIDGenerator
	logger      *slog.Logger
	writeBack   bool
	parallelism int
}

// RunnerOption configures a Runner at construction.
type RunnerOption func(*Runner)

// WithLogger sets the logger for run progress and recovered errors.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRegistry sets the adapter registry used to resolve source kinds.
func WithRegistry(reg *loader.Registry) RunnerOption {
	return func(r *Runner) {
		r.registry = reg
	}
}

// WithLedger records every run in the given store.
func WithLedger(st *store.Store) RunnerOption {
	return func(r *Runner) {
		r.ledger = st
	}
}

// WithRunIDGenerator overrides run id generation. Tests use this with
// NewFixedGenerator for deterministic ids.
func WithRunIDGenerator(gen RunIDGenerator) RunnerOption {
	return func(r *Runner) {
		r.ids = gen
	}
}

// WithWriteBack toggles writing actual results back into data sources.
func WithWriteBack(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.writeBack = enabled
	}
}

// WithParallelism allows up to n cases to run concurrently.
// Values below 1 are clamped to 1. Plans within a case stay sequential.
func WithParallelism(n int) RunnerOption {
	return func(r *Runner) {
		if n < 1 {
			n = 1
		}
		r.parallelism = n
	}
}

// NewRunner creates a runner for the given suite.
func NewRunner(s *Suite, opts ...RunnerOption) *Runner {
	r := &Runner{
		suite:       s,
		registry:    loader.NewRegistry(),
		ids:         UUIDv7Generator{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		writeBack:   true,
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CaseResult is the outcome of one case within a run.
//
// Report is nil when the case failed before any plan could be driven (bad
// source binding, malformed data, invalid slots) or was skipped because the
// run was cancelled first. Err carries the case-level error for failed and
// cancelled cases.
type CaseResult struct {
	Name     string
	Status   engine.Status
	Err      error
	Report   *engine.Report
	Duration time.Duration
}

// Summary aggregates one run across all cases.
// Cases appear in registration order regardless of parallelism.
type Summary struct {
	RunID    string
	Suite    string
	Started  time.Time
	Finished time.Time
	Cases    []CaseResult
}

// Passed counts cases that drove all their plans with at least one success.
func (s *Summary) Passed() int { return s.count(engine.StatusPassed) }

// Failed counts cases that failed, whether before or during driving.
func (s *Summary) Failed() int { return s.count(engine.StatusFailed) }

// Skipped counts cases the run cancelled before completion.
func (s *Summary) Skipped() int { return s.count(engine.StatusSkipped) }

// OK reports whether the run completed with no failed and no skipped cases.
func (s *Summary) OK() bool {
	return s.Failed() == 0 && s.Skipped() == 0
}

func (s *Summary) count(status engine.Status) int {
	n := 0
	for _, c := range s.Cases {
		if c.Status == status {
			n++
		}
	}
	return n
}

// Run executes every registered case and returns the run summary.
//
// Cases run concurrently up to the configured parallelism; results land in
// registration order. The summary is always returned; the error is non-nil
// only when ctx was cancelled, in which case unfinished cases are marked
// skipped.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:   r.ids.Generate(),
		Suite:   r.suite.name,
		Started: time.Now(),
		Cases:   make([]CaseResult, len(r.suite.cases)),
	}

	r.logger.Info("run starting",
		"run_id", summary.RunID,
		"suite", summary.Suite,
		"cases", len(r.suite.cases))

	g := new(errgroup.Group)
	g.SetLimit(r.parallelism)
	for i, c := range r.suite.cases {
		g.Go(func() error {
			summary.Cases[i] = r.runCase(ctx, c)
			return nil
		})
	}
	g.Wait() // goroutines never return errors; each writes its own slot

	summary.Finished = time.Now()

	// Record even when ctx was cancelled: an interrupted run is still history.
	r.record(context.WithoutCancel(ctx), summary)

	r.logger.Info("run finished",
		"run_id", summary.RunID,
		"passed", summary.Passed(),
		"failed", summary.Failed(),
		"skipped", summary.Skipped())

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// Validate resolves every case's sources and builds its plans without
// executing any bodies.
//
// The returned results carry no reports; a failed status marks a case whose
// binding, data, or slots cannot produce plans. Cases are checked
// sequentially in registration order.
func (r *Runner) Validate(ctx context.Context) []CaseResult {
	results := make([]CaseResult, len(r.suite.cases))
	for i, c := range r.suite.cases {
		results[i] = CaseResult{Name: c.Name, Status: engine.StatusPassed}
		if _, _, _, err := r.prepareCase(ctx, c); err != nil {
			results[i].Status = engine.StatusFailed
			results[i].Err = err
		}
	}
	return results
}

// runCase takes one case from source binding to driven report.
func (r *Runner) runCase(ctx context.Context, c Case) CaseResult {
	start := time.Now()
	result := CaseResult{Name: c.Name}

	if err := ctx.Err(); err != nil {
		result.Status = engine.StatusSkipped
		result.Err = err
		return result
	}

	adapter, paths, plans, err := r.prepareCase(ctx, c)
	if err != nil {
		result.Status = engine.StatusFailed
		result.Err = err
		result.Duration = time.Since(start)
		r.logger.Error("case preparation failed",
			"case", c.Name,
			"error", err)
		return result
	}

	report, err := engine.Drive(ctx, c.Name, plans, c.Body)
	result.Report = report
	result.Duration = time.Since(start)

	switch {
	case err == nil:
		result.Status = engine.StatusPassed
	case engine.IsPlanError(err), engine.IsNoRowSatisfied(err):
		result.Status = engine.StatusFailed
		result.Err = err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result.Status = engine.StatusSkipped
		result.Err = err
	default:
		result.Status = engine.StatusFailed
		result.Err = err
	}

	if result.Status != engine.StatusSkipped {
		r.applyWriteBack(ctx, adapter, paths, c.Name, report)
	}

	r.logger.Info("case finished",
		"case", c.Name,
		"status", string(result.Status),
		"rows", len(report.Outcomes))
	return result
}

// prepareCase resolves the source binding, loads rows, and builds plans.
// Any error here is a case failure that precedes all rows.
//
// A case whose slots are all fixed and whose binding names no sources runs
// without touching any adapter.
func (r *Runner) prepareCase(ctx context.Context, c Case) (loader.Interface, []string, []*engine.Plan, error) {
	src := r.suite.source
	if c.Source != nil {
		src = *c.Source
	}

	needsData := hasDataSlot(c.Slots)

	var (
		adapter loader.Interface
		data    *dataset.Context
		err     error
	)
	if needsData || len(src.Paths) > 0 || src.Adapter != nil {
		adapter, err = r.resolveAdapter(src)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("case %s: %w", c.Name, err)
		}

		set, err := loader.LoadAll(ctx, adapter, src.Paths, r.logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("case %s: %w", c.Name, err)
		}

		if needsData {
			data, err = dataset.NewContext(set, c.Name)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("case %s: %w", c.Name, err)
			}
		}
	}

	plans, err := engine.BuildPlans(c.Slots, data)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("case %s: %w", c.Name, err)
	}

	return adapter, src.Paths, plans, nil
}

// resolveAdapter picks the directly supplied adapter or resolves the kind.
func (r *Runner) resolveAdapter(src Source) (loader.Interface, error) {
	if src.Adapter != nil {
		return src.Adapter, nil
	}
	return r.registry.Resolve(src.Kind)
}

// applyWriteBack records actual results into every source path whose data
// the adapter can rewrite. Adapters without write support are skipped.
func (r *Runner) applyWriteBack(ctx context.Context, adapter loader.Interface, paths []string, caseName string, report *engine.Report) {
	if !r.writeBack || report == nil || adapter == nil {
		return
	}
	w, ok := adapter.(writeback.Writer)
	if !ok {
		return
	}

	results := resultsFromReport(caseName, report)
	for _, path := range paths {
		writeback.Apply(ctx, w, path, results, r.logger)
	}
}

// resultsFromReport maps driven outcomes to row-aligned write-back results.
// Skipped rows keep their position but write nothing; plans without a
// backing row (fixed slots only) have nowhere to land and are dropped.
func resultsFromReport(caseName string, report *engine.Report) writeback.Results {
	rows := make([]writeback.RowResult, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		if o.Row < 0 {
			continue
		}
		if o.Status == engine.StatusSkipped {
			rows = append(rows, writeback.RowResult{})
			continue
		}
		rows = append(rows, writeback.RowResult{
			Actual: o.Actual,
			Status: string(o.Status),
		})
	}
	return writeback.Results{{CaseID: caseName, Rows: rows}}
}

// record persists the run in the ledger when one is configured.
// Ledger trouble never fails a finished run; it is logged and dropped.
func (r *Runner) record(ctx context.Context, summary *Summary) {
	if r.ledger == nil {
		return
	}

	run := store.Run{
		ID:       summary.RunID,
		Suite:    summary.Suite,
		Started:  summary.Started,
		Finished: summary.Finished,
		Total:    len(summary.Cases),
		Passed:   summary.Passed(),
		Failed:   summary.Failed(),
		Skipped:  summary.Skipped(),
	}

	var outcomes []store.Outcome
	for _, cr := range summary.Cases {
		if cr.Report == nil {
			// Preparation failures get a single row_index -1 record;
			// cancelled cases that never started leave no outcomes.
			if cr.Status == engine.StatusFailed {
				outcomes = append(outcomes, store.Outcome{
					RunID:    summary.RunID,
					Case:     cr.Name,
					Row:      -1,
					Status:   string(engine.StatusFailed),
					Message:  errText(cr.Err),
					Duration: cr.Duration,
				})
			}
			continue
		}
		for _, o := range cr.Report.Outcomes {
			outcomes = append(outcomes, store.Outcome{
				RunID:    summary.RunID,
				Case:     cr.Name,
				Row:      o.Row,
				Status:   string(o.Status),
				Actual:   o.Actual,
				Args:     o.Args,
				Message:  errText(o.Err),
				Duration: o.Duration,
			})
		}
	}

	if err := r.ledger.WriteRunAtomic(ctx, run, outcomes); err != nil {
		r.logger.Warn("run ledger write failed",
			"run_id", summary.RunID,
			"error", err)
	}
}

// hasDataSlot reports whether any slot draws its values from data rows.
func hasDataSlot(slots []engine.Slot) bool {
	for _, s := range slots {
		if s.Kind == engine.SlotData {
			return true
		}
	}
	return false
}

// errText renders an error for storage, empty for nil.
func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
