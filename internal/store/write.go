package store

import (
	"context"
	"fmt"
	"time"
)

// Run is one suite execution recorded in the ledger.
type Run struct {
	ID       string
	Suite    string
	Started  time.Time
	Finished time.Time
	Total    int
	Passed   int
	Failed   int
	Skipped  int
}

// Outcome is one recorded plan execution within a run.
//
// Row is -1 for failures recorded before any row ran (bad source binding,
// malformed data file) and for plans built from fixed slots only. Message
// carries the error text for failed outcomes and is empty otherwise.
type Outcome struct {
	RunID    string
	Case     string
	Row      int
	Status   string
	Actual   string
	Args     []string
	Message  string
	Duration time.Duration
}

// WriteRun inserts a run record into the ledger.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate run ids are
// silently ignored. Other constraint violations still return errors.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, suite, started_at, finished_at, cases_total, cases_passed, cases_failed, cases_skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Suite,
		encodeTime(run.Started),
		encodeTime(run.Finished),
		run.Total,
		run.Passed,
		run.Failed,
		run.Skipped,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	return nil
}

// WriteOutcome inserts an outcome record into the ledger.
// Uses ON CONFLICT(run_id, case_name, row_index) DO NOTHING for idempotency -
// re-recording the same plan of the same run is silently ignored.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteOutcome(ctx context.Context, o Outcome) error {
	argsJSON, err := marshalArgs(o.Args)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(run_id, case_name, row_index, status, actual, args, message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, case_name, row_index) DO NOTHING
	`,
		o.RunID,
		o.Case,
		o.Row,
		o.Status,
		o.Actual,
		argsJSON,
		o.Message,
		o.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}

	return nil
}

// WriteRunAtomic writes a run and all its outcomes in a single transaction.
// Either the whole run lands in the ledger or none of it does.
//
// The run row is inserted first so outcome foreign keys resolve. All inserts
// use ON CONFLICT DO NOTHING, so replaying a previously recorded run is a
// no-op rather than an error.
func (s *Store) WriteRunAtomic(ctx context.Context, run Run, outcomes []Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("atomic run write: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, suite, started_at, finished_at, cases_total, cases_passed, cases_failed, cases_skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Suite,
		encodeTime(run.Started),
		encodeTime(run.Finished),
		run.Total,
		run.Passed,
		run.Failed,
		run.Skipped,
	)
	if err != nil {
		return fmt.Errorf("atomic run write: insert run: %w", err)
	}

	for _, o := range outcomes {
		argsJSON, err := marshalArgs(o.Args)
		if err != nil {
			return fmt.Errorf("atomic run write: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO outcomes
			(run_id, case_name, row_index, status, actual, args, message, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, case_name, row_index) DO NOTHING
		`,
			o.RunID,
			o.Case,
			o.Row,
			o.Status,
			o.Actual,
			argsJSON,
			o.Message,
			o.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("atomic run write: insert outcome %s/%d: %w", o.Case, o.Row, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("atomic run write: commit: %w", err)
	}

	return nil
}
