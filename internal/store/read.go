package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ReadRun retrieves a single run by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, suite, started_at, finished_at, cases_total, cases_passed, cases_failed, cases_skipped
		FROM runs
		WHERE id = ?
	`, id)

	return scanRunRow(row)
}

// RecentRuns returns runs ordered newest first.
// A limit of zero or less returns all runs.
//
// Returns an empty slice (not nil) if the ledger holds no runs.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}

	// UUIDv7 ids break started_at ties in creation order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suite, started_at, finished_at, cases_total, cases_passed, cases_failed, cases_skipped
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if runs == nil {
		runs = []Run{}
	}

	return runs, nil
}

// ReadOutcomes returns all outcomes recorded for a run, ordered by case
// name and row index for deterministic output.
//
// Returns an empty slice (not nil) if the run has no outcomes.
func (s *Store) ReadOutcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, case_name, row_index, status, actual, args, message, duration_ms
		FROM outcomes
		WHERE run_id = ?
		ORDER BY case_name ASC, row_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	return collectOutcomes(rows)
}

// CaseHistory returns the recorded outcomes of one case across runs,
// newest run first. A limit of zero or less returns the full history.
//
// Returns an empty slice (not nil) if the case has never been recorded.
func (s *Store) CaseHistory(ctx context.Context, caseName string, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.run_id, o.case_name, o.row_index, o.status, o.actual, o.args, o.message, o.duration_ms
		FROM outcomes o
		JOIN runs r ON o.run_id = r.id
		WHERE o.case_name = ?
		ORDER BY r.started_at DESC, r.id DESC, o.row_index ASC
		LIMIT ?
	`, caseName, limit)
	if err != nil {
		return nil, fmt.Errorf("query case history: %w", err)
	}
	defer rows.Close()

	return collectOutcomes(rows)
}

// collectOutcomes drains a result set into a slice, never returning nil.
func collectOutcomes(rows *sql.Rows) ([]Outcome, error) {
	var outcomes []Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	if outcomes == nil {
		outcomes = []Outcome{}
	}

	return outcomes, nil
}

// scanRun scans a result row into a Run struct.
func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run               Run
		started, finished string
	)
	if err := rows.Scan(
		&run.ID,
		&run.Suite,
		&started,
		&finished,
		&run.Total,
		&run.Passed,
		&run.Failed,
		&run.Skipped,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	return decodeRunTimes(run, started, finished)
}

// scanRunRow scans a single row into a Run struct.
func scanRunRow(row *sql.Row) (Run, error) {
	var (
		run               Run
		started, finished string
	)
	if err := row.Scan(
		&run.ID,
		&run.Suite,
		&started,
		&finished,
		&run.Total,
		&run.Passed,
		&run.Failed,
		&run.Skipped,
	); err != nil {
		return Run{}, err
	}

	return decodeRunTimes(run, started, finished)
}

// decodeRunTimes fills in the parsed timestamp fields.
func decodeRunTimes(run Run, started, finished string) (Run, error) {
	var err error
	if run.Started, err = decodeTime(started); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if run.Finished, err = decodeTime(finished); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return run, nil
}

// scanOutcome scans a result row into an Outcome struct.
func scanOutcome(rows *sql.Rows) (Outcome, error) {
	var (
		o          Outcome
		argsJSON   string
		durationMS int64
	)
	if err := rows.Scan(
		&o.RunID,
		&o.Case,
		&o.Row,
		&o.Status,
		&o.Actual,
		&argsJSON,
		&o.Message,
		&durationMS,
	); err != nil {
		return Outcome{}, fmt.Errorf("scan outcome: %w", err)
	}

	args, err := unmarshalArgs(argsJSON)
	if err != nil {
		return Outcome{}, fmt.Errorf("outcome %s/%d: %w", o.Case, o.Row, err)
	}
	o.Args = args
	o.Duration = time.Duration(durationMS) * time.Millisecond

	return o, nil
}
