package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Body is one test case's executable, invoked once per plan. The returned
// string is the optional actual result the plan reports back to its
// source row; empty means none.
type Body func(ctx context.Context, plan *Plan) (string, error)

// Status classifies one plan's outcome.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome records what one plan's invocation did.
type Outcome struct {
	Row      int
	Status   Status
	Actual   string
	Args     []string
	Err      error
	Duration time.Duration
}

// Report aggregates every outcome of one test case.
type Report struct {
	Case       string
	Outcomes   []Outcome
	Successes  int
	Violations []string
}

// Drive invokes body once per plan, strictly in plan order. A normal
// return counts as a success. An assumption-not-met signal is recorded and
// the next plan runs. Any other failure is wrapped with the plan's
// argument values and returned immediately, aborting the remaining plans.
// After all plans, zero successes with no hard failure fails the case with
// every recorded violation, so a case cannot silently pass by having all
// of its rows skipped.
//
// The returned report is always non-nil and covers the plans that ran,
// also when Drive returns an error.
func Drive(ctx context.Context, caseID string, plans []*Plan, body Body) (*Report, error) {
	report := &Report{Case: caseID}

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		start := time.Now()
		actual, err := invoke(ctx, body, plan)

		outcome := Outcome{
			Row:      plan.RowIndex(),
			Actual:   actual,
			Args:     plan.ArgumentStrings(),
			Err:      err,
			Duration: time.Since(start),
		}

		switch {
		case err == nil:
			outcome.Status = StatusPassed
			report.Successes++
		case IsAssumptionViolation(err):
			outcome.Status = StatusSkipped
			report.Violations = append(report.Violations, err.Error())
			slog.Debug("assumption violated, continuing",
				"case", caseID,
				"row", plan.RowIndex())
		default:
			outcome.Status = StatusFailed
			report.Outcomes = append(report.Outcomes, outcome)
			return report, NewPlanError(caseID, plan, err)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if report.Successes == 0 {
		return report, &NoRowSatisfiedError{Case: caseID, Violations: report.Violations}
	}
	return report, nil
}

// invoke runs the body with panic recovery: a panicking body counts as
// that plan's hard failure, attributed to its row like any other error.
func invoke(ctx context.Context, body Body, plan *Plan) (actual string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in test body: %v", r)
		}
	}()
	return body(ctx, plan)
}
