package engine

import (
	"errors"
	"fmt"
	"strings"
)

// AssumptionError is the designated "assumption not met" signal. A body
// returns one (usually via Violated) to say the current row does not apply
// to it; the driver records the violation and continues with the next
// plan instead of failing the case.
type AssumptionError struct {
	Reason string
}

// Error implements the error interface.
func (e *AssumptionError) Error() string {
	return "assumption not met: " + e.Reason
}

// Violated creates an AssumptionError with a formatted reason.
func Violated(format string, args ...any) *AssumptionError {
	return &AssumptionError{Reason: fmt.Sprintf(format, args...)}
}

// IsAssumptionViolation returns true if the error is an assumption-not-met
// signal. Uses errors.As to handle wrapped errors.
func IsAssumptionViolation(err error) bool {
	var ae *AssumptionError
	return errors.As(err, &ae)
}

// PlanError wraps a hard failure with the argument values of the plan that
// produced it, so a failing row is identifiable without re-deriving which
// row index failed. It aborts the remaining plans of its case.
type PlanError struct {
	Case string
	Row  int
	Args []string
	Err  error
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	return fmt.Sprintf("test case %s failed with arguments [%s]: %v",
		e.Case, strings.Join(e.Args, ", "), e.Err)
}

// Unwrap returns the underlying failure.
func (e *PlanError) Unwrap() error {
	return e.Err
}

// NewPlanError wraps err with a plan's diagnostic attribution.
func NewPlanError(caseID string, plan *Plan, err error) *PlanError {
	return &PlanError{
		Case: caseID,
		Row:  plan.RowIndex(),
		Args: plan.ArgumentStrings(),
		Err:  err,
	}
}

// IsPlanError returns true if the error carries plan attribution.
// Uses errors.As to handle wrapped errors.
func IsPlanError(err error) bool {
	var pe *PlanError
	return errors.As(err, &pe)
}

// NoRowSatisfiedError reports that every plan of a case was skipped by an
// assumption violation, so the case never actually ran. Without it a case
// could silently pass with zero successes.
type NoRowSatisfiedError struct {
	Case       string
	Violations []string
}

// Error implements the error interface.
func (e *NoRowSatisfiedError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("test case %s: no assignment plan succeeded", e.Case)
	}
	return fmt.Sprintf("test case %s: no assignment plan succeeded; assumption violations:\n  %s",
		e.Case, strings.Join(e.Violations, "\n  "))
}

// IsNoRowSatisfied returns true if the error reports a case whose every
// plan was skipped. Uses errors.As to handle wrapped errors.
func IsNoRowSatisfied(err error) bool {
	var ne *NoRowSatisfiedError
	return errors.As(err, &ne)
}

// NoRowsError reports a data-bound test case whose active data set holds
// zero rows, detected during plan building before anything runs.
type NoRowsError struct {
	Case string
}

// Error implements the error interface.
func (e *NoRowsError) Error() string {
	return fmt.Sprintf("test case %s: no data rows loaded for data-bound parameters", e.Case)
}

// IsNoRows returns true if the error reports an empty data-bound case.
// Uses errors.As to handle wrapped errors.
func IsNoRows(err error) bool {
	var ne *NoRowsError
	return errors.As(err, &ne)
}
