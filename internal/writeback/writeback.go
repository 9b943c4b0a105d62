package writeback

import (
	"context"
	"log/slog"
)

// Reserved column headers added to a source on write-back. They are also
// tolerated as ordinary parameter names on load, which is what makes
// re-running over an already written source idempotent.
const (
	HeaderActual = "actualResult"
	HeaderStatus = "testStatus"
)

// RowResult carries what one executed plan reports back to its source row.
// An empty Actual means the plan reported nothing; that row is left
// untouched on write-back.
type RowResult struct {
	Actual string
	Status string
}

// CaseResult pairs a test case with its per-row results. Rows align with
// the case's data rows by insertion order: Rows[i] belongs to the physical
// row i steps below the located key row.
type CaseResult struct {
	CaseID string
	Rows   []RowResult
}

// Results is the write-back payload for one source location.
type Results []CaseResult

// Writer is the optional adapter capability for writing results back into
// a physical source. Adapters that cannot rewrite their format simply do
// not implement it.
type Writer interface {
	WriteResults(ctx context.Context, path string, results Results) error
}

// Qualifying filters results down to the cases that have at least one row
// with a non-empty actual result. Only those cases get written.
func Qualifying(results Results) Results {
	var out Results
	for _, cr := range results {
		for _, row := range cr.Rows {
			if row.Actual != "" {
				out = append(out, cr)
				break
			}
		}
	}
	return out
}

// Apply writes qualifying results back to path through w. Write failures
// are recovered locally: logged and skipped, never fatal to the run that
// produced the results.
func Apply(ctx context.Context, w Writer, path string, results Results, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	qualified := Qualifying(results)
	if len(qualified) == 0 {
		return
	}

	if err := w.WriteResults(ctx, path, qualified); err != nil {
		logger.Warn("skipping result write-back",
			"path", path,
			"error", err)
	}
}
