package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run record with minimal required fields.
func createTestRun(id, suite string, started time.Time) Run {
	return Run{
		ID:       id,
		Suite:    suite,
		Started:  started,
		Finished: started.Add(2 * time.Second),
		Total:    1,
		Passed:   1,
	}
}

// createTestOutcome creates an outcome record with minimal required fields.
func createTestOutcome(runID, caseName string, row int, status string) Outcome {
	return Outcome{
		RunID:    runID,
		Case:     caseName,
		Row:      row,
		Status:   status,
		Actual:   "3 items",
		Args:     []string{"id=4", "kind=journal"},
		Duration: 12 * time.Millisecond,
	}
}
