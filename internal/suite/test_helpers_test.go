package suite

import (
	"context"
	"sync"
	"testing"

	"github.com/rowbound/rowbound/internal/dataset"
	"github.com/rowbound/rowbound/internal/value"
	"github.com/rowbound/rowbound/internal/writeback"
)

// countSet builds a dataset with a three-row countItems case.
func countSet(t *testing.T) *dataset.Set {
	t.Helper()
	set := dataset.NewSet()
	kinds := []string{"journal", "ledger", "journal"}
	for i, id := range []float64{4, 7, 9} {
		row := dataset.NewRow()
		row.Set("id", value.Number(id))
		row.Set("kind", value.String(kinds[i]))
		set.Append("countItems", row)
	}
	return set
}

// twoCaseSet adds a single-row renameItem case next to countItems.
func twoCaseSet(t *testing.T) *dataset.Set {
	t.Helper()
	set := countSet(t)
	row := dataset.NewRow()
	row.Set("id", value.Number(4))
	row.Set("name", value.String("spring journal"))
	set.Append("renameItem", row)
	return set
}

// stubAdapter serves a canned dataset and records load and write calls.
type stubAdapter struct {
	mu       sync.Mutex
	set      *dataset.Set
	loadErr  error
	writeErr error
	loads    []string
	writes   map[string]writeback.Results
}

func newStubAdapter(set *dataset.Set) *stubAdapter {
	return &stubAdapter{
		set:    set,
		writes: make(map[string]writeback.Results),
	}
}

func (a *stubAdapter) Load(_ context.Context, path string) (*dataset.Set, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loads = append(a.loads, path)
	if a.loadErr != nil {
		return nil, a.loadErr
	}
	return a.set, nil
}

func (a *stubAdapter) WriteResults(_ context.Context, path string, results writeback.Results) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.writeErr != nil {
		return a.writeErr
	}
	a.writes[path] = results
	return nil
}

// written returns the recorded write-back results for a path.
func (a *stubAdapter) written(path string) (writeback.Results, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	results, ok := a.writes[path]
	return results, ok
}

// writeCount returns how many paths received write-backs.
func (a *stubAdapter) writeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.writes)
}

// readOnlyAdapter serves a canned dataset with no write support.
type readOnlyAdapter struct {
	set *dataset.Set
}

func (a *readOnlyAdapter) Load(context.Context, string) (*dataset.Set, error) {
	return a.set, nil
}
