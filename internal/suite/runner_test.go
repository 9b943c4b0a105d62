package suite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowbound/rowbound/internal/dataset"
	"github.com/rowbound/rowbound/internal/engine"
	"github.com/rowbound/rowbound/internal/loader"
	"github.com/rowbound/rowbound/internal/store"
	"github.com/rowbound/rowbound/internal/value"
)

func TestRunnerAllCasesPass(t *testing.T) {
	adapter := newStubAdapter(twoCaseSet(t))
	s := New("inventory", WithSource(Source{Adapter: adapter, Paths: []string{"mem://items"}}))
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id"), engine.DataSlot("kind")},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			return plan.Text("id") + " items", nil
		},
	}))
	require.NoError(t, s.Register(Case{
		Name:  "renameItem",
		Slots: []engine.Slot{engine.DataSlot("id"), engine.DataSlot("name")},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			return "renamed to " + plan.Text("name"), nil
		},
	}))

	r := NewRunner(s, WithRunIDGenerator(NewFixedGenerator("run-1")))
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, "inventory", summary.Suite)
	assert.True(t, summary.OK())
	assert.Equal(t, 2, summary.Passed())
	assert.Equal(t, 0, summary.Failed())

	require.Len(t, summary.Cases, 2)
	assert.Equal(t, "countItems", summary.Cases[0].Name)
	assert.Equal(t, engine.StatusPassed, summary.Cases[0].Status)
	require.NotNil(t, summary.Cases[0].Report)
	assert.Len(t, summary.Cases[0].Report.Outcomes, 3)
	assert.Equal(t, "renameItem", summary.Cases[1].Name)
	assert.False(t, summary.Started.IsZero())
	assert.False(t, summary.Finished.Before(summary.Started))
}

func TestRunnerCaseFailureDoesNotStopOthers(t *testing.T) {
	adapter := newStubAdapter(twoCaseSet(t))
	s := New("inventory", WithSource(Source{Adapter: adapter, Paths: []string{"mem://items"}}))
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			if plan.Text("id") == "7" {
				return "2 items", errors.New("expected 3 items")
			}
			return "3 items", nil
		},
	}))
	require.NoError(t, s.Register(Case{
		Name:  "renameItem",
		Slots: []engine.Slot{engine.DataSlot("name")},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			return "renamed", nil
		},
	}))

	summary, err := NewRunner(s).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.OK())
	assert.Equal(t, 1, summary.Failed())
	assert.Equal(t, 1, summary.Passed())

	failed := summary.Cases[0]
	assert.Equal(t, engine.StatusFailed, failed.Status)
	assert.True(t, engine.IsPlanError(failed.Err))
	require.NotNil(t, failed.Report)
	// Row 0 passed, row 1 failed, row 2 never ran
	assert.Len(t, failed.Report.Outcomes, 2)

	assert.Equal(t, engine.StatusPassed, summary.Cases[1].Status)
}

func TestRunnerPreparationFailure(t *testing.T) {
	s := New("inventory", WithSource(Source{
		Kind:  loader.KindMarkdownTable,
		Paths: []string{"testdata/items.md"},
	}))
	bodyRan := false
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body: func(context.Context, *engine.Plan) (string, error) {
			bodyRan = true
			return "", nil
		},
	}))

	summary, err := NewRunner(s).Run(context.Background())
	require.NoError(t, err)

	result := summary.Cases[0]
	assert.Equal(t, engine.StatusFailed, result.Status)
	assert.Nil(t, result.Report)
	assert.ErrorIs(t, result.Err, loader.ErrUnknownKind)
	assert.Contains(t, result.Err.Error(), "countItems")
	assert.False(t, bodyRan, "body must not run when preparation fails")
}

func TestRunnerUnknownCaseFails(t *testing.T) {
	adapter := newStubAdapter(countSet(t))
	s := New("inventory", WithSource(Source{Adapter: adapter, Paths: []string{"mem://items"}}))
	require.NoError(t, s.Register(Case{
		Name:  "ghostCase",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body:  noopBody,
	}))

	summary, err := NewRunner(s).Run(context.Background())
	require.NoError(t, err)

	result := summary.Cases[0]
	assert.Equal(t, engine.StatusFailed, result.Status)
	assert.Contains(t, result.Err.Error(), "case not present in loaded data")
}

func TestRunnerNoRowSatisfied(t *testing.T) {
	adapter := newStubAdapter(countSet(t))
	s := New("inventory", WithSource(Source{Adapter: adapter, Paths: []string{"mem://items"}}))
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("kind")},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			return "", engine.Violated("no %s fixtures on this host", plan.Text("kind"))
		},
	}))

	summary, err := NewRunner(s).Run(context.Background())
	require.NoError(t, err)

	result := summary.Cases[0]
	assert.Equal(t, engine.StatusFailed, result.Status)
	assert.True(t, engine.IsNoRowSatisfied(result.Err))
	require.NotNil(t, result.Report)
	assert.Len(t, result.Report.Violations, 3)
}

func TestRunnerWriteBackRecordsActuals(t *testing.T) {
	adapter := newStubAdapter(countSet(t))
	s := New("inventory", WithSource(Source{Adapter: adapter, Paths: []string{"mem://items"}}))
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			if plan.Text("id") == "7" {
				return "", engine.Violated("id 7 unavailable")
			}
			return plan.Text("id") + " items", nil
		},
	}))

	summary, err := NewRunner(s).Run(context.Background())
	require.NoError(t, err)
	require.True(t, summary.OK())

	results, ok := adapter.written("mem://items")
	require.True(t, ok, "write-back should reach the source path")
	require.Len(t, results, 1)
	assert.Equal(t, "countItems", results[0].CaseID)

	rows := results[0].Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "4 items", rows[0].Actual)
	assert.Equal(t, "passed", rows[0].Status)
	// Skipped rows hold their position but write nothing
	assert.Empty(t, rows[1].Actual)
	assert.Empty(t, rows[1].Status)
	assert.Equal(t, "9 items", rows[2].Actual)
}

func TestRunnerWriteBackCoversAllPaths(t *testing.T) {
	adapter := newStubAdapter(countSet(t))
	s := New("inventory", WithSource(Source{
		Adapter: adapter,
		Paths:   []string{"mem://a", "mem://b"},
	}))
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			return plan.Text("id") + " items", nil
		},
	}))

	_, err := NewRunner(s).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, adapter.writeCount())
}

func TestRunnerWriteBackDisabled(t *testing.T) {
	adapter := newStubAdapter(countSet(t))
	s := New("inventory", WithSource(Source{Adapter: adapter, Paths: []string{"mem://items"}}))
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			return "3 items", nil
		},
	}))

	_, err := NewRunner(s, WithWriteBack(false)).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, adapter.writeCount())
}

func TestRunnerReadOnlyAdapterSkipsWriteBack(t *testing.T) {
	s := New("inventory", WithSource(Source{
		Adapter: &readOnlyAdapter{set: countSet(t)},
		Paths:   []string{"mem://items"},
	}))
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			return "3 items", nil
		},
	}))

	summary, err := NewRunner(s).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.OK())
}

func TestRunnerAllFixedCaseRunsWithoutSources(t *testing.T) {
	s := New("defaults")
	require.NoError(t, s.Register(Case{
		Name: "defaultQuota",
		Slots: []engine.Slot{
			engine.FixedValue("limit", value.Number(25)),
			engine.FixedValue("kind", value.String("journal")),
		},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			return plan.Text("limit") + " allowed", nil
		},
	}))

	summary, err := NewRunner(s).Run(context.Background())
	require.NoError(t, err)

	result := summary.Cases[0]
	assert.Equal(t, engine.StatusPassed, result.Status)
	require.NotNil(t, result.Report)
	require.Len(t, result.Report.Outcomes, 1)
	assert.Equal(t, -1, result.Report.Outcomes[0].Row)
	assert.Equal(t, "25 allowed", result.Report.Outcomes[0].Actual)
}

func TestRunnerLedgerRecordsRun(t *testing.T) {
	ledger, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	adapter := newStubAdapter(countSet(t))
	s := New("inventory", WithSource(Source{Adapter: adapter, Paths: []string{"mem://items"}}))
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id"), engine.DataSlot("kind")},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			return plan.Text("id") + " items", nil
		},
	}))

	r := NewRunner(s,
		WithLedger(ledger),
		WithRunIDGenerator(NewFixedGenerator("run-ledger-1")))
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	run, err := ledger.ReadRun(ctx, "run-ledger-1")
	require.NoError(t, err)
	assert.Equal(t, "inventory", run.Suite)
	assert.Equal(t, 1, run.Total)
	assert.Equal(t, 1, run.Passed)

	outcomes, err := ledger.ReadOutcomes(ctx, "run-ledger-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "countItems", outcomes[0].Case)
	assert.Equal(t, 0, outcomes[0].Row)
	assert.Equal(t, "passed", outcomes[0].Status)
	assert.Equal(t, "4 items", outcomes[0].Actual)
	assert.Equal(t, []string{"id=4", "kind=journal"}, outcomes[0].Args)
}

func TestRunnerLedgerRecordsPreparationFailure(t *testing.T) {
	ledger, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	s := New("inventory", WithSource(Source{
		Kind:  loader.Kind("no-such-kind"),
		Paths: []string{"testdata/items.csv"},
	}))
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body:  noopBody,
	}))

	r := NewRunner(s,
		WithLedger(ledger),
		WithRunIDGenerator(NewFixedGenerator("run-prep-1")))
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	outcomes, err := ledger.ReadOutcomes(context.Background(), "run-prep-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, -1, outcomes[0].Row)
	assert.Equal(t, "failed", outcomes[0].Status)
	assert.Contains(t, outcomes[0].Message, "no-such-kind")
}

func TestRunnerParallelCasesAllRun(t *testing.T) {
	set := dataset.NewSet()
	var names []string
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("case%d", i)
		names = append(names, name)
		row := dataset.NewRow()
		row.Set("id", value.Number(float64(i)))
		set.Append(name, row)
	}

	adapter := newStubAdapter(set)
	s := New("parallel", WithSource(Source{Adapter: adapter, Paths: []string{"mem://items"}}))

	var invocations atomic.Int32
	for _, name := range names {
		require.NoError(t, s.Register(Case{
			Name:  name,
			Slots: []engine.Slot{engine.DataSlot("id")},
			Body: func(_ context.Context, plan *engine.Plan) (string, error) {
				invocations.Add(1)
				return plan.Text("id"), nil
			},
		}))
	}

	summary, err := NewRunner(s, WithParallelism(4)).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.OK())
	assert.Equal(t, int32(8), invocations.Load())
	// Results stay in registration order even with concurrent cases
	for i, name := range names {
		assert.Equal(t, name, summary.Cases[i].Name)
	}
}

func TestRunnerParallelismClamped(t *testing.T) {
	adapter := newStubAdapter(countSet(t))
	s := New("inventory", WithSource(Source{Adapter: adapter, Paths: []string{"mem://items"}}))
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body:  noopBody,
	}))

	// Parallelism 0 must not deadlock the run
	summary, err := NewRunner(s, WithParallelism(0)).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Cases, 1)
}

func TestRunnerCancellationSkipsRemainingCases(t *testing.T) {
	ledger, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := newStubAdapter(twoCaseSet(t))
	s := New("inventory", WithSource(Source{Adapter: adapter, Paths: []string{"mem://items"}}))
	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body: func(_ context.Context, plan *engine.Plan) (string, error) {
			cancel() // abort the run from inside the first row
			return plan.Text("id") + " items", nil
		},
	}))
	require.NoError(t, s.Register(Case{
		Name:  "renameItem",
		Slots: []engine.Slot{engine.DataSlot("name")},
		Body:  noopBody,
	}))

	r := NewRunner(s,
		WithLedger(ledger),
		WithRunIDGenerator(NewFixedGenerator("run-cancel-1")))
	summary, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 2, summary.Skipped())
	// First case got through row 0 before the cancel took effect
	require.NotNil(t, summary.Cases[0].Report)
	assert.Len(t, summary.Cases[0].Report.Outcomes, 1)
	assert.Nil(t, summary.Cases[1].Report)

	// Cancelled or not, the run still lands in the ledger
	run, err := ledger.ReadRun(context.Background(), "run-cancel-1")
	require.NoError(t, err)
	assert.Equal(t, 2, run.Skipped)

	// Interrupted cases write nothing back
	assert.Zero(t, adapter.writeCount())
}

func TestRunnerFixedRunIDSequence(t *testing.T) {
	s := New("empty")
	r := NewRunner(s, WithRunIDGenerator(NewFixedGenerator("run-1", "run-2")))

	first, err := r.Run(context.Background())
	require.NoError(t, err)
	second, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, "run-2", second.RunID)
}

func TestRunnerValidate(t *testing.T) {
	adapter := newStubAdapter(countSet(t))
	s := New("inventory", WithSource(Source{Adapter: adapter, Paths: []string{"mem://items"}}))

	var mu sync.Mutex
	bodyRan := false
	markRan := func(context.Context, *engine.Plan) (string, error) {
		mu.Lock()
		bodyRan = true
		mu.Unlock()
		return "", nil
	}

	require.NoError(t, s.Register(Case{
		Name:  "countItems",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body:  markRan,
	}))
	require.NoError(t, s.Register(Case{
		Name:  "ghostCase",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body:  markRan,
	}))
	require.NoError(t, s.Register(Case{
		Name:  "badBinding",
		Slots: []engine.Slot{engine.DataSlot("id")},
		Body:  markRan,
		Source: &Source{
			Kind:  loader.KindCustom,
			Paths: []string{"mem://other"},
		},
	}))

	results := NewRunner(s).Validate(context.Background())
	require.Len(t, results, 3)

	assert.Equal(t, engine.StatusPassed, results[0].Status)
	assert.NoError(t, results[0].Err)

	assert.Equal(t, engine.StatusFailed, results[1].Status)
	assert.Contains(t, results[1].Err.Error(), "case not present in loaded data")

	assert.Equal(t, engine.StatusFailed, results[2].Status)
	assert.ErrorIs(t, results[2].Err, loader.ErrUnknownKind)

	assert.False(t, bodyRan, "validation must not execute bodies")
	assert.Zero(t, adapter.writeCount(), "validation must not write back")
}
