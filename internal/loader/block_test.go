package loader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowbound/rowbound/internal/value"
)

func row(cells ...value.Value) []value.Value {
	return cells
}

func s(v string) value.Value { return value.String(v) }
func blank() value.Value     { return value.Absent{} }

func TestAssembleSingleBlock(t *testing.T) {
	set, err := assemble([][]value.Value{
		row(s("lookup"), s("id"), s("kind")),
		row(blank(), value.Number(4), s("journal")),
		row(blank(), value.Number(1), s("ebook")),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"lookup"}, set.Cases())
	rows, ok := set.Rows("lookup")
	require.True(t, ok)
	require.Len(t, rows, 2)

	assert.Equal(t, value.Number(4), rows[0].Value("id"))
	assert.Equal(t, value.String("journal"), rows[0].Value("kind"))
	assert.Equal(t, value.Number(1), rows[1].Value("id"))
	assert.Equal(t, value.String("ebook"), rows[1].Value("kind"))
}

func TestAssembleMultipleBlocks(t *testing.T) {
	set, err := assemble([][]value.Value{
		row(s("getItems"), s("item")),
		row(blank(), s("book")),
		row(s("removeItems"), s("item")),
		row(blank(), s("pen")),
		row(blank(), s("ink")),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"getItems", "removeItems"}, set.Cases())

	rows, _ := set.Rows("getItems")
	assert.Len(t, rows, 1)
	rows, _ = set.Rows("removeItems")
	assert.Len(t, rows, 2)
}

func TestAssembleKeyRowFollowedByKeyRow(t *testing.T) {
	// The first case ends up registered with zero rows; that is not a
	// load error.
	set, err := assemble([][]value.Value{
		row(s("emptyCase"), s("a")),
		row(s("nextCase"), s("b")),
		row(blank(), s("v")),
	})
	require.NoError(t, err)

	rows, ok := set.Rows("emptyCase")
	require.True(t, ok)
	assert.Empty(t, rows)

	rows, _ = set.Rows("nextCase")
	assert.Len(t, rows, 1)
}

func TestAssembleRepeatedCaseReplacesEarlierBlock(t *testing.T) {
	set, err := assemble([][]value.Value{
		row(s("lookup"), s("id")),
		row(blank(), s("old")),
		row(s("lookup"), s("id")),
		row(blank(), s("new")),
	})
	require.NoError(t, err)

	rows, _ := set.Rows("lookup")
	require.Len(t, rows, 1)
	assert.Equal(t, value.String("new"), rows[0].Value("id"))
}

func TestAssembleDataRowBeforeKeyRow(t *testing.T) {
	_, err := assemble([][]value.Value{
		row(blank(), s("orphan")),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoKeyRow))
}

func TestAssembleColumnCountFixedByFirstRow(t *testing.T) {
	// First row has two contiguous columns; the third column is ignored
	// everywhere, even on later, wider rows.
	set, err := assemble([][]value.Value{
		row(s("narrow"), s("a")),
		row(blank(), s("v1"), s("ignored")),
		row(s("wide"), s("a"), s("b")),
		row(blank(), s("v2"), s("alsoIgnored")),
	})
	require.NoError(t, err)

	rows, _ := set.Rows("narrow")
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a"}, rows[0].Names())

	rows, _ = set.Rows("wide")
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a"}, rows[0].Names())
	assert.True(t, value.IsAbsent(rows[0].Value("b")))
}

func TestAssembleGapInKeyRowSkipsColumn(t *testing.T) {
	set, err := assemble([][]value.Value{
		row(s("case"), s("a"), s("b"), s("c")),
		row(blank(), s("1"), s("2"), s("3")),
		row(s("gappy"), s("x"), blank(), s("z")),
		row(blank(), s("1"), s("2"), s("3")),
	})
	require.NoError(t, err)

	rows, _ := set.Rows("gappy")
	require.Len(t, rows, 1)
	// Column with no name contributes nothing.
	assert.Equal(t, []string{"x", "z"}, rows[0].Names())
	assert.Equal(t, value.String("3"), rows[0].Value("z"))
}

func TestAssembleShortDataRowBindsAbsent(t *testing.T) {
	set, err := assemble([][]value.Value{
		row(s("case"), s("a"), s("b")),
		row(blank(), s("only")),
	})
	require.NoError(t, err)

	rows, _ := set.Rows("case")
	require.Len(t, rows, 1)
	assert.Equal(t, value.String("only"), rows[0].Value("a"))
	assert.True(t, value.IsAbsent(rows[0].Value("b")))
	// The name is still present on the row.
	assert.Equal(t, []string{"a", "b"}, rows[0].Names())
}

func TestAssembleBlankRowsSkipped(t *testing.T) {
	set, err := assemble([][]value.Value{
		row(s("case"), s("a")),
		row(),
		row(blank(), blank()),
		row(blank(), s("v")),
	})
	require.NoError(t, err)

	rows, _ := set.Rows("case")
	assert.Len(t, rows, 1)
}

func TestAssembleEmptyGrid(t *testing.T) {
	set, err := assemble(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestCanonNameTrimsAndComposes(t *testing.T) {
	assert.Equal(t, "lookup", canonName("  lookup "))
	// Decomposed e + combining acute composes to the single code point.
	assert.Equal(t, "café", canonName("café"))
}
