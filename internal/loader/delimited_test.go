package loader

import (
	"context"
	"os"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowbound/rowbound/internal/value"
	"github.com/rowbound/rowbound/internal/writeback"
)

func TestDelimitedLoad(t *testing.T) {
	path := writeTempSource(t, "lookup.csv",
		"lookup,id,kind\n"+
			",4,journal\n"+
			",1,ebook\n")

	set, err := NewDelimited().Load(context.Background(), path)
	require.NoError(t, err)

	rows, ok := set.Rows("lookup")
	require.True(t, ok)
	require.Len(t, rows, 2)

	// Delimited text carries no native cell types; values stay strings
	// exactly as authored.
	assert.Equal(t, value.String("4"), rows[0].Value("id"))
	assert.Equal(t, value.String("journal"), rows[0].Value("kind"))
	assert.Equal(t, value.String("1"), rows[1].Value("id"))
	assert.Equal(t, value.String("ebook"), rows[1].Value("kind"))
}

func TestDelimitedLoadEmptyFieldIsAbsent(t *testing.T) {
	path := writeTempSource(t, "gaps.csv",
		"case,a,b\n"+
			",,second\n")

	set, err := NewDelimited().Load(context.Background(), path)
	require.NoError(t, err)

	rows, _ := set.Rows("case")
	require.Len(t, rows, 1)
	assert.True(t, value.IsAbsent(rows[0].Value("a")))
	assert.Equal(t, value.String("second"), rows[0].Value("b"))
}

func TestDelimitedLoadLeadingSpaceInNames(t *testing.T) {
	path := writeTempSource(t, "spaced.csv",
		"lookup, id, kind\n"+
			", 4, journal\n")

	set, err := NewDelimited().Load(context.Background(), path)
	require.NoError(t, err)

	rows, _ := set.Rows("lookup")
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"id", "kind"}, rows[0].Names())
}

func TestDelimitedLoadCustomComma(t *testing.T) {
	path := writeTempSource(t, "tabs.tsv",
		"lookup\tid\tkind\n"+
			"\t4\tjournal\n")

	set, err := NewDelimited(WithComma('\t')).Load(context.Background(), path)
	require.NoError(t, err)

	rows, _ := set.Rows("lookup")
	require.Len(t, rows, 1)
	assert.Equal(t, value.String("4"), rows[0].Value("id"))
}

func TestDelimitedLoadMissingFile(t *testing.T) {
	_, err := NewDelimited().Load(context.Background(), "does/not/exist.csv")
	require.Error(t, err)
}

func TestDelimitedLoadDataRowBeforeKeyRow(t *testing.T) {
	path := writeTempSource(t, "orphan.csv",
		",orphan,row\n"+
			"case,a,b\n")

	_, err := NewDelimited().Load(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoKeyRow)
}

func TestDelimitedWriteResults(t *testing.T) {
	path := writeTempSource(t, "lookup.csv",
		"lookup,id,kind\n"+
			",4,journal\n"+
			",1,ebook\n")

	results := writeback.Results{
		{
			CaseID: "lookup",
			Rows: []writeback.RowResult{
				{Actual: "3 items", Status: "passed"},
				{Actual: "0 items", Status: "failed"},
			},
		},
	}

	d := NewDelimited()
	require.NoError(t, d.WriteResults(context.Background(), path, results))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"lookup,id,kind,actualResult,testStatus\n"+
			",4,journal,3 items,passed\n"+
			",1,ebook,0 items,failed\n",
		string(content))
}

func TestDelimitedWriteResultsPreservesExistingColumns(t *testing.T) {
	original := "lookup,id,kind\n" +
		",4,journal\n" +
		",1,ebook\n"
	path := writeTempSource(t, "lookup.csv", original)

	results := writeback.Results{
		{CaseID: "lookup", Rows: []writeback.RowResult{{Actual: "3 items"}, {}}},
	}

	require.NoError(t, NewDelimited().WriteResults(context.Background(), path, results))

	set, err := NewDelimited().Load(context.Background(), path)
	require.NoError(t, err)
	rows, _ := set.Rows("lookup")
	require.Len(t, rows, 2)

	// Pre-existing columns are untouched; only trailing result columns
	// were added, and only for the row that reported an actual.
	assert.Equal(t, value.String("4"), rows[0].Value("id"))
	assert.Equal(t, value.String("journal"), rows[0].Value("kind"))
	assert.Equal(t, value.String("3 items"), rows[0].Value(writeback.HeaderActual))
	assert.True(t, value.IsAbsent(rows[1].Value(writeback.HeaderActual)))
}

func TestDelimitedWriteResultsRerunOverwritesSameColumns(t *testing.T) {
	path := writeTempSource(t, "lookup.csv",
		"lookup,id,kind\n"+
			",4,journal\n")

	first := writeback.Results{
		{CaseID: "lookup", Rows: []writeback.RowResult{{Actual: "old", Status: "failed"}}},
	}
	second := writeback.Results{
		{CaseID: "lookup", Rows: []writeback.RowResult{{Actual: "new", Status: "passed"}}},
	}

	d := NewDelimited()
	require.NoError(t, d.WriteResults(context.Background(), path, first))
	require.NoError(t, d.WriteResults(context.Background(), path, second))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"lookup,id,kind,actualResult,testStatus\n"+
			",4,journal,new,passed\n",
		string(content))
}

func TestDelimitedWriteResultsGolden(t *testing.T) {
	path := writeTempSource(t, "mixed.csv",
		"lookup,id,kind\n"+
			",4,journal\n"+
			",1,ebook\n"+
			"countItems,id\n"+
			",7\n"+
			",9\n")

	results := writeback.Results{
		{CaseID: "lookup", Rows: []writeback.RowResult{
			{Actual: "3 items", Status: "passed"},
			{Actual: "1 item", Status: "passed"},
		}},
		{CaseID: "countItems", Rows: []writeback.RowResult{
			{Actual: "7", Status: "passed"},
			{Actual: "9", Status: "failed"},
		}},
	}

	require.NoError(t, NewDelimited().WriteResults(context.Background(), path, results))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"))
	g.Assert(t, "writeback_roundtrip", content)
}

func TestDelimitedWriteResultsNoMatchingCase(t *testing.T) {
	original := "lookup,id,kind\n,4,journal\n"
	path := writeTempSource(t, "lookup.csv", original)

	results := writeback.Results{
		{CaseID: "missing", Rows: []writeback.RowResult{{Actual: "x"}}},
	}

	require.NoError(t, NewDelimited().WriteResults(context.Background(), path, results))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(content))
}

func TestResultColumns(t *testing.T) {
	tests := []struct {
		name       string
		keyRecord  []string
		wantActual int
		wantStatus int
	}{
		{"fresh key row", []string{"lookup", "id", "kind"}, 3, 4},
		{"previously written", []string{"lookup", "id", "kind", "actualResult", "testStatus"}, 3, 4},
		{"single column", []string{"solo"}, 1, 2},
		{"gap ends data columns", []string{"case", "a", "", "late"}, 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, status := resultColumns(tt.keyRecord)
			assert.Equal(t, tt.wantActual, actual)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}
