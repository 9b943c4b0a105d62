package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/rowbound/rowbound/internal/dataset"
	"github.com/rowbound/rowbound/internal/value"
	"github.com/rowbound/rowbound/internal/writeback"
)

// Delimited loads delimiter-separated text sources. Text sources carry no
// native cell types, so every non-empty field loads as a string exactly as
// authored; an empty field is an absent cell.
type Delimited struct {
	comma rune
}

// DelimitedOption configures a Delimited adapter.
type DelimitedOption func(*Delimited)

// WithComma sets the field delimiter. The default is ','.
func WithComma(c rune) DelimitedOption {
	return func(d *Delimited) {
		d.comma = c
	}
}

// NewDelimited creates a delimited-text adapter.
func NewDelimited(opts ...DelimitedOption) *Delimited {
	d := &Delimited{comma: ','}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load implements Interface.
func (d *Delimited) Load(ctx context.Context, path string) (*dataset.Set, error) {
	records, err := d.readRecords(path)
	if err != nil {
		return nil, err
	}

	grid := make([][]value.Value, len(records))
	for i, record := range records {
		cells := make([]value.Value, len(record))
		for j, field := range record {
			if field == "" {
				cells[j] = value.Absent{}
			} else {
				cells[j] = value.String(field)
			}
		}
		grid[i] = cells
	}

	return assemble(grid)
}

func (d *Delimited) readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open delimited source: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = d.comma
	r.FieldsPerRecord = -1 // block format rows are legitimately ragged
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read delimited source: %w", err)
	}
	return records, nil
}

// WriteResults implements writeback.Writer by rewriting the file with
// actual-result and status columns appended after the last data column of
// each matched case block.
func (d *Delimited) WriteResults(ctx context.Context, path string, results writeback.Results) error {
	records, err := d.readRecords(path)
	if err != nil {
		return err
	}

	for _, cr := range results {
		keyIdx := findKeyRecord(records, cr.CaseID)
		if keyIdx < 0 {
			// No matching block in this source; nothing to write.
			continue
		}
		records = writeCaseRecords(records, keyIdx, cr)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rewrite delimited source: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = d.comma
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("rewrite delimited source: %w", err)
	}
	return nil
}

// findKeyRecord returns the index of the first record whose first field,
// trimmed, equals the case identifier, or -1.
func findKeyRecord(records [][]string, caseID string) int {
	for i, record := range records {
		if len(record) > 0 && canonName(record[0]) == caseID {
			return i
		}
	}
	return -1
}

// resultColumns picks the columns for the actual and status cells on a key
// record: a previously written header is reused, otherwise the columns
// directly after the record's contiguous data columns are taken. Appending
// and re-running therefore land on the same cells.
func resultColumns(keyRecord []string) (actualCol, statusCol int) {
	actualCol, statusCol = -1, -1
	width := 0
	for i, field := range keyRecord {
		switch canonName(field) {
		case writeback.HeaderActual:
			actualCol = i
		case writeback.HeaderStatus:
			statusCol = i
		}
		if width == i && strings.TrimSpace(field) != "" {
			width = i + 1
		}
	}
	if actualCol < 0 {
		actualCol = width
	}
	if statusCol < 0 {
		statusCol = actualCol + 1
	}
	return actualCol, statusCol
}

func setField(record []string, col int, v string) []string {
	for len(record) <= col {
		record = append(record, "")
	}
	record[col] = v
	return record
}

func writeCaseRecords(records [][]string, keyIdx int, cr writeback.CaseResult) [][]string {
	actualCol, statusCol := resultColumns(records[keyIdx])

	anyStatus := false
	records[keyIdx] = setField(records[keyIdx], actualCol, writeback.HeaderActual)
	for i, row := range cr.Rows {
		if row.Actual == "" {
			continue
		}
		idx := keyIdx + 1 + i
		if idx >= len(records) {
			break
		}
		records[idx] = setField(records[idx], actualCol, row.Actual)
		if row.Status != "" {
			records[idx] = setField(records[idx], statusCol, row.Status)
			anyStatus = true
		}
	}
	if anyStatus {
		records[keyIdx] = setField(records[keyIdx], statusCol, writeback.HeaderStatus)
	}
	return records
}
