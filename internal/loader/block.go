package loader

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/rowbound/rowbound/internal/dataset"
	"github.com/rowbound/rowbound/internal/value"
)

// canonName normalizes a case identifier or parameter name: surrounding
// whitespace dropped, text composed to NFC so visually identical names
// from different sources compare equal.
func canonName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// blankCell reports whether a cell neither holds a value nor any text.
// Block structure decisions (key row vs data row, column count) use this;
// data cells themselves keep whatever the adapter produced.
func blankCell(v value.Value) bool {
	return value.IsAbsent(v) || value.Text(v) == ""
}

func blankRow(cells []value.Value) bool {
	for _, c := range cells {
		if !blankCell(c) {
			return false
		}
	}
	return true
}

// contiguousColumns counts non-blank cells from column 0 up to the first
// blank one. The first physical row fixes the column count for the whole
// source this way.
func contiguousColumns(cells []value.Value) int {
	n := 0
	for _, c := range cells {
		if blankCell(c) {
			break
		}
		n++
	}
	return n
}

// assemble turns a grid of normalized cells into a dataset, applying the
// key-row/data-row block structure. Fully blank rows are skipped. A data
// row appearing before the first key row makes the source malformed. A
// repeated case identifier within one source replaces the earlier block's
// rows, same as a later source would.
func assemble(grid [][]value.Value) (*dataset.Set, error) {
	set := dataset.NewSet()

	columns := 0
	currentCase := ""
	currentRows := []*dataset.Row{}
	colNames := make(map[int]string)

	flush := func() {
		if currentCase != "" {
			set.Put(currentCase, currentRows)
		}
	}

	for i, cells := range grid {
		if blankRow(cells) {
			continue
		}

		if columns == 0 {
			columns = contiguousColumns(cells)
		}

		if len(cells) > 0 && !blankCell(cells[0]) {
			// Key row: first cell is the case identifier, the rest
			// name the parameters by column.
			flush()
			currentCase = canonName(value.Text(cells[0]))
			currentRows = []*dataset.Row{}
			colNames = make(map[int]string)
			for col := 1; col < columns && col < len(cells); col++ {
				if blankCell(cells[col]) {
					continue
				}
				name := canonName(value.Text(cells[col]))
				if name == "" {
					continue
				}
				colNames[col] = name
			}
			continue
		}

		if currentCase == "" {
			return nil, fmt.Errorf("row %d: %w", i+1, ErrNoKeyRow)
		}

		row := dataset.NewRow()
		for col := 1; col < columns; col++ {
			name, named := colNames[col]
			if !named {
				continue
			}
			var cell value.Value = value.Absent{}
			if col < len(cells) && !value.IsAbsent(cells[col]) {
				cell = cells[col]
			}
			row.Set(name, cell)
		}
		currentRows = append(currentRows, row)
	}

	flush()
	return set, nil
}
