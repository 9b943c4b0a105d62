package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rowbound/rowbound/internal/dataset"
	"github.com/rowbound/rowbound/internal/value"
	"github.com/rowbound/rowbound/internal/writeback"
)

// Workbook loads spreadsheet workbook sources. Only the first sheet is
// read. Cells normalize by their native type: booleans become Bool, date-
// formatted numerics become Time, other numerics become Number with the
// trailing-".0" rule applied to their raw text, and formulas are evaluated
// then re-classified like native cells.
type Workbook struct{}

// NewWorkbook creates a workbook adapter.
func NewWorkbook() *Workbook {
	return &Workbook{}
}

// Load implements Interface.
func (w *Workbook) Load(ctx context.Context, path string) (*dataset.Set, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read workbook rows: %w", err)
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	grid := make([][]value.Value, len(rows))
	for r, rawRow := range rows {
		cells := make([]value.Value, len(rawRow))
		for c, raw := range rawRow {
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, fmt.Errorf("cell coordinates (%d,%d): %w", c+1, r+1, err)
			}
			cells[c] = w.normalizeCell(f, sheet, axis, raw, date1904)
		}
		grid[r] = cells
	}

	return assemble(grid)
}

// normalizeCell coerces one cell into a Value using its native type, its
// number format, and the raw stored text.
func (w *Workbook) normalizeCell(f *excelize.File, sheet, axis, raw string, date1904 bool) value.Value {
	if formula, err := f.GetCellFormula(sheet, axis); err == nil && formula != "" {
		result, err := f.CalcCellValue(sheet, axis)
		if err != nil {
			// Fall back to the cached result the authoring tool stored.
			result, _ = f.GetCellValue(sheet, axis)
		}
		return classifyText(result)
	}

	if raw == "" {
		return value.Absent{}
	}

	ctype, err := f.GetCellType(sheet, axis)
	if err == nil && ctype == excelize.CellTypeBool {
		return value.Bool(raw == "1" || raw == "TRUE")
	}

	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if w.isDateCell(f, sheet, axis) {
			if t, err := excelize.ExcelDateToTime(serial, date1904); err == nil {
				return value.NewTime(t)
			}
		}
		if n, ok := numberFromText(raw); ok {
			return n
		}
	}

	return value.String(raw)
}

// builtInDateFormats are the spreadsheet built-in number format IDs that
// render a numeric cell as a date or time.
var builtInDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true,
	21: true, 22: true, 27: true, 28: true, 29: true, 30: true, 31: true,
	32: true, 33: true, 34: true, 35: true, 36: true, 45: true, 46: true,
	47: true, 50: true, 51: true, 52: true, 53: true, 54: true, 55: true,
	56: true, 57: true, 58: true,
}

func (w *Workbook) isDateCell(f *excelize.File, sheet, axis string) bool {
	styleID, err := f.GetCellStyle(sheet, axis)
	if err != nil {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if builtInDateFormats[style.NumFmt] {
		return true
	}
	if style.CustomNumFmt != nil {
		return customFormatIsDate(*style.CustomNumFmt)
	}
	return false
}

// customFormatIsDate reports whether a custom number format contains date
// or time tokens once quoted literals and bracketed sections are ignored.
func customFormatIsDate(format string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range format {
		switch {
		case inQuote:
			if r == '"' {
				inQuote = false
			}
		case inBracket:
			if r == ']' {
				inBracket = false
			}
		case r == '"':
			inQuote = true
		case r == '[':
			inBracket = true
		default:
			b.WriteRune(r)
		}
	}
	return strings.ContainsAny(b.String(), "ymdhs")
}

// WriteResults implements writeback.Writer by adding actual-result and
// status columns after the last data column of each matched case block and
// saving the workbook in place.
func (w *Workbook) WriteResults(ctx context.Context, path string, results writeback.Results) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("workbook %s has no sheets", path)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read workbook rows: %w", err)
	}

	for _, cr := range results {
		keyIdx := -1
		for i, row := range rows {
			if len(row) > 0 && canonName(row[0]) == cr.CaseID {
				keyIdx = i
				break
			}
		}
		if keyIdx < 0 {
			// No matching block in this source; nothing to write.
			continue
		}
		if err := writeCaseCells(f, sheet, rows[keyIdx], keyIdx, cr); err != nil {
			slog.Warn("skipping case write-back",
				"case", cr.CaseID,
				"path", path,
				"error", err)
		}
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeCaseCells(f *excelize.File, sheet string, keyRow []string, keyIdx int, cr writeback.CaseResult) error {
	actualCol, statusCol := resultColumns(keyRow)

	set := func(col, rowIdx int, v string) error {
		axis, err := excelize.CoordinatesToCellName(col+1, rowIdx+1)
		if err != nil {
			return err
		}
		return f.SetCellStr(sheet, axis, v)
	}

	if err := set(actualCol, keyIdx, writeback.HeaderActual); err != nil {
		return err
	}
	anyStatus := false
	for i, row := range cr.Rows {
		if row.Actual == "" {
			continue
		}
		rowIdx := keyIdx + 1 + i
		if err := set(actualCol, rowIdx, row.Actual); err != nil {
			return err
		}
		if row.Status != "" {
			if err := set(statusCol, rowIdx, row.Status); err != nil {
				return err
			}
			anyStatus = true
		}
	}
	if anyStatus {
		return set(statusCol, keyIdx, writeback.HeaderStatus)
	}
	return nil
}
