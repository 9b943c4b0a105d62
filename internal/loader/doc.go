// Package loader reads tabular test data sources into datasets.
//
// Both built-in adapters share one block format: a physical row whose first
// column is non-blank starts a test-case block. That first cell is the case
// identifier and the remaining cells of the row name the parameters (the key
// row). Rows below it with a blank first column are data rows, one plan each.
// The column count is fixed by the first physical row and extra columns are
// ignored from then on.
//
// Adapters load one source at a time; LoadAll strings sources together with
// the skip-and-log rule for unreadable ones and later-source-wins merging.
package loader
