package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rowbound/rowbound/internal/dataset"
)

// Kind identifies a tabular source format.
type Kind string

const (
	// KindDelimited is delimiter-separated text, comma by default.
	KindDelimited Kind = "delimited"
	// KindWorkbook is a spreadsheet workbook; the first sheet is read.
	KindWorkbook Kind = "workbook"
	// KindMarkdownTable is declared but has no adapter yet. Resolving it
	// is a configuration error.
	KindMarkdownTable Kind = "markdown-table"
	// KindCustom marks a caller-supplied adapter. It never resolves through
	// the registry; the adapter instance is passed directly instead.
	KindCustom Kind = "custom"
)

// Interface loads one tabular source into a dataset.
type Interface interface {
	Load(ctx context.Context, path string) (*dataset.Set, error)
}

// ErrUnknownKind is wrapped by Registry.Resolve for kinds with no adapter.
var ErrUnknownKind = errors.New("unknown source kind")

// ErrNoKeyRow is wrapped by adapters when a data row appears before any
// key row, which means the source is malformed.
var ErrNoKeyRow = errors.New("data row precedes first key row")

// LoadAll loads sources in the order given and merges them into one set.
// A source that cannot be read is logged and skipped; the load as a whole
// only fails when the data inside a readable source is malformed. When the
// same test case appears in several sources, the last one loaded wins.
func LoadAll(ctx context.Context, a Interface, paths []string, logger *slog.Logger) (*dataset.Set, error) {
	if logger == nil {
		logger = slog.Default()
	}

	merged := dataset.NewSet()
	for _, path := range paths {
		set, err := a.Load(ctx, path)
		if err != nil {
			if errors.Is(err, ErrNoKeyRow) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
			logger.Warn("skipping unreadable data source",
				"path", path,
				"error", err)
			continue
		}
		merged.Merge(set)
	}
	return merged, nil
}
