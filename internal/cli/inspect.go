package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/rowbound/rowbound/internal/config"
	"github.com/rowbound/rowbound/internal/dataset"
	"github.com/rowbound/rowbound/internal/loader"
	"github.com/rowbound/rowbound/internal/value"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Kind      string
	Delimiter string
}

// InspectCase is one test case of the normalized dataset, as JSON.
type InspectCase struct {
	Name   string                       `json:"name"`
	Params []string                     `json:"params"`
	Rows   []map[string]json.RawMessage `json:"rows"`
}

// InspectResult holds the inspect output.
type InspectResult struct {
	Cases []InspectCase `json:"cases"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <source>...",
		Short: "Show the normalized dataset of tabular sources",
		Long: `Load tabular sources and print the dataset a suite would bind.

Sources are normalized the same way a run normalizes them: the first
column names the test case, key rows declare parameter names, and later
sources override earlier ones case by case. Relative paths are resolved
against the configured source roots.

Exit codes:
  0 - dataset printed
  2 - command error (unreadable source, unknown kind)

Examples:
  rowbound inspect testdata/items.csv
  rowbound inspect --kind workbook testdata/items.xlsx
  rowbound inspect --delimiter ';' exported.csv --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "source kind (delimited, workbook); defaults to the configured kind")
	cmd.Flags().StringVar(&opts.Delimiter, "delimiter", "", "field separator for delimited sources")

	return cmd
}

func runInspect(opts *InspectOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cfg, cmd)

	adapter, err := inspectAdapter(opts, cfg)
	if err != nil {
		return failJSON(opts.RootOptions, cmd, ErrCodeSource,
			WrapExitError(ExitCommandError, "failed to pick source adapter", err))
	}

	paths := make([]string, len(args))
	for i, arg := range args {
		paths[i] = cfg.ResolveSource(arg)
	}

	set, err := loader.LoadAll(ctx, adapter, paths, logger)
	if err != nil {
		return failJSON(opts.RootOptions, cmd, ErrCodeSource,
			WrapExitError(ExitCommandError, "failed to load sources", err))
	}

	if opts.Format == "json" {
		return outputInspectJSON(cmd, set)
	}
	return outputInspectText(cmd, set)
}

// inspectAdapter picks the adapter for the requested kind. Delimited
// sources honor the delimiter override; every other kind resolves through
// the registry so unknown kinds fail the same way a run fails.
func inspectAdapter(opts *InspectOptions, cfg *config.Config) (loader.Interface, error) {
	kind := loader.Kind(opts.Kind)
	if opts.Kind == "" {
		kind = loader.Kind(cfg.Source.Kind)
	}

	comma := cfg.DelimiterRune()
	if opts.Delimiter != "" {
		if utf8.RuneCountInString(opts.Delimiter) != 1 {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", opts.Delimiter)
		}
		comma, _ = utf8.DecodeRuneInString(opts.Delimiter)
	}

	if kind == loader.KindDelimited {
		return loader.NewDelimited(loader.WithComma(comma)), nil
	}
	if opts.Delimiter != "" {
		return nil, fmt.Errorf("source kind %q does not take a delimiter", kind)
	}
	return loader.NewRegistry().Resolve(kind)
}

func outputInspectJSON(cmd *cobra.Command, set *dataset.Set) error {
	result := InspectResult{Cases: []InspectCase{}}
	for _, name := range set.Cases() {
		rows, _ := set.Rows(name)
		ic := InspectCase{
			Name:   name,
			Params: paramNames(rows),
			Rows:   make([]map[string]json.RawMessage, 0, len(rows)),
		}
		for _, row := range rows {
			cells := make(map[string]json.RawMessage, row.Len())
			for _, param := range row.Names() {
				data, err := value.Marshal(row.Value(param))
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to encode cell", err)
				}
				cells[param] = data
			}
			ic.Rows = append(ic.Rows, cells)
		}
		result.Cases = append(result.Cases, ic)
	}
	return jsonOK(cmd.OutOrStdout(), result)
}

func outputInspectText(cmd *cobra.Command, set *dataset.Set) error {
	out := cmd.OutOrStdout()

	if set.Len() == 0 {
		fmt.Fprintln(out, "No test cases found.")
		return nil
	}

	for i, name := range set.Cases() {
		if i > 0 {
			fmt.Fprintln(out)
		}
		rows, _ := set.Rows(name)
		fmt.Fprintf(out, "%s: %d %s\n", name, len(rows), plural(len(rows), "row", "rows"))
		if params := paramNames(rows); len(params) > 0 {
			fmt.Fprintf(out, "  params: %s\n", strings.Join(params, ", "))
		}
		for j, row := range rows {
			fmt.Fprintf(out, "  [%d] %s\n", j, formatRow(row))
		}
	}
	return nil
}

// paramNames returns every parameter name the rows carry, in first-seen
// order. Rows may disagree when a case re-keys partway through.
func paramNames(rows []*dataset.Row) []string {
	seen := make(map[string]bool)
	var names []string
	for _, row := range rows {
		for _, name := range row.Names() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

func formatRow(row *dataset.Row) string {
	parts := make([]string, 0, row.Len())
	for _, name := range row.Names() {
		parts = append(parts, name+"="+value.Text(row.Value(name)))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
