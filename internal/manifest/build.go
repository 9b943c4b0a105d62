package manifest

import (
	"fmt"
	"path/filepath"

	"github.com/rowbound/rowbound/internal/engine"
	"github.com/rowbound/rowbound/internal/loader"
	"github.com/rowbound/rowbound/internal/suite"
)

// Build turns a compiled manifest into a runnable suite. Relative source
// paths resolve against the manifest file's directory, so a suite runs the
// same from any working directory.
func Build(m *Manifest) (*suite.Suite, error) {
	var opts []suite.SuiteOption
	if len(m.Source.Paths) > 0 {
		src, err := buildSource(m.Source, m.Dir)
		if err != nil {
			return nil, fmt.Errorf("suite %s: %w", m.Suite, err)
		}
		opts = append(opts, suite.WithSource(src))
	}
	s := suite.New(m.Suite, opts...)

	for _, cs := range m.Cases {
		c, err := buildCase(cs, m.Dir)
		if err != nil {
			return nil, fmt.Errorf("suite %s: %w", m.Suite, err)
		}
		if err := s.Register(c); err != nil {
			return nil, fmt.Errorf("suite %s: %w", m.Suite, err)
		}
	}
	return s, nil
}

// buildSource maps a source spec to a runner binding. A delimiter override
// needs a specially configured adapter, so it bypasses the kind registry
// and supplies the adapter directly.
func buildSource(spec SourceSpec, dir string) (suite.Source, error) {
	kind := loader.Kind(spec.Kind)
	if spec.Kind == "" {
		kind = loader.KindDelimited
	}

	src := suite.Source{
		Kind:  kind,
		Paths: resolvePaths(spec.Paths, dir),
	}

	if spec.Delimiter != "" {
		if kind != loader.KindDelimited {
			return src, fmt.Errorf("source kind %q does not take a delimiter", kind)
		}
		comma := []rune(spec.Delimiter)[0]
		src.Kind = loader.KindCustom
		src.Adapter = loader.NewDelimited(loader.WithComma(comma))
	}
	return src, nil
}

// buildCase maps a case spec to a registered case backed by a command body.
func buildCase(cs CaseSpec, dir string) (suite.Case, error) {
	c := suite.Case{Name: cs.Name}

	for _, ss := range cs.Slots {
		if ss.RowBound() {
			c.Slots = append(c.Slots, engine.DataSlot(ss.Name))
		} else {
			c.Slots = append(c.Slots, engine.FixedValue(ss.Name, ss.Value))
		}
	}

	if cs.Source != nil {
		src, err := buildSource(*cs.Source, dir)
		if err != nil {
			return c, fmt.Errorf("case %s: %w", cs.Name, err)
		}
		c.Source = &src
	}

	exec := cs.Exec
	if exec.Dir != "" && !filepath.IsAbs(exec.Dir) {
		exec.Dir = filepath.Join(dir, exec.Dir)
	}
	c.Body = CommandBody(exec)

	return c, nil
}

// resolvePaths anchors relative paths at the manifest directory.
func resolvePaths(paths []string, dir string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(dir, p)
		}
	}
	return out
}

// SourcePaths returns every data-source path the manifest binds, resolved
// against the manifest directory, deduplicated, in declaration order.
func (m *Manifest) SourcePaths() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(paths []string) {
		for _, p := range resolvePaths(paths, m.Dir) {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}

	add(m.Source.Paths)
	for _, c := range m.Cases {
		if c.Source != nil {
			add(c.Source.Paths)
		}
	}
	return out
}
