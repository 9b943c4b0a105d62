package suite

import (
	"errors"
	"fmt"

	"github.com/rowbound/rowbound/internal/engine"
	"github.com/rowbound/rowbound/internal/loader"
)

// Source names where a suite or case reads its rows from.
//
// Either Kind is resolved against the runner's adapter registry, or Adapter
// supplies the implementation directly. A non-nil Adapter wins. Paths are
// loaded in order; when two sources define the same case, the later one wins.
type Source struct {
	Kind    loader.Kind
	Paths   []string
	Adapter loader.Interface
}

// Case pairs a test body with the parameter slots it consumes.
//
// Name doubles as the case identifier looked up in data sources, so it must
// match the first column of the case's key row. Source, when non-nil,
// overrides the suite-level binding for this case only.
type Case struct {
	Name   string
	Slots  []engine.Slot
	Body   engine.Body
	Source *Source
}

// Suite is an ordered collection of cases sharing a default source binding.
type Suite struct {
	name   string
	source Source
	cases  []Case
}

// SuiteOption configures a Suite at construction.
type SuiteOption func(*Suite)

// WithSource sets the suite-level default source binding.
func WithSource(src Source) SuiteOption {
	return func(s *Suite) {
		s.source = src
	}
}

// New creates an empty suite.
func New(name string, opts ...SuiteOption) *Suite {
	s := &Suite{name: name}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the suite name.
func (s *Suite) Name() string {
	return s.name
}

// Register appends a case to the suite.
// Cases run in registration order unless the runner is parallel.
func (s *Suite) Register(c Case) error {
	if c.Name == "" {
		return errors.New("case name is required")
	}
	if c.Body == nil {
		return fmt.Errorf("case %s: body is required", c.Name)
	}
	for _, existing := range s.cases {
		if existing.Name == c.Name {
			return fmt.Errorf("case %s: already registered", c.Name)
		}
	}
	s.cases = append(s.cases, c)
	return nil
}

// Cases returns the registered cases in registration order.
func (s *Suite) Cases() []Case {
	out := make([]Case, len(s.cases))
	copy(out, s.cases)
	return out
}

// Len returns the number of registered cases.
func (s *Suite) Len() int {
	return len(s.cases)
}
