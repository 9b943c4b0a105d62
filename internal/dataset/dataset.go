package dataset

import (
	"github.com/rowbound/rowbound/internal/value"
)

// Row is an insertion-ordered mapping from parameter name to cell value.
// Setting an existing name keeps the position of its first appearance and
// replaces the value.
type Row struct {
	names []string
	cells map[string]value.Value
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{cells: make(map[string]value.Value)}
}

// Set binds name to v. Duplicate names within a row keep the last value
// at the position of the first appearance.
func (r *Row) Set(name string, v value.Value) {
	if r.cells == nil {
		r.cells = make(map[string]value.Value)
	}
	if _, exists := r.cells[name]; !exists {
		r.names = append(r.names, name)
	}
	r.cells[name] = v
}

// Get returns the value bound to name and whether the name is present.
func (r *Row) Get(name string) (value.Value, bool) {
	v, ok := r.cells[name]
	return v, ok
}

// Value returns the value bound to name, or Absent when the name is not
// present. This is the lookup the assignment engine uses: a ragged row
// binds Absent rather than failing.
func (r *Row) Value(name string) value.Value {
	if v, ok := r.cells[name]; ok {
		return v
	}
	return value.Absent{}
}

// Names returns the parameter names in insertion order. The returned slice
// is a copy.
func (r *Row) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of parameters in the row.
func (r *Row) Len() int {
	return len(r.names)
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	c := &Row{
		names: make([]string, len(r.names)),
		cells: make(map[string]value.Value, len(r.cells)),
	}
	copy(c.names, r.names)
	for k, v := range r.cells {
		c.cells[k] = v
	}
	return c
}

// Set maps test-case identifiers to their ordered rows. Case iteration
// order is first-appearance order, so loading and running are both
// deterministic. Rows within a case keep source order end to end.
type Set struct {
	order []string
	cases map[string][]*Row
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{cases: make(map[string][]*Row)}
}

// StartCase records a case identifier with no rows yet. A key row
// immediately followed by another key row leaves the first case with an
// empty, non-nil row list; running it later fails with a no-rows error
// rather than a lookup miss.
func (s *Set) StartCase(caseID string) {
	if _, exists := s.cases[caseID]; exists {
		return
	}
	s.order = append(s.order, caseID)
	s.cases[caseID] = []*Row{}
}

// Append adds a row to the end of a case, creating the case if needed.
func (s *Set) Append(caseID string, row *Row) {
	s.StartCase(caseID)
	s.cases[caseID] = append(s.cases[caseID], row)
}

// Put binds a case to rows wholesale, replacing any existing rows while
// keeping the case's original position. A repeated key row inside one
// source and a same-named case from a later source both land here.
func (s *Set) Put(caseID string, rows []*Row) {
	if _, exists := s.cases[caseID]; !exists {
		s.order = append(s.order, caseID)
	}
	s.cases[caseID] = rows
}

// Rows returns the ordered rows of a case and whether the case exists.
// The returned slice must not be mutated.
func (s *Set) Rows(caseID string) ([]*Row, bool) {
	rows, ok := s.cases[caseID]
	return rows, ok
}

// Cases returns the case identifiers in first-appearance order. The
// returned slice is a copy.
func (s *Set) Cases() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of cases.
func (s *Set) Len() int {
	return len(s.order)
}

// Merge folds other into s. A case present in both keeps its original
// position but takes other's rows wholesale; cases only in other are
// appended in their order. This is the multi-source rule: the later
// source wins per case.
func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	for _, caseID := range other.order {
		s.Put(caseID, other.cases[caseID])
	}
}
