// Package manifest compiles CUE suite manifests into runnable suites.
//
// A manifest declares everything the CLI needs to run data-driven tests
// without Go code: the suite name, where its tabular sources live, and per
// case the parameter slots plus the command that acts as the test body.
// Compile parses and checks the manifest; Build turns it into a suite.Suite
// whose bodies execute the declared commands.
package manifest

import (
	"time"

	"github.com/rowbound/rowbound/internal/value"
)

// DefaultAssumptionExit is the exit code a command uses to signal that the
// current row's preconditions do not apply. 75 is the sysexits temp-failure
// code, the conventional "not applicable here" exit.
const DefaultAssumptionExit = 75

// Manifest is a compiled suite declaration.
type Manifest struct {
	Suite  string
	Source SourceSpec
	Cases  []CaseSpec

	// Dir is the directory of the manifest file. Relative source paths
	// and working directories resolve against it, so a manifest runs the
	// same from any working directory.
	Dir string
}

// SourceSpec names the tabular sources of a suite or of one case.
type SourceSpec struct {
	Kind      string
	Paths     []string
	Delimiter string
}

// CaseSpec is one declared test case.
type CaseSpec struct {
	Name   string
	Source *SourceSpec
	Slots  []SlotSpec
	Exec   ExecSpec
}

// SlotSpec declares one parameter slot: either row-bound (Bind == "row")
// or fixed to a literal Value.
type SlotSpec struct {
	Name  string
	Bind  string
	Value value.Value
}

// RowBound reports whether the slot draws its values from data rows.
func (s SlotSpec) RowBound() bool {
	return s.Bind == BindRow
}

// BindRow is the bind mode of a row-bound slot.
const BindRow = "row"

// ExecSpec is the command a case runs once per assignment plan.
//
// Argv entries may reference slot values as "{name}"; when Env is true the
// command also receives every binding as ROWBOUND_PARAM_<NAME>. Captured
// stdout becomes the plan's actual result. Exit 0 is success, the
// assumption exit marks the row as not applicable, anything else fails the
// plan.
type ExecSpec struct {
	Argv           []string
	Dir            string
	Env            bool
	Timeout        time.Duration
	AssumptionExit int
}
