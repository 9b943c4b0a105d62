package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/rowbound/rowbound/internal/value"
)

// Compile reads and compiles a CUE manifest file.
//
// The manifest shape:
//
//	suite: {
//		name: "inventory"
//		source: { kind: "delimited", paths: ["items.csv"] }
//		case: countItems: {
//			slot: [
//				{name: "id", bind: "row"},
//				{name: "limit", value: 25},
//			]
//			exec: { argv: ["./count.sh", "{id}"], timeout: "30s" }
//		}
//	}
func Compile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m, err := compileManifest(v)
	if err != nil {
		return nil, err
	}
	m.Dir = filepath.Dir(path)
	return m, nil
}

// compileManifest parses a CUE value holding a suite declaration.
func compileManifest(v cue.Value) (*Manifest, error) {
	suiteVal := v.LookupPath(cue.ParsePath("suite"))
	if !suiteVal.Exists() {
		return nil, &CompileError{
			Field:   "suite",
			Message: "suite declaration is required",
			Pos:     v.Pos(),
		}
	}

	m := &Manifest{}

	nameVal := suiteVal.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "suite.name",
			Message: "suite name is required",
			Pos:     suiteVal.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	m.Suite = name

	sourceVal := suiteVal.LookupPath(cue.ParsePath("source"))
	if sourceVal.Exists() {
		src, err := parseSource(sourceVal)
		if err != nil {
			return nil, err
		}
		m.Source = src
	}

	casesVal := suiteVal.LookupPath(cue.ParsePath("case"))
	if !casesVal.Exists() {
		return nil, &CompileError{
			Field:   "suite.case",
			Message: "at least one case is required",
			Pos:     suiteVal.Pos(),
		}
	}

	iter, err := casesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		c, err := parseCase(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		m.Cases = append(m.Cases, c)
	}
	if len(m.Cases) == 0 {
		return nil, &CompileError{
			Field:   "suite.case",
			Message: "at least one case is required",
			Pos:     casesVal.Pos(),
		}
	}

	return m, nil
}

// parseSource parses a source binding block.
func parseSource(v cue.Value) (SourceSpec, error) {
	src := SourceSpec{}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if kindVal.Exists() {
		kind, err := kindVal.String()
		if err != nil {
			return src, formatCUEError(err)
		}
		src.Kind = kind
	}

	pathsVal := v.LookupPath(cue.ParsePath("paths"))
	if !pathsVal.Exists() {
		return src, &CompileError{
			Field:   "source.paths",
			Message: "source paths are required",
			Pos:     v.Pos(),
		}
	}
	pathsIter, err := pathsVal.List()
	if err != nil {
		return src, formatCUEError(err)
	}
	for pathsIter.Next() {
		p, err := pathsIter.Value().String()
		if err != nil {
			return src, formatCUEError(err)
		}
		src.Paths = append(src.Paths, p)
	}
	if len(src.Paths) == 0 {
		return src, &CompileError{
			Field:   "source.paths",
			Message: "source paths are required",
			Pos:     pathsVal.Pos(),
		}
	}

	delimVal := v.LookupPath(cue.ParsePath("delimiter"))
	if delimVal.Exists() {
		delim, err := delimVal.String()
		if err != nil {
			return src, formatCUEError(err)
		}
		if len([]rune(delim)) != 1 {
			return src, &CompileError{
				Field:   "source.delimiter",
				Message: "delimiter must be a single character",
				Pos:     delimVal.Pos(),
			}
		}
		src.Delimiter = delim
	}

	return src, nil
}

// parseCase parses one case declaration.
func parseCase(name string, v cue.Value) (CaseSpec, error) {
	c := CaseSpec{Name: name}

	sourceVal := v.LookupPath(cue.ParsePath("source"))
	if sourceVal.Exists() {
		src, err := parseSource(sourceVal)
		if err != nil {
			return c, err
		}
		c.Source = &src
	}

	slotsVal := v.LookupPath(cue.ParsePath("slot"))
	if slotsVal.Exists() {
		slots, err := parseSlots(name, slotsVal)
		if err != nil {
			return c, err
		}
		c.Slots = slots
	}

	execVal := v.LookupPath(cue.ParsePath("exec"))
	if !execVal.Exists() {
		return c, &CompileError{
			Field:   fmt.Sprintf("case.%s.exec", name),
			Message: "exec block is required",
			Pos:     v.Pos(),
		}
	}
	exec, err := parseExec(name, execVal)
	if err != nil {
		return c, err
	}
	c.Exec = exec

	return c, nil
}

// parseSlots parses the ordered slot list of a case.
func parseSlots(caseName string, v cue.Value) ([]SlotSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var slots []SlotSpec
	seen := make(map[string]bool)
	for i := 0; iter.Next(); i++ {
		slotVal := iter.Value()
		field := fmt.Sprintf("case.%s.slot[%d]", caseName, i)

		nameVal := slotVal.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{
				Field:   field,
				Message: "slot name is required",
				Pos:     slotVal.Pos(),
			}
		}
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if seen[name] {
			return nil, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("duplicate slot name %q", name),
				Pos:     slotVal.Pos(),
			}
		}
		seen[name] = true

		bindVal := slotVal.LookupPath(cue.ParsePath("bind"))
		valueVal := slotVal.LookupPath(cue.ParsePath("value"))
		switch {
		case bindVal.Exists() && valueVal.Exists():
			return nil, &CompileError{
				Field:   field,
				Message: "slot declares both bind and value; pick one",
				Pos:     slotVal.Pos(),
			}
		case bindVal.Exists():
			bind, err := bindVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if bind != BindRow {
				return nil, &CompileError{
					Field:   field,
					Message: fmt.Sprintf("unknown bind mode %q; only %q is supported", bind, BindRow),
					Pos:     bindVal.Pos(),
				}
			}
			slots = append(slots, SlotSpec{Name: name, Bind: bind})
		case valueVal.Exists():
			lit, err := parseLiteral(field, valueVal)
			if err != nil {
				return nil, err
			}
			slots = append(slots, SlotSpec{Name: name, Value: lit})
		default:
			return nil, &CompileError{
				Field:   field,
				Message: `slot needs bind: "row" or a fixed value`,
				Pos:     slotVal.Pos(),
			}
		}
	}
	return slots, nil
}

// parseLiteral converts a concrete CUE scalar into a cell value.
func parseLiteral(field string, v cue.Value) (value.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.String(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Bool(b), nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Number(f), nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("fixed value must be a scalar, got %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// parseExec parses the command block of a case.
func parseExec(caseName string, v cue.Value) (ExecSpec, error) {
	spec := ExecSpec{
		Env:            true,
		AssumptionExit: DefaultAssumptionExit,
	}
	field := func(name string) string {
		return fmt.Sprintf("case.%s.exec.%s", caseName, name)
	}

	argvVal := v.LookupPath(cue.ParsePath("argv"))
	if !argvVal.Exists() {
		return spec, &CompileError{
			Field:   field("argv"),
			Message: "argv is required",
			Pos:     v.Pos(),
		}
	}
	argvIter, err := argvVal.List()
	if err != nil {
		return spec, formatCUEError(err)
	}
	for argvIter.Next() {
		arg, err := argvIter.Value().String()
		if err != nil {
			return spec, formatCUEError(err)
		}
		spec.Argv = append(spec.Argv, arg)
	}
	if len(spec.Argv) == 0 {
		return spec, &CompileError{
			Field:   field("argv"),
			Message: "argv must not be empty",
			Pos:     argvVal.Pos(),
		}
	}

	dirVal := v.LookupPath(cue.ParsePath("dir"))
	if dirVal.Exists() {
		dir, err := dirVal.String()
		if err != nil {
			return spec, formatCUEError(err)
		}
		spec.Dir = dir
	}

	envVal := v.LookupPath(cue.ParsePath("env"))
	if envVal.Exists() {
		env, err := envVal.Bool()
		if err != nil {
			return spec, formatCUEError(err)
		}
		spec.Env = env
	}

	timeoutVal := v.LookupPath(cue.ParsePath("timeout"))
	if timeoutVal.Exists() {
		raw, err := timeoutVal.String()
		if err != nil {
			return spec, formatCUEError(err)
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return spec, &CompileError{
				Field:   field("timeout"),
				Message: fmt.Sprintf("invalid timeout %q", raw),
				Pos:     timeoutVal.Pos(),
			}
		}
		spec.Timeout = d
	}

	exitVal := v.LookupPath(cue.ParsePath("assumption_exit"))
	if exitVal.Exists() {
		code, err := exitVal.Int64()
		if err != nil {
			return spec, formatCUEError(err)
		}
		if code < 1 || code > 255 {
			return spec, &CompileError{
				Field:   field("assumption_exit"),
				Message: fmt.Sprintf("assumption_exit must be 1..255, got %d", code),
				Pos:     exitVal.Pos(),
			}
		}
		spec.AssumptionExit = int(code)
	}

	return spec, nil
}

// CompileError is a manifest compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: strings.TrimSpace(firstErr.Error()),
			Pos:     positions[0],
		}
	}

	return err
}
