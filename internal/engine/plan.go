package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rowbound/rowbound/internal/dataset"
	"github.com/rowbound/rowbound/internal/value"
)

// Plan is the binding of every declared slot of one test case to a
// concrete value. Plans are partial only while resolution proceeds slot by
// slot; the driver only ever sees complete ones.
type Plan struct {
	names  []string
	values map[string]value.Value
	row    int
}

func newPlan() *Plan {
	return &Plan{values: make(map[string]value.Value), row: -1}
}

func (p *Plan) clone() *Plan {
	c := &Plan{
		names:  make([]string, len(p.names)),
		values: make(map[string]value.Value, len(p.values)),
		row:    p.row,
	}
	copy(c.names, p.names)
	for k, v := range p.values {
		c.values[k] = v
	}
	return c
}

func (p *Plan) bind(name string, v value.Value) {
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = v
}

// RowIndex returns the source row this plan was derived from, or -1 when
// no data-bound slot contributed to it.
func (p *Plan) RowIndex() int {
	return p.row
}

// Bound reports whether name holds a value in this plan.
func (p *Plan) Bound(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Value returns the value bound to name, or Absent for unbound names.
func (p *Plan) Value(name string) value.Value {
	if v, ok := p.values[name]; ok {
		return v
	}
	return value.Absent{}
}

// Text returns the canonical text of the value bound to name.
func (p *Plan) Text(name string) string {
	return value.Text(p.Value(name))
}

// Number returns the binding as a float64, coercing numeric text from
// delimited sources. The second result is false for absent or
// non-numeric bindings.
func (p *Plan) Number(name string) (float64, bool) {
	switch v := p.Value(name).(type) {
	case value.Number:
		return float64(v), true
	case value.String:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns the binding as a bool, coercing boolean text from
// delimited sources.
func (p *Plan) Bool(name string) (bool, bool) {
	switch v := p.Value(name).(type) {
	case value.Bool:
		return bool(v), true
	case value.String:
		b, err := strconv.ParseBool(string(v))
		return b, err == nil
	default:
		return false, false
	}
}

// Time returns the binding as a time, accepting RFC 3339 or plain
// yyyy-mm-dd text from delimited sources.
func (p *Plan) Time(name string) (time.Time, bool) {
	switch v := p.Value(name).(type) {
	case value.Time:
		return time.Time(v), true
	case value.String:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, string(v)); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// Names returns the bound slot names in binding order. The returned slice
// is a copy.
func (p *Plan) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// ArgumentStrings renders every binding as "name=value" in binding order,
// the diagnostic form failures are attributed with.
func (p *Plan) ArgumentStrings() []string {
	out := make([]string, len(p.names))
	for i, name := range p.names {
		out[i] = name + "=" + value.Text(p.values[name])
	}
	return out
}

// CompleteFor reports whether every declared slot is bound in p.
func (p *Plan) CompleteFor(slots []Slot) bool {
	for _, slot := range slots {
		if !p.Bound(slot.Name) {
			return false
		}
	}
	return true
}

// BuildPlans resolves the declared slots of one test case against its data
// context into the ordered plan list.
//
// Slots are processed in declaration order. A data-bound slot contributes
// one potential value per row, in row order; a fixed slot contributes its
// provider's single value. The first slot seen seeds the working list;
// after that, the i-th potential value merges into the existing i-th plan.
// When rows outnumber plans (a data-bound slot following fixed-only
// slots), the list grows by cloning the bound prefix for each extra row.
// When a fixed slot meets many plans, its one value is reused for all of
// them. The length check is explicit: plan i is row i, always.
//
// Zero declared slots produce exactly one vacuously complete plan. A
// data-bound slot over a case with zero rows fails with NoRowsError.
func BuildPlans(slots []Slot, data *dataset.Context) ([]*Plan, error) {
	if err := validateSlots(slots); err != nil {
		return nil, err
	}

	plans := []*Plan{}
	for _, slot := range slots {
		switch slot.Kind {
		case SlotFixed:
			v := slot.Provider()
			if len(plans) == 0 {
				p := newPlan()
				p.bind(slot.Name, v)
				plans = append(plans, p)
				continue
			}
			for _, p := range plans {
				p.bind(slot.Name, v)
			}

		case SlotData:
			if data == nil {
				return nil, fmt.Errorf("slot %q: data-bound slot without a data context", slot.Name)
			}
			rows := data.Rows()
			if len(rows) == 0 {
				return nil, &NoRowsError{Case: data.CaseID()}
			}
			if len(plans) == 0 {
				for i, row := range rows {
					p := newPlan()
					p.row = i
					p.bind(slot.Name, row.Value(slot.Name))
					plans = append(plans, p)
				}
				continue
			}

			prefix := plans[0].clone()
			for i, row := range rows {
				if i < len(plans) {
					plans[i].row = i
					plans[i].bind(slot.Name, row.Value(slot.Name))
					continue
				}
				p := prefix.clone()
				p.row = i
				p.bind(slot.Name, row.Value(slot.Name))
				plans = append(plans, p)
			}
		}
	}

	if len(plans) == 0 {
		// A test case with no row-bound parameters still runs exactly once.
		plans = append(plans, newPlan())
	}

	for i, p := range plans {
		if !p.CompleteFor(slots) {
			return nil, fmt.Errorf("plan %d incomplete after resolving all slots", i)
		}
	}
	return plans, nil
}
