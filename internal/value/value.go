package value

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Value is a sealed interface representing the types a tabular cell can
// normalize into. Only Absent, String, Number, Bool, and Time implement it.
// Cells are scalar: there are no array or object values.
type Value interface {
	cellValue() // Sealed - only these types implement it
}

// Absent represents a blank cell. It is distinct from String(""): an absent
// first column is what marks a data row, and absent parameter cells bind
// through to the test body unchanged.
type Absent struct{}

func (Absent) cellValue() {}

// MarshalJSON implements json.Marshaler for Absent.
func (Absent) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a text cell, kept exactly as authored.
type String string

func (String) cellValue() {}

// Number represents a numeric cell. Always float64; use Text for the
// canonical form, which never carries a trailing ".0".
type Number float64

func (Number) cellValue() {}

// Bool represents a boolean cell.
type Bool bool

func (Bool) cellValue() {}

// Time represents a date cell from a workbook source. Stored as the
// underlying instant; Text renders it in UTC.
type Time time.Time

func (Time) cellValue() {}

// MarshalJSON implements json.Marshaler for Time.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339))
}

// NewString creates a String value.
func NewString(s string) String {
	return String(s)
}

// NewNumber creates a Number value.
func NewNumber(f float64) Number {
	return Number(f)
}

// NewBool creates a Bool value.
func NewBool(b bool) Bool {
	return Bool(b)
}

// NewTime creates a Time value, normalized to UTC.
func NewTime(t time.Time) Time {
	return Time(t.UTC())
}

// IsAbsent reports whether v is absent. A nil Value counts as absent so
// callers can probe rows without a presence check first.
func IsAbsent(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Absent)
	return ok
}

// Text returns the canonical text form of a value. Absent renders as the
// empty string, Number without a trailing ".0", Time as RFC 3339 in UTC.
// This is the form diagnostics and result write-back use.
func Text(v Value) string {
	switch val := v.(type) {
	case nil, Absent:
		return ""
	case String:
		return string(val)
	case Number:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Time:
		return time.Time(val).UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Equal reports whether two values are the same type with the same content.
// Time values compare by instant, not by location.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil, Absent:
		return IsAbsent(b)
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Time:
		bv, ok := b.(Time)
		return ok && time.Time(av).Equal(time.Time(bv))
	default:
		return false
	}
}

// Marshal marshals a value to JSON bytes. Absent becomes null, Time an
// RFC 3339 string. Used by the run ledger to persist plan arguments.
func Marshal(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Absent:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Number:
		return json.Marshal(float64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Time:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown value type: %T", v)
	}
}

// Unmarshal decodes JSON bytes back into a value. null becomes Absent and
// every JSON string becomes String, so a Time survives the round trip as its
// RFC 3339 text rather than as a Time. Arrays and objects are rejected;
// cells are scalar.
func Unmarshal(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case 'n':
		return Absent{}, nil

	case '[', '{':
		return nil, fmt.Errorf("cell values are scalar, got %c", data[0])

	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return Number(f), nil
	}
}
