package loader

import (
	"math"
	"strconv"
	"strings"

	"github.com/rowbound/rowbound/internal/value"
)

// TrimNumericSuffix strips one trailing ".0" from the raw text of a numeric
// cell, so "4.0" and "4" normalize identically and re-normalizing is a
// no-op. The rule is string-based and deliberately lossy: a value like
// "10.0" that was meant to be compared as text loses its suffix the same
// way. Kept because existing sources are authored against it.
func TrimNumericSuffix(s string) string {
	return strings.TrimSuffix(s, ".0")
}

// numberFromText parses the raw text of a numeric cell into a Number.
func numberFromText(s string) (value.Number, bool) {
	f, err := strconv.ParseFloat(TrimNumericSuffix(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return value.Number(f), true
}

// classifyText re-classifies an evaluated formula result the way native
// cells are classified: boolean text becomes Bool, numeric text becomes
// Number, anything else stays String. Empty results are absent.
func classifyText(s string) value.Value {
	if s == "" {
		return value.Absent{}
	}
	switch s {
	case "TRUE":
		return value.Bool(true)
	case "FALSE":
		return value.Bool(false)
	}
	if n, ok := numberFromText(s); ok {
		return n
	}
	return value.String(s)
}
