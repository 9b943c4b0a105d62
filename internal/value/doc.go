// Package value provides the cell value types shared by every layer of
// rowbound.
//
// This package contains type definitions only. All other internal packages
// import value; value imports nothing internal. This keeps it the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Absent is a real value, distinct from the empty string - a blank cell
//     must survive loading without collapsing into ""
//   - Number carries float64 but its canonical text never ends in ".0"
//   - Time is always UTC; delimited text sources never produce it
package value
