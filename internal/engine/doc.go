// Package engine resolves parameter slots against loaded data rows and
// drives test-case bodies, one invocation per assignment plan.
//
// The resolution rule is row alignment, not combination: the i-th potential
// value of every data-bound slot lands in the i-th plan, so plan i always
// means "the plan derived from row i". Fixed slots contribute their single
// value to every plan. A cross-product of slot values is never produced.
package engine
