// Package suite turns registered cases into runs: it binds data sources,
// builds assignment plans, drives test bodies, and collects results.
//
// A Suite is pure declaration: a name, a default source binding, and an
// ordered list of cases. A Runner executes that declaration under its own
// policy knobs (parallelism, write-back, ledger recording), so the same
// suite can run with different policies without re-registration.
//
// Cases may run concurrently because each case gets its own data context.
// Plans within a case are always driven in row order.
package suite
