package dataset

import "fmt"

// Context scopes loaded data to one test case for the duration of its run.
// It is constructed right before assignment resolution, read while potential
// values are resolved, and dropped at teardown. Nothing here is shared
// between cases, which is what makes case-level parallelism legal.
type Context struct {
	set    *Set
	caseID string
}

// NewContext builds a context for caseID over an already loaded set.
// The case must exist in the set; an empty row list is fine at this point
// and surfaces later as a no-rows planning error.
func NewContext(set *Set, caseID string) (*Context, error) {
	if set == nil {
		return nil, fmt.Errorf("data context for %q: nil data set", caseID)
	}
	if _, ok := set.Rows(caseID); !ok {
		return nil, fmt.Errorf("data context for %q: case not present in loaded data", caseID)
	}
	return &Context{set: set, caseID: caseID}, nil
}

// CaseID returns the active test-case identifier.
func (c *Context) CaseID() string {
	return c.caseID
}

// Rows returns the active case's rows in source order. The returned slice
// must not be mutated.
func (c *Context) Rows() []*Row {
	rows, _ := c.set.Rows(c.caseID)
	return rows
}
