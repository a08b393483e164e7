package engine

import "fmt"

// AdmissionError reports a query rejected before execution because its
// estimated output cardinality exceeds the row_limit system variable.
// No row has been read when this is returned.
type AdmissionError struct {
	SQL      string
	Estimate int
	Limit    int64
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("query rejected: estimated %d output rows exceeds row_limit %d", e.Estimate, e.Limit)
}

// RuntimeError wraps a storage or evaluation failure for a request that
// passed binding. The request fails; the process and other in-flight
// requests continue.
type RuntimeError struct {
	Op  string
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// UnknownVariableError reports a SET or SHOW against an undeclared
// system variable.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown system variable %q", e.Name)
}
