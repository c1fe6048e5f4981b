package workflow

import (
	"fmt"

	domainwf "github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

// SideEffectError records a post-commit step that failed after the state
// change was already durable. It is surfaced as a warning on the transition
// result, never as a rollback.
type SideEffectError struct {
	Step string
	Err  error
}

// Error implements error.
func (e *SideEffectError) Error() string {
	return fmt.Sprintf("side effect %q failed: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *SideEffectError) Unwrap() error {
	return e.Err
}

// Result describes a successful transition, possibly carrying side-effect
// warnings the caller should surface.
type Result struct {
	From     domainwf.State
	To       domainwf.State
	NoOp     bool // target equalled the current state; nothing was written
	Event    string
	Warnings []*SideEffectError
}

// Warn appends a side-effect warning to the result.
func (r *Result) Warn(step string, err error) {
	r.Warnings = append(r.Warnings, &SideEffectError{Step: step, Err: err})
}
