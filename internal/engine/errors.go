package engine

import (
	"fmt"

	"github.com/kiln-build/kiln/internal/diag"
)

// ExecutionError wraps a diag.Diagnostic with the failing target and
// action, the engine's typed, errors.As-matchable counterpart to the
// teacher's RuntimeError/StepsExceededError pair.
type ExecutionError struct {
	Target     string
	Action     uint32
	Diagnostic *diag.Diagnostic
}

func (e *ExecutionError) Error() string {
	if e.Diagnostic != nil {
		return fmt.Sprintf("%s: %s", e.Target, e.Diagnostic.Error())
	}
	return fmt.Sprintf("%s: execution failed", e.Target)
}

func (e *ExecutionError) Unwrap() error {
	if e.Diagnostic == nil {
		return nil
	}
	return e.Diagnostic
}

// CycleError reports that a target's prerequisite chain recurses back
// into itself, detected by walking the per-call-chain ancestor set
// rather than waiting on a channel that could never close.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	s := "dependency-cycle:"
	for _, c := range e.Chain {
		s += " " + c + " ->"
	}
	return s + " (cycle)"
}

// FailFastAbortedError reports that a subtree was abandoned because an
// unrelated failure triggered a fail-fast abort.
type FailFastAbortedError struct {
	Target string
}

func (e *FailFastAbortedError) Error() string {
	return fmt.Sprintf("aborted: %s: fail-fast triggered by an earlier failure", e.Target)
}
