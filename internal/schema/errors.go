package schema

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotPermitted reports a capability the active processor kind does not
	// grant. It signals a grammar bug and is never retried.
	ErrNotPermitted = errors.New("operation not permitted for processor")
	// ErrNoProcessor reports a hook running with an empty processor stack.
	ErrNoProcessor = errors.New("no active processor")
	// ErrUnbalanced reports a pop on an empty processor stack.
	ErrUnbalanced = errors.New("processor stack is empty")
)

// PreconditionError reports an operation that is infeasible given the
// current schema, such as picking a table when none exist. The generation
// attempt that hit it can be retried.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Retryable marks the error as recoverable by a fresh attempt.
func (e *PreconditionError) Retryable() bool { return true }

func precondition(op, format string, args ...any) error {
	return &PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
