package core

import (
	"errors"
	"fmt"
)

// Construction and validation errors. These abort a build before anything runs.
var (
	ErrInvalidParameterType = errors.New("invalid parameter type")
	ErrUnknownParameter     = errors.New("unknown parameter")
	ErrMissingParameter     = errors.New("missing parameter")
	ErrInvalidDefinition    = errors.New("invalid task definition")
	ErrFrozen               = errors.New("task identity already computed")
	ErrUnknownSlot          = errors.New("unknown slot")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrUnboundRequiredInput = errors.New("unbound required input")
	ErrCyclicDependency     = errors.New("cyclic dependency")
)

// Execution errors. These are localized to a task and its transitive consumers.
var (
	ErrTaskExecution  = errors.New("task execution failed")
	ErrUnresolvable   = errors.New("output reference unresolvable")
	ErrUpstreamFailed = errors.New("upstream task failed")
)

// Error attaches detail to one of the sentinel kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf returns an *Error of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// TaskError is a failure raised by (or on behalf of) a single task.
//
// It matches both Kind and Cause with errors.Is.
type TaskError struct {
	Identity Identity
	Kind     error
	Cause    error
}

// NewTaskError wraps cause as an ErrTaskExecution failure of id.
func NewTaskError(id Identity, cause error) *TaskError {
	return &TaskError{Identity: id, Kind: ErrTaskExecution, Cause: cause}
}

func (e *TaskError) Error() string {
	if e == nil {
		return ""
	}
	kind := e.Kind
	if kind == nil {
		kind = ErrTaskExecution
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Identity.String(), kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Identity.String(), kind, e.Cause)
}

func (e *TaskError) Unwrap() []error {
	kind := e.Kind
	if kind == nil {
		kind = ErrTaskExecution
	}
	if e.Cause == nil {
		return []error{kind}
	}
	return []error{kind, e.Cause}
}
