package cli

import (
	"context"
	"errors"
	"fmt"

	"taskweave/internal/config"
	"taskweave/internal/core"
	"taskweave/internal/dag"
	"taskweave/internal/state"
	"taskweave/internal/workflow"
)

const (
	ExitSuccess           = 0
	ExitGraphFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// ExitError carries an explicit exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func invalidInvocationf(format string, args ...any) error {
	return &ExitError{Code: ExitInvalidInvocation, Err: fmt.Errorf(format, args...)}
}

// configErrors abort a run before anything executes.
var configErrors = []error{
	config.ErrInvalidConfig,
	workflow.ErrInvalidWorkflow,
	core.ErrInvalidParameterType,
	core.ErrUnknownParameter,
	core.ErrMissingParameter,
	core.ErrInvalidDefinition,
	core.ErrUnknownSlot,
	core.ErrTypeMismatch,
	core.ErrFrozen,
	core.ErrUnboundRequiredInput,
	core.ErrCyclicDependency,
	dag.ErrInvalidGraph,
	dag.ErrForeignTask,
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	var cf *state.ConfigFailureError
	if errors.As(err, &cf) {
		return ExitConfigError
	}
	for _, kind := range configErrors {
		if errors.Is(err, kind) {
			return ExitConfigError
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ExitGraphFailure
	}
	return ExitInternalError
}
