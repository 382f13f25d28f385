package state

import (
	"context"
	"errors"
	"fmt"

	"taskweave/internal/core"
	"taskweave/internal/dag"
)

// ConfigFailureError marks an invalid invocation or configuration.
type ConfigFailureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *ConfigFailureError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("config failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("config failure: %s", e.Message)
}

func (e *ConfigFailureError) Unwrap() error { return e.Cause }

// ConfigFailure wraps err as a config failure with code.
func ConfigFailure(code string, err error) error {
	return &ConfigFailureError{Code: code, Message: err.Error(), Cause: err}
}

var graphCodes = []struct {
	kind error
	code string
}{
	{core.ErrCyclicDependency, "CycleDetected"},
	{core.ErrUnboundRequiredInput, "UnboundRequiredInput"},
	{core.ErrTypeMismatch, "TypeMismatch"},
	{core.ErrUnknownSlot, "UnknownSlot"},
	{core.ErrFrozen, "Frozen"},
	{core.ErrInvalidParameterType, "InvalidParameterType"},
	{core.ErrUnknownParameter, "UnknownParameter"},
	{core.ErrMissingParameter, "MissingParameter"},
	{core.ErrInvalidDefinition, "InvalidDefinition"},
	{dag.ErrForeignTask, "ForeignTask"},
	{dag.ErrInvalidGraph, "InvalidGraph"},
}

// FailureFromError classifies an error that aborted a run.
func FailureFromError(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}

	var cf *ConfigFailureError
	if errors.As(err, &cf) {
		return Failure{
			FailureClass: FailureClassConfig,
			ErrorCode:    nonEmptyOr(cf.Code, "ConfigFailure"),
			ErrorMessage: nonEmptyOr(cf.Message, cf.Error()),
		}, nil
	}

	var te *core.TaskError
	if errors.As(err, &te) {
		return taskFailure(te.Identity, taskCode(te), err.Error()), nil
	}

	for _, g := range graphCodes {
		if errors.Is(err, g.kind) {
			return Failure{FailureClass: FailureClassGraph, ErrorCode: g.code, ErrorMessage: err.Error()}, nil
		}
	}

	code := "InternalError"
	switch {
	case errors.Is(err, context.Canceled):
		code = "Cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		code = "DeadlineExceeded"
	}
	return Failure{FailureClass: FailureClassSystem, ErrorCode: code, ErrorMessage: err.Error()}, nil
}

// FailureFromReport describes the first task, in canonical order, that
// failed on its own. Cascaded failures are consequences and are not
// reported. ok is false when no task failed.
func FailureFromReport(r *dag.Report) (f Failure, ok bool) {
	if r == nil {
		return Failure{}, false
	}
	failed := r.Failed()
	if len(failed) == 0 {
		return Failure{}, false
	}
	tr, _ := r.Task(failed[0])
	msg := "task failed"
	if tr.Err != nil {
		msg = tr.Err.Error()
	}
	return taskFailure(tr.Identity, causeCode(tr.Cause), msg), true
}

func taskFailure(id core.Identity, code, msg string) Failure {
	f := Failure{
		FailureClass: FailureClassExecution,
		TaskType:     id.Type(),
		ErrorCode:    code,
		ErrorMessage: msg,
	}
	if !id.IsZero() {
		h := id.Hash()
		f.TaskID = &h
	}
	return f
}

func taskCode(te *core.TaskError) string {
	switch {
	case errors.Is(te, dag.ErrStore):
		return causeCode(dag.CauseStore)
	case errors.Is(te, core.ErrUnresolvable):
		return causeCode(dag.CauseUnresolvable)
	case errors.Is(te, core.ErrUpstreamFailed):
		return causeCode(dag.CauseUpstream)
	}
	return causeCode(dag.CauseRun)
}

func causeCode(c dag.Cause) string {
	switch c {
	case dag.CauseStore:
		return "StoreFailure"
	case dag.CauseUnresolvable:
		return "Unresolvable"
	case dag.CauseUpstream:
		return "UpstreamFailed"
	case dag.CauseCancelled:
		return "Cancelled"
	}
	return "TaskExecution"
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
