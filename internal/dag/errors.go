package dag

import (
	"errors"
	"fmt"
	"strings"

	"taskweave/internal/core"
)

var (
	ErrInvalidGraph = errors.New("invalid task graph")
	ErrForeignTask  = errors.New("task belongs to another graph")
)

// ErrStore marks a completion store failure attributed to a task.
var ErrStore = errors.New("completion store failure")

// GraphError wraps deterministic graph construction and validation failures.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func foreignf(format string, args ...any) error {
	return &GraphError{Kind: ErrForeignTask, Msg: fmt.Sprintf(format, args...)}
}

// CycleError reports one dependency cycle.
//
// Path is closed (first == last) and each element reads an input from the
// next one. Members are labelled by type and parameters because their
// identities are undefined.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return core.ErrCyclicDependency.Error()
	}
	return fmt.Sprintf("%s: %s", core.ErrCyclicDependency, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return core.ErrCyclicDependency }
