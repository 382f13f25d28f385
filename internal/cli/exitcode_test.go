package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"taskweave/internal/config"
	"taskweave/internal/core"
	"taskweave/internal/dag"
	"taskweave/internal/state"
	"taskweave/internal/workflow"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"explicit", &ExitError{Code: ExitGraphFailure}, ExitGraphFailure},
		{"invocation", invalidInvocationf("bad %s", "flag"), ExitInvalidInvocation},
		{"config", fmt.Errorf("load: %w", config.ErrInvalidConfig), ExitConfigError},
		{"workflow", fmt.Errorf("%w: no tasks", workflow.ErrInvalidWorkflow), ExitConfigError},
		{"config failure", state.ConfigFailure("X", errors.New("boom")), ExitConfigError},
		{"cycle", &dag.CycleError{Path: []string{"a", "b", "a"}}, ExitConfigError},
		{"unbound", fmt.Errorf("build workflow: %w", core.ErrUnboundRequiredInput), ExitConfigError},
		{"cancelled", fmt.Errorf("execution cancelled: %w", context.Canceled), ExitGraphFailure},
		{"other", errors.New("disk on fire"), ExitInternalError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.want {
				t.Fatalf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestExitError_Message(t *testing.T) {
	if got := (&ExitError{Code: 1}).Error(); got != "exit status 1" {
		t.Fatalf("unexpected message %q", got)
	}
	inner := errors.New("inner")
	e := &ExitError{Code: 4, Err: inner}
	if !errors.Is(e, inner) || e.Error() != "inner" {
		t.Fatalf("ExitError must wrap its cause")
	}
}
