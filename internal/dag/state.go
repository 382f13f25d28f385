package dag

import "taskweave/internal/core"

// TaskState is the runtime execution state of a plan node.
//
// It is kept apart from Plan, which is immutable:
//
//	PENDING -> READY -> RUNNING -> COMPLETE | FAILED
//	PENDING -> COMPLETE (already complete in the store)
//	PENDING | READY -> FAILED (cascade, or the store could not be queried)
type TaskState string

const (
	TaskPending  TaskState = "PENDING"
	TaskReady    TaskState = "READY"
	TaskRunning  TaskState = "RUNNING"
	TaskComplete TaskState = "COMPLETE"
	TaskFailed   TaskState = "FAILED"
)

// Cause classifies why a task ended FAILED.
type Cause string

const (
	CauseNone Cause = ""
	// CauseRun: the task's own run returned an error, panicked or produced
	// outputs that do not match its definition.
	CauseRun Cause = "run"
	// CauseUpstream: a producer failed; the task was never run.
	CauseUpstream Cause = "upstream"
	// CauseUnresolvable: an input reference could not be resolved.
	CauseUnresolvable Cause = "unresolvable"
	// CauseStore: the completion store failed for this identity.
	CauseStore Cause = "store"
	// CauseCancelled: the task was running when the execution was cancelled
	// and returned the context error. Its consumers stay PENDING.
	CauseCancelled Cause = "cancelled"
)

// ExecutionState maps identity to its current TaskState.
//
// It is a plain map so the scheduler can remain a pure function.
type ExecutionState map[core.Identity]TaskState

// NewExecutionState returns a state with every node of p PENDING.
func NewExecutionState(p *Plan) ExecutionState {
	state := make(ExecutionState, len(p.nodes))
	for _, n := range p.nodes {
		state[n.Identity] = TaskPending
	}
	return state
}
