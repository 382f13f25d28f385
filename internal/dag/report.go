package dag

import "taskweave/internal/core"

// TaskReport is the final outcome of one plan node.
type TaskReport struct {
	Identity core.Identity
	Type     string
	State    TaskState
	// Skipped is set when the store already held the identity.
	Skipped bool
	Cause   Cause
	// Upstream is the failed producer that caused a CauseUpstream failure.
	Upstream core.Identity
	Err      error
	// Outputs are set for tasks run in this execution.
	Outputs core.Outputs
}

// Report is the deterministic summary of one execution.
type Report struct {
	PlanHash string
	// Tasks holds every plan node in canonical order.
	Tasks []TaskReport
	// ExecutionOrder lists the tasks in the order they entered RUNNING.
	ExecutionOrder []core.Identity

	index map[core.Identity]int
}

func newReport(p *Plan) *Report {
	r := &Report{
		PlanHash: p.Hash(),
		Tasks:    make([]TaskReport, len(p.nodes)),
		index:    make(map[core.Identity]int, len(p.nodes)),
	}
	for i, n := range p.nodes {
		r.Tasks[i] = TaskReport{Identity: n.Identity, Type: n.Type(), State: TaskPending}
		r.index[n.Identity] = i
	}
	return r
}

func (r *Report) entry(id core.Identity) *TaskReport {
	return &r.Tasks[r.index[id]]
}

// Task returns the outcome of id.
func (r *Report) Task(id core.Identity) (TaskReport, bool) {
	i, ok := r.index[id]
	if !ok {
		return TaskReport{}, false
	}
	return r.Tasks[i], true
}

// Succeeded reports whether every task reached COMPLETE.
func (r *Report) Succeeded() bool {
	for _, t := range r.Tasks {
		if t.State != TaskComplete {
			return false
		}
	}
	return true
}

// ExitCode is 0 if every task reached COMPLETE and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.Succeeded() {
		return 0
	}
	return 1
}

// Failed returns the tasks that failed on their own: any cause but upstream
// or cancellation.
func (r *Report) Failed() []core.Identity {
	return r.filter(func(t TaskReport) bool {
		return t.State == TaskFailed && t.Cause != CauseUpstream && t.Cause != CauseCancelled
	})
}

// Cancelled returns the tasks interrupted while running.
func (r *Report) Cancelled() []core.Identity {
	return r.filter(func(t TaskReport) bool { return t.State == TaskFailed && t.Cause == CauseCancelled })
}

// Cascaded returns the tasks failed because a producer failed.
func (r *Report) Cascaded() []core.Identity {
	return r.filter(func(t TaskReport) bool { return t.State == TaskFailed && t.Cause == CauseUpstream })
}

// SkippedTasks returns the tasks the store already held.
func (r *Report) SkippedTasks() []core.Identity {
	return r.filter(func(t TaskReport) bool { return t.Skipped })
}

// Unfinished returns the tasks left PENDING or READY by a cancelled run.
func (r *Report) Unfinished() []core.Identity {
	return r.filter(func(t TaskReport) bool { return !IsTerminal(t.State) })
}

func (r *Report) filter(keep func(TaskReport) bool) []core.Identity {
	var out []core.Identity
	for _, t := range r.Tasks {
		if keep(t) {
			out = append(out, t.Identity)
		}
	}
	return out
}

// Summary counts tasks by outcome.
type Summary struct {
	Total     int
	Executed  int
	Skipped   int
	Failed    int
	Cascaded  int
	Cancelled int
	Pending   int
}

func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.Tasks), Executed: len(r.ExecutionOrder)}
	for _, t := range r.Tasks {
		switch {
		case t.Skipped:
			s.Skipped++
		case t.State == TaskFailed && t.Cause == CauseUpstream:
			s.Cascaded++
		case t.State == TaskFailed && t.Cause == CauseCancelled:
			s.Cancelled++
		case t.State == TaskFailed:
			s.Failed++
		case !IsTerminal(t.State):
			s.Pending++
		}
	}
	return s
}
