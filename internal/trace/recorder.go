package trace

import (
	"sync"

	"taskweave/internal/dag"
)

// Recorder collects trace events. It implements dag.Observer and may be
// attached to an executor with dag.WithObserver.
//
// Recording order does not matter: the canonical order is computed when
// the trace is built.
type Recorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

func NewRecorder() *Recorder { return &Recorder{} }

// Record appends event. It never panics.
func (r *Recorder) Record(event TraceEvent) {
	if r == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Observe translates an executor event. Start events carry no outcome and
// are dropped.
func (r *Recorder) Observe(e dag.Event) {
	if ev, ok := FromEvent(e); ok {
		r.Record(ev)
	}
}

// FromEvent maps an executor event to its trace event.
func FromEvent(e dag.Event) (TraceEvent, bool) {
	ev := TraceEvent{TaskID: e.Identity.Hash(), TaskType: e.Identity.Type()}
	switch e.Kind {
	case dag.EventSkipped:
		ev.Kind = EventTaskCached
	case dag.EventCompleted:
		ev.Kind = EventTaskExecuted
		ev.Outputs = e.Outputs.Names()
	case dag.EventFailed:
		switch e.Cause {
		case dag.CauseUpstream:
			ev.Kind = EventTaskSkipped
			ev.Reason = ReasonUpstreamFailed
			ev.CauseTaskID = e.Upstream.Hash()
		case dag.CauseUnresolvable:
			ev.Kind = EventTaskSkipped
			ev.Reason = ReasonUnresolvable
		case dag.CauseStore:
			ev.Kind = EventTaskFailed
			ev.Reason = ReasonStoreFailed
		case dag.CauseCancelled:
			ev.Kind = EventTaskFailed
			ev.Reason = ReasonCancelled
		default:
			ev.Kind = EventTaskFailed
			ev.Reason = ReasonRunFailed
		}
	default:
		return TraceEvent{}, false
	}
	return ev, true
}

// Snapshot returns a copy of all recorded events.
func (r *Recorder) Snapshot() []TraceEvent {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Trace builds a canonical ExecutionTrace from the events recorded so far.
func (r *Recorder) Trace(graphHash string) ExecutionTrace {
	tr := ExecutionTrace{GraphHash: graphHash, Events: r.Snapshot()}
	tr.Canonicalize()
	return tr
}
