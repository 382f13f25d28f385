package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ExecutionTrace is the canonical record of what an execution decided for
// each task.
//
// It holds logical outcomes only: no timestamps, no error strings, nothing
// that depends on scheduling. Two executions of the same plan against
// stores in the same state produce byte-identical canonical traces,
// whatever the concurrency.
type ExecutionTrace struct {
	GraphHash string
	Events    []TraceEvent
}

// TraceEventKind values are part of the canonical bytes; do not rename.
type TraceEventKind string

const (
	// EventTaskCached: the completion store already held the task.
	EventTaskCached TraceEventKind = "TaskCached"
	// EventTaskExecuted: the task ran and its completion was recorded.
	EventTaskExecuted TraceEventKind = "TaskExecuted"
	// EventTaskFailed: the task's own run or its completion record failed.
	EventTaskFailed TraceEventKind = "TaskFailed"
	// EventTaskSkipped: the task never ran because an upstream failed or
	// an input could not be resolved.
	EventTaskSkipped TraceEventKind = "TaskSkipped"
)

// Stable reason codes.
const (
	ReasonRunFailed      = "RunFailed"
	ReasonStoreFailed    = "StoreFailed"
	ReasonUpstreamFailed = "UpstreamFailed"
	ReasonUnresolvable   = "Unresolvable"
	ReasonCancelled      = "Cancelled"
)

// TraceEvent is a single logical outcome.
type TraceEvent struct {
	Kind TraceEventKind

	// TaskID is the identity hash of the task.
	TaskID   string
	TaskType string

	Reason string

	// CauseTaskID is the failed upstream for ReasonUpstreamFailed.
	CauseTaskID string

	// Outputs lists the output slots an executed task produced.
	Outputs []string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.GraphHash == "" {
		return errors.New("graphHash is required")
	}
	for i, e := range t.Events {
		if kindOrder(e.Kind) == 0 {
			return fmt.Errorf("events[%d].kind %q is unknown", i, e.Kind)
		}
		if e.TaskID == "" {
			return fmt.Errorf("events[%d].taskId is required for kind %q", i, e.Kind)
		}
		if e.Reason == ReasonUpstreamFailed && e.CauseTaskID == "" {
			return fmt.Errorf("events[%d].causeTaskId is required for reason %q", i, e.Reason)
		}
		for j, o := range e.Outputs {
			if o == "" {
				return fmt.Errorf("events[%d].outputs[%d] is empty", i, j)
			}
		}
	}
	return nil
}

// Canonicalize normalizes and sorts the trace into its canonical form.
//
// Outputs are copied and sorted, empty Outputs become nil, and events are
// sorted by (taskId, kind, reason, causeTaskId, outputs).
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].Outputs) == 0 {
			t.Events[i].Outputs = nil
			continue
		}
		outs := slices.Clone(t.Events[i].Outputs)
		sort.Strings(outs)
		t.Events[i].Outputs = outs
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		if a.CauseTaskID != b.CauseTaskID {
			return a.CauseTaskID < b.CauseTaskID
		}
		return slices.Compare(a.Outputs, b.Outputs) < 0
	})
}

func kindOrder(k TraceEventKind) int {
	switch k {
	case EventTaskCached:
		return 10
	case EventTaskExecuted:
		return 20
	case EventTaskFailed:
		return 30
	case EventTaskSkipped:
		return 40
	default:
		return 0
	}
}

// CanonicalJSON returns the canonical JSON encoding of the trace without
// mutating t.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	c := ExecutionTrace{GraphHash: t.GraphHash, Events: slices.Clone(t.Events)}
	c.Canonicalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&c)
}

// Hash returns the trace hash of the canonical JSON bytes.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON fixes field order. It does not sort; use CanonicalJSON for
// canonical bytes.
func (t ExecutionTrace) MarshalJSON() ([]byte, error) {
	if t.GraphHash == "" {
		return nil, errors.New("graphHash is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"graphHash":`)
	writeString(&buf, t.GraphHash)
	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	writeString(&buf, string(e.Kind))

	for _, f := range []struct{ name, value string }{
		{"taskId", e.TaskID},
		{"taskType", e.TaskType},
		{"reason", e.Reason},
		{"causeTaskId", e.CauseTaskID},
	} {
		if f.value == "" {
			continue
		}
		buf.WriteString(`,"` + f.name + `":`)
		writeString(&buf, f.value)
	}

	if len(e.Outputs) > 0 {
		outs := slices.Clone(e.Outputs)
		sort.Strings(outs)
		buf.WriteString(`,"outputs":[`)
		for i, o := range outs {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(&buf, o)
		}
		buf.WriteByte(']')
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
