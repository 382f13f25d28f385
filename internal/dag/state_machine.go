package dag

import (
	"container/heap"
	"fmt"

	"taskweave/internal/core"
)

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s TaskState) bool {
	return s == TaskComplete || s == TaskFailed
}

// Transition performs an atomic validated transition for a single task.
//
// The caller supplies the expected prior state (from) to make races observable.
// The state map is mutated if and only if the transition is valid.
func Transition(state ExecutionState, id core.Identity, from, to TaskState) error {
	cur, ok := state[id]
	if !ok {
		return fmt.Errorf("unknown task in state: %s", id)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %s: expected %s, got %s", id, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %s: %s -> %s", id, from, to)
	}
	state[id] = to
	return nil
}

func isAllowedTransition(from, to TaskState) bool {
	switch from {
	case TaskPending:
		return to == TaskReady || to == TaskComplete || to == TaskFailed
	case TaskReady:
		return to == TaskRunning || to == TaskFailed
	case TaskRunning:
		return to == TaskComplete || to == TaskFailed
	default:
		return false
	}
}

// FailAndPropagate marks id FAILED and transitively fails every PENDING or
// READY consumer. It returns the cascaded identities in traversal order.
//
// Determinism:
//   - The cascaded set is defined purely by reachability through tasks that
//     are (or become) FAILED. COMPLETE consumers stop the walk: their
//     results are valid regardless of this run.
//   - Traversal is in canonical index order.
//
// A RUNNING consumer is an invariant violation: it could only have started
// after id completed.
func FailAndPropagate(p *Plan, state ExecutionState, id core.Identity) ([]core.Identity, error) {
	if p == nil {
		return nil, fmt.Errorf("nil plan")
	}
	node, ok := p.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown task: %s", id)
	}
	cur, ok := state[id]
	if !ok {
		return nil, fmt.Errorf("unknown task in state: %s", id)
	}
	switch cur {
	case TaskFailed:
	case TaskPending, TaskReady, TaskRunning:
		state[id] = TaskFailed
	default:
		return nil, fmt.Errorf("cannot fail %s from state %s", id, cur)
	}

	start := node.canonicalIndex
	visited := make([]bool, len(p.nodes))
	visited[start] = true

	hq := &intMinHeap{}
	heap.Init(hq)
	for _, d := range p.outgoing[start] {
		heap.Push(hq, d)
	}

	var cascaded []core.Identity
	for hq.Len() > 0 {
		u := heap.Pop(hq).(int)
		if visited[u] {
			continue
		}
		visited[u] = true

		cid := p.nodes[u].Identity
		switch state[cid] {
		case TaskPending, TaskReady:
			state[cid] = TaskFailed
			cascaded = append(cascaded, cid)
		case TaskRunning:
			return cascaded, fmt.Errorf("invariant violation: consumer %s is RUNNING during failure propagation", cid)
		default:
			// COMPLETE or already FAILED: its consumers are not affected through it.
			continue
		}

		for _, v := range p.outgoing[u] {
			if !visited[v] {
				heap.Push(hq, v)
			}
		}
	}
	return cascaded, nil
}
