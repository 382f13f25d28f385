package dag

import (
	"container/heap"

	"taskweave/internal/core"
)

// Validate checks the subgraph reachable from roots and returns its Plan.
//
// The walk is deterministic: roots in the given order, inputs by slot
// name. It fails with a *CycleError (core.ErrCyclicDependency) on the first
// cycle found and with core.ErrUnboundRequiredInput if a reachable task has
// a required input with no binding. On success every reachable task is
// frozen.
func (g *Graph) Validate(roots ...*Task) (*Plan, error) {
	if len(roots) == 0 {
		return nil, invalidf("no root tasks")
	}
	for i, r := range roots {
		if r == nil {
			return nil, invalidf("root %d is nil", i)
		}
		if r.graph != g {
			return nil, foreignf("root %s", r.Label())
		}
	}

	order, err := walk(g, roots)
	if err != nil {
		return nil, err
	}
	for _, t := range order {
		if err := t.checkBound(); err != nil {
			return nil, err
		}
	}
	for _, t := range order {
		t.freeze()
	}
	return newPlan(roots, order), nil
}

func (t *Task) checkBound() error {
	for _, in := range t.def.Inputs {
		if in.Optional {
			continue
		}
		if _, ok := t.inputs[in.Name]; !ok {
			return core.Errorf(core.ErrUnboundRequiredInput, "%s: input %q is not bound", t.Label(), in.Name)
		}
	}
	return nil
}

// walk returns the tasks reachable from roots in post-order (producers
// before consumers), or a *CycleError.
func walk(g *Graph, roots []*Task) ([]*Task, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]uint8, len(g.tasks))
	var (
		stack []*Task
		order []*Task
	)

	var visit func(t *Task) error
	visit = func(t *Task) error {
		switch color[t.index] {
		case black:
			return nil
		case gray:
			start := len(stack) - 1
			for stack[start] != t {
				start--
			}
			path := make([]string, 0, len(stack)-start+1)
			for _, s := range stack[start:] {
				path = append(path, s.Label())
			}
			path = append(path, t.Label())
			return &CycleError{Path: path}
		}

		color[t.index] = gray
		stack = append(stack, t)
		for _, slot := range t.boundSlots() {
			if err := visit(t.inputs[slot].task); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[t.index] = black
		order = append(order, t)
		return nil
	}

	for _, r := range roots {
		if err := visit(r); err != nil {
			return nil, err
		}
	}
	return order, nil
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrderIndices returns a deterministic topological ordering of node indices.
//
// Determinism: the ready queue is a min-heap by canonical index.
func (p *Plan) topoOrderIndices() []int {
	indeg := make([]int, len(p.nodes))
	for i := range p.incoming {
		indeg[i] = len(p.incoming[i])
	}

	ready := &intMinHeap{}
	heap.Init(ready)
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range p.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}
