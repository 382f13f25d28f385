package dag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"taskweave/internal/core"
)

// memStore is a concurrency-safe CompletionStore + OutputLoader.
type memStore struct {
	mu       sync.Mutex
	done     map[core.Identity]core.Outputs
	queryErr map[core.Identity]error
	marked   []core.Identity
}

func newMemStore() *memStore {
	return &memStore{done: map[core.Identity]core.Outputs{}, queryErr: map[core.Identity]error{}}
}

func (s *memStore) IsComplete(_ context.Context, id core.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.queryErr[id]; err != nil {
		return false, err
	}
	_, ok := s.done[id]
	return ok, nil
}

func (s *memStore) MarkComplete(_ context.Context, id core.Identity, out core.Outputs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[id] = out.Clone()
	s.marked = append(s.marked, id)
	return nil
}

func (s *memStore) LoadOutputs(_ context.Context, id core.Identity) (core.Outputs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.done[id]
	if !ok {
		return nil, errors.New("not stored")
	}
	return out.Clone(), nil
}

// flagStore only records completion flags; it cannot serve outputs.
type flagStore struct {
	mu   sync.Mutex
	done map[core.Identity]bool
}

func (s *flagStore) IsComplete(_ context.Context, id core.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done[id], nil
}

func (s *flagStore) MarkComplete(_ context.Context, id core.Identity, _ core.Outputs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		s.done = map[core.Identity]bool{}
	}
	s.done[id] = true
	return nil
}

// runCounter counts run invocations per task label.
type runCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *runCounter) inc(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[label]++
}

func (c *runCounter) get(label string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[label]
}

func (c *runCounter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.counts {
		n += v
	}
	return n
}

func textDef(c *runCounter) *core.Definition {
	return &core.Definition{
		Type:    "T1",
		Params:  []core.ParamSpec{{Name: "text", Kind: core.KindString}},
		Outputs: []core.SlotSpec{{Name: "out_data1", Kind: core.KindString}},
		Run: func(_ context.Context, _ core.Inputs, p core.Params) (core.Outputs, error) {
			c.inc("T1:" + p.Text("text"))
			return core.Outputs{"out_data1": core.String(p.Text("text"))}, nil
		},
	}
}

func mergeDef(c *runCounter) *core.Definition {
	return &core.Definition{
		Type: "Merge",
		Inputs: []core.SlotSpec{
			{Name: "in_data1", Kind: core.KindString},
			{Name: "in_data2", Kind: core.KindString},
		},
		Outputs: []core.SlotSpec{{Name: "out", Kind: core.KindString}},
		Run: func(_ context.Context, in core.Inputs, _ core.Params) (core.Outputs, error) {
			out := in.Text("in_data1") + "+" + in.Text("in_data2")
			c.inc("Merge:" + out)
			return core.Outputs{"out": core.String(out)}, nil
		},
	}
}

// funcDef builds a definition with one optional "in" slot and one "out" slot.
func funcDef(typ string, run core.RunFunc) *core.Definition {
	return &core.Definition{
		Type:    typ,
		Params:  []core.ParamSpec{{Name: "name", Kind: core.KindString, Default: core.String("")}},
		Inputs:  []core.SlotSpec{{Name: "in", Optional: true}, {Name: "in2", Optional: true}},
		Outputs: []core.SlotSpec{{Name: "out"}},
		Run:     run,
	}
}

func okRun(c *runCounter) core.RunFunc {
	return func(_ context.Context, in core.Inputs, p core.Params) (core.Outputs, error) {
		c.inc(p.Text("name"))
		return core.Outputs{"out": core.String(p.Text("name") + "(" + in.Text("in") + ")")}, nil
	}
}

type scenario struct {
	graph                *Graph
	t1a, t1b, mrg1, mrg2 *Task
	runs                 *runCounter
}

// exampleScenario builds two text sources and two merges bound in swapped order.
func exampleScenario(t *testing.T, text *core.Definition, merge *core.Definition, runs *runCounter) scenario {
	t.Helper()
	g := NewGraph()
	s := scenario{graph: g, runs: runs}
	var err error
	if s.t1a, err = g.New(text, map[string]any{"text": "hej_hopp"}); err != nil {
		t.Fatalf("new t1a: %v", err)
	}
	if s.t1b, err = g.New(text, map[string]any{"text": "hopp_hej"}); err != nil {
		t.Fatalf("new t1b: %v", err)
	}
	if s.mrg1, err = g.New(merge, nil); err != nil {
		t.Fatalf("new mrg1: %v", err)
	}
	if s.mrg2, err = g.New(merge, nil); err != nil {
		t.Fatalf("new mrg2: %v", err)
	}
	mustBind(t, g, s.mrg1, "in_data1", s.t1a.Out("out_data1"))
	mustBind(t, g, s.mrg1, "in_data2", s.t1b.Out("out_data1"))
	mustBind(t, g, s.mrg2, "in_data1", s.t1b.Out("out_data1"))
	mustBind(t, g, s.mrg2, "in_data2", s.t1a.Out("out_data1"))
	return s
}

func mustBind(t *testing.T, g *Graph, consumer *Task, slot string, out Output) {
	t.Helper()
	if err := g.Bind(consumer, slot, out); err != nil {
		t.Fatalf("bind %s.%s: %v", consumer.Type(), slot, err)
	}
}

func mustNew(t *testing.T, g *Graph, def *core.Definition, params map[string]any) *Task {
	t.Helper()
	task, err := g.New(def, params)
	if err != nil {
		t.Fatalf("new %s: %v", def.Type, err)
	}
	return task
}

func mustID(t *testing.T, task *Task) core.Identity {
	t.Helper()
	id, err := task.Identity()
	if err != nil {
		t.Fatalf("identity of %s: %v", task.Label(), err)
	}
	return id
}

func mustValidate(t *testing.T, g *Graph, roots ...*Task) *Plan {
	t.Helper()
	p, err := g.Validate(roots...)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return p
}

func mustExecute(t *testing.T, store CompletionStore, p *Plan, opts ...Option) *Report {
	t.Helper()
	e, err := NewExecutor(store, opts...)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	rep, err := e.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return rep
}

func taskReport(t *testing.T, rep *Report, id core.Identity) TaskReport {
	t.Helper()
	tr, ok := rep.Task(id)
	if !ok {
		t.Fatalf("no report for %s", id)
	}
	return tr
}

func errRun(msg string) core.RunFunc {
	return func(context.Context, core.Inputs, core.Params) (core.Outputs, error) {
		return nil, fmt.Errorf("%s", msg)
	}
}
