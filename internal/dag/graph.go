package dag

import (
	"sort"

	"taskweave/internal/core"
)

// Graph owns the task instances declared by one build.
//
// A Graph is not safe for concurrent construction. Tasks frozen by
// Validate or Task.Identity are read-only and may be shared freely.
type Graph struct {
	tasks []*Task
}

func NewGraph() *Graph { return &Graph{} }

// Tasks returns the tasks in creation order.
func (g *Graph) Tasks() []*Task {
	out := make([]*Task, len(g.tasks))
	copy(out, g.tasks)
	return out
}

func (g *Graph) Len() int { return len(g.tasks) }

// Task is one configured instance of a Definition inside a Graph.
type Task struct {
	graph  *Graph
	index  int
	def    *core.Definition
	params core.Params
	inputs map[string]Output

	frozen bool
	id     core.Identity
}

// Output names an output slot of a task in the same graph. It is the handle
// passed to Bind; the zero Output is unbound.
type Output struct {
	task *Task
	slot string
}

func (o Output) Task() *Task  { return o.task }
func (o Output) Slot() string { return o.slot }
func (o Output) IsZero() bool { return o.task == nil }

// New adds an instance of def to the graph.
//
// params are checked against the definition's schema and defaults are
// applied; unknown names, wrong kinds and missing required parameters fail.
func (g *Graph) New(def *core.Definition, params map[string]any) (*Task, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	p, err := def.ResolveParams(params)
	if err != nil {
		return nil, err
	}
	t := &Task{
		graph:  g,
		index:  len(g.tasks),
		def:    def,
		params: p,
		inputs: make(map[string]Output),
	}
	g.tasks = append(g.tasks, t)
	return t, nil
}

// Set assigns a parameter. It fails with core.ErrFrozen once the task's
// identity has been computed.
func (t *Task) Set(name string, value any) error {
	if t.frozen {
		return core.Errorf(core.ErrFrozen, "%s: cannot set parameter %q", t.Label(), name)
	}
	v, err := t.def.CheckParam(name, value)
	if err != nil {
		return err
	}
	t.params[name] = v
	return nil
}

// Out returns a handle to one of the task's output slots. The slot is
// checked when the handle is bound.
func (t *Task) Out(slot string) Output { return Output{task: t, slot: slot} }

func (t *Task) Definition() *core.Definition { return t.def }
func (t *Task) Type() string                 { return t.def.Type }
func (t *Task) Frozen() bool                 { return t.frozen }
func (t *Task) Params() core.Params          { return t.params.Clone() }

// Input returns the binding of an input slot.
func (t *Task) Input(slot string) (Output, bool) {
	o, ok := t.inputs[slot]
	return o, ok
}

// Label renders the task by type and parameters. Unlike Identity it is
// defined for every task, including members of a cycle.
func (t *Task) Label() string { return core.Label(t.def.Type, t.params) }

// boundSlots returns the bound input slot names in sorted order.
func (t *Task) boundSlots() []string {
	slots := make([]string, 0, len(t.inputs))
	for s := range t.inputs {
		slots = append(slots, s)
	}
	sort.Strings(slots)
	return slots
}

func sortedSlots(refs map[string]core.OutputRef) []string {
	slots := make([]string, 0, len(refs))
	for s := range refs {
		slots = append(slots, s)
	}
	sort.Strings(slots)
	return slots
}

// Bind wires out into consumer's input slot. It only records the edge.
//
// A later Bind of the same slot replaces the earlier one, up until the
// consumer is frozen.
func (g *Graph) Bind(consumer *Task, slot string, out Output) error {
	if consumer == nil || out.task == nil {
		return invalidf("bind %q: nil task", slot)
	}
	if consumer.graph != g {
		return foreignf("consumer %s", consumer.Label())
	}
	if out.task.graph != g {
		return foreignf("producer %s", out.task.Label())
	}
	if consumer.frozen {
		return core.Errorf(core.ErrFrozen, "%s: cannot bind input %q", consumer.Label(), slot)
	}

	in, ok := consumer.def.Input(slot)
	if !ok {
		return core.Errorf(core.ErrUnknownSlot, "%s has no input %q", consumer.def.Type, slot)
	}
	produced, ok := out.task.def.Output(out.slot)
	if !ok {
		return core.Errorf(core.ErrUnknownSlot, "%s has no output %q", out.task.def.Type, out.slot)
	}
	if in.Kind != core.KindAny && produced.Kind != core.KindAny && in.Kind != produced.Kind {
		return core.Errorf(core.ErrTypeMismatch, "%s.%s (%s) <- %s.%s (%s)",
			consumer.def.Type, slot, in.Kind, out.task.def.Type, out.slot, produced.Kind)
	}

	consumer.inputs[slot] = out
	return nil
}

// Identity returns the task's identity, computing it on first use.
//
// Computing the identity freezes the task and every producer it reads
// from, transitively. It fails with a *CycleError if the task reaches
// itself. Unbound required inputs are reported by Validate, not here.
func (t *Task) Identity() (core.Identity, error) {
	if t.frozen {
		return t.id, nil
	}
	if _, err := walk(t.graph, []*Task{t}); err != nil {
		return core.Identity{}, err
	}
	return t.freeze(), nil
}

// freeze computes identities bottom-up. The caller guarantees acyclicity.
func (t *Task) freeze() core.Identity {
	if t.frozen {
		return t.id
	}
	refs := make(map[string]core.OutputRef, len(t.inputs))
	for slot, out := range t.inputs {
		refs[slot] = core.OutputRef{Producer: out.task.freeze(), Slot: out.slot}
	}
	t.id = core.ComputeIdentity(t.def.Type, t.params, refs)
	t.frozen = true
	return t.id
}

// refs returns the bound inputs of a frozen task as identity references.
func (t *Task) refs() map[string]core.OutputRef {
	refs := make(map[string]core.OutputRef, len(t.inputs))
	for slot, out := range t.inputs {
		refs[slot] = core.OutputRef{Producer: out.task.id, Slot: out.slot}
	}
	return refs
}
