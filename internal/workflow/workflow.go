// Package workflow loads task graphs declared in YAML files.
//
// A workflow file names its tasks, gives each a registered type,
// parameters and input bindings, and lists the root tasks:
//
//	name: example
//	tasks:
//	  t1a:
//	    type: text
//	    params: {text: hej_hopp}
//	  t1b:
//	    type: text
//	    params: {text: hopp_hej}
//	  mrg1:
//	    type: merge
//	    inputs: {in_data1: t1a.out_data1, in_data2: t1b.out_data1}
//	roots: [mrg1]
//
// Without roots, every task that no other task reads from is a root.
package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"taskweave/internal/core"
	"taskweave/internal/dag"
)

// ErrInvalidWorkflow marks a malformed workflow file.
var ErrInvalidWorkflow = errors.New("invalid workflow")

var taskNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)

type File struct {
	Name  string              `yaml:"name"`
	Tasks map[string]TaskSpec `yaml:"tasks"`
	Roots []string            `yaml:"roots"`
}

type TaskSpec struct {
	Type   string            `yaml:"type"`
	Params map[string]any    `yaml:"params"`
	Inputs map[string]string `yaml:"inputs"`
}

// Ref is a parsed "task.slot" input reference.
type Ref struct {
	Task string
	Slot string
}

func (r Ref) String() string { return r.Task + "." + r.Slot }

func ParseRef(s string) (Ref, error) {
	task, slot, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || task == "" || slot == "" {
		return Ref{}, fmt.Errorf("%w: input reference %q is not task.slot", ErrInvalidWorkflow, s)
	}
	return Ref{Task: task, Slot: slot}, nil
}

// Load reads and validates the workflow at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a single YAML document. Unknown fields are
// rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidWorkflow)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: more than one document", ErrInvalidWorkflow)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names and references. Types, parameters and slots are
// checked against definitions by Build.
func (f *File) Validate() error {
	if len(f.Tasks) == 0 {
		return fmt.Errorf("%w: no tasks", ErrInvalidWorkflow)
	}
	for _, name := range f.TaskNames() {
		spec := f.Tasks[name]
		if !taskNamePattern.MatchString(name) {
			return fmt.Errorf("%w: invalid task name %q", ErrInvalidWorkflow, name)
		}
		if strings.TrimSpace(spec.Type) == "" {
			return fmt.Errorf("%w: task %q has no type", ErrInvalidWorkflow, name)
		}
		for _, slot := range sortedKeys(spec.Inputs) {
			ref, err := ParseRef(spec.Inputs[slot])
			if err != nil {
				return fmt.Errorf("task %q input %q: %w", name, slot, err)
			}
			if _, ok := f.Tasks[ref.Task]; !ok {
				return fmt.Errorf("%w: task %q input %q reads from unknown task %q", ErrInvalidWorkflow, name, slot, ref.Task)
			}
		}
	}
	seen := map[string]bool{}
	for _, root := range f.Roots {
		if _, ok := f.Tasks[root]; !ok {
			return fmt.Errorf("%w: unknown root %q", ErrInvalidWorkflow, root)
		}
		if seen[root] {
			return fmt.Errorf("%w: root %q listed twice", ErrInvalidWorkflow, root)
		}
		seen[root] = true
	}
	return nil
}

// TaskNames returns the task names, sorted.
func (f *File) TaskNames() []string { return sortedKeys(f.Tasks) }

// RootNames returns the declared roots, or the tasks nobody reads from.
func (f *File) RootNames() []string {
	if len(f.Roots) > 0 {
		return append([]string(nil), f.Roots...)
	}
	read := map[string]bool{}
	for _, spec := range f.Tasks {
		for _, in := range spec.Inputs {
			if ref, err := ParseRef(in); err == nil {
				read[ref.Task] = true
			}
		}
	}
	var roots []string
	for _, name := range f.TaskNames() {
		if !read[name] {
			roots = append(roots, name)
		}
	}
	return roots
}

// Workflow is a built workflow: a fresh graph with named tasks.
type Workflow struct {
	Name  string
	Graph *dag.Graph
	Roots []*dag.Task
	tasks map[string]*dag.Task
	names map[*dag.Task]string
}

// Task returns the task declared under name.
func (w *Workflow) Task(name string) (*dag.Task, bool) {
	t, ok := w.tasks[name]
	return t, ok
}

// NameOf returns the declared name of t.
func (w *Workflow) NameOf(t *dag.Task) string { return w.names[t] }

// Plan validates the graph from the roots.
func (w *Workflow) Plan() (*dag.Plan, error) { return w.Graph.Validate(w.Roots...) }

// Build creates a fresh graph from f using the definitions in reg.
// Tasks are created in name order, then bound.
func (f *File) Build(reg *Registry) (*Workflow, error) {
	w := &Workflow{
		Name:  f.Name,
		tasks: make(map[string]*dag.Task, len(f.Tasks)),
		names: make(map[*dag.Task]string, len(f.Tasks)),
	}
	g, roots, err := dag.Build(func(g *dag.Graph) ([]*dag.Task, error) {
		for _, name := range f.TaskNames() {
			spec := f.Tasks[name]
			def, err := reg.mustLookup(spec.Type)
			if err != nil {
				return nil, fmt.Errorf("task %q: %w", name, err)
			}
			t, err := g.New(def, spec.Params)
			if err != nil {
				return nil, fmt.Errorf("task %q: %w", name, err)
			}
			w.tasks[name] = t
			w.names[t] = name
		}
		for _, name := range f.TaskNames() {
			spec := f.Tasks[name]
			for _, slot := range sortedKeys(spec.Inputs) {
				ref, err := ParseRef(spec.Inputs[slot])
				if err != nil {
					return nil, fmt.Errorf("task %q: %w", name, err)
				}
				if err := g.Bind(w.tasks[name], slot, w.tasks[ref.Task].Out(ref.Slot)); err != nil {
					return nil, fmt.Errorf("task %q input %q <- %s: %w", name, slot, ref, err)
				}
			}
		}
		var roots []*dag.Task
		for _, name := range f.RootNames() {
			roots = append(roots, w.tasks[name])
		}
		if len(roots) == 0 {
			return nil, fmt.Errorf("%w: no root tasks (every task is read by another)", ErrInvalidWorkflow)
		}
		return roots, nil
	})
	if err != nil {
		return nil, err
	}
	w.Graph, w.Roots = g, roots
	return w, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entry is one declared task and its identity.
type Entry struct {
	Name     string
	Type     string
	Identity core.Identity
}

// Entries returns every declared task with its identity, in name order.
// Identities freeze the tasks, so call it after Plan.
func (w *Workflow) Entries() ([]Entry, error) {
	out := make([]Entry, 0, len(w.tasks))
	for _, name := range sortedKeys(w.tasks) {
		t := w.tasks[name]
		id, err := t.Identity()
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		out = append(out, Entry{Name: name, Type: t.Type(), Identity: id})
	}
	return out, nil
}

// PlanEntries returns the declared tasks that are nodes of p, in name
// order. Unlike Entries it computes no identity, so tasks the roots do not
// reach never make it fail.
func (w *Workflow) PlanEntries(p *dag.Plan) []Entry {
	var out []Entry
	for _, name := range sortedKeys(w.tasks) {
		t := w.tasks[name]
		if !t.Frozen() {
			continue
		}
		id, err := t.Identity()
		if err != nil {
			continue
		}
		if _, ok := p.Node(id); ok {
			out = append(out, Entry{Name: name, Type: t.Type(), Identity: id})
		}
	}
	return out
}
