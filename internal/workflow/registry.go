package workflow

import (
	"fmt"
	"sort"

	"taskweave/internal/core"
)

// Registry maps type names to definitions. It is an explicit value passed
// to Build; there is no global registry.
type Registry struct {
	defs map[string]*core.Definition
}

// NewRegistry returns a registry holding defs.
func NewRegistry(defs ...*core.Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*core.Definition, len(defs))}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates def and adds it. Type names must be unique.
func (r *Registry) Register(def *core.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if _, dup := r.defs[def.Type]; dup {
		return core.Errorf(core.ErrInvalidDefinition, "type %q registered twice", def.Type)
	}
	r.defs[def.Type] = def
	return nil
}

func (r *Registry) Lookup(typeName string) (*core.Definition, bool) {
	d, ok := r.defs[typeName]
	return d, ok
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.defs))
	for t := range r.defs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) mustLookup(typeName string) (*core.Definition, error) {
	d, ok := r.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown task type %q (known: %v)", ErrInvalidWorkflow, typeName, r.Types())
	}
	return d, nil
}
