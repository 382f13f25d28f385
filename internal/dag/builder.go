package dag

import "fmt"

// Builder declares task instances and their wiring on g and returns the
// workflow roots. It must not execute anything.
type Builder func(g *Graph) ([]*Task, error)

// Build runs b on a fresh Graph. Every call gets its own arena, so builds
// never share task instances.
func Build(b Builder) (*Graph, []*Task, error) {
	if b == nil {
		return nil, nil, invalidf("nil builder")
	}
	g := NewGraph()
	roots, err := b(g)
	if err != nil {
		return nil, nil, fmt.Errorf("build workflow: %w", err)
	}
	if len(roots) == 0 {
		return nil, nil, invalidf("builder returned no roots")
	}
	return g, roots, nil
}

// BuildPlan runs b and validates the result.
func BuildPlan(b Builder) (*Plan, error) {
	g, roots, err := Build(b)
	if err != nil {
		return nil, err
	}
	return g.Validate(roots...)
}
