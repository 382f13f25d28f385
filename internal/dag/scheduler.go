package dag

import (
	"sort"

	"taskweave/internal/core"
)

// GetReadyTasks returns the deterministically ordered identities that are
// eligible to run.
//
// Policy:
//   - A task is eligible iff it is READY, or PENDING with every producer COMPLETE.
//   - The returned list is sorted by (depth asc, identity key asc).
//
// This function is pure: it does not mutate plan or state.
func GetReadyTasks(p *Plan, state ExecutionState) []core.Identity {
	if p == nil {
		return nil
	}

	var ready []*Node
	for _, n := range p.nodes {
		switch state[n.Identity] {
		case TaskReady:
			ready = append(ready, n)
		case TaskPending:
			depsOK := true
			for _, parent := range p.incoming[n.canonicalIndex] {
				if state[p.nodes[parent].Identity] != TaskComplete {
					depsOK = false
					break
				}
			}
			if depsOK {
				ready = append(ready, n)
			}
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		a, b := ready[i], ready[j]
		if da, db := p.depth[a.canonicalIndex], p.depth[b.canonicalIndex]; da != db {
			return da < db
		}
		return a.Identity.String() < b.Identity.String()
	})

	out := make([]core.Identity, len(ready))
	for i, n := range ready {
		out[i] = n.Identity
	}
	return out
}
