package dag

import (
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"

	"taskweave/internal/core"
)

type edgeIndex struct {
	from int
	to   int
}

// Node is one task of a Plan. Nodes are shared by every task instance
// with the same identity.
type Node struct {
	Identity   core.Identity
	Definition *core.Definition
	Params     core.Params
	Inputs     map[string]core.OutputRef

	canonicalIndex int
}

func (n *Node) Type() string { return n.Definition.Type }

// CanonicalIndex returns the node's position in the plan's canonical ordering.
func (n *Node) CanonicalIndex() int { return n.canonicalIndex }

// Edge is a dependency: To reads at least one input from From.
type Edge struct {
	From core.Identity
	To   core.Identity
}

// Plan is an immutable, validated execution unit.
//
// Nodes are deduplicated by identity and sorted by identity key, so the
// plan does not depend on declaration order. It is safe for concurrent
// read access.
type Plan struct {
	nodes []*Node // canonical order
	byID  map[core.Identity]*Node
	roots []core.Identity

	edges    []edgeIndex // sorted
	outgoing [][]int     // by canonical index, sorted ascending
	incoming [][]int     // by canonical index, sorted ascending
	depth    []int       // by canonical index (longest path from a source)

	hash string
}

func newPlan(roots []*Task, tasks []*Task) *Plan {
	byID := make(map[core.Identity]*Node, len(tasks))
	nodes := make([]*Node, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := byID[t.id]; ok {
			continue
		}
		n := &Node{
			Identity:   t.id,
			Definition: t.def,
			Params:     t.params.Clone(),
			Inputs:     t.refs(),
		}
		byID[t.id] = n
		nodes = append(nodes, n)
	}

	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Identity.String() < nodes[j].Identity.String()
	})
	for i, n := range nodes {
		n.canonicalIndex = i
	}

	seen := make(map[edgeIndex]struct{})
	var edges []edgeIndex
	for _, n := range nodes {
		for _, ref := range n.Inputs {
			e := edgeIndex{from: byID[ref.Producer].canonicalIndex, to: n.canonicalIndex}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	})

	outgoing := make([][]int, len(nodes))
	incoming := make([][]int, len(nodes))
	for _, e := range edges {
		outgoing[e.from] = append(outgoing[e.from], e.to)
		incoming[e.to] = append(incoming[e.to], e.from)
	}
	for i := range incoming {
		sort.Ints(incoming[i])
	}

	rootIDs := make([]core.Identity, 0, len(roots))
	rootSeen := make(map[core.Identity]bool, len(roots))
	for _, r := range roots {
		if !rootSeen[r.id] {
			rootSeen[r.id] = true
			rootIDs = append(rootIDs, r.id)
		}
	}

	p := &Plan{
		nodes:    nodes,
		byID:     byID,
		roots:    rootIDs,
		edges:    edges,
		outgoing: outgoing,
		incoming: incoming,
	}
	p.depth = p.computeDepth()
	p.hash = p.computeHash()
	return p
}

// Hash returns the stable identity of the plan.
func (p *Plan) Hash() string { return p.hash }

func (p *Plan) Len() int { return len(p.nodes) }

// Node returns a node by identity.
func (p *Plan) Node(id core.Identity) (*Node, bool) {
	n, ok := p.byID[id]
	return n, ok
}

// Nodes returns the nodes in canonical order.
func (p *Plan) Nodes() []*Node {
	out := make([]*Node, len(p.nodes))
	copy(out, p.nodes)
	return out
}

// Roots returns the distinct root identities in the order given to Validate.
func (p *Plan) Roots() []core.Identity {
	out := make([]core.Identity, len(p.roots))
	copy(out, p.roots)
	return out
}

// Edges returns the dependency edges in canonical order.
func (p *Plan) Edges() []Edge {
	out := make([]Edge, 0, len(p.edges))
	for _, e := range p.edges {
		out = append(out, Edge{From: p.nodes[e.from].Identity, To: p.nodes[e.to].Identity})
	}
	return out
}

// Producers returns the identities id reads from, in canonical order.
func (p *Plan) Producers(id core.Identity) []core.Identity {
	return p.identities(id, p.incoming)
}

// Consumers returns the identities reading from id, in canonical order.
func (p *Plan) Consumers(id core.Identity) []core.Identity {
	return p.identities(id, p.outgoing)
}

func (p *Plan) identities(id core.Identity, adj [][]int) []core.Identity {
	n, ok := p.byID[id]
	if !ok {
		return nil
	}
	out := make([]core.Identity, 0, len(adj[n.canonicalIndex]))
	for _, i := range adj[n.canonicalIndex] {
		out = append(out, p.nodes[i].Identity)
	}
	return out
}

// Depth returns the length of the longest path from any source to id.
func (p *Plan) Depth(id core.Identity) (int, bool) {
	n, ok := p.byID[id]
	if !ok {
		return 0, false
	}
	return p.depth[n.canonicalIndex], true
}

// TopologicalOrder returns a deterministic topological ordering.
func (p *Plan) TopologicalOrder() []core.Identity {
	order := p.topoOrderIndices()
	out := make([]core.Identity, 0, len(order))
	for _, idx := range order {
		out = append(out, p.nodes[idx].Identity)
	}
	return out
}

func (p *Plan) computeDepth() []int {
	depth := make([]int, len(p.nodes))
	for _, u := range p.topoOrderIndices() {
		maxParent := 0
		for _, parent := range p.incoming[u] {
			if cand := depth[parent] + 1; cand > maxParent {
				maxParent = cand
			}
		}
		depth[u] = maxParent
	}
	return depth
}

// computeHash hashes node identities and edges in canonical order with
// length-prefixed fields.
func (p *Plan) computeHash() string {
	h := blake3.New()

	var lenBuf [8]byte
	writeUint := func(v int) {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(v))
		_, _ = h.Write(lenBuf[:])
	}
	writeField := func(data string) {
		writeUint(len(data))
		_, _ = h.Write([]byte(data))
	}

	writeUint(len(p.nodes))
	for _, n := range p.nodes {
		writeField(n.Identity.Hash())
	}
	writeUint(len(p.edges))
	for _, e := range p.edges {
		writeUint(e.from)
		writeUint(e.to)
	}
	return hex.EncodeToString(h.Sum(nil))
}
