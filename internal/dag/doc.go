// Package dag builds, validates and executes graphs of task instances.
//
// It is split into:
//   - Graph: a per-build arena owning mutable Task instances and their input
//     bindings. No state is shared between graphs.
//   - Plan: the immutable, validated subgraph reachable from a set of roots,
//     with tasks deduplicated by identity and held in canonical order.
//   - Executor: runs a Plan against a CompletionStore, skipping every task
//     whose identity is already complete and cascading failures to
//     transitive consumers.
//
// Identities are invariant to construction order. The plan hash is computed
// from identities and edges only.
package dag
