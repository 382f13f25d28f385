// Package core provides the domain model of the task-graph core.
//
// It contains no execution logic. The pieces are:
//
//   - Value / Values: typed parameter and output values with a fixed,
//     type-tagged canonical encoding.
//   - Definition: a named unit of work with a parameter schema, named input
//     and output slots, and a RunFunc.
//   - Identity: a deterministic key derived from a task's type, canonicalized
//     parameters and bound inputs, plus its fixed-width blake3 hash.
//   - The error taxonomy shared by graph construction and execution.
//
// Determinism rules:
//
//  1. Parameters and inputs are ordered by name, never by assignment order.
//  2. Every encoded value carries its kind, so 1 and "1" never collide.
//  3. Nothing derived from pointers, map iteration or the current process
//     contributes to an Identity.
package core
