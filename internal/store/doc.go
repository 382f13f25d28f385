// Package store provides completion stores for the executor.
//
// Every store records, per task identity, that the task completed and the
// outputs it produced. Stores satisfy dag.CompletionStore and
// dag.OutputLoader and are safe for concurrent use.
package store
