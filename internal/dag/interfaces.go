package dag

import (
	"context"

	"taskweave/internal/core"
)

// CompletionStore records which identities have already produced results.
//
// Implementations must be safe for concurrent use: IsComplete is called
// for every plan node, MarkComplete from worker goroutines.
type CompletionStore interface {
	IsComplete(ctx context.Context, id core.Identity) (bool, error)
	MarkComplete(ctx context.Context, id core.Identity, outputs core.Outputs) error
}

// OutputResolver materializes an output reference for a consumer whose
// producer was not run in the current execution. Failures should wrap
// core.ErrUnresolvable.
type OutputResolver interface {
	Resolve(ctx context.Context, ref core.OutputRef) (core.Value, error)
}

// OutputLoader is implemented by stores that keep the outputs passed to
// MarkComplete. An executor over such a store resolves references from it
// by default.
type OutputLoader interface {
	LoadOutputs(ctx context.Context, id core.Identity) (core.Outputs, error)
}

// ResolverFunc adapts a function to OutputResolver.
type ResolverFunc func(ctx context.Context, ref core.OutputRef) (core.Value, error)

func (f ResolverFunc) Resolve(ctx context.Context, ref core.OutputRef) (core.Value, error) {
	return f(ctx, ref)
}

// LoaderResolver resolves references by loading the producer's outputs.
type LoaderResolver struct {
	Loader OutputLoader
}

func (r LoaderResolver) Resolve(ctx context.Context, ref core.OutputRef) (core.Value, error) {
	outs, err := r.Loader.LoadOutputs(ctx, ref.Producer)
	if err != nil {
		return core.Value{}, &core.Error{Kind: core.ErrUnresolvable, Msg: ref.String() + ": " + err.Error()}
	}
	v, ok := outs[ref.Slot]
	if !ok || !v.IsValid() {
		return core.Value{}, core.Errorf(core.ErrUnresolvable, "%s: producer %s has no stored output %q", ref, ref.Producer.Short(), ref.Slot)
	}
	return v, nil
}

// unresolvable is the resolver of an executor whose store keeps no outputs.
var unresolvable = ResolverFunc(func(_ context.Context, ref core.OutputRef) (core.Value, error) {
	return core.Value{}, core.Errorf(core.ErrUnresolvable, "%s: no output resolver configured", ref)
})

// EventKind names an executor lifecycle event.
type EventKind string

const (
	// EventSkipped: the store reported the task complete; it is not run.
	EventSkipped EventKind = "skipped"
	EventStarted EventKind = "started"
	// EventCompleted: run succeeded and the store recorded it.
	EventCompleted EventKind = "completed"
	// EventFailed: the task ended FAILED. Cause tells why; for
	// CauseUpstream, Upstream is the failed task it depends on.
	EventFailed EventKind = "failed"
)

// Event is delivered to an Observer. Events are emitted from a single
// goroutine, in the order the executor commits state changes.
type Event struct {
	Kind     EventKind
	Identity core.Identity
	Cause    Cause
	Upstream core.Identity
	Outputs  core.Outputs
	Err      error
}

// Observer receives executor events. It must not block for long.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
