package dag

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"taskweave/internal/core"
	"taskweave/internal/log"
)

// Executor runs plans against a CompletionStore.
//
// An Executor holds no per-run state and may run several plans
// concurrently.
type Executor struct {
	store       CompletionStore
	resolver    OutputResolver
	observer    Observer
	logger      *log.Logger
	concurrency int
}

type Option func(*Executor)

// WithConcurrency bounds the number of tasks running at once. Values
// below 1 are ignored. The default is 1.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithResolver sets the resolver for outputs of producers that were not run
// in the current execution.
func WithResolver(r OutputResolver) Option {
	return func(e *Executor) { e.resolver = r }
}

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an executor over store.
//
// Without WithResolver, references are resolved from the store when it
// implements OutputLoader.
func NewExecutor(store CompletionStore, opts ...Option) (*Executor, error) {
	if store == nil {
		return nil, fmt.Errorf("nil completion store")
	}
	e := &Executor{
		store:       store,
		logger:      log.Discard(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		if loader, ok := store.(OutputLoader); ok {
			e.resolver = LoaderResolver{Loader: loader}
		} else {
			e.resolver = unresolvable
		}
	}
	return e, nil
}

// Execute builds a plan from roots and runs it.
func Execute(ctx context.Context, store CompletionStore, concurrency int, roots ...*Task) (*Report, error) {
	if len(roots) == 0 || roots[0] == nil {
		return nil, invalidf("no root tasks")
	}
	plan, err := roots[0].graph.Validate(roots...)
	if err != nil {
		return nil, err
	}
	e, err := NewExecutor(store, WithConcurrency(concurrency))
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan)
}

type taskResult struct {
	id      core.Identity
	outputs core.Outputs
	cause   Cause
	err     error
}

// run is the per-Execute state. It is owned by the coordinating goroutine;
// workers only see copies of what they need.
type run struct {
	*Executor
	plan    *Plan
	state   ExecutionState
	report  *Report
	outputs map[core.Identity]core.Outputs
	logger  *log.Logger
}

// Execute runs every node of p that the store does not already hold.
//
// Task failures do not make Execute fail: they are recorded in the report
// and cascade to transitive consumers while independent branches continue.
// A non-nil error means the run was cut short: by ctx (the report then
// lists unstarted tasks as PENDING or READY, tasks interrupted while
// running as FAILED with CauseCancelled, and the error wraps ctx.Err())
// or by an internal invariant violation.
func (e *Executor) Execute(ctx context.Context, p *Plan) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p == nil {
		return nil, fmt.Errorf("nil plan")
	}

	r := &run{
		Executor: e,
		plan:     p,
		state:    NewExecutionState(p),
		report:   newReport(p),
		outputs:  make(map[core.Identity]core.Outputs),
		logger:   e.logger.With("plan", shortHash(p.Hash())),
	}
	r.logger.Info("execution started", "tasks", p.Len(), "concurrency", e.concurrency)

	if err := r.probe(ctx); err != nil {
		return r.report, err
	}
	if err := r.dispatch(ctx); err != nil {
		return r.report, err
	}

	s := r.report.Summary()
	r.logger.Info("execution finished",
		"executed", s.Executed, "skipped", s.Skipped, "failed", s.Failed, "cascaded", s.Cascaded, "cancelled", s.Cancelled, "pending", s.Pending)

	if err := ctx.Err(); err != nil {
		return r.report, fmt.Errorf("execution cancelled: %w", err)
	}
	return r.report, nil
}

// probe asks the store about every node. Queries run in parallel; results
// are applied in canonical order.
func (r *run) probe(ctx context.Context) error {
	type probeResult struct {
		done bool
		err  error
	}
	results := make([]probeResult, len(r.plan.nodes))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, n := range r.plan.nodes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			done, err := r.store.IsComplete(ctx, n.Identity)
			results[i] = probeResult{done: done, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("execution cancelled: %w", err)
	}

	var storeFailed []core.Identity
	for i, n := range r.plan.nodes {
		res := results[i]
		switch {
		case res.err != nil:
			if err := Transition(r.state, n.Identity, TaskPending, TaskFailed); err != nil {
				return err
			}
			r.fail(n.Identity, CauseStore, core.Identity{},
				&core.TaskError{Identity: n.Identity, Kind: ErrStore, Cause: res.err})
			storeFailed = append(storeFailed, n.Identity)
		case res.done:
			if err := Transition(r.state, n.Identity, TaskPending, TaskComplete); err != nil {
				return err
			}
			entry := r.report.entry(n.Identity)
			entry.State = TaskComplete
			entry.Skipped = true
			r.logger.Debug("task skipped", "type", n.Type(), "id", n.Identity.Short())
			r.emit(Event{Kind: EventSkipped, Identity: n.Identity})
		}
	}
	for _, id := range storeFailed {
		if err := r.cascade(id); err != nil {
			return err
		}
	}
	return nil
}

// dispatch is the coordinator loop: promote and start ready tasks up to the
// concurrency limit, then wait for one to finish.
func (r *run) dispatch(ctx context.Context) error {
	done := make(chan taskResult, len(r.plan.nodes))
	var g errgroup.Group
	inFlight := 0

	for {
		if ctx.Err() == nil {
			for _, id := range GetReadyTasks(r.plan, r.state) {
				if r.state[id] == TaskPending {
					if err := Transition(r.state, id, TaskPending, TaskReady); err != nil {
						return err
					}
					r.report.entry(id).State = TaskReady
				}
				if inFlight >= r.concurrency {
					continue
				}
				if err := r.start(ctx, &g, id, done); err != nil {
					return err
				}
				inFlight++
			}
		}
		if inFlight == 0 {
			break
		}

		res := <-done
		inFlight--
		if err := r.finish(ctx, res); err != nil {
			_ = g.Wait()
			return err
		}
	}
	_ = g.Wait()

	if ctx.Err() == nil {
		for id, st := range r.state {
			if !IsTerminal(st) {
				return fmt.Errorf("invariant violation: %s is %s with nothing left to run", id, st)
			}
		}
	}
	return nil
}

func (r *run) start(ctx context.Context, g *errgroup.Group, id core.Identity, done chan<- taskResult) error {
	if err := Transition(r.state, id, TaskReady, TaskRunning); err != nil {
		return err
	}
	node := r.plan.byID[id]
	r.report.entry(id).State = TaskRunning
	r.report.ExecutionOrder = append(r.report.ExecutionOrder, id)

	// Inputs produced in this run are copied here; the worker resolves the rest.
	known := make(core.Inputs, len(node.Inputs))
	for slot, ref := range node.Inputs {
		if outs, ok := r.outputs[ref.Producer]; ok {
			if v, ok := outs[ref.Slot]; ok {
				known[slot] = v
			}
		}
	}

	r.logger.Debug("task started", "type", node.Type(), "id", id.Short())
	r.emit(Event{Kind: EventStarted, Identity: id})
	g.Go(func() error {
		done <- r.runTask(ctx, node, known)
		return nil
	})
	return nil
}

// runTask executes one node on a worker goroutine.
func (r *run) runTask(ctx context.Context, n *Node, in core.Inputs) (res taskResult) {
	res.id = n.Identity
	defer func() {
		if p := recover(); p != nil {
			res = taskResult{
				id:    n.Identity,
				cause: CauseRun,
				err:   core.NewTaskError(n.Identity, fmt.Errorf("panic: %v", p)),
			}
		}
	}()

	for _, slot := range sortedSlots(n.Inputs) {
		if _, ok := in[slot]; ok {
			continue
		}
		ref := n.Inputs[slot]
		v, err := r.resolver.Resolve(ctx, ref)
		if err == nil && !v.IsValid() {
			err = core.Errorf(core.ErrUnresolvable, "%s resolved to an invalid value", ref)
		}
		if err != nil {
			res.cause = CauseUnresolvable
			res.err = &core.TaskError{Identity: n.Identity, Kind: core.ErrUnresolvable, Cause: fmt.Errorf("input %q: %w", slot, err)}
			return res
		}
		in[slot] = v
	}

	out, err := n.Definition.Run(ctx, in, n.Params.Clone())
	if err != nil {
		res.cause = CauseRun
		res.err = core.NewTaskError(n.Identity, err)
		return res
	}
	if err := n.Definition.CheckOutputs(out); err != nil {
		res.cause = CauseRun
		res.err = core.NewTaskError(n.Identity, err)
		return res
	}
	if err := r.store.MarkComplete(ctx, n.Identity, out); err != nil {
		res.cause = CauseStore
		res.err = &core.TaskError{Identity: n.Identity, Kind: ErrStore, Cause: err}
		return res
	}
	res.outputs = out
	return res
}

// finish commits a worker result.
func (r *run) finish(ctx context.Context, res taskResult) error {
	node := r.plan.byID[res.id]
	if res.err == nil {
		if err := Transition(r.state, res.id, TaskRunning, TaskComplete); err != nil {
			return err
		}
		r.outputs[res.id] = res.outputs
		entry := r.report.entry(res.id)
		entry.State = TaskComplete
		entry.Outputs = res.outputs
		r.logger.Info("task complete", "type", node.Type(), "id", res.id.Short())
		r.emit(Event{Kind: EventCompleted, Identity: res.id, Outputs: res.outputs})
		return nil
	}

	if err := Transition(r.state, res.id, TaskRunning, TaskFailed); err != nil {
		return err
	}
	if cerr := ctx.Err(); cerr != nil && errors.Is(res.err, cerr) {
		// Interrupted, not failed: consumers are left for the next run.
		r.fail(res.id, CauseCancelled, core.Identity{}, res.err)
		return nil
	}
	r.fail(res.id, res.cause, core.Identity{}, res.err)
	return r.cascade(res.id)
}

// fail records a FAILED outcome. The state map must already say FAILED.
func (r *run) fail(id core.Identity, cause Cause, upstream core.Identity, err error) {
	entry := r.report.entry(id)
	entry.State = TaskFailed
	entry.Cause = cause
	entry.Upstream = upstream
	entry.Err = err

	node := r.plan.byID[id]
	switch cause {
	case CauseUpstream:
		r.logger.Warn("task not run: upstream failed", "type", node.Type(), "id", id.Short(), "upstream", upstream.Short())
	case CauseCancelled:
		r.logger.Warn("task cancelled", "type", node.Type(), "id", id.Short())
	default:
		r.logger.WithError(err).Warn("task failed", "type", node.Type(), "id", id.Short(), "cause", string(cause))
	}
	r.emit(Event{Kind: EventFailed, Identity: id, Cause: cause, Upstream: upstream, Err: err})
}

func (r *run) cascade(id core.Identity) error {
	cascaded, err := FailAndPropagate(r.plan, r.state, id)
	for _, cid := range cascaded {
		r.fail(cid, CauseUpstream, id, &core.TaskError{
			Identity: cid,
			Kind:     core.ErrUpstreamFailed,
			Cause:    fmt.Errorf("upstream %s failed", id),
		})
	}
	return err
}

func (r *run) emit(e Event) {
	if r.observer != nil {
		r.observer.Observe(e)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
