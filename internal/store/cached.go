package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"taskweave/internal/core"
	"taskweave/internal/dag"
)

// Cached is a read-through LRU in front of a slower store. Only positive
// answers are cached: a completion, once recorded, never goes away, but
// an identity reported incomplete may be completed by another process.
type Cached struct {
	inner   dag.CompletionStore
	loader  dag.OutputLoader
	entries *lru.Cache[core.Identity, core.Outputs]
}

// NewCached wraps inner. Outputs are loaded through inner when it
// implements dag.OutputLoader.
func NewCached(inner dag.CompletionStore, size int) (*Cached, error) {
	if inner == nil {
		return nil, fmt.Errorf("nil inner store")
	}
	if size < 1 {
		size = DefaultMemorySize
	}
	c, err := lru.New[core.Identity, core.Outputs](size)
	if err != nil {
		return nil, fmt.Errorf("init store cache: %w", err)
	}
	loader, _ := inner.(dag.OutputLoader)
	return &Cached{inner: inner, loader: loader, entries: c}, nil
}

func (c *Cached) IsComplete(ctx context.Context, id core.Identity) (bool, error) {
	if c.entries.Contains(id) {
		return true, nil
	}
	ok, err := c.inner.IsComplete(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	// nil outputs: complete, not loaded yet.
	c.entries.Add(id, nil)
	return true, nil
}

func (c *Cached) MarkComplete(ctx context.Context, id core.Identity, outputs core.Outputs) error {
	if err := c.inner.MarkComplete(ctx, id, outputs); err != nil {
		return err
	}
	c.entries.Add(id, outputs.Clone())
	return nil
}

func (c *Cached) LoadOutputs(ctx context.Context, id core.Identity) (core.Outputs, error) {
	if outs, ok := c.entries.Get(id); ok && outs != nil {
		return outs.Clone(), nil
	}
	if c.loader == nil {
		return nil, notFound(id)
	}
	outs, err := c.loader.LoadOutputs(ctx, id)
	if err != nil {
		return nil, err
	}
	c.entries.Add(id, outs.Clone())
	return outs, nil
}

// Inner returns the wrapped store.
func (c *Cached) Inner() dag.CompletionStore { return c.inner }
