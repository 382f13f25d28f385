package store

import (
	"context"
	"sync"
)

// setup runs a one-time initialization, such as creating a bucket or a
// table, until it first succeeds. A failed attempt is retried by the next
// caller.
type setup struct {
	mu   sync.Mutex
	done bool
}

func (s *setup) do(ctx context.Context, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	if err := fn(ctx); err != nil {
		return err
	}
	s.done = true
	return nil
}
