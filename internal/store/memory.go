package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"taskweave/internal/core"
)

const DefaultMemorySize = 4096

// Memory is an in-process completion store holding at most size
// identities. When full, the least recently used completion is forgotten
// and that task runs again on its next execution.
type Memory struct {
	entries *lru.Cache[core.Identity, core.Outputs]
}

// NewMemory returns a Memory store. A size below 1 means DefaultMemorySize.
func NewMemory(size int) (*Memory, error) {
	if size < 1 {
		size = DefaultMemorySize
	}
	c, err := lru.New[core.Identity, core.Outputs](size)
	if err != nil {
		return nil, fmt.Errorf("init memory store: %w", err)
	}
	return &Memory{entries: c}, nil
}

func (m *Memory) IsComplete(_ context.Context, id core.Identity) (bool, error) {
	return m.entries.Contains(id), nil
}

func (m *Memory) MarkComplete(_ context.Context, id core.Identity, outputs core.Outputs) error {
	if id.IsZero() {
		return fmt.Errorf("zero identity")
	}
	m.entries.Add(id, outputs.Clone())
	return nil
}

func (m *Memory) LoadOutputs(_ context.Context, id core.Identity) (core.Outputs, error) {
	outs, ok := m.entries.Get(id)
	if !ok {
		return nil, notFound(id)
	}
	return outs.Clone(), nil
}

// Len reports the number of identities held.
func (m *Memory) Len() int { return m.entries.Len() }
