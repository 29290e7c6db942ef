package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps the snapshot in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{snap: Snapshot{}}
}

func (b *MemoryBackend) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Clone(), nil
}

func (b *MemoryBackend) Save(ctx context.Context, s Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = s.Clone()
	return nil
}
