package settings

import (
	"context"
	"sync"
)

// MemoryBackend keeps the last written snapshot in process memory. It is
// the default backend, and what tests reach for when persistence is not
// the point.
type MemoryBackend struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Seed primes the backend with a snapshot as if it had been written.
func (b *MemoryBackend) Seed(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = snap.Clone()
}

// Load returns a copy of the current snapshot.
func (b *MemoryBackend) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Clone(), nil
}

// Write replaces the stored snapshot.
func (b *MemoryBackend) Write(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = snap.Clone()
	return nil
}
