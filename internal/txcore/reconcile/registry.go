package reconcile

import (
	"context"
	"sync"
)

// Registry enforces at most one active action per target key.
type Registry interface {
	// Reserve claims key for actionID. It reports false when another action holds it.
	Reserve(ctx context.Context, key, actionID string) (bool, error)

	// Release frees key if actionID holds it.
	Release(ctx context.Context, key, actionID string) error
}

// MemoryRegistry is a process-local Registry.
type MemoryRegistry struct {
	mu      sync.Mutex
	holders map[string]string
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{holders: make(map[string]string)}
}

func (r *MemoryRegistry) Reserve(_ context.Context, key, actionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.holders[key]; held {
		return false, nil
	}
	r.holders[key] = actionID
	return true, nil
}

func (r *MemoryRegistry) Release(_ context.Context, key, actionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.holders[key] == actionID {
		delete(r.holders, key)
	}
	return nil
}

// Held returns the number of reserved keys.
func (r *MemoryRegistry) Held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.holders)
}
