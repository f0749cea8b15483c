package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/infra/storage"
)

type MemoryStorage struct {
	actions map[string]domain.PendingAction
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		actions: make(map[string]domain.PendingAction),
	}
}

// -----------------------------------------------------------------------------
// Action Repository
// -----------------------------------------------------------------------------

type ActionRepo struct {
	store *MemoryStorage
}

func NewActionRepo(store *MemoryStorage) *ActionRepo {
	return &ActionRepo{store: store}
}

func (r *ActionRepo) SaveAction(ctx context.Context, action domain.PendingAction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if prev, ok := r.store.actions[action.ID]; ok && action.CreatedAt.IsZero() {
		action.CreatedAt = prev.CreatedAt
	}
	r.store.actions[action.ID] = action
	return nil
}

func (r *ActionRepo) GetAction(ctx context.Context, id string) (*domain.PendingAction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.actions[id]
	if !ok {
		return nil, storage.ErrActionNotFound
	}
	return &a, nil
}

func (r *ActionRepo) ListActions(ctx context.Context, filter storage.ActionFilter) ([]domain.PendingAction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.PendingAction
	for _, a := range r.store.actions {
		if filter.Kind != "" && a.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.TargetID != "" && a.TargetID != filter.TargetID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit := filter.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ActionRepo) CountByStatus(ctx context.Context) (map[domain.ActionStatus]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.ActionStatus]int)
	for _, a := range r.store.actions {
		counts[a.Status]++
	}
	return counts, nil
}
