// Package view holds the per-view cache of entities with optimistic updates.
package view

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/vietddude/commune/internal/core/domain"
)

// Key identifies an entity. Task and expense ids are separate counters on-chain,
// so the type is part of the key.
type Key struct {
	Type domain.EntityType
	ID   string
}

func (k Key) String() string {
	return string(k.Type) + ":" + k.ID
}

// Undo reverts one Apply. The zero value is a no-op.
type Undo struct {
	key     Key
	seq     uint64
	prior   *domain.OptimisticEntity
	changed []string
}

// Key returns the entity the undo belongs to.
func (u Undo) Key() Key { return u.key }

type entry struct {
	entity  *domain.OptimisticEntity
	pending map[uint64]struct{}
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	entities  map[Key]*entry
	indicated map[Key]time.Time
	issued    map[Key]struct{}
	seq       uint64
	now       func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entities:  make(map[Key]*entry),
		indicated: make(map[Key]time.Time),
		issued:    make(map[Key]struct{}),
		now:       time.Now,
	}
}

// Get returns a copy of the entity.
func (s *Store) Get(key Key) (domain.OptimisticEntity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[key]
	if !ok {
		return domain.OptimisticEntity{}, false
	}
	return *e.entity.Clone(), true
}

// List returns copies of all entities of type t ordered by id.
func (s *Store) List(t domain.EntityType) []domain.OptimisticEntity {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.OptimisticEntity
	for k, e := range s.entities {
		if k.Type == t {
			out = append(out, *e.entity.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pending reports whether key has a mutation that is neither confirmed nor rolled back.
func (s *Store) Pending(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[key]
	return ok && len(e.pending) > 0
}

// Apply sets changes on the entity, creating it if absent, and marks it optimistic.
func (s *Store) Apply(key Key, changes map[string]any) Undo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(key, changes)
}

func (s *Store) applyLocked(key Key, changes map[string]any) Undo {
	s.seq++
	u := Undo{key: key, seq: s.seq}

	e, ok := s.entities[key]
	if ok {
		u.prior = e.entity.Clone()
	} else {
		e = &entry{entity: &domain.OptimisticEntity{
			ID:     key.ID,
			Type:   key.Type,
			Fields: make(map[string]any, len(changes)),
		}}
		s.entities[key] = e
	}
	if e.pending == nil {
		e.pending = make(map[uint64]struct{})
	}

	for field, v := range changes {
		u.changed = append(u.changed, field)
		e.entity.Fields[field] = v
	}
	e.entity.Status = domain.EntityOptimistic
	e.entity.MutatedAt = s.now()
	e.pending[u.seq] = struct{}{}
	return u
}

// NextPlaceholder returns an unused temp- key of type t without inserting it.
func (s *Store) NextPlaceholder(t domain.EntityType) Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextPlaceholderLocked(t)
}

func (s *Store) nextPlaceholderLocked(t domain.EntityType) Key {
	key := Key{Type: t, ID: domain.NewPlaceholderID(s.now())}
	for {
		_, taken := s.entities[key]
		_, issued := s.issued[key]
		if !taken && !issued {
			break
		}
		s.seq++
		key.ID = domain.NewPlaceholderID(s.now()) + "-" + strconv.FormatUint(s.seq, 10)
	}
	s.issued[key] = struct{}{}
	return key
}

// ForgetPlaceholder releases a key from NextPlaceholder that was never applied.
func (s *Store) ForgetPlaceholder(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[key]; !ok {
		delete(s.issued, key)
	}
}

// InsertPlaceholder adds a locally created entity under a temp- id.
func (s *Store) InsertPlaceholder(t domain.EntityType, fields map[string]any) (domain.OptimisticEntity, Undo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.nextPlaceholderLocked(t)
	u := s.applyLocked(key, fields)
	return *s.entities[key].entity.Clone(), u
}

// Rollback restores the fields changed by u. Fields changed by later mutations
// that are still pending keep their newer values.
func (s *Store) Rollback(u Undo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[u.key]
	if !ok || u.seq == 0 {
		return
	}
	if _, live := e.pending[u.seq]; !live {
		return
	}
	delete(e.pending, u.seq)

	if u.prior == nil && len(e.pending) == 0 {
		delete(s.entities, u.key)
		delete(s.indicated, u.key)
		delete(s.issued, u.key)
		return
	}

	if !s.supersededLocked(u) {
		for _, field := range u.changed {
			if u.prior != nil {
				if v, had := u.prior.Fields[field]; had {
					e.entity.Fields[field] = v
					continue
				}
			}
			delete(e.entity.Fields, field)
		}
	}
	if len(e.pending) == 0 && u.prior != nil {
		e.entity.Status = u.prior.Status
	}
	e.entity.MutatedAt = s.now()
	delete(s.indicated, u.key)
}

// supersededLocked reports whether a later mutation on the same entity is still
// pending. That mutation owns the current field values.
func (s *Store) supersededLocked(u Undo) bool {
	e := s.entities[u.key]
	for seq := range e.pending {
		if seq > u.seq {
			return true
		}
	}
	return false
}

// Confirm resolves u as accepted on-chain. The entity becomes confirmed once no
// other mutation on it is pending.
func (s *Store) Confirm(u Undo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[u.key]
	if !ok {
		return
	}
	if _, live := e.pending[u.seq]; !live {
		return
	}
	delete(e.pending, u.seq)
	if len(e.pending) == 0 {
		e.entity.Status = domain.EntityConfirmed
	}
}

// Abandon stops tracking u without committing or reverting its fields. The next
// refetch settles the entity.
func (s *Store) Abandon(u Undo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entities[u.key]; ok {
		delete(e.pending, u.seq)
	}
	delete(s.indicated, u.key)
}

// Replace loads an authoritative snapshot. Entities with pending mutations, or
// mutated after snap.FetchedAt, are kept. Other entities missing from the
// snapshot, including placeholders, are dropped.
func (s *Store) Replace(snap *domain.Snapshot) {
	if snap == nil {
		return
	}
	fresh := Entities(snap)

	s.mu.Lock()
	defer s.mu.Unlock()

	keep := func(e *entry) bool {
		return len(e.pending) > 0 || e.entity.MutatedAt.After(snap.FetchedAt)
	}

	seen := make(map[Key]struct{}, len(fresh))
	for i := range fresh {
		ent := fresh[i]
		key := Key{Type: ent.Type, ID: ent.ID}
		seen[key] = struct{}{}
		if cur, ok := s.entities[key]; ok && keep(cur) {
			continue
		}
		s.entities[key] = &entry{entity: &ent}
	}

	for key, e := range s.entities {
		if _, ok := seen[key]; ok {
			continue
		}
		if !keep(e) {
			delete(s.entities, key)
			delete(s.issued, key)
		}
	}
}

// ShowSuccess raises the transient success indicator for key.
func (s *Store) ShowSuccess(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indicated[key] = s.now()
}

// ClearSuccess lowers the indicator.
func (s *Store) ClearSuccess(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indicated, key)
}

// Succeeded reports whether the indicator is raised.
func (s *Store) Succeeded(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.indicated[key]
	return ok
}
