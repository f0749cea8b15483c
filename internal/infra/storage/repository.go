package storage

import (
	"context"
	"errors"

	"github.com/vietddude/commune/internal/core/domain"
)

var (
	// ErrActionNotFound is returned when an action id is unknown
	ErrActionNotFound = errors.New("action not found")
)

// ActionFilter narrows ListActions. Zero fields match everything.
type ActionFilter struct {
	Kind     domain.ActionKind
	Status   domain.ActionStatus
	TargetID string
	// Limit caps the result, newest first. Zero means DefaultListLimit.
	Limit int
}

const DefaultListLimit = 50

// ActionRepository records the history of pending actions
type ActionRepository interface {
	// SaveAction inserts or updates an action by id
	SaveAction(ctx context.Context, action domain.PendingAction) error

	// GetAction retrieves an action by id
	GetAction(ctx context.Context, id string) (*domain.PendingAction, error)

	// ListActions returns matching actions, most recently updated first
	ListActions(ctx context.Context, filter ActionFilter) ([]domain.PendingAction, error)

	// CountByStatus returns the number of actions in each status
	CountByStatus(ctx context.Context) (map[domain.ActionStatus]int, error)
}

// EffectiveLimit returns the limit to apply.
func (f ActionFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}
