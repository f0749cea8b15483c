package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PlaceholderPrefix marks locally generated ids of not-yet-created entities.
const PlaceholderPrefix = "temp-"

// NewPlaceholderID returns a local id for an entity awaiting its create transaction.
func NewPlaceholderID(now time.Time) string {
	return PlaceholderPrefix + strconv.FormatInt(now.UnixNano(), 10)
}

// IsPlaceholderID reports whether id was generated locally.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// ChoreInstanceID builds the compound id "scheduleId-periodNumber".
func ChoreInstanceID(scheduleID, period uint64) string {
	return fmt.Sprintf("%d-%d", scheduleID, period)
}

// ParseChoreInstanceID splits a compound chore instance id.
func ParseChoreInstanceID(id string) (scheduleID, period uint64, err error) {
	parts := strings.Split(id, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid chore instance id: %s", id)
	}
	scheduleID, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid schedule id: %w", err)
	}
	period, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period number: %w", err)
	}
	return scheduleID, period, nil
}

// EntityType names the view models that receive optimistic updates.
type EntityType string

const (
	EntityChoreInstance EntityType = "chore_instance"
	EntityTask          EntityType = "task"
	EntityExpense       EntityType = "expense"
	EntityMember        EntityType = "member"
	EntityChoreSchedule EntityType = "chore_schedule"
	EntityCommune       EntityType = "commune"
	EntityAllowance     EntityType = "allowance"
)

// EntityStatus separates on-chain data from locally asserted data.
type EntityStatus string

const (
	EntityConfirmed  EntityStatus = "confirmed"
	EntityOptimistic EntityStatus = "optimistic"
)

// OptimisticEntity is a UI-local copy of a domain entity.
// Fields holds the mutable flags and values the view renders (completed, paid,
// assignee, ...).
type OptimisticEntity struct {
	ID        string         `json:"id"`
	Type      EntityType     `json:"type"`
	Status    EntityStatus   `json:"status"`
	Fields    map[string]any `json:"fields"`
	MutatedAt time.Time      `json:"mutated_at"`
}

// Clone returns a deep copy of the entity's field map.
func (e *OptimisticEntity) Clone() *OptimisticEntity {
	c := *e
	c.Fields = make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		c.Fields[k] = v
	}
	return &c
}

// Placeholder reports whether the entity has a local id.
func (e *OptimisticEntity) Placeholder() bool {
	return IsPlaceholderID(e.ID)
}
