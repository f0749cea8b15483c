// Package lifecycle holds the per-action state machine.
//
//	Idle -> Submitting -> Pending -> Confirmed
//	Idle -> Submitting -> Failed
//	Idle -> Submitting -> Pending -> Failed
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/commune/internal/core/domain"
)

// State is an alias for domain.ActionStatus for internal use.
type State = domain.ActionStatus

// ErrInvalidTransition is returned when an event does not apply to the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// Event drives the state machine.
type Event string

const (
	EventSubmit    Event = "submit"    // user action accepted
	EventSubmitted Event = "submitted" // wallet returned (or may have broadcast) the tx
	EventConfirmed Event = "confirmed" // successful receipt
	EventFailed    Event = "failed"
)

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	domain.ActionStatusIdle:       {domain.ActionStatusSubmitting},
	domain.ActionStatusSubmitting: {domain.ActionStatusPending, domain.ActionStatusFailed},
	domain.ActionStatusPending:    {domain.ActionStatusConfirmed, domain.ActionStatusFailed},
	domain.ActionStatusConfirmed:  {},
	domain.ActionStatusFailed:     {},
}

// eventTargets maps each event to the state it leads to.
var eventTargets = map[Event]State{
	EventSubmit:    domain.ActionStatusSubmitting,
	EventSubmitted: domain.ActionStatusPending,
	EventConfirmed: domain.ActionStatusConfirmed,
	EventFailed:    domain.ActionStatusFailed,
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s accepts no further events.
func IsTerminal(s State) bool {
	return s == domain.ActionStatusConfirmed || s == domain.ActionStatusFailed
}

// Reduce applies ev to s. It is total: unknown or inapplicable events return s
// unchanged together with ErrInvalidTransition.
func Reduce(s State, ev Event) (State, error) {
	to, ok := eventTargets[ev]
	if !ok {
		return s, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}
	if !CanTransition(s, to) {
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
	}
	return to, nil
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Event     Event
	Timestamp time.Time
}

// Apply reduces the action's status and records the transition.
func Apply(a *domain.PendingAction, ev Event, now time.Time) (Transition, error) {
	to, err := Reduce(a.Status, ev)
	if err != nil {
		return Transition{}, err
	}
	t := Transition{From: a.Status, To: to, Event: ev, Timestamp: now}
	a.Status = to
	a.UpdatedAt = now
	return t, nil
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case domain.ActionStatusIdle:
		return "Idle - created, nothing sent"
	case domain.ActionStatusSubmitting:
		return "Submitting - encoding and sending through the wallet"
	case domain.ActionStatusPending:
		return "Pending - waiting for a receipt"
	case domain.ActionStatusConfirmed:
		return "Confirmed - mined successfully"
	case domain.ActionStatusFailed:
		return "Failed - rejected, reverted or timed out"
	default:
		return "Unknown state"
	}
}
