package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/vietddude/commune/internal/core/domain"
)

func TestReduce_HappyPath(t *testing.T) {
	s := domain.ActionStatusIdle
	for _, ev := range []Event{EventSubmit, EventSubmitted, EventConfirmed} {
		next, err := Reduce(s, ev)
		if err != nil {
			t.Fatalf("Reduce(%s, %s) failed: %v", s, ev, err)
		}
		s = next
	}
	if s != domain.ActionStatusConfirmed {
		t.Errorf("expected confirmed, got %s", s)
	}
}

func TestReduce_FailurePaths(t *testing.T) {
	// encode/validate/submit failure
	s, _ := Reduce(domain.ActionStatusIdle, EventSubmit)
	s, err := Reduce(s, EventFailed)
	if err != nil || s != domain.ActionStatusFailed {
		t.Fatalf("submitting -> failed: got %s, %v", s, err)
	}

	// revert/timeout
	s, _ = Reduce(domain.ActionStatusIdle, EventSubmit)
	s, _ = Reduce(s, EventSubmitted)
	s, err = Reduce(s, EventFailed)
	if err != nil || s != domain.ActionStatusFailed {
		t.Fatalf("pending -> failed: got %s, %v", s, err)
	}
}

func TestReduce_Total(t *testing.T) {
	states := []State{
		domain.ActionStatusIdle,
		domain.ActionStatusSubmitting,
		domain.ActionStatusPending,
		domain.ActionStatusConfirmed,
		domain.ActionStatusFailed,
	}
	events := []Event{EventSubmit, EventSubmitted, EventConfirmed, EventFailed, Event("bogus")}

	for _, s := range states {
		for _, ev := range events {
			next, err := Reduce(s, ev)
			if err != nil {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Reduce(%s, %s): unexpected error type %v", s, ev, err)
				}
				if next != s {
					t.Errorf("Reduce(%s, %s): state changed on error to %s", s, ev, next)
				}
				continue
			}
			if !CanTransition(s, next) {
				t.Errorf("Reduce(%s, %s) = %s which is not a valid transition", s, ev, next)
			}
		}
	}
}

func TestTerminalStatesAcceptNothing(t *testing.T) {
	for _, s := range []State{domain.ActionStatusConfirmed, domain.ActionStatusFailed} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
		for _, ev := range []Event{EventSubmit, EventSubmitted, EventConfirmed, EventFailed} {
			if _, err := Reduce(s, ev); err == nil {
				t.Errorf("terminal state %s accepted %s", s, ev)
			}
		}
	}
}

func TestApply_RecordsTransition(t *testing.T) {
	a := &domain.PendingAction{Status: domain.ActionStatusIdle}
	now := time.Unix(1700000000, 0)

	tr, err := Apply(a, EventSubmit, now)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if tr.From != domain.ActionStatusIdle || tr.To != domain.ActionStatusSubmitting {
		t.Errorf("unexpected transition %+v", tr)
	}
	if !a.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt not set")
	}
}
