package reconcile

import (
	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/view"
)

// OutcomeKind tags an Outcome.
type OutcomeKind string

const (
	// OutcomeConfirmed: the transaction was mined successfully.
	OutcomeConfirmed OutcomeKind = "confirmed"
	// OutcomeFailed: validation, encoding, submission, revert or timeout.
	OutcomeFailed OutcomeKind = "failed"
	// OutcomeRejected: another action on the same target is in progress.
	OutcomeRejected OutcomeKind = "rejected"
	// OutcomeCancelled: observation stopped before a result. Nothing was
	// committed or rolled back.
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the result of Coordinator.Submit.
type Outcome struct {
	Kind    OutcomeKind
	Action  domain.PendingAction
	Entity  view.Key
	Receipt *domain.Receipt
	Message string
	Err     error
}

func (o Outcome) Confirmed() bool { return o.Kind == OutcomeConfirmed }
func (o Outcome) Failed() bool    { return o.Kind == OutcomeFailed }
func (o Outcome) Rejected() bool  { return o.Kind == OutcomeRejected }
