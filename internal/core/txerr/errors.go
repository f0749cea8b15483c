// Package txerr defines the error taxonomy of the transaction lifecycle.
//
// Every error is scoped to a single PendingAction. Gate and encoder errors are
// raised before any optimistic mutation; submitter and watcher errors arrive
// after one and require rollback.
package txerr

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports missing or malformed user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("validation failed: %s is required", e.Field)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NotConnectedError reports that no wallet session is connected.
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string {
	return "wallet not connected"
}

// WrongChainError reports that the session is on a different chain and the switch
// was declined or failed.
type WrongChainError struct {
	Want  uint64
	Have  uint64
	Cause error
}

func (e *WrongChainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("wrong chain: want %d, have %d: %v", e.Want, e.Have, e.Cause)
	}
	return fmt.Sprintf("wrong chain: want %d, have %d", e.Want, e.Have)
}

func (e *WrongChainError) Unwrap() error { return e.Cause }

// EncodingError reports a mismatch between domain arguments and the contract call.
type EncodingError struct {
	Kind   string
	Field  string
	Reason string
	Cause  error
}

func (e *EncodingError) Error() string {
	msg := fmt.Sprintf("encode %s", e.Kind)
	if e.Field != "" {
		msg += fmt.Sprintf(": field %s", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *EncodingError) Unwrap() error { return e.Cause }

// SubmissionError reports that the wallet rejected or failed to broadcast.
type SubmissionError struct {
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// OnChainRevertError reports a mined transaction whose execution reverted.
type OnChainRevertError struct {
	TxHash string
	Reason string
}

func (e *OnChainRevertError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction %s reverted", e.TxHash)
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.TxHash, e.Reason)
}

// ConfirmationTimeoutError reports that no receipt appeared in time. The
// transaction may still land.
type ConfirmationTimeoutError struct {
	TxHash      string
	Elapsed     time.Duration
	ExplorerURL string
}

func (e *ConfirmationTimeoutError) Error() string {
	secs := int(e.Elapsed.Round(time.Second) / time.Second)
	msg := fmt.Sprintf("transaction not confirmed after %ds", secs)
	if e.ExplorerURL != "" {
		msg += fmt.Sprintf("; check %s%s", e.ExplorerURL, e.TxHash)
	}
	return msg
}

// ActionInProgressError reports a second request for a target that already has a
// pending action.
type ActionInProgressError struct {
	TargetID string
}

func (e *ActionInProgressError) Error() string {
	return fmt.Sprintf("action already in progress for %s", e.TargetID)
}

// Kind returns a stable name for err, used in notifications and metric labels.
func Kind(err error) string {
	var (
		validation *ValidationError
		notConn    *NotConnectedError
		wrongChain *WrongChainError
		encoding   *EncodingError
		submission *SubmissionError
		revert     *OnChainRevertError
		timeout    *ConfirmationTimeoutError
		inProgress *ActionInProgressError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &inProgress):
		return "action_in_progress"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &notConn):
		return "not_connected"
	case errors.As(err, &wrongChain):
		return "wrong_chain"
	case errors.As(err, &encoding):
		return "encoding"
	case errors.As(err, &submission):
		return "submission"
	case errors.As(err, &revert):
		return "on_chain_revert"
	case errors.As(err, &timeout):
		return "confirmation_timeout"
	default:
		return "unknown"
	}
}

// Retryable reports whether the UI should offer a retry affordance without the
// user changing the request.
func Retryable(err error) bool {
	switch Kind(err) {
	case "submission", "confirmation_timeout", "not_connected", "wrong_chain":
		return true
	default:
		return false
	}
}
