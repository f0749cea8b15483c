package txerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ValidationError{Field: "title"}, "validation"},
		{&NotConnectedError{}, "not_connected"},
		{&WrongChainError{Want: 1, Have: 5}, "wrong_chain"},
		{&EncodingError{Kind: "create_task", Field: "budget"}, "encoding"},
		{&SubmissionError{Cause: errors.New("user rejected")}, "submission"},
		{&OnChainRevertError{TxHash: "0xabc"}, "on_chain_revert"},
		{&ConfirmationTimeoutError{Elapsed: time.Second}, "confirmation_timeout"},
		{&ActionInProgressError{TargetID: "42-3"}, "action_in_progress"},
		{fmt.Errorf("wrapped: %w", &OnChainRevertError{}), "on_chain_revert"},
		{errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestConfirmationTimeoutError_Message(t *testing.T) {
	err := &ConfirmationTimeoutError{
		TxHash:      "0xabc",
		Elapsed:     30 * time.Second,
		ExplorerURL: "https://sepolia.arbiscan.io/tx/",
	}
	msg := err.Error()
	if !strings.Contains(msg, "30s") {
		t.Errorf("expected elapsed seconds in %q", msg)
	}
	if !strings.Contains(msg, "https://sepolia.arbiscan.io/tx/0xabc") {
		t.Errorf("expected explorer link in %q", msg)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("user denied")
	err := &SubmissionError{Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("SubmissionError should unwrap to its cause")
	}

	wc := &WrongChainError{Want: 1, Have: 2, Cause: cause}
	if !errors.Is(wc, cause) {
		t.Error("WrongChainError should unwrap to its cause")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(&SubmissionError{Cause: errors.New("x")}) {
		t.Error("submission errors should be retryable")
	}
	if Retryable(&ValidationError{Field: "title"}) {
		t.Error("validation errors should not be retried automatically")
	}
	if Retryable(&OnChainRevertError{}) {
		t.Error("reverts need a changed request")
	}
}
