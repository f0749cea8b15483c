package submitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/core/txerr"
	"github.com/vietddude/commune/internal/txcore"
)

type fakeSession struct {
	hash      string
	err       error
	block     chan struct{}
	recovered string
	calls     int
	lastOpts  txcore.SendOptions
}

func (s *fakeSession) Address() string                                 { return "0xabc" }
func (s *fakeSession) Connected() bool                                 { return true }
func (s *fakeSession) ChainID() uint64                                 { return 1 }
func (s *fakeSession) SwitchChain(ctx context.Context, id uint64) error { return nil }

func (s *fakeSession) SendTransaction(ctx context.Context, call domain.Call, opts txcore.SendOptions) (string, error) {
	s.calls++
	s.lastOpts = opts
	if s.block != nil {
		<-s.block
	}
	return s.hash, s.err
}

type recoveringSession struct {
	*fakeSession
}

func (s recoveringSession) RecoverHash(ctx context.Context, call domain.Call) (string, error) {
	if s.recovered == "" {
		return "", errors.New("not found")
	}
	return s.recovered, nil
}

var testCall = domain.Call{To: "0x1111111111111111111111111111111111111111", Method: "markChoreComplete", Data: []byte{1, 2, 3, 4}}

func TestSubmit_Success(t *testing.T) {
	s := &fakeSession{hash: "0xabc"}
	sub, err := New(s).Submit(context.Background(), "a1", testCall, txcore.SendOptions{Sponsor: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Hash != "0xabc" || sub.Aborted || !sub.Sponsored {
		t.Errorf("unexpected submission %+v", sub)
	}
	if !s.lastOpts.Sponsor {
		t.Error("sponsor flag not forwarded to session")
	}
}

func TestSubmit_RejectedIsSubmissionError(t *testing.T) {
	s := &fakeSession{err: errors.New("User rejected the request")}
	_, err := New(s).Submit(context.Background(), "a1", testCall, txcore.SendOptions{})

	var se *txerr.SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if se.Cause.Error() != "User rejected the request" {
		t.Errorf("cause not preserved: %v", se.Cause)
	}
}

func TestSubmit_AbortIsNotFailure(t *testing.T) {
	s := &fakeSession{err: errors.New("The request was aborted")}
	sub, err := New(s).Submit(context.Background(), "a1", testCall, txcore.SendOptions{})
	if err != nil {
		t.Fatalf("abort must not fail submission: %v", err)
	}
	if !sub.Aborted || sub.Hash != "" {
		t.Errorf("expected aborted submission without hash, got %+v", sub)
	}
}

func TestSubmit_AbortRecoversHash(t *testing.T) {
	s := recoveringSession{&fakeSession{err: errors.New("signal is aborted without reason"), recovered: "0xfeed"}}
	sub, err := New(s).Submit(context.Background(), "a1", testCall, txcore.SendOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sub.Aborted || sub.Hash != "0xfeed" {
		t.Errorf("expected recovered hash, got %+v", sub)
	}
}

func TestSubmit_NoHashIsError(t *testing.T) {
	_, err := New(&fakeSession{}).Submit(context.Background(), "a1", testCall, txcore.SendOptions{})
	var se *txerr.SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
}

func TestSubmit_RejectsReentry(t *testing.T) {
	s := &fakeSession{hash: "0xabc", block: make(chan struct{})}
	sub := New(s)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Submit(context.Background(), "a1", testCall, txcore.SendOptions{})
		done <- err
	}()

	// Wait for the first send to be outstanding.
	deadline := time.After(time.Second)
	for {
		sub.mu.Lock()
		_, busy := sub.inflight["a1"]
		sub.mu.Unlock()
		if busy {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first submission never started")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := sub.Submit(context.Background(), "a1", testCall, txcore.SendOptions{}); !errors.Is(err, ErrAlreadySubmitting) {
		t.Errorf("expected ErrAlreadySubmitting, got %v", err)
	}

	close(s.block)
	if err := <-done; err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if s.calls != 1 {
		t.Errorf("expected exactly one send, got %d", s.calls)
	}
}

func TestIsAbort(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("The operation was aborted"), true},
		{errors.New("AbortError: signal is aborted"), true},
		{context.Canceled, true},
		{errors.New("user rejected: request aborted"), false},
		{errors.New("insufficient funds"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsAbort(tt.err); got != tt.want {
			t.Errorf("IsAbort(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
