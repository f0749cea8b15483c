// Package submitter sends encoded calls through the wallet session.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/core/txerr"
	"github.com/vietddude/commune/internal/metrics"
	"github.com/vietddude/commune/internal/txcore"
)

// ErrAlreadySubmitting is returned when Submit is re-entered for the same action.
var ErrAlreadySubmitting = errors.New("submission already outstanding for action")

// Submission is the result of a send.
type Submission struct {
	// Hash may be empty when Aborted is set and no hash could be recovered.
	Hash        string
	Aborted     bool
	Sponsored   bool
	SubmittedAt time.Time
}

// Submitter wraps the session's send capability.
type Submitter struct {
	session txcore.SessionContext
	log     *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates a Submitter.
func New(session txcore.SessionContext) *Submitter {
	return &Submitter{
		session:  session,
		log:      slog.Default().With("component", "submitter"),
		inflight: make(map[string]struct{}),
	}
}

// Submit sends call on behalf of actionID. An abort reported by the wallet layer
// is not a failure: the transaction may have been broadcast, so the caller
// continues to confirmation with whatever hash is known.
func (s *Submitter) Submit(
	ctx context.Context,
	actionID string,
	call domain.Call,
	opts txcore.SendOptions,
) (Submission, error) {
	if err := s.enter(actionID); err != nil {
		return Submission{}, err
	}
	defer s.leave(actionID)

	sponsored := strconv.FormatBool(opts.Sponsor)
	hash, err := s.session.SendTransaction(ctx, call, opts)
	sub := Submission{Hash: hash, Sponsored: opts.Sponsor, SubmittedAt: time.Now()}

	if err == nil {
		if hash == "" {
			metrics.SubmissionsTotal.WithLabelValues(call.Method, sponsored, "error").Inc()
			return Submission{}, &txerr.SubmissionError{Cause: errors.New("session returned no transaction hash")}
		}
		metrics.SubmissionsTotal.WithLabelValues(call.Method, sponsored, "sent").Inc()
		s.log.Debug("Transaction sent", "action", actionID, "method", call.Method, "hash", hash)
		return sub, nil
	}

	// The caller going away is not an abort from the wallet.
	if ctx.Err() != nil {
		return Submission{}, ctx.Err()
	}

	if !IsAbort(err) {
		metrics.SubmissionsTotal.WithLabelValues(call.Method, sponsored, "error").Inc()
		return Submission{}, &txerr.SubmissionError{Cause: err}
	}

	metrics.SubmissionsTotal.WithLabelValues(call.Method, sponsored, "aborted").Inc()
	sub.Aborted = true
	if sub.Hash == "" {
		sub.Hash = s.recoverHash(ctx, call)
	}
	s.log.Warn("Send aborted client-side, awaiting confirmation anyway",
		"action", actionID, "method", call.Method, "hash", sub.Hash, "error", err)
	return sub, nil
}

// RecoverHash exposes hash recovery for the confirmation watcher.
func (s *Submitter) RecoverHash(ctx context.Context, call domain.Call) (string, error) {
	rec, ok := s.session.(txcore.HashRecoverer)
	if !ok {
		return "", fmt.Errorf("session cannot recover transaction hashes")
	}
	return rec.RecoverHash(ctx, call)
}

func (s *Submitter) recoverHash(ctx context.Context, call domain.Call) string {
	hash, err := s.RecoverHash(ctx, call)
	if err != nil {
		s.log.Debug("Hash recovery failed", "method", call.Method, "error", err)
		return ""
	}
	return hash
}

func (s *Submitter) enter(actionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[actionID]; busy {
		return fmt.Errorf("%w %s", ErrAlreadySubmitting, actionID)
	}
	s.inflight[actionID] = struct{}{}
	return nil
}

func (s *Submitter) leave(actionID string) {
	s.mu.Lock()
	delete(s.inflight, actionID)
	s.mu.Unlock()
}

// IsAbort reports whether err only says the request was aborted client-side,
// as opposed to rejected by the user or the node.
func IsAbort(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "abort") && !strings.Contains(msg, "reject")
}
