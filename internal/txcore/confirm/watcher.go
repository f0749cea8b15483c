// Package confirm watches submitted transactions until they are mined or time out.
package confirm

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/core/txerr"
	"github.com/vietddude/commune/internal/metrics"
	"github.com/vietddude/commune/internal/txcore"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultTimeout      = 30 * time.Second
)

// Outcome is the terminal state of a watch.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeReverted  Outcome = "reverted"
	OutcomeTimedOut  Outcome = "timed_out"
)

// Config controls polling.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
	// ExplorerURL is the transaction page prefix quoted in timeout errors.
	ExplorerURL string
}

// Target identifies what to watch. Hash may be empty after an aborted send, in
// which case Call is used to recover it.
type Target struct {
	Hash string
	Call domain.Call
}

// Result describes a finished watch.
type Result struct {
	Outcome Outcome
	Hash    string
	Receipt *domain.Receipt
	Elapsed time.Duration
}

// Watcher polls a ReceiptSource on a ticker.
type Watcher struct {
	receipts  txcore.ReceiptSource
	recoverer txcore.HashRecoverer
	cfg       Config
	log       *slog.Logger
}

// New creates a Watcher. recoverer may be nil.
func New(receipts txcore.ReceiptSource, recoverer txcore.HashRecoverer, cfg Config) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Watcher{
		receipts:  receipts,
		recoverer: recoverer,
		cfg:       cfg,
		log:       slog.Default().With("component", "confirm"),
	}
}

// Watch blocks until the target is mined, reverts, times out or ctx is done.
// A cancelled watch returns ctx.Err() and has no other effect.
func (w *Watcher) Watch(ctx context.Context, target Target) (Result, error) {
	start := time.Now()
	hash := target.Hash

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	timer := time.NewTimer(w.cfg.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{Hash: hash, Elapsed: time.Since(start)}, ctx.Err()

		case <-timer.C:
			elapsed := time.Since(start)
			metrics.ConfirmationLatency.WithLabelValues(string(OutcomeTimedOut)).Observe(elapsed.Seconds())
			return Result{Outcome: OutcomeTimedOut, Hash: hash, Elapsed: elapsed},
				&txerr.ConfirmationTimeoutError{TxHash: hash, Elapsed: elapsed, ExplorerURL: w.cfg.ExplorerURL}

		case <-ticker.C:
			if hash == "" {
				hash = w.recover(ctx, target.Call)
				if hash == "" {
					continue
				}
			}

			metrics.ReceiptPolls.Inc()
			receipt, err := w.receipts.GetReceipt(ctx, hash)
			if err != nil {
				// Transient RPC failures keep the watch alive until the timeout.
				w.log.Debug("Receipt poll failed", "hash", hash, "error", err)
				continue
			}
			if receipt == nil {
				continue
			}

			elapsed := time.Since(start)
			res := Result{Hash: hash, Receipt: receipt, Elapsed: elapsed}
			if receipt.Status == domain.ReceiptStatusReverted {
				res.Outcome = OutcomeReverted
				metrics.ConfirmationLatency.WithLabelValues(string(OutcomeReverted)).Observe(elapsed.Seconds())
				return res, &txerr.OnChainRevertError{TxHash: hash, Reason: receipt.RevertReason}
			}
			res.Outcome = OutcomeConfirmed
			metrics.ConfirmationLatency.WithLabelValues(string(OutcomeConfirmed)).Observe(elapsed.Seconds())
			return res, nil
		}
	}
}

func (w *Watcher) recover(ctx context.Context, call domain.Call) string {
	if w.recoverer == nil {
		return ""
	}
	hash, err := w.recoverer.RecoverHash(ctx, call)
	if err != nil {
		return ""
	}
	w.log.Info("Recovered hash of aborted send", "method", call.Method, "hash", hash)
	return hash
}
