// Package notify delivers action outcomes to the presentation layer.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/txcore"
)

// Log writes notifications to the structured log.
type Log struct {
	log *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{log: logger.With("component", "notify")}
}

func (l *Log) Notify(ctx context.Context, n domain.Notification) error {
	attrs := []any{
		"kind", n.ActionKind,
		"target", n.TargetID,
		"action", n.ActionID,
	}
	if n.TxHash != "" {
		attrs = append(attrs, "hash", n.TxHash)
	}
	if n.Level == domain.NotificationError {
		attrs = append(attrs, "error_kind", n.ErrorKind, "retryable", n.Retryable)
		l.log.WarnContext(ctx, n.Message, attrs...)
		return nil
	}
	l.log.InfoContext(ctx, n.Message, attrs...)
	return nil
}

// Multi delivers to every notifier, even when one fails.
type Multi []txcore.Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, target := range m {
		if err := target.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recent keeps the last few notifications in memory for polling clients.
type Recent struct {
	mu   sync.Mutex
	size int
	buf  []domain.Notification
}

func NewRecent(size int) *Recent {
	if size <= 0 {
		size = 50
	}
	return &Recent{size: size}
}

func (r *Recent) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, n)
	if over := len(r.buf) - r.size; over > 0 {
		r.buf = append(r.buf[:0:0], r.buf[over:]...)
	}
	return nil
}

// List returns the buffered notifications, oldest first.
func (r *Recent) List() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.buf...)
}
