package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/vietddude/commune/internal/core/domain"
)

type failing struct{ err error }

func (f failing) Notify(context.Context, domain.Notification) error { return f.err }

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))

	_ = l.Notify(context.Background(), domain.Notification{
		Level:     domain.NotificationError,
		Message:   "Failed to mark chore complete",
		TargetID:  "42-3",
		ErrorKind: "on_chain_revert",
		TxHash:    "0xabc",
	})
	out := buf.String()
	for _, want := range []string{"level=WARN", "target=42-3", "error_kind=on_chain_revert", "hash=0xabc"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestMulti_DeliversToAll(t *testing.T) {
	rec := NewRecent(10)
	boom := errors.New("redis down")
	m := Multi{failing{boom}, rec}

	err := m.Notify(context.Background(), domain.Notification{Message: "Task created"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if got := rec.List(); len(got) != 1 || got[0].Message != "Task created" {
		t.Errorf("recent = %v", got)
	}
}

func TestRecent_Bounded(t *testing.T) {
	rec := NewRecent(2)
	for _, msg := range []string{"a", "b", "c"} {
		_ = rec.Notify(context.Background(), domain.Notification{Message: msg})
	}
	got := rec.List()
	if len(got) != 2 || got[0].Message != "b" || got[1].Message != "c" {
		t.Errorf("recent = %v", got)
	}
}
