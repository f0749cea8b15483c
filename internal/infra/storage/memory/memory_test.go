package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/infra/storage"
)

func TestActionRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewActionRepo(NewMemoryStorage())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	actions := []domain.PendingAction{
		{ID: "a1", Kind: domain.ActionMarkChoreComplete, TargetID: "42-3", Status: domain.ActionStatusConfirmed, CreatedAt: base, UpdatedAt: base.Add(time.Second)},
		{ID: "a2", Kind: domain.ActionMarkTaskDone, TargetID: "9", Status: domain.ActionStatusFailed, CreatedAt: base, UpdatedAt: base.Add(3 * time.Second)},
		{ID: "a3", Kind: domain.ActionMarkChoreComplete, TargetID: "42-4", Status: domain.ActionStatusPending, CreatedAt: base, UpdatedAt: base.Add(2 * time.Second)},
	}
	for _, a := range actions {
		if err := repo.SaveAction(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetAction(ctx, "a2")
		if err != nil {
			t.Fatal(err)
		}
		if got.TargetID != "9" {
			t.Errorf("TargetID = %q", got.TargetID)
		}
		if _, err := repo.GetAction(ctx, "missing"); !errors.Is(err, storage.ErrActionNotFound) {
			t.Errorf("err = %v, want ErrActionNotFound", err)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		got, _ := repo.ListActions(ctx, storage.ActionFilter{})
		if len(got) != 3 || got[0].ID != "a2" || got[1].ID != "a3" || got[2].ID != "a1" {
			t.Errorf("order = %v", ids(got))
		}
	})

	t.Run("list filtered", func(t *testing.T) {
		got, _ := repo.ListActions(ctx, storage.ActionFilter{Kind: domain.ActionMarkChoreComplete, Limit: 1})
		if len(got) != 1 || got[0].ID != "a3" {
			t.Errorf("got %v", ids(got))
		}
		got, _ = repo.ListActions(ctx, storage.ActionFilter{Status: domain.ActionStatusFailed})
		if len(got) != 1 || got[0].ID != "a2" {
			t.Errorf("got %v", ids(got))
		}
	})

	t.Run("update keeps created_at", func(t *testing.T) {
		upd := domain.PendingAction{ID: "a3", Kind: domain.ActionMarkChoreComplete, TargetID: "42-4", Status: domain.ActionStatusConfirmed, UpdatedAt: base.Add(time.Minute)}
		if err := repo.SaveAction(ctx, upd); err != nil {
			t.Fatal(err)
		}
		got, _ := repo.GetAction(ctx, "a3")
		if !got.CreatedAt.Equal(base) || got.Status != domain.ActionStatusConfirmed {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("counts", func(t *testing.T) {
		counts, _ := repo.CountByStatus(ctx)
		if counts[domain.ActionStatusConfirmed] != 2 || counts[domain.ActionStatusFailed] != 1 {
			t.Errorf("counts = %v", counts)
		}
	})
}

func ids(actions []domain.PendingAction) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.ID
	}
	return out
}
