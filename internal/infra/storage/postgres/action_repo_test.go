package postgres

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/infra/storage"
)

func TestListQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   storage.ActionFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "no filter",
			wantSQL:  `SELECT * FROM pending_actions ORDER BY updated_at DESC, id DESC LIMIT $1`,
			wantArgs: []any{storage.DefaultListLimit},
		},
		{
			name:     "kind and target",
			filter:   storage.ActionFilter{Kind: domain.ActionMarkTaskDone, TargetID: "9", Limit: 5},
			wantSQL:  `SELECT * FROM pending_actions WHERE kind = $1 AND target_id = $2 ORDER BY updated_at DESC, id DESC LIMIT $3`,
			wantArgs: []any{"mark_task_done", "9", 5},
		},
		{
			name:     "status",
			filter:   storage.ActionFilter{Status: domain.ActionStatusFailed},
			wantSQL:  `SELECT * FROM pending_actions WHERE status = $1 ORDER BY updated_at DESC, id DESC LIMIT $2`,
			wantArgs: []any{"failed", storage.DefaultListLimit},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := listQuery(tt.filter)
			if sql != tt.wantSQL {
				t.Errorf("sql = %q\nwant  %q", sql, tt.wantSQL)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

// TestActionRepo_Postgres runs against COMMUNE_TEST_DATABASE_URL.
func TestActionRepo_Postgres(t *testing.T) {
	url := os.Getenv("COMMUNE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("COMMUNE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := NewDB(ctx, Config{URL: url})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := NewActionRepo(db)
	now := time.Now().UTC().Truncate(time.Microsecond)
	target := uuid.NewString()
	a := domain.PendingAction{
		ID:        uuid.NewString(),
		Kind:      domain.ActionMarkExpensePaid,
		TargetID:  target,
		Status:    domain.ActionStatusSubmitting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.SaveAction(ctx, a); err != nil {
		t.Fatal(err)
	}

	a.Status = domain.ActionStatusFailed
	a.SubmittedHash = "0xabc"
	a.Error = "reverted"
	a.UpdatedAt = now.Add(time.Second)
	if err := repo.SaveAction(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetAction(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.ActionStatusFailed || got.SubmittedHash != "0xabc" || !got.CreatedAt.Equal(now) {
		t.Errorf("got %+v", got)
	}

	list, err := repo.ListActions(ctx, storage.ActionFilter{TargetID: target})
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}

	if _, err := repo.GetAction(ctx, uuid.NewString()); !errors.Is(err, storage.ErrActionNotFound) {
		t.Errorf("err = %v, want ErrActionNotFound", err)
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil || counts[domain.ActionStatusFailed] == 0 {
		t.Errorf("counts = %v, %v", counts, err)
	}
}
