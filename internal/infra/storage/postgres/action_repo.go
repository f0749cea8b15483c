package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/infra/storage"
)

// ActionRepo implements storage.ActionRepository using PostgreSQL.
type ActionRepo struct {
	db *DB
}

// NewActionRepo creates a new PostgreSQL action repository.
func NewActionRepo(db *DB) *ActionRepo {
	return &ActionRepo{db: db}
}

type actionRow struct {
	ID            string    `db:"id"`
	Kind          string    `db:"kind"`
	TargetID      string    `db:"target_id"`
	SubmittedHash string    `db:"submitted_hash"`
	Status        string    `db:"status"`
	Error         string    `db:"error"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func toRow(a domain.PendingAction) actionRow {
	return actionRow{
		ID:            a.ID,
		Kind:          string(a.Kind),
		TargetID:      a.TargetID,
		SubmittedHash: a.SubmittedHash,
		Status:        string(a.Status),
		Error:         a.Error,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (r actionRow) toDomain() domain.PendingAction {
	return domain.PendingAction{
		ID:            r.ID,
		Kind:          domain.ActionKind(r.Kind),
		TargetID:      r.TargetID,
		SubmittedHash: r.SubmittedHash,
		Status:        domain.ActionStatus(r.Status),
		Error:         r.Error,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// SaveAction upserts an action. created_at is kept from the first insert.
func (r *ActionRepo) SaveAction(ctx context.Context, action domain.PendingAction) error {
	query := `
		INSERT INTO pending_actions (
			id, kind, target_id, submitted_hash, status, error, created_at, updated_at
		) VALUES (:id, :kind, :target_id, :submitted_hash, :status, :error, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			submitted_hash = EXCLUDED.submitted_hash,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, toRow(action)); err != nil {
		return fmt.Errorf("failed to save action: %w", err)
	}
	return nil
}

// GetAction retrieves an action by id.
func (r *ActionRepo) GetAction(ctx context.Context, id string) (*domain.PendingAction, error) {
	var row actionRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM pending_actions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrActionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	a := row.toDomain()
	return &a, nil
}

// ListActions returns matching actions, most recently updated first.
func (r *ActionRepo) ListActions(ctx context.Context, filter storage.ActionFilter) ([]domain.PendingAction, error) {
	query, args := listQuery(filter)
	var rows []actionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	out := make([]domain.PendingAction, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func listQuery(filter storage.ActionFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if filter.Kind != "" {
		add("kind", string(filter.Kind))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.TargetID != "" {
		add("target_id", filter.TargetID)
	}

	query := `SELECT * FROM pending_actions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.EffectiveLimit())
	query += fmt.Sprintf(` ORDER BY updated_at DESC, id DESC LIMIT $%d`, len(args))
	return query, args
}

// CountByStatus returns the number of actions in each status.
func (r *ActionRepo) CountByStatus(ctx context.Context) (map[domain.ActionStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM pending_actions GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count actions: %w", err)
	}
	counts := make(map[domain.ActionStatus]int, len(rows))
	for _, row := range rows {
		counts[domain.ActionStatus(row.Status)] = row.Count
	}
	return counts, nil
}
