package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/infra/storage"
	"github.com/vietddude/commune/internal/infra/storage/postgres"
)

var (
	statusKind   string
	statusFilter string
	statusLimit  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded actions and counts per status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusKind, "kind", "", "only actions of this kind")
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "only actions in this status")
	statusCmd.Flags().IntVar(&statusLimit, "limit", storage.DefaultListLimit, "maximum rows")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("status needs database.url; without it history is kept in memory only")
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()
	repo := postgres.NewActionRepo(db)

	actions, err := repo.ListActions(ctx, storage.ActionFilter{
		Kind:   domain.ActionKind(statusKind),
		Status: domain.ActionStatus(statusFilter),
		Limit:  statusLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list actions: %w", err)
	}
	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count actions: %w", err)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Kind", "Target", "Status", "Hash", "Updated", "Error"})
	for _, a := range actions {
		tw.AppendRow(table.Row{a.ID, a.Kind, a.TargetID, a.Status, shortHash(a.SubmittedHash), a.UpdatedAt.Format("2006-01-02 15:04:05"), a.Error})
	}
	tw.Render()

	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	ct := table.NewWriter()
	ct.SetOutputMirror(os.Stdout)
	ct.AppendHeader(table.Row{"Status", "Count"})
	for _, s := range statuses {
		ct.AppendRow(table.Row{s, counts[domain.ActionStatus(s)]})
	}
	ct.Render()
	return nil
}

func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:8] + "…" + h[len(h)-4:]
}
