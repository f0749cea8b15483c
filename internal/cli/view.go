package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vietddude/commune/internal/control"
	"github.com/vietddude/commune/internal/core/domain"
)

var viewCmd = &cobra.Command{
	Use:   "view <type>",
	Short: "Fetch the read model and print one entity type",
	Example: `  commune view task
  commune view chore_instance`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *control.App) error {
			if err := app.Coordinator().Refetch(ctx); err != nil {
				return fmt.Errorf("failed to fetch read model: %w", err)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Status", "Fields"})
			for _, e := range app.Store().List(domain.EntityType(args[0])) {
				tw.AppendRow(table.Row{e.ID, e.Status, formatFields(e.Fields)})
			}
			tw.Render()
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}
