package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vietddude/commune/internal/control"
	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/txcore/encoder"
	"github.com/vietddude/commune/internal/txcore/reconcile"
)

var (
	submitArgs    []string
	submitSponsor bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <kind>",
	Short: "Submit one action and wait for its outcome",
	Example: `  commune submit mark_task_done --arg communeId=1 --arg taskId=4
  commune submit create_expense --arg communeId=1 --arg amount=12.5 --arg description=groceries --arg assignee=0xabc... --arg dueDate=1767225600`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := parseArgs(submitArgs)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, app *control.App) error {
			if _, ok := app.Coordinator().Spec(domain.ActionKind(args[0])); !ok {
				return fmt.Errorf("unknown action %q", args[0])
			}
			out := app.Coordinator().Submit(ctx, reconcile.Request{
				Kind:    domain.ActionKind(args[0]),
				Args:    parsed,
				Sponsor: submitSponsor,
			})
			renderOutcome(out)
			if !out.Confirmed() {
				return fmt.Errorf("action %s: %s", out.Kind, out.Message)
			}
			return nil
		})
	},
}

func init() {
	submitCmd.Flags().StringArrayVar(&submitArgs, "arg", nil, "action argument as key=value (repeatable)")
	submitCmd.Flags().BoolVar(&submitSponsor, "sponsor", false, "ask the sponsor relay to pay the fee")
	rootCmd.AddCommand(submitCmd)
}

func parseArgs(pairs []string) (encoder.Args, error) {
	args := make(encoder.Args, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --arg %q, want key=value", p)
		}
		args[k] = v
	}
	return args, nil
}

func renderOutcome(out reconcile.Outcome) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendRow(table.Row{"Outcome", out.Kind})
	tw.AppendRow(table.Row{"Action", out.Action.ID})
	tw.AppendRow(table.Row{"Target", out.Entity.String()})
	if out.Action.SubmittedHash != "" {
		tw.AppendRow(table.Row{"Hash", out.Action.SubmittedHash})
	}
	if out.Receipt != nil {
		tw.AppendRow(table.Row{"Block", out.Receipt.BlockNumber})
		tw.AppendRow(table.Row{"Gas used", out.Receipt.GasUsed})
	}
	if out.Message != "" {
		tw.AppendRow(table.Row{"Message", out.Message})
	}
	tw.Render()
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List supported actions and their arguments",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *control.App) error {
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Kind", "Entity", "Required"})
			for _, k := range domain.AllActionKinds {
				spec, ok := app.Coordinator().Spec(k)
				if !ok {
					continue
				}
				tw.AppendRow(table.Row{k, spec.Entity, strings.Join(spec.RequiredFields, ", ")})
			}
			tw.Render()
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
}
