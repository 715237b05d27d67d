package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Show a saved workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			app.Printer.State(st)
			if st.Ended() {
				return nil
			}

			steps, err := app.orchestrator().Router().GetLifecycle(st.NextStep)
			if err != nil {
				return err
			}
			names := make([]string, len(steps))
			for i, s := range steps {
				names[i] = string(s.Step)
			}
			app.Printer.Text("Remaining: %s", strings.Join(names, " → "))
			return nil
		},
	}
}

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := app.Store.List(cmd.Context())
			if err != nil {
				return err
			}
			app.Printer.Workflows(list)
			return nil
		},
	}
}

func newDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <workflow-id>",
		Short: "Delete a saved workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.Printer.Text("Workflow %s deleted.", args[0])
			return nil
		},
	}
}
