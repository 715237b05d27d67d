package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"reqflow/internal/pipeline"
	"reqflow/internal/state"
)

func newStartCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "start <requirement...>",
		Short: "Start a workflow and generate user stories",
		Long: `Start a new workflow from a requirement and generate the first set of
user stories. The workflow is saved and stops at the story review.

Example:
  reqflow start "Users can log in with email and password"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.orchestrator().RunInitial(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if err := app.save(ctx, st); err != nil {
				return err
			}
			app.Printer.State(st)
			app.Printer.Text("Workflow %s saved.", st.ID)
			return outcomeError(st)
		},
	}
}

func newRunCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run <requirement...>",
		Short: "Run every stage, approving each one",
		Long: `Run the whole pipeline in batch mode. Every review checkpoint is
approved automatically, so the run ends with generated code or the first
failure.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.orchestrator().RunToCompletion(ctx, strings.Join(args, " "))
			if st != nil {
				if saveErr := app.save(ctx, st); saveErr != nil && err == nil {
					err = saveErr
				}
			}
			if err != nil {
				return err
			}
			app.Printer.State(st)
			return outcomeError(st)
		},
	}
}

func newInteractiveCommand(app *App) *cobra.Command {
	var resume string

	cmd := &cobra.Command{
		Use:   "interactive [requirement...]",
		Short: "Run the workflow with a terminal review at each checkpoint",
		Long: `Run the workflow and open a review screen at every checkpoint.
The state is saved after every step, so quitting a review (q) pauses the
workflow and --resume picks it up again.

Examples:
  reqflow interactive "Users can log in with email and password"
  reqflow interactive --resume 6f1c1b7e-5d8a-4c1e-9f8e-0c2b9a7d4e11`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch := app.orchestrator(pipeline.WithCheckpoint(app.save))

			var st *state.WorkflowState
			var err error
			switch {
			case resume != "":
				st, err = app.load(ctx, resume)
			case len(args) > 0:
				st, err = orch.RunInitial(ctx, strings.Join(args, " "))
				if err == nil {
					err = app.save(ctx, st)
				}
			default:
				return errors.New("a requirement or --resume is required")
			}
			if err != nil {
				return err
			}

			st, err = orch.Drive(ctx, st, app.Reviewer)
			if errors.Is(err, pipeline.ErrPaused) {
				if err := app.save(ctx, st); err != nil {
					return err
				}
				app.Printer.Text("Paused at %s. Resume with: reqflow interactive --resume %s", st.NextStep, st.ID)
				return nil
			}
			if err != nil {
				return err
			}
			app.Printer.State(st)
			return outcomeError(st)
		},
	}

	cmd.Flags().StringVar(&resume, "resume", "", "resume a saved workflow by ID")
	return cmd
}
