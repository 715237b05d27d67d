package cli

import (
	"github.com/spf13/cobra"

	"reqflow/internal/pipeline"
)

func newReviewCommand(app *App) *cobra.Command {
	var (
		approve  bool
		feedback string
	)

	cmd := &cobra.Command{
		Use:   "review <workflow-id>",
		Short: "Approve or give feedback on the stage awaiting review",
		Long: `Run one review cycle on a saved workflow.

  --approve          approve the stage; the next stage is generated by "advance"
  --feedback TEXT    revise the stage with the feedback
  (neither)          record a review without input; repeated silence ends the run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.load(ctx, args[0])
			if err != nil {
				return err
			}

			st, tr, err := app.orchestrator().RunReview(ctx, st, pipeline.Input{Approve: approve, Feedback: feedback})
			if err != nil {
				return err
			}
			if err := app.save(ctx, st); err != nil {
				return err
			}

			app.Printer.Transition(tr)
			if !st.Ended() && st.NextStep.IsReview() {
				app.Printer.State(st)
			} else {
				app.Printer.Summary(st)
			}
			return outcomeError(st)
		},
	}

	cmd.Flags().BoolVar(&approve, "approve", false, "approve the current stage")
	cmd.Flags().StringVar(&feedback, "feedback", "", "feedback for revising the current stage")
	cmd.MarkFlagsMutuallyExclusive("approve", "feedback")
	return cmd
}

func newAdvanceCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <workflow-id>",
		Short: "Run the pending generation step",
		Long:  `Generate the next stage of a workflow whose previous stage was approved.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.load(ctx, args[0])
			if err != nil {
				return err
			}

			st, _, err = app.orchestrator().Advance(ctx, st)
			if err != nil {
				return err
			}
			if err := app.save(ctx, st); err != nil {
				return err
			}
			app.Printer.State(st)
			return outcomeError(st)
		},
	}
}

func newTriggerCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <workflow-id> <step>",
		Short: "Run a named step",
		Long: `Run a step by name, as an external scheduler would. Generation steps
(get_user_stories, generate_design_doc, generate_code) run their generator.
Review steps (review_user_stories, review_design_doc, review_code) run one
review cycle without input. The workflow must be at the named step.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.load(ctx, args[0])
			if err != nil {
				return err
			}

			st, err = app.orchestrator().Trigger(ctx, st, args[1])
			if err != nil {
				return err
			}
			if err := app.save(ctx, st); err != nil {
				return err
			}
			app.Printer.Summary(st)
			return outcomeError(st)
		},
	}
}
