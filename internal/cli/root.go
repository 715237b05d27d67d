// Package cli implements the reqflow command line.
//
// Commands share an [App] holding the configured collaborators. Tests build an
// App with mocks and run commands through [NewRootCommand]; the binary calls
// [Execute], which loads configuration and fills in the real implementations.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reqflow/internal/config"
	"reqflow/internal/llm"
	"reqflow/internal/logging"
	"reqflow/internal/output"
	"reqflow/internal/pipeline"
	"reqflow/internal/state"
	"reqflow/internal/store"
	"reqflow/internal/tui"
)

// App holds the dependencies shared by every command. Nil fields are filled
// from configuration before a command runs.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     store.Store
	Generator llm.Generator
	Printer   output.Printer
	Reviewer  pipeline.Reviewer

	// Out and Err replace stdout and stderr when set.
	Out io.Writer
	Err io.Writer

	configPath string
	logLevel   string
}

// ExecuteResult is the outcome of one command line invocation.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "reqflow",
		Short: "Turn a requirement into reviewed user stories, a design and code",
		Long: `reqflow runs a requirement through three reviewed stages:

  1. user stories     - generated from the requirement
  2. design document  - functional and technical design from the stories
  3. code             - source files from the design

Each stage stops at a review checkpoint. Approve it to move on, or give
feedback to have the stage revised.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(cmd); err != nil {
				return err
			}
			cmd.SetContext(logging.WithLogger(cmd.Context(), app.Logger))
			return nil
		},
	}

	if app.Out != nil {
		root.SetOut(app.Out)
	}
	if app.Err != nil {
		root.SetErr(app.Err)
	}

	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default: user config dir, then ./reqflow.yaml)")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newStartCommand(app),
		newReviewCommand(app),
		newAdvanceCommand(app),
		newTriggerCommand(app),
		newRunCommand(app),
		newInteractiveCommand(app),
		newShowCommand(app),
		newListCommand(app),
		newDeleteCommand(app),
		newExportCommand(app),
	)
	return root
}

func (a *App) setup(cmd *cobra.Command) error {
	if a.Config == nil {
		loader := config.NewLoader()
		if a.logLevel != "" {
			loader.Set("log.level", a.logLevel)
		}
		var (
			cfg *config.Config
			err error
		)
		if a.configPath != "" {
			cfg, err = loader.LoadFromFile(a.configPath)
		} else {
			cfg, err = loader.Load()
		}
		if err != nil {
			return err
		}
		a.Config = cfg
	} else if a.logLevel != "" {
		a.Config.Log.Level = a.logLevel
	}

	if a.Logger == nil {
		logger, err := logging.New(a.Config.Log)
		if err != nil {
			return err
		}
		a.Logger = logger
	}

	printerOpts := []output.Option{
		output.WithTruncateLines(a.Config.Output.TruncateLines),
		output.WithWidth(a.Config.Output.Width),
	}
	if a.Printer == nil {
		a.Printer = output.NewPrinterWithWriter(cmd.OutOrStdout(), printerOpts...)
	}
	if a.Reviewer == nil {
		a.Reviewer = tui.NewReviewer(tui.WithPrinterOptions(printerOpts...))
	}
	if a.Store == nil {
		s, err := store.Open(cmd.Context(), a.Config.Store)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		a.Store = s
	}
	if a.Generator == nil {
		gen, err := NewGenerator(a.Config, a.Logger)
		if err != nil {
			return err
		}
		a.Generator = gen
	}
	return nil
}

// orchestrator builds a pipeline orchestrator with logging and timing
// middleware.
func (a *App) orchestrator(opts ...pipeline.Option) *pipeline.Orchestrator {
	opts = append([]pipeline.Option{
		pipeline.Use(pipeline.WithLogging(a.Logger), pipeline.WithTiming(a.Logger)),
	}, opts...)
	return pipeline.New(a.Generator, a.Config, a.Logger, opts...)
}

// load reads a workflow by ID.
func (a *App) load(ctx context.Context, id string) (*state.WorkflowState, error) {
	st, err := a.Store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	return st, nil
}

func (a *App) save(ctx context.Context, st *state.WorkflowState) error {
	if err := a.Store.Save(ctx, st); err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

// close releases the store and flushes the logger.
func (a *App) close() {
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// Run executes the command line args against app.
func Run(ctx context.Context, app *App, args []string) ExecuteResult {
	root := NewRootCommand(app)
	root.SetArgs(args)
	defer app.close()

	if err := root.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return ExecuteResult{ExitCode: 0}
}

// RunWithConfig executes args with a preloaded configuration. A nil cfg is
// loaded from the usual locations.
func RunWithConfig(cfg *config.Config, args []string) ExecuteResult {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, &App{Config: cfg}, args)
}

// Execute runs the command line and exits with its code.
func Execute() {
	result := RunWithConfig(nil, os.Args[1:])
	os.Exit(result.ExitCode)
}
