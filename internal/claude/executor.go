package claude

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Prompt is the input of one CLI session.
type Prompt struct {
	// System is appended to the CLI's own system prompt. May be empty.
	System string
	// User is the print-mode prompt.
	User string
}

// EventHandler receives events as they are decoded.
type EventHandler func(Event)

// Executor runs one CLI session per call.
type Executor interface {
	// Execute runs the CLI, calls handler for each event, and returns the
	// process exit code. The error is non-nil only when the process could not
	// be started or waited on; a non-zero exit is reported through the code.
	Execute(ctx context.Context, prompt Prompt, handler EventHandler) (int, error)
}

// ExecutorConfig configures [DefaultExecutor].
type ExecutorConfig struct {
	// BinaryPath is the CLI executable. Defaults to "claude".
	BinaryPath string
	// OutputFormat is passed to --output-format. Defaults to "stream-json".
	OutputFormat string
	// Model is passed to --model when set.
	Model string
	// StderrHandler receives stderr lines. Nil discards them.
	StderrHandler func(line string)
}

// DefaultExecutor spawns the CLI with os/exec.
type DefaultExecutor struct {
	config ExecutorConfig
	parser Parser
}

// NewExecutor creates an executor with config defaults applied.
func NewExecutor(config ExecutorConfig) *DefaultExecutor {
	if config.BinaryPath == "" {
		config.BinaryPath = "claude"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = "stream-json"
	}
	return &DefaultExecutor{config: config, parser: NewParser()}
}

// Args returns the command line arguments for prompt.
func (e *DefaultExecutor) Args(prompt Prompt) []string {
	args := []string{"-p", prompt.User, "--output-format", e.config.OutputFormat, "--verbose"}
	if prompt.System != "" {
		args = append(args, "--append-system-prompt", prompt.System)
	}
	if e.config.Model != "" {
		args = append(args, "--model", e.config.Model)
	}
	return args
}

// Execute runs the CLI and streams its events to handler.
// Canceling ctx kills the process.
func (e *DefaultExecutor) Execute(ctx context.Context, prompt Prompt, handler EventHandler) (int, error) {
	cmd := exec.CommandContext(ctx, e.config.BinaryPath, e.Args(prompt)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %s: %w", e.config.BinaryPath, err)
	}

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if e.config.StderrHandler != nil {
				e.config.StderrHandler(scanner.Text())
			}
		}
	}()

	for event := range e.parser.Parse(stdout) {
		if handler != nil {
			handler(event)
		}
	}
	<-stderrDone

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return -1, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("wait for %s: %w", e.config.BinaryPath, err)
	}
	return 0, nil
}
