// Package tui provides the interactive review checkpoint.
//
// Each checkpoint runs a small bubbletea program: the stage output in a
// scrollable viewport and a textarea for feedback. The program ends with one
// decision that [Reviewer] hands back to the pipeline.
package tui

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"reqflow/internal/output"
	"reqflow/internal/pipeline"
	"reqflow/internal/router"
	"reqflow/internal/state"
)

type mode int

const (
	modeBrowse mode = iota
	modeFeedback
)

// Result is the reviewer's decision at one checkpoint.
type Result struct {
	Input pipeline.Input
	// Paused means the reviewer left without deciding.
	Paused bool
	// Done is set once any decision was made.
	Done bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	helpStyle   = lipgloss.NewStyle().Faint(true)
	statusStyle = lipgloss.NewStyle().Faint(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Model is the bubbletea model of one review checkpoint.
type Model struct {
	ta   textarea.Model
	vp   viewport.Model
	mode mode

	stage    router.Stage
	workflow string
	attempts int
	rounds   int
	warning  string

	width  int
	height int

	result Result
}

// NewModel builds the checkpoint view for the stage awaiting review.
func NewModel(st *state.WorkflowState, stg router.Stage, opts ...output.Option) Model {
	ta := textarea.New()
	ta.Placeholder = "Describe what should change, then press Enter."
	ta.Prompt = "› "
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetWidth(80)
	ta.SetHeight(4)

	vp := viewport.New(80, 20)
	vp.SetContent(Render(st, stg, opts...))

	return Model{
		ta:       ta,
		vp:       vp,
		stage:    stg,
		workflow: st.ID,
		attempts: st.ReviewAttempts,
		rounds:   st.RevisionRounds,
	}
}

// Render returns the stage output as plain text.
func Render(st *state.WorkflowState, stg router.Stage, opts ...output.Option) string {
	var buf bytes.Buffer
	p := output.NewPrinterWithWriter(&buf, opts...)
	switch stg {
	case router.StageUserStories:
		p.Stories(st.UserStories)
	case router.StageDesignDoc:
		p.DesignDoc(st.DesignDoc)
	case router.StageCode:
		p.Code(st.CodeGeneration.Files)
	}
	return buf.String()
}

// Result returns the decision, valid once the program has quit.
func (m Model) Result() Result {
	return m.result
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg.Width, msg.Height), nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m.finish(Result{Paused: true})
		}
		if m.mode == modeFeedback {
			return m.updateFeedback(msg)
		}
		switch msg.String() {
		case "a":
			return m.finish(Result{Input: pipeline.Input{Approve: true}})
		case "f", "enter":
			m.mode = modeFeedback
			m.warning = ""
			cmd := m.ta.Focus()
			return m, cmd
		case "w":
			return m.finish(Result{})
		case "q", "esc":
			return m.finish(Result{Paused: true})
		}
	}

	if m.mode == modeBrowse {
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.ta, cmd = m.ta.Update(msg)
	return m, cmd
}

func (m Model) updateFeedback(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.ta.Blur()
		return m, nil
	case tea.KeyEnter:
		feedback := strings.TrimSpace(m.ta.Value())
		if feedback == "" {
			m.warning = "Feedback is empty. Type something or press Esc."
			return m, nil
		}
		return m.finish(Result{Input: pipeline.Input{Feedback: feedback}})
	}
	var cmd tea.Cmd
	m.ta, cmd = m.ta.Update(msg)
	return m, cmd
}

func (m Model) finish(r Result) (tea.Model, tea.Cmd) {
	r.Done = true
	m.result = r
	return m, tea.Quit
}

func (m Model) resize(w, h int) Model {
	if w <= 0 || h <= 0 {
		return m
	}
	m.width, m.height = w, h
	inner := max(20, w-4)
	m.ta.SetWidth(inner)
	reserved := 3 + m.ta.Height() + 2 + 2 + 2
	m.vp.Width = inner
	m.vp.Height = max(5, h-reserved)
	return m
}

func (m Model) View() string {
	title := titleStyle.Render(fmt.Sprintf("Review: %s", strings.ReplaceAll(string(m.stage), "_", " ")))
	status := statusStyle.Render(fmt.Sprintf("workflow %s • attempts %d • revisions %d", m.workflow, m.attempts, m.rounds))

	var help string
	if m.mode == modeFeedback {
		help = "Enter = submit feedback • Esc = back • Ctrl+C = pause"
	} else {
		help = "a = approve • f = feedback • w = no decision • ↑/↓ = scroll • q = pause"
	}

	parts := []string{title, status, boxStyle.Render(m.vp.View())}
	if m.mode == modeFeedback {
		parts = append(parts, boxStyle.Render(m.ta.View()))
	}
	if m.warning != "" {
		parts = append(parts, m.warning)
	}
	parts = append(parts, helpStyle.Render(help))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Reviewer asks for input by running a checkpoint program per review step.
type Reviewer struct {
	printerOpts []output.Option
	programOpts []tea.ProgramOption
}

// ReviewerOption configures a [Reviewer].
type ReviewerOption func(*Reviewer)

// WithPrinterOptions sets how stage output is rendered.
func WithPrinterOptions(opts ...output.Option) ReviewerOption {
	return func(r *Reviewer) {
		r.printerOpts = append(r.printerOpts, opts...)
	}
}

// WithProgramOptions passes options to every bubbletea program.
func WithProgramOptions(opts ...tea.ProgramOption) ReviewerOption {
	return func(r *Reviewer) {
		r.programOpts = append(r.programOpts, opts...)
	}
}

// NewReviewer creates a terminal reviewer.
func NewReviewer(opts ...ReviewerOption) *Reviewer {
	r := &Reviewer{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Review runs one checkpoint program. Leaving without a decision returns
// [pipeline.ErrPaused].
func (r *Reviewer) Review(ctx context.Context, st *state.WorkflowState, stg router.Stage) (pipeline.Input, error) {
	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, r.programOpts...)
	final, err := tea.NewProgram(NewModel(st, stg, r.printerOpts...), opts...).Run()
	if err != nil {
		return pipeline.Input{}, fmt.Errorf("review ui: %w", err)
	}
	m, ok := final.(Model)
	if !ok || !m.result.Done || m.result.Paused {
		return pipeline.Input{}, pipeline.ErrPaused
	}
	return m.result.Input, nil
}
