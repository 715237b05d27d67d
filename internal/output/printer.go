// Package output renders workflow artifacts to the terminal.
//
// [DefaultPrinter] uses lipgloss styles for headers and status markers and
// writes plain text for content, so output stays readable when piped.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"reqflow/internal/review"
	"reqflow/internal/state"
	"reqflow/internal/store"
)

// Printer renders workflow artifacts.
type Printer interface {
	Stories(stories []state.UserStory)
	DesignDoc(doc state.DesignDocument)
	Code(files map[string]string)
	State(st *state.WorkflowState)
	Summary(st *state.WorkflowState)
	Transition(tr review.Transition)
	Workflows(list []store.Summary)
	Text(format string, args ...any)
	Error(err error)
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// DefaultPrinter writes to an io.Writer.
type DefaultPrinter struct {
	out           io.Writer
	truncateLines int
	width         int
}

// Option configures a [DefaultPrinter].
type Option func(*DefaultPrinter)

// WithTruncateLines limits each code file to n lines. Zero shows everything.
func WithTruncateLines(n int) Option {
	return func(p *DefaultPrinter) {
		p.truncateLines = n
	}
}

// WithWidth sets the rule width.
func WithWidth(n int) Option {
	return func(p *DefaultPrinter) {
		if n > 0 {
			p.width = n
		}
	}
}

// NewPrinter creates a printer writing to stdout.
func NewPrinter(opts ...Option) *DefaultPrinter {
	return NewPrinterWithWriter(os.Stdout, opts...)
}

// NewPrinterWithWriter creates a printer writing to w.
func NewPrinterWithWriter(w io.Writer, opts ...Option) *DefaultPrinter {
	p := &DefaultPrinter{out: w, truncateLines: 40, width: 64}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *DefaultPrinter) rule(ch string) string {
	return strings.Repeat(ch, p.width)
}

func (p *DefaultPrinter) header(title string) {
	fmt.Fprintln(p.out, p.rule("═"))
	fmt.Fprintf(p.out, "  %s\n", headerStyle.Render(title))
	fmt.Fprintln(p.out, p.rule("═"))
}

// Stories renders a numbered story list. Stories without acceptance criteria
// are flagged.
func (p *DefaultPrinter) Stories(stories []state.UserStory) {
	p.header(fmt.Sprintf("User Stories (%d)", len(stories)))
	if len(stories) == 0 {
		fmt.Fprintf(p.out, "  %s\n\n", mutedStyle.Render("(no user stories)"))
		return
	}
	for i, s := range stories {
		fmt.Fprintf(p.out, "%d. %s\n", i+1, s.Text)
		if !s.HasCriteria() {
			fmt.Fprintf(p.out, "   %s\n", warnStyle.Render("⚠ no acceptance criteria"))
			continue
		}
		fmt.Fprintf(p.out, "   %s\n", labelStyle.Render("Acceptance criteria:"))
		for _, c := range s.AcceptanceCriteria {
			fmt.Fprintf(p.out, "   - %s\n", c)
		}
	}
	fmt.Fprintln(p.out)
}

// DesignDoc renders both document sections.
func (p *DefaultPrinter) DesignDoc(doc state.DesignDocument) {
	p.header("Design Document")
	p.section("Functional", doc.FunctionalDoc)
	p.section("Technical", doc.TechnicalDoc)
}

func (p *DefaultPrinter) section(title, body string) {
	fmt.Fprintf(p.out, "┌─ %s\n", labelStyle.Render(title))
	if strings.TrimSpace(body) == "" {
		fmt.Fprintf(p.out, "│  %s\n", mutedStyle.Render("(empty)"))
	} else {
		for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
			fmt.Fprintf(p.out, "│  %s\n", line)
		}
	}
	fmt.Fprintf(p.out, "└─\n\n")
}

// Code renders every file in name order, truncated to the configured line
// count.
func (p *DefaultPrinter) Code(files map[string]string) {
	p.header(fmt.Sprintf("Generated Code (%d files)", len(files)))
	if len(files) == 0 {
		fmt.Fprintf(p.out, "  %s\n\n", mutedStyle.Render("(no files)"))
		return
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		content, hidden := TruncateLines(files[name], p.truncateLines)
		fmt.Fprintf(p.out, "┌─ File: %s\n", labelStyle.Render(name))
		for _, line := range strings.Split(content, "\n") {
			fmt.Fprintf(p.out, "│  %s\n", line)
		}
		if hidden > 0 {
			fmt.Fprintf(p.out, "│  %s\n", mutedStyle.Render(fmt.Sprintf("... (%d more lines)", hidden)))
		}
		fmt.Fprintf(p.out, "└─\n\n")
	}
}

// State renders whatever the workflow has produced so far, followed by the
// summary.
func (p *DefaultPrinter) State(st *state.WorkflowState) {
	fmt.Fprintf(p.out, "%s %s\n", labelStyle.Render("Requirement:"), st.Requirement)
	fmt.Fprintln(p.out)
	if len(st.UserStories) > 0 || st.NextStep == state.StepReviewUserStories {
		p.Stories(st.UserStories)
	}
	if !st.DesignDoc.IsEmpty() || st.NextStep == state.StepReviewDesignDoc {
		p.DesignDoc(st.DesignDoc)
	}
	if len(st.CodeGeneration.Files) > 0 || st.NextStep == state.StepReviewCode {
		p.Code(st.CodeGeneration.Files)
	}
	p.Summary(st)
}

// Summary renders the workflow status box.
func (p *DefaultPrinter) Summary(st *state.WorkflowState) {
	fmt.Fprintln(p.out, "╔"+p.rule("═"))
	fmt.Fprintf(p.out, "║  %s\n", outcomeLine(st))
	fmt.Fprintln(p.out, "╠"+p.rule("═"))
	fmt.Fprintf(p.out, "║  Workflow:     %s\n", st.ID)
	fmt.Fprintf(p.out, "║  Stories:      %-16s (%d)\n", st.UserStoryStatus, len(st.UserStories))
	fmt.Fprintf(p.out, "║  Design doc:   %s\n", st.DesignDoc.ReviewStatus)
	fmt.Fprintf(p.out, "║  Code:         %-16s (%d files)\n", st.CodeGeneration.ReviewStatus, len(st.CodeGeneration.Files))
	fmt.Fprintf(p.out, "║  Attempts:     %d | Revisions: %d\n", st.ReviewAttempts, st.RevisionRounds)
	if !st.Ended() {
		fmt.Fprintf(p.out, "║  Next step:    %s\n", st.NextStep)
	}
	if st.Error != "" {
		fmt.Fprintf(p.out, "║  Error:        %s\n", st.Error)
	}
	fmt.Fprintln(p.out, "╚"+p.rule("═"))
}

func outcomeLine(st *state.WorkflowState) string {
	switch st.Outcome {
	case state.OutcomeCompleted:
		return successStyle.Render("✓ WORKFLOW COMPLETE")
	case state.OutcomeFailed:
		return failStyle.Render("✗ WORKFLOW FAILED")
	case state.OutcomeStalled:
		return warnStyle.Render("○ WORKFLOW STALLED (no reviewer input)")
	case state.OutcomeExhausted:
		return warnStyle.Render("○ WORKFLOW STOPPED (revision rounds used up)")
	default:
		return headerStyle.Render("● WORKFLOW RUNNING")
	}
}

// Transition renders one review cycle.
func (p *DefaultPrinter) Transition(tr review.Transition) {
	marker := "●"
	switch {
	case tr.Decision == review.DecisionApprove:
		marker = successStyle.Render("✓")
	case tr.Ended():
		marker = failStyle.Render("✗")
	}
	fmt.Fprintf(p.out, "%s %s: %s → %s (%s)\n", marker, tr.Stage, tr.From, tr.To, tr.Decision)
}

// Workflows renders a stored workflow listing.
func (p *DefaultPrinter) Workflows(list []store.Summary) {
	if len(list) == 0 {
		fmt.Fprintln(p.out, mutedStyle.Render("No workflows found."))
		return
	}
	for _, w := range list {
		fmt.Fprintf(p.out, "%s  %-20s %-10s %s  %s\n",
			w.ID,
			w.NextStep,
			w.Outcome,
			w.UpdatedAt.Local().Format(time.DateTime),
			Truncate(w.Requirement, 40),
		)
	}
}

// Text writes a formatted line.
func (p *DefaultPrinter) Text(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Error writes an error line.
func (p *DefaultPrinter) Error(err error) {
	fmt.Fprintf(p.out, "%s %v\n", failStyle.Render("✗ Error:"), err)
}

// Truncate shortens s to maxLen runes, ending with "...".
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// TruncateLines keeps the first n lines of s and reports how many were
// dropped. Non-positive n keeps everything.
func TruncateLines(s string, n int) (string, int) {
	s = strings.TrimRight(s, "\n")
	lines := strings.Split(s, "\n")
	if n <= 0 || len(lines) <= n {
		return s, 0
	}
	return strings.Join(lines[:n], "\n"), len(lines) - n
}
