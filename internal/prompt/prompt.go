// Package prompt turns a workflow state into generator requests.
//
// Prompt text lives in configuration; this package only decides which
// intent a stage uses and which parts of the state fill its template.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"reqflow/internal/config"
	"reqflow/internal/llm"
	"reqflow/internal/state"
)

// Builder builds generator requests from configured prompt templates.
type Builder struct {
	cfg *config.Config
}

// NewBuilder creates a builder. A nil config uses [config.DefaultConfig].
func NewBuilder(cfg *config.Config) *Builder {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Builder{cfg: cfg}
}

// Build expands the prompt for intent against st. Feedback is passed
// separately because stages clear it from the state before calling out.
func (b *Builder) Build(intent llm.Intent, label string, st *state.WorkflowState, feedback string) (llm.Request, error) {
	if !intent.IsValid() {
		return llm.Request{}, fmt.Errorf("unknown intent %q", intent)
	}

	system, user, err := b.cfg.GetPrompt(string(intent), b.Data(st, feedback))
	if err != nil {
		return llm.Request{}, err
	}

	messages := make([]llm.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: strings.TrimSpace(user)})

	return llm.Request{Intent: intent, Label: label, Messages: messages}, nil
}

// Data collects the template fields for st. When the requirement already
// ends with the feedback being applied, that suffix is dropped so a template
// using both fields states the feedback once.
func (b *Builder) Data(st *state.WorkflowState, feedback string) config.PromptData {
	requirement := st.Requirement
	if fb := strings.TrimSpace(feedback); fb != "" {
		requirement = strings.TrimSuffix(requirement, ". "+fb)
	}
	return config.PromptData{
		Requirement:   requirement,
		UserStories:   Stories(st.UserStories),
		Feedback:      feedback,
		FunctionalDoc: st.DesignDoc.FunctionalDoc,
		TechnicalDoc:  st.DesignDoc.TechnicalDoc,
		DesignDoc:     st.DesignDoc.Combined(),
		Code:          Files(st.CodeGeneration.Files),
		Language:      b.cfg.Stages.CodeLanguage,
	}
}

// Stories renders stories as a numbered list with indented criteria.
func Stories(stories []state.UserStory) string {
	var sb strings.Builder
	for i, s := range stories {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, s.Text)
		for _, c := range s.AcceptanceCriteria {
			fmt.Fprintf(&sb, "\n   - %s", c)
		}
	}
	return sb.String()
}

// Files renders a file set as "### name" sections in filename order.
func Files(files map[string]string) string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "### %s\n```\n%s\n```", name, files[name])
	}
	return sb.String()
}
