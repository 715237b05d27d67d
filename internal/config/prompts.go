package config

import (
	"bytes"
	"fmt"
	"text/template"
)

const storiesShape = "```json\n" + `{
  "user_stories": [
    {
      "user_story": "As a ..., I want ... so that ...",
      "acceptance_criteria": ["Criterion 1", "Criterion 2"]
    }
  ]
}` + "\n```"

const designShape = "```json\n" + `{
  "functional_doc": "Functional description here...",
  "technical_doc": "Technical details here..."
}` + "\n```"

const codeShape = "```json\n" + `{
  "files": {
    "main.ext": "... code for main ...",
    "utils.ext": "... code for utilities ..."
  }
}` + "\n```"

// DefaultPrompts returns the built-in prompt pair for every generation intent.
func DefaultPrompts() map[string]PromptConfig {
	return map[string]PromptConfig{
		"user_stories": {
			System: "You are a helpful product owner assistant who writes user stories and acceptance criteria. " +
				"Output your response in raw JSON format only, no explanations, no markdown.",
			Template: "Generate user stories and acceptance criteria for this requirement:\n\n" +
				"Requirement: {{.Requirement}}\n\n" +
				"Return only JSON with user stories and acceptance criteria in this structure:\n\n" + storiesShape,
		},
		"revise_user_stories": {
			System: "You are a helpful product owner assistant who revises user stories and acceptance criteria. " +
				"Output your response in raw JSON format only, no explanations, no markdown.",
			Template: "Revise the user stories for this requirement based on the feedback.\n\n" +
				"Requirement: {{.Requirement}}\n\n" +
				"Current user stories:\n{{.UserStories}}\n\n" +
				"Feedback: {{.Feedback}}\n\n" +
				"Return only JSON with user stories and acceptance criteria in this structure:\n\n" + storiesShape,
		},
		"design_doc": {
			System: "You are a helpful assistant that creates a combined functional and technical design document. " +
				"Output your response in JSON format only, no markdown, no extra commentary.",
			Template: "Create a design document that covers both functional and technical aspects, " +
				"referencing the following requirement and user stories:\n\n" +
				"Requirement: {{.Requirement}}\n" +
				"User Stories:\n{{.UserStories}}\n\n" +
				"Output only JSON, with keys 'functional_doc' and 'technical_doc', like this:\n\n" + designShape,
		},
		"revise_design_doc": {
			System: "You are a helpful assistant that revises a combined functional and technical design document. " +
				"Output your response in JSON format only, no markdown, no extra commentary.",
			Template: "Revise this design document based on the reviewer feedback.\n\n" +
				"Requirement: {{.Requirement}}\n\n" +
				"Functional design:\n{{.FunctionalDoc}}\n\n" +
				"Technical design:\n{{.TechnicalDoc}}\n\n" +
				"Feedback: {{.Feedback}}\n\n" +
				"Output only JSON, with keys 'functional_doc' and 'technical_doc', like this:\n\n" + designShape,
		},
		"code": {
			System: "You are a code-generating assistant that produces {{.Language}} code across multiple files. " +
				"Output only valid JSON with a 'files' object containing {filename: file_content}.",
			Template: "Generate {{.Language}} code based on this design document:\n\n" +
				"{{.DesignDoc}}\n\n" +
				"Return only JSON with the following structure:\n\n" + codeShape,
		},
		"revise_code": {
			System: "You are a code-generating assistant that revises {{.Language}} code across multiple files. " +
				"Output only valid JSON with a 'files' object containing {filename: file_content}.",
			Template: "Revise the generated code based on the reviewer feedback.\n\n" +
				"Design document:\n{{.DesignDoc}}\n\n" +
				"Current code:\n{{.Code}}\n\n" +
				"Feedback: {{.Feedback}}\n\n" +
				"Return the complete file set, not only the changed files, as JSON with the following structure:\n\n" + codeShape,
		},
	}
}

// GetPrompt returns the expanded system and user messages for an intent.
//
// Both fields are expanded as templates with data. A field left empty in the
// configuration falls back to the built-in default. Returns an error if the
// intent has no prompt at all or a template fails to parse or execute.
func (c *Config) GetPrompt(intent string, data PromptData) (system, user string, err error) {
	p, ok := c.prompt(intent)
	if !ok {
		return "", "", fmt.Errorf("no prompt configured for intent %q", intent)
	}

	system, err = expandTemplate(p.System, data)
	if err != nil {
		return "", "", fmt.Errorf("prompt %q system: %w", intent, err)
	}
	user, err = expandTemplate(p.Template, data)
	if err != nil {
		return "", "", fmt.Errorf("prompt %q template: %w", intent, err)
	}
	return system, user, nil
}

func (c *Config) prompt(intent string) (PromptConfig, bool) {
	def, hasDefault := DefaultPrompts()[intent]
	p, configured := c.Prompts[intent]
	if !configured {
		return def, hasDefault
	}
	if p.System == "" {
		p.System = def.System
	}
	if p.Template == "" {
		p.Template = def.Template
	}
	return p, p.Template != ""
}

// expandTemplate executes tmpl with data.
func expandTemplate(tmpl string, data PromptData) (string, error) {
	t, err := template.New("prompt").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
