// Package config provides configuration loading and management for reqflow.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The defaults work out of the box with the Claude CLI on PATH
// and runs stored as JSON files in the working directory.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [PromptConfig] is the system message and user template for one generation intent
//   - [GeneratorConfig] selects and configures the generator backend
//
// Configuration priority (highest to lowest):
//  1. Environment variables (REQFLOW_ prefix, nested keys joined by "_")
//  2. Config file specified by REQFLOW_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/reqflow/config.yaml
//     - macOS: ~/Library/Application Support/reqflow/config.yaml
//     - Windows: %APPDATA%\reqflow\config.yaml
//  4. ./reqflow.yaml
//  5. [DefaultConfig] defaults
package config

// Generator backends.
const (
	BackendClaude = "claude"
	BackendOpenAI = "openai"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the root configuration structure.
type Config struct {
	// Generator selects the backend that answers generation requests.
	Generator GeneratorConfig `mapstructure:"generator"`

	// Review bounds the review loop of every stage.
	Review ReviewConfig `mapstructure:"review"`

	// Stages toggles stage capabilities.
	Stages StagesConfig `mapstructure:"stages"`

	// Store selects where workflow state is persisted between commands.
	Store StoreConfig `mapstructure:"store"`

	// Log configures the zap logger.
	Log LogConfig `mapstructure:"log"`

	// Prompts maps intent names to their prompt pair. Intents missing here, or
	// with an empty field, use the built-in default for that field.
	Prompts map[string]PromptConfig `mapstructure:"prompts"`

	// Output contains terminal rendering settings.
	Output OutputConfig `mapstructure:"output"`
}

// GeneratorConfig selects and configures the generator backend.
type GeneratorConfig struct {
	// Backend is "claude" (default) or "openai".
	Backend string `mapstructure:"backend"`

	Claude ClaudeConfig `mapstructure:"claude"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// ClaudeConfig contains Claude CLI configuration.
type ClaudeConfig struct {
	// BinaryPath is the path to the Claude CLI binary.
	// Default: "claude". Can be overridden with REQFLOW_CLAUDE_PATH.
	BinaryPath string `mapstructure:"binary_path"`

	// OutputFormat is passed to --output-format. Must stay "stream-json" for
	// event parsing to work.
	OutputFormat string `mapstructure:"output_format"`

	// Model is passed to --model when set.
	Model string `mapstructure:"model"`
}

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`

	// APIKey falls back to OPENAI_API_KEY when empty.
	APIKey string `mapstructure:"api_key"`

	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ReviewConfig bounds the per-stage review loop.
type ReviewConfig struct {
	// MaxAttempts is the number of review cycles without reviewer input
	// before the run ends as stalled. Default: 2
	MaxAttempts int `mapstructure:"max_attempts"`

	// MaxRevisions is the number of feedback rounds per stage before the run
	// ends as exhausted. Default: 2
	MaxRevisions int `mapstructure:"max_revisions"`
}

// StagesConfig toggles stage capabilities.
type StagesConfig struct {
	// CodeRegeneration enables the code review checkpoint. When false the
	// code stage is one-shot and the run completes as soon as code is produced.
	// Default: true
	CodeRegeneration bool `mapstructure:"code_regeneration"`

	// CodeLanguage is the target language named in code prompts.
	// Default: "Python"
	CodeLanguage string `mapstructure:"code_language"`
}

// StoreConfig selects the state store.
type StoreConfig struct {
	// Driver is "file" (default), "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`

	// Path is the run directory for the file driver and the database file for
	// the sqlite driver. Empty uses the driver default under ./.reqflow.
	Path string `mapstructure:"path"`

	// Format is "json" (default) or "yaml" for the file driver.
	Format string `mapstructure:"format"`

	// DSN is the connection string for the postgres driver.
	DSN string `mapstructure:"dsn"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is a zap level name. Unknown values fall back to info.
	Level string `mapstructure:"level"`

	// Format is "console" (default) or "json".
	Format string `mapstructure:"format"`

	// File, when set, receives log output instead of stderr.
	File string `mapstructure:"file"`
}

// PromptConfig is the message pair for one generation intent.
type PromptConfig struct {
	// System is the system message, sent verbatim.
	System string `mapstructure:"system"`

	// Template is the user message, a text/template expanded with [PromptData].
	Template string `mapstructure:"template"`
}

// OutputConfig contains terminal rendering settings.
type OutputConfig struct {
	// TruncateLines is the maximum number of lines shown per code file.
	// Additional lines are hidden with a "... (N more lines)" indicator.
	// Zero shows everything. Default: 40
	TruncateLines int `mapstructure:"truncate_lines"`

	// Width is the column width of rendered boxes. Default: 80
	Width int `mapstructure:"width"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Generator: GeneratorConfig{
			Backend: BackendClaude,
			Claude: ClaudeConfig{
				BinaryPath:   "claude",
				OutputFormat: "stream-json",
			},
			OpenAI: OpenAIConfig{
				Model:       "gpt-3.5-turbo",
				Temperature: 0.7,
				MaxTokens:   2048,
			},
		},
		Review: ReviewConfig{
			MaxAttempts:  2,
			MaxRevisions: 2,
		},
		Stages: StagesConfig{
			CodeRegeneration: true,
			CodeLanguage:     "Python",
		},
		Store: StoreConfig{
			Driver: DriverFile,
			Format: "json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Prompts: DefaultPrompts(),
		Output: OutputConfig{
			TruncateLines: 40,
			Width:         80,
		},
	}
}

// PromptData contains data for prompt template expansion.
//
// Fields are accessible in templates using {{.FieldName}} syntax.
type PromptData struct {
	// Requirement is the requirement text, extended with accepted story
	// feedback. During a revision it omits the feedback being applied, which
	// is in Feedback.
	Requirement string

	// UserStories is the story texts, one per line.
	UserStories string

	// Feedback is the reviewer feedback being applied. Empty outside revisions.
	Feedback string

	// FunctionalDoc and TechnicalDoc are the current design sections.
	FunctionalDoc string
	TechnicalDoc  string

	// DesignDoc is both design sections separated by a blank line.
	DesignDoc string

	// Code is the current generated files rendered as "### name" sections.
	Code string

	// Language is the target language for code generation.
	Language string
}
