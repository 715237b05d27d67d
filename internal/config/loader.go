package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "REQFLOW"

// ConfigFileName is the file looked up in the user config directory.
const ConfigFileName = "config.yaml"

// Loader handles Viper-based configuration loading.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with defaults and environment bindings registered.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	_ = v.BindEnv("generator.claude.binary_path", EnvPrefix+"_CLAUDE_PATH", EnvPrefix+"_GENERATOR_CLAUDE_BINARY_PATH")
	_ = v.BindEnv("generator.openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("store.dsn", EnvPrefix+"_STORE_DSN", "DATABASE_URL")

	return &Loader{v: v}
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("generator.backend", d.Generator.Backend)
	v.SetDefault("generator.claude.binary_path", d.Generator.Claude.BinaryPath)
	v.SetDefault("generator.claude.output_format", d.Generator.Claude.OutputFormat)
	v.SetDefault("generator.claude.model", d.Generator.Claude.Model)
	v.SetDefault("generator.openai.model", d.Generator.OpenAI.Model)
	v.SetDefault("generator.openai.base_url", d.Generator.OpenAI.BaseURL)
	v.SetDefault("generator.openai.api_key", d.Generator.OpenAI.APIKey)
	v.SetDefault("generator.openai.temperature", d.Generator.OpenAI.Temperature)
	v.SetDefault("generator.openai.max_tokens", d.Generator.OpenAI.MaxTokens)
	v.SetDefault("review.max_attempts", d.Review.MaxAttempts)
	v.SetDefault("review.max_revisions", d.Review.MaxRevisions)
	v.SetDefault("stages.code_regeneration", d.Stages.CodeRegeneration)
	v.SetDefault("stages.code_language", d.Stages.CodeLanguage)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.format", d.Store.Format)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("output.truncate_lines", d.Output.TruncateLines)
	v.SetDefault("output.width", d.Output.Width)
}

// Load reads configuration from the first config file found in priority
// order, falling back to defaults when none exists.
func (l *Loader) Load() (*Config, error) {
	if path := os.Getenv(EnvPrefix + "_CONFIG_PATH"); path != "" {
		return l.LoadFromFile(path)
	}

	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err == nil {
			return l.LoadFromFile(path)
		}
	}

	return l.unmarshal()
}

// LoadFromFile reads configuration from path. The format is taken from the
// file extension.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return l.unmarshal()
}

// Set overrides a single key, as command-line flags do.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func searchPaths() []string {
	var paths []string
	if p, err := DefaultConfigPath(); err == nil {
		paths = append(paths, p)
	}
	return append(paths, "reqflow.yaml")
}

// MustLoad loads configuration and panics on error.
func MustLoad() *Config {
	cfg, err := NewLoader().Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// ConfigDir returns the reqflow directory inside the platform config directory.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(base, "reqflow"), nil
}

// DefaultConfigPath returns the user-level config file path.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// EnsureConfigDir creates the user config directory if it does not exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// ErrInvalidConfig is wrapped by every [Config.Validate] error.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks enumerated settings, bounds and prompt templates.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch c.Generator.Backend {
	case BackendClaude, BackendOpenAI:
	default:
		return invalid("unknown generator backend %q", c.Generator.Backend)
	}

	if c.Review.MaxAttempts <= 0 {
		return invalid("review.max_attempts must be positive, got %d", c.Review.MaxAttempts)
	}
	if c.Review.MaxRevisions <= 0 {
		return invalid("review.max_revisions must be positive, got %d", c.Review.MaxRevisions)
	}

	switch c.Store.Driver {
	case DriverFile:
		if c.Store.Format != "json" && c.Store.Format != "yaml" {
			return invalid("unknown store format %q", c.Store.Format)
		}
	case DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return invalid("store.dsn is required for the postgres driver")
		}
	default:
		return invalid("unknown store driver %q", c.Store.Driver)
	}

	if c.Log.Format != "console" && c.Log.Format != "json" {
		return invalid("unknown log format %q", c.Log.Format)
	}

	for intent := range DefaultPrompts() {
		if _, _, err := c.GetPrompt(intent, PromptData{}); err != nil {
			return invalid("%v", err)
		}
	}
	return nil
}
