// Package config loads agent configuration from a YAML file and MANUS_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. MANUS_AGENT_MAX_STEPS.
const EnvPrefix = "MANUS"

// Config stores all configuration of the application.
type Config struct {
	Agent     AgentConfig     `mapstructure:"agent"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	LogLevel  string          `mapstructure:"log_level"`
}

// AgentConfig controls the step loop.
type AgentConfig struct {
	Name               string        `mapstructure:"name"`
	MaxSteps           int           `mapstructure:"max_steps"`            // hard step budget per run
	MaxObserve         int           `mapstructure:"max_observe"`          // observation ceiling in characters
	BrowserWindow      int           `mapstructure:"browser_window"`       // recent messages inspected for browser use
	SummaryWindow      int           `mapstructure:"summary_window"`       // tool results fed to the summarizer
	SummarySnippet     int           `mapstructure:"summary_snippet"`      // characters kept per summarized result
	MaxContextMessages int           `mapstructure:"max_context_messages"` // messages sent to the model per step
	StallThreshold     int           `mapstructure:"stall_threshold"`      // consecutive idle steps before stopping; 0 disables
	DuplicateThreshold int           `mapstructure:"duplicate_threshold"`  // repeated replies before steering
	CleanupTimeout     time.Duration `mapstructure:"cleanup_timeout"`
}

// LLMConfig selects the model provider.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // "openai", "anthropic", "ollama", ...
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

// WorkspaceConfig defines where file and shell tools operate.
type WorkspaceConfig struct {
	Root string `mapstructure:"root"`
}

// ToolsConfig tunes the built-in tools.
type ToolsConfig struct {
	ShellTimeout  time.Duration `mapstructure:"shell_timeout"`
	PythonTimeout time.Duration `mapstructure:"python_timeout"`
	PythonBinary  string        `mapstructure:"python_binary"`
}

// BrowserConfig tunes the browser session.
type BrowserConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	MaxContentChars int           `mapstructure:"max_content_chars"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("agent.name", "Manus")
	v.SetDefault("agent.max_steps", 20)
	v.SetDefault("agent.max_observe", 10000)
	v.SetDefault("agent.browser_window", 3)
	v.SetDefault("agent.summary_window", 5)
	v.SetDefault("agent.summary_snippet", 100)
	v.SetDefault("agent.max_context_messages", 100)
	v.SetDefault("agent.stall_threshold", 0)
	v.SetDefault("agent.duplicate_threshold", 2)
	v.SetDefault("agent.cleanup_timeout", "10s")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("workspace.root", "./workspace")

	v.SetDefault("tools.shell_timeout", "120s")
	v.SetDefault("tools.python_timeout", "30s")
	v.SetDefault("tools.python_binary", "python3")

	v.SetDefault("browser.timeout", "30s")
	v.SetDefault("browser.user_agent", "manus-agent/1.0")
	v.SetDefault("browser.max_content_chars", 2000)

	v.SetDefault("log_level", "info")
}

// Load reads configuration from configPath, or from config.yaml in the
// current directory or ~/.config/manus when configPath is empty. A missing
// search-path file is not an error; defaults and environment still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "manus"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration values the agent cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Agent.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_steps must be positive, got %d", c.Agent.MaxSteps))
	}
	if c.Agent.MaxObserve <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_observe must be positive, got %d", c.Agent.MaxObserve))
	}
	if c.Agent.StallThreshold < 0 {
		errs = append(errs, fmt.Errorf("agent.stall_threshold must not be negative, got %d", c.Agent.StallThreshold))
	}
	if c.LLM.Provider == "" {
		errs = append(errs, errors.New("llm.provider is required"))
	}
	if c.Workspace.Root == "" {
		errs = append(errs, errors.New("workspace.root is required"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
