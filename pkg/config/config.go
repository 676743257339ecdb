// Package config loads the uplift service configuration from an optional
// YAML file with environment-variable overrides. Required keys are checked
// once at startup so pipelines never discover a missing credential halfway
// through a run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBind             = ":8000"
	DefaultListLimit        = 10
	DefaultMaxListLimit     = 50
	DefaultWorkDir          = "workspace/app"
	DefaultAppPort          = 3000
	DefaultAIProvider       = AIProviderGoogle
	DefaultGoogleModel      = "gemini-2.0-flash-lite"
	DefaultAnthropicModel   = "claude-3-5-haiku-latest"
	DefaultBrowserWait      = 5 * time.Minute
	DefaultBrowserInterval  = 3 * time.Second
	DefaultImplementWait    = 9 * time.Minute
	DefaultImplementPoll    = 5 * time.Second
	DefaultMaxConcurrent    = 3
	DefaultSandboxBaseURL   = "https://app.daytona.io/api"
	DefaultBrowserBaseURL   = "https://api.browser-use.com/api/v1"
	DefaultGoogleBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
)

// Config is the complete uplift service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Browser   BrowserConfig   `yaml:"browser"`
	AI        AIConfig        `yaml:"ai"`
	Bus       BusConfig       `yaml:"bus"`
	CodeAgent CodeAgentConfig `yaml:"code_agent"`
	Observe   ObserveConfig   `yaml:"observe"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Bind         string `yaml:"bind"`
	ListLimit    int    `yaml:"list_limit"`
	MaxListLimit int    `yaml:"max_list_limit"`
}

// StoreConfig points at the record store.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// SandboxConfig configures the sandbox provisioner client.
type SandboxConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	WorkDir string `yaml:"work_dir"`
	AppPort int    `yaml:"app_port"`
}

// BrowserConfig configures the simulated-user driver client.
type BrowserConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	MaxWait      time.Duration `yaml:"max_wait"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Generation backends selectable via ai.provider.
const (
	AIProviderGoogle    = "google"
	AIProviderAnthropic = "anthropic"
)

// AIConfig configures the text-generation providers. Two distinct keys: the
// Google key drives prompt/analysis generation, the Anthropic key is handed
// to variant sandboxes for the coding-agent runtime.
type AIConfig struct {
	Provider         string `yaml:"provider"`
	GoogleAPIKey     string `yaml:"google_api_key"`
	GoogleBaseURL    string `yaml:"google_base_url"`
	GoogleModel      string `yaml:"google_model"`
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`
	AnthropicBaseURL string `yaml:"anthropic_base_url"`
	AnthropicModel   string `yaml:"anthropic_model"`
}

// BusConfig configures pipeline job dispatch.
type BusConfig struct {
	URL      string `yaml:"url"`
	EventKey string `yaml:"event_key"`
	// InMemory forces the in-process bus; used by tests and single-node runs.
	InMemory bool `yaml:"in_memory"`
}

// CodeAgentConfig configures the autonomous coding-agent runner.
type CodeAgentConfig struct {
	// CallbackURL must be reachable from inside a sandbox.
	CallbackURL   string        `yaml:"callback_url"`
	MaxWait       time.Duration `yaml:"max_wait"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// ObserveConfig configures optional AI observability. All fields optional;
// an empty APIKey disables the recorder without failing startup.
type ObserveConfig struct {
	APIKey     string `yaml:"api_key"`
	ConsoleURL string `yaml:"console_url"`
	Project    string `yaml:"project"`
	LogStream  string `yaml:"log_stream"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// Default returns a Config with every non-secret field populated.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:         DefaultBind,
			ListLimit:    DefaultListLimit,
			MaxListLimit: DefaultMaxListLimit,
		},
		Sandbox: SandboxConfig{
			BaseURL: DefaultSandboxBaseURL,
			WorkDir: DefaultWorkDir,
			AppPort: DefaultAppPort,
		},
		Browser: BrowserConfig{
			BaseURL:      DefaultBrowserBaseURL,
			MaxWait:      DefaultBrowserWait,
			PollInterval: DefaultBrowserInterval,
		},
		AI: AIConfig{
			Provider:         DefaultAIProvider,
			GoogleBaseURL:    DefaultGoogleBaseURL,
			GoogleModel:      DefaultGoogleModel,
			AnthropicBaseURL: DefaultAnthropicBaseURL,
			AnthropicModel:   DefaultAnthropicModel,
		},
		CodeAgent: CodeAgentConfig{
			MaxWait:       DefaultImplementWait,
			PollInterval:  DefaultImplementPoll,
			MaxConcurrent: DefaultMaxConcurrent,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path (optional; "" skips the file), applies
// environment overrides, and validates required keys.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("UPLIFT_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("SANDBOX_API_KEY"); v != "" {
		cfg.Sandbox.APIKey = v
	}
	if v := os.Getenv("SANDBOX_BASE_URL"); v != "" {
		cfg.Sandbox.BaseURL = v
	}
	if v := os.Getenv("BROWSER_USE_API_KEY"); v != "" {
		cfg.Browser.APIKey = v
	}
	if v := os.Getenv("BROWSER_USE_BASE_URL"); v != "" {
		cfg.Browser.BaseURL = v
	}
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if v := os.Getenv("GOOGLE_GENERATIVE_AI_API_KEY"); v != "" {
		cfg.AI.GoogleAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AI.AnthropicAPIKey = v
	}
	if v := os.Getenv("BUS_URL"); v != "" {
		cfg.Bus.URL = v
	}
	if v := os.Getenv("BUS_EVENT_KEY"); v != "" {
		cfg.Bus.EventKey = v
	}
	if v := os.Getenv("CODE_AGENT_CALLBACK_URL"); v != "" {
		cfg.CodeAgent.CallbackURL = v
	}
	if v := os.Getenv("UPLIFT_MAX_CONCURRENT_IMPLEMENTATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CodeAgent.MaxConcurrent = n
		}
	}
	if v := os.Getenv("OBSERVE_API_KEY"); v != "" {
		cfg.Observe.APIKey = v
	}
	if v := os.Getenv("OBSERVE_CONSOLE_URL"); v != "" {
		cfg.Observe.ConsoleURL = v
	}
	if v := os.Getenv("OBSERVE_PROJECT"); v != "" {
		cfg.Observe.Project = v
	}
	if v := os.Getenv("OBSERVE_LOG_STREAM"); v != "" {
		cfg.Observe.LogStream = v
	}
	if v := os.Getenv("UPLIFT_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("UPLIFT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks every required key and reports all missing ones at once.
func (c *Config) Validate() error {
	var missing []string
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	require(c.Store.DSN, "store.dsn (DATABASE_URL)")
	require(c.Sandbox.APIKey, "sandbox.api_key (SANDBOX_API_KEY)")
	require(c.Browser.APIKey, "browser.api_key (BROWSER_USE_API_KEY)")
	switch c.AI.Provider {
	case "", AIProviderGoogle:
		require(c.AI.GoogleAPIKey, "ai.google_api_key (GOOGLE_GENERATIVE_AI_API_KEY)")
	case AIProviderAnthropic:
		// The Anthropic key doubles as the generation credential below.
	default:
		missing = append(missing, fmt.Sprintf("ai.provider (unknown provider %q)", c.AI.Provider))
	}
	// Always required: implementation sandboxes receive it as ANTHROPIC_API_KEY.
	require(c.AI.AnthropicAPIKey, "ai.anthropic_api_key (ANTHROPIC_API_KEY)")
	require(c.Bus.EventKey, "bus.event_key (BUS_EVENT_KEY)")
	require(c.CodeAgent.CallbackURL, "code_agent.callback_url (CODE_AGENT_CALLBACK_URL)")

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ObservabilityEnabled reports whether the optional observe block is active.
func (c *Config) ObservabilityEnabled() bool {
	return strings.TrimSpace(c.Observe.APIKey) != ""
}
