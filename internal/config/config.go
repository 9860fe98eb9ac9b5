// Package config provides the configuration schema, loader, and backend
// registry for llmgate.
//
// Settings come from the process environment (optionally seeded from a .env
// file) and an optional YAML file holding price tables, comparison suites,
// agent fixtures for the built-in tools and external MCP servers.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/llmgate/internal/tools/mcptools"
	"github.com/MrWong99/llmgate/pkg/cost"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Backend names the completion backend implementation.
type Backend string

const (
	// BackendREST is the hand-rolled HTTP gateway (package gateway).
	BackendREST Backend = "rest"

	// BackendSDK is the openai-go backed client.
	BackendSDK Backend = "sdk"
)

// Config is the root configuration. It is typically built by [Load].
type Config struct {
	APIKey  string `env:"LLM_API_KEY" validate:"required"`
	BaseURL string `env:"LLM_BASE_URL" validate:"required,url"`

	Models Models

	EmbeddingModel string `env:"LLM_EMBEDDING_MODEL"`

	Backend Backend `env:"LLM_BACKEND" validate:"oneof=rest sdk"`

	// MinInterval is the minimum spacing between non-streaming requests.
	MinInterval time.Duration `env:"LLM_MIN_INTERVAL" validate:"gte=0"`

	// Timeout bounds each HTTP request. Zero disables the bound.
	Timeout time.Duration `env:"LLM_TIMEOUT" validate:"gte=0"`

	// AppURL and AppTitle are sent as identification headers.
	AppURL   string `env:"LLM_APP_URL" validate:"omitempty,url"`
	AppTitle string `env:"LLM_APP_TITLE"`

	// Debug turns on verbose diagnostics, equivalent to LogLevel debug.
	Debug    bool     `env:"LLM_DEBUG"`
	LogLevel LogLevel `env:"LLM_LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`

	// FilePath is the YAML file File was read from. Empty when none.
	FilePath string `env:"LLM_CONFIG_FILE"`

	File FileConfig
}

// Models holds the model identifiers selected per tier.
type Models struct {
	Default  string `env:"LLM_MODEL_DEFAULT" validate:"required"`
	Fast     string `env:"LLM_MODEL_FAST"`
	Advanced string `env:"LLM_MODEL_ADVANCED"`
	Vision   string `env:"LLM_MODEL_VISION"`
}

// Tier returns the model for tier ("default", "fast", "advanced", "vision"),
// falling back to the default model when the tier is unset or unknown.
func (m Models) Tier(tier string) string {
	var v string
	switch tier {
	case "fast":
		v = m.Fast
	case "advanced":
		v = m.Advanced
	case "vision":
		v = m.Vision
	}
	if v == "" {
		return m.Default
	}
	return v
}

// EffectiveLogLevel resolves Debug and LogLevel into one level.
func (c *Config) EffectiveLogLevel() LogLevel {
	if c.Debug {
		return LogDebug
	}
	if c.LogLevel == "" {
		return LogInfo
	}
	return c.LogLevel
}

// FileConfig is the schema of the optional YAML configuration file.
type FileConfig struct {
	// Prices extend or override the built-in price table.
	Prices []cost.PriceEntry `yaml:"prices"`

	// DefaultPrice replaces the fallback used for unpriced models.
	DefaultPrice *cost.PriceEntry `yaml:"default_price"`

	// FallbackModels are tried in order when the default model fails.
	FallbackModels []string `yaml:"fallback_models" validate:"dive,required"`

	// Suites are named comparison sets for "compare --suite".
	Suites map[string]Suite `yaml:"suites" validate:"dive"`

	// Agents seed the built-in location and memory functions.
	Agents []AgentConfig `yaml:"agents" validate:"dive"`

	// MCPServers are external tool servers attached to "chat --tools".
	MCPServers []mcptools.RemoteConfig `yaml:"mcp_servers" validate:"dive"`
}

// Suite is a set of models and prompts compared together.
type Suite struct {
	Models  []string `yaml:"models" validate:"min=1,dive,required"`
	Prompts []string `yaml:"prompts" validate:"min=1,dive,required"`
}

// AgentConfig describes one agent known to the built-in functions.
type AgentConfig struct {
	Name     string   `yaml:"name" validate:"required"`
	Location string   `yaml:"location"`
	Memories []string `yaml:"memories"`
}

// PriceTable builds a cost table from the built-in prices overlaid with
// File.Prices. File.DefaultPrice, when set, replaces the fallback entry.
func (c *Config) PriceTable() (*cost.Table, error) {
	entries := append(cost.Builtin(), c.File.Prices...)
	fallback := cost.DefaultFallback
	if c.File.DefaultPrice != nil {
		fallback = *c.File.DefaultPrice
	}
	return cost.NewTable(entries, fallback)
}

// ApplyPrices installs the file's prices into the process-wide default table.
// It must run before anything prices a completion.
func (c *Config) ApplyPrices() error {
	if len(c.File.Prices) == 0 && c.File.DefaultPrice == nil {
		return nil
	}
	return cost.Configure(c.File.Prices, c.File.DefaultPrice)
}
