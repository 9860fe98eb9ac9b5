package config_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/llmgate/internal/config"
	"github.com/MrWong99/llmgate/pkg/llm"
	"github.com/MrWong99/llmgate/pkg/llm/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
prices:
  - model: acme/tiny
    input: 0.01
    output: 0.02
default_price:
  input: 3
  output: 9
fallback_models:
  - openai/gpt-4o
suites:
  recursion:
    models: [openai/gpt-4o-mini, acme/tiny]
    prompts: ["Explain recursion."]
agents:
  - name: Klaus
    location: Hobbs Cafe
    memories:
      - Isabella is planning a Valentine's party.
mcp_servers:
  - name: dice
    transport: stdio
    command: /usr/local/bin/mcp-dice
`

// envMap returns a LookupEnv func backed by m.
func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// noDotenv points Load at a dotenv file that does not exist.
func noDotenv(t *testing.T) []string {
	t.Helper()
	return []string{filepath.Join(t.TempDir(), "missing.env")}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load(config.LoadOptions{
		EnvFiles:  noDotenv(t),
		LookupEnv: envMap(map[string]string{"LLM_API_KEY": "sk-test"}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != config.DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Models.Default != config.DefaultModel {
		t.Errorf("Models.Default = %q", cfg.Models.Default)
	}
	if cfg.Backend != config.BackendREST {
		t.Errorf("Backend = %q", cfg.Backend)
	}
	if cfg.MinInterval != 100*time.Millisecond {
		t.Errorf("MinInterval = %v, want 100ms", cfg.MinInterval)
	}
	if cfg.EffectiveLogLevel() != config.LogInfo {
		t.Errorf("EffectiveLogLevel = %q", cfg.EffectiveLogLevel())
	}
}

func TestLoad_AllVariables(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load(config.LoadOptions{
		EnvFiles: noDotenv(t),
		LookupEnv: envMap(map[string]string{
			"LLM_API_KEY":         "sk-test",
			"LLM_BASE_URL":        "http://localhost:11434/v1",
			"LLM_MODEL_DEFAULT":   "m-default",
			"LLM_MODEL_FAST":      "m-fast",
			"LLM_MODEL_ADVANCED":  "m-adv",
			"LLM_MODEL_VISION":    "m-vision",
			"LLM_EMBEDDING_MODEL": "m-embed",
			"LLM_BACKEND":         "sdk",
			"LLM_MIN_INTERVAL":    "250ms",
			"LLM_TIMEOUT":         "30s",
			"LLM_APP_URL":         "https://example.com",
			"LLM_APP_TITLE":       "llmgate",
			"LLM_DEBUG":           "true",
			"LLM_LOG_LEVEL":       "WARN",
		}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != config.BackendSDK || cfg.MinInterval != 250*time.Millisecond || cfg.Timeout != 30*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Models.Tier("fast") != "m-fast" || cfg.Models.Tier("vision") != "m-vision" || cfg.Models.Tier("nope") != "m-default" {
		t.Errorf("Models = %+v", cfg.Models)
	}
	if cfg.LogLevel != config.LogWarn {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.EffectiveLogLevel() != config.LogDebug {
		t.Errorf("LLM_DEBUG should force debug, got %q", cfg.EffectiveLogLevel())
	}
}

func TestLoad_Dotenv(t *testing.T) {
	t.Parallel()
	env := writeFile(t, ".env", "LLM_API_KEY=sk-from-file\nLLM_MODEL_FAST=file-fast\n")

	cfg, err := config.Load(config.LoadOptions{
		EnvFiles:  []string{env},
		LookupEnv: envMap(map[string]string{"LLM_MODEL_FAST": "env-fast"}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "sk-from-file" {
		t.Errorf("APIKey = %q, want value from dotenv", cfg.APIKey)
	}
	if cfg.Models.Fast != "env-fast" {
		t.Errorf("Models.Fast = %q, environment must win over dotenv", cfg.Models.Fast)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "llmgate.yaml", sampleYAML)

	cfg, err := config.Load(config.LoadOptions{
		EnvFiles:  noDotenv(t),
		LookupEnv: envMap(map[string]string{"LLM_API_KEY": "sk", "LLM_CONFIG_FILE": path}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FilePath != path {
		t.Errorf("FilePath = %q", cfg.FilePath)
	}
	s, ok := cfg.File.Suites["recursion"]
	if !ok || len(s.Models) != 2 || len(s.Prompts) != 1 {
		t.Errorf("suites = %+v", cfg.File.Suites)
	}
	if len(cfg.File.Agents) != 1 || cfg.File.Agents[0].Location != "Hobbs Cafe" {
		t.Errorf("agents = %+v", cfg.File.Agents)
	}
	if len(cfg.File.MCPServers) != 1 || cfg.File.MCPServers[0].Command != "/usr/local/bin/mcp-dice" {
		t.Errorf("mcp_servers = %+v", cfg.File.MCPServers)
	}

	table, err := cfg.PriceTable()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e, ok := table.Lookup("acme/tiny"); !ok || e.OutputPerMillion != 0.02 {
		t.Errorf("acme/tiny = %+v, %v", e, ok)
	}
	if _, ok := table.Lookup("openai/gpt-4o"); !ok {
		t.Error("built-in prices should remain")
	}
	if got := table.Estimate("unknown/model", 1_000_000, 0); got != 3 {
		t.Errorf("fallback estimate = %v, want 3", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		env  map[string]string
		want []string
	}{
		{
			name: "missing api key",
			env:  map[string]string{},
			want: []string{"LLM_API_KEY is required"},
		},
		{
			name: "bad values are all reported",
			env: map[string]string{
				"LLM_API_KEY":   "sk",
				"LLM_BASE_URL":  "not a url",
				"LLM_BACKEND":   "grpc",
				"LLM_LOG_LEVEL": "loud",
				"LLM_APP_URL":   "::",
			},
			want: []string{"LLM_BASE_URL", "LLM_BACKEND \"grpc\" is invalid", "LLM_LOG_LEVEL", "LLM_APP_URL"},
		},
		{
			name: "unparsable values",
			env:  map[string]string{"LLM_API_KEY": "sk", "LLM_TIMEOUT": "soon", "LLM_DEBUG": "perhaps"},
			want: []string{"LLM_TIMEOUT", "LLM_DEBUG"},
		},
		{
			name: "negative duration",
			env:  map[string]string{"LLM_API_KEY": "sk", "LLM_MIN_INTERVAL": "-1s"},
			want: []string{"LLM_MIN_INTERVAL must not be negative"},
		},
		{
			name: "missing file",
			env:  map[string]string{"LLM_API_KEY": "sk", "LLM_CONFIG_FILE": "/nonexistent/llmgate.yaml"},
			want: []string{"open"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.Load(config.LoadOptions{EnvFiles: noDotenv(t), LookupEnv: envMap(tt.env)})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error should mention %q, got: %v", w, err)
				}
			}
		})
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	m := &mock.Completer{Responses: []mock.Response{{Text: "hi"}}}
	var gotClient *http.Client
	reg.Register(config.BackendREST, func(cfg *config.Config, hc *http.Client) (*config.Clients, error) {
		gotClient = hc
		return &config.Clients{Completer: m, Embedder: m}, nil
	})
	reg.Register(config.BackendSDK, func(*config.Config, *http.Client) (*config.Clients, error) {
		return nil, errors.New("no sdk today")
	})

	if names := reg.Names(); len(names) != 2 || names[0] != config.BackendREST {
		t.Errorf("Names = %v", names)
	}

	hc := &http.Client{}
	clients, err := reg.Create(&config.Config{Backend: config.BackendREST}, hc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotClient != hc {
		t.Error("factory did not receive the HTTP client")
	}
	res, err := clients.Completer.Complete(context.Background(), llm.CompletionRequest{Model: "x", Messages: []llm.Message{llm.UserMessage("hey")}})
	if err != nil || res.Text != "hi" {
		t.Errorf("Complete = %v, %v", res, err)
	}

	if _, err := reg.Create(&config.Config{Backend: config.BackendSDK}, hc); err == nil || !strings.Contains(err.Error(), "no sdk today") {
		t.Errorf("factory error not propagated: %v", err)
	}
	if _, err := reg.Create(&config.Config{Backend: "grpc"}, hc); !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Errorf("err = %v, want ErrBackendNotRegistered", err)
	}
}

func TestRegistry_NilCompleter(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.Register(config.BackendREST, func(*config.Config, *http.Client) (*config.Clients, error) {
		return &config.Clients{}, nil
	})
	if _, err := reg.Create(&config.Config{Backend: config.BackendREST}, nil); err == nil {
		t.Fatal("expected error for a backend without a completer")
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("loud").IsValid() {
		t.Error(`"loud" should be invalid`)
	}
	if config.LogDebug.Level().String() != "DEBUG" || config.LogLevel("").Level().String() != "INFO" {
		t.Error("unexpected slog level mapping")
	}
}
