package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/llmgate/internal/tools"
	"github.com/MrWong99/llmgate/pkg/llm"
)

// Transport selects how [Connect] reaches an MCP server.
type Transport string

const (
	// TransportStdio launches the server as a subprocess and speaks over its
	// stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP speaks to a server at a URL.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a known transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// RemoteConfig describes an external MCP server.
type RemoteConfig struct {
	// Name identifies the server in errors.
	Name string `yaml:"name" validate:"required"`

	// Transport is either "stdio" or "streamable-http".
	Transport Transport `yaml:"transport" validate:"required,oneof=stdio streamable-http"`

	// Command is the executable plus arguments, split on whitespace. Stdio only.
	Command string `yaml:"command" validate:"required_if=Transport stdio"`

	// Env holds extra environment variables for the subprocess. Stdio only.
	Env map[string]string `yaml:"env"`

	// URL is the endpoint address. Streamable HTTP only.
	URL string `yaml:"url" validate:"required_if=Transport streamable-http,omitempty,url"`
}

// Remote is a live connection to an external MCP server.
type Remote struct {
	name    string
	session *mcpsdk.ClientSession

	closeOnce sync.Once
	closeErr  error
}

// Connect establishes a session with the server described by cfg.
func Connect(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("mcp tools: remote config must have a non-empty name")
	}
	if !cfg.Transport.IsValid() {
		return nil, fmt.Errorf("mcp tools: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	var transport mcpsdk.Transport
	switch cfg.Transport {
	case TransportStdio:
		fields := strings.Fields(cfg.Command)
		if len(fields) == 0 {
			return nil, fmt.Errorf("mcp tools: stdio server %q requires a non-empty command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}
	case TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp tools: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	}
	return ConnectTransport(ctx, cfg.Name, transport)
}

// ConnectTransport establishes a session over an already constructed
// transport.
func ConnectTransport(ctx context.Context, name string, t mcpsdk.Transport) (*Remote, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "llmgate", Version: "dev"}, nil)
	session, err := client.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp tools: failed to connect to server %q: %w", name, err)
	}
	return &Remote{name: name, session: session}, nil
}

// Name returns the server name.
func (r *Remote) Name() string { return r.name }

// Tools lists the server's tools and wraps each one as a [tools.Tool] whose
// handler calls back into the server.
func (r *Remote) Tools(ctx context.Context) ([]tools.Tool, error) {
	var out []tools.Tool
	for t, err := range r.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("mcp tools: failed to list tools for server %q: %w", r.name, err)
		}
		out = append(out, tools.Tool{
			Definition: llm.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaMap(t.InputSchema),
			},
			Handler: r.makeRemoteHandler(t.Name),
		})
	}
	return out, nil
}

func (r *Remote) makeRemoteHandler(name string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var argsMap map[string]any
		if strings.TrimSpace(args) != "" {
			if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
				return "", fmt.Errorf("mcp tools: invalid arguments for %q: %w", name, err)
			}
		}
		res, err := r.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: argsMap})
		if err != nil {
			return "", fmt.Errorf("mcp tools: call to %q on %q failed: %w", name, r.name, err)
		}

		var sb strings.Builder
		for _, c := range res.Content {
			if tc, ok := c.(*mcpsdk.TextContent); ok {
				sb.WriteString(tc.Text)
			}
		}
		if res.IsError {
			return "", fmt.Errorf("mcp tools: %s: %s", name, sb.String())
		}
		return sb.String(), nil
	}
}

// Close ends the session. It is safe to call more than once.
func (r *Remote) Close() error {
	r.closeOnce.Do(func() { r.closeErr = r.session.Close() })
	return r.closeErr
}
