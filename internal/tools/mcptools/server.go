// Package mcptools connects the function [tools.Dispatcher] to the Model
// Context Protocol using the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
//
// [NewServer] publishes every registered function as an MCP tool so external
// MCP clients can call them. [Connect] goes the other way: it attaches to an
// external MCP server over stdio or streamable HTTP and returns that server's
// tools as [tools.Tool] values ready for [tools.Dispatcher.RegisterAll].
package mcptools

import (
	"context"
	"encoding/json"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/llmgate/internal/tools"
	"github.com/MrWong99/llmgate/pkg/llm"
)

// ServerConfig describes the MCP server identity.
type ServerConfig struct {
	Name    string
	Version string
	Logger  *slog.Logger
}

// NewServer returns an MCP server exposing every tool currently registered on
// d. Calls are routed through [tools.Dispatcher.Execute], so handler errors
// reach the client as tool results with IsError set rather than protocol
// errors.
func NewServer(d *tools.Dispatcher, cfg ServerConfig) *mcpsdk.Server {
	if cfg.Name == "" {
		cfg.Name = "llmgate"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := mcpsdk.NewServer(&mcpsdk.Implementation{Name: cfg.Name, Version: cfg.Version}, &mcpsdk.ServerOptions{
		Logger: cfg.Logger,
	})

	for _, t := range d.Tools() {
		def := t.Definition
		s.AddTool(&mcpsdk.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: objectSchema(def.Parameters),
		}, makeToolHandler(d, def.Name))
	}
	return s
}

// Serve runs the server over stdio until ctx is cancelled or the client
// disconnects.
func Serve(ctx context.Context, d *tools.Dispatcher, cfg ServerConfig) error {
	return NewServer(d, cfg).Run(ctx, &mcpsdk.StdioTransport{})
}

func makeToolHandler(d *tools.Dispatcher, name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := "{}"
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			args = string(req.Params.Arguments)
		}
		res := d.Execute(ctx, llm.FunctionCall{Name: name, RawArguments: args})
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.Payload()}},
			IsError: !res.OK(),
		}, nil
	}
}

// objectSchema returns params when it is an object schema, and an empty
// object schema otherwise. MCP requires tool inputs to be objects.
func objectSchema(params map[string]any) map[string]any {
	if params != nil && params["type"] == "object" {
		return params
	}
	return map[string]any{"type": "object"}
}

// schemaMap converts an SDK-decoded schema back into a plain map.
func schemaMap(schema any) map[string]any {
	if schema == nil {
		return nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}
