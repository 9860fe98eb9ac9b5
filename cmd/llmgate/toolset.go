package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/llmgate/internal/hub"
	"github.com/MrWong99/llmgate/internal/tools"
	"github.com/MrWong99/llmgate/internal/tools/calc"
	"github.com/MrWong99/llmgate/internal/tools/hubtool"
	"github.com/MrWong99/llmgate/internal/tools/mcptools"
	"github.com/MrWong99/llmgate/internal/tools/memorytool"
	"github.com/MrWong99/llmgate/internal/tools/worldtool"
)

// toolset builds a dispatcher holding the built-in functions, seeded from
// the configured agents. With remote set, the tools of every configured MCP
// server are added too. The returned func closes the remote sessions.
func (a *app) toolset(ctx context.Context, remote bool) (*tools.Dispatcher, func(), error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}
	clients, err := a.backend()
	if err != nil {
		return nil, nil, err
	}

	locations := make(map[string]string, len(cfg.File.Agents))
	store := memorytool.NewStore(clients.Embedder, cfg.EmbeddingModel)
	for _, ag := range cfg.File.Agents {
		if ag.Location != "" {
			locations[ag.Name] = ag.Location
		}
		for _, m := range ag.Memories {
			if err := store.Add(ctx, ag.Name, m); err != nil {
				return nil, nil, err
			}
		}
	}

	d := tools.NewDispatcher(tools.WithMetrics(a.metrics), tools.WithLogger(slog.Default()))
	for _, ts := range [][]tools.Tool{
		calc.Tools(),
		worldtool.NewTools(worldtool.NewStaticLocator(locations)),
		memorytool.NewTools(store),
		hubtool.NewTools(hub.New()),
	} {
		if err := d.RegisterAll(ts); err != nil {
			return nil, nil, err
		}
	}

	var remotes []*mcptools.Remote
	closeAll := func() {
		for _, r := range remotes {
			if err := r.Close(); err != nil {
				slog.Warn("closing MCP server", "server", r.Name(), "err", err)
			}
		}
	}
	if !remote {
		return d, closeAll, nil
	}

	for _, rc := range cfg.File.MCPServers {
		r, err := mcptools.Connect(ctx, rc)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		remotes = append(remotes, r)
		ts, err := r.Tools(ctx)
		if err == nil {
			err = d.RegisterAll(ts)
		}
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("MCP server %s: %w", r.Name(), err)
		}
		slog.Info("MCP server attached", "server", r.Name(), "tools", len(ts))
	}
	return d, closeAll, nil
}
