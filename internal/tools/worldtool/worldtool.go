// Package worldtool provides the built-in "get_location" function, which
// tells an agent where it currently is.
package worldtool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/llmgate/internal/tools"
	"github.com/MrWong99/llmgate/pkg/llm"
)

// ErrUnknownAgent is returned by a [Locator] that has no record of an agent.
var ErrUnknownAgent = errors.New("unknown agent")

// Locator resolves an agent's current location.
type Locator interface {
	Locate(ctx context.Context, agent string) (string, error)
}

// StaticLocator is a [Locator] backed by a fixed agent → location table that
// can be updated at runtime. It is safe for concurrent use.
type StaticLocator struct {
	mu        sync.RWMutex
	locations map[string]string
}

// NewStaticLocator copies locations into a new StaticLocator.
func NewStaticLocator(locations map[string]string) *StaticLocator {
	l := &StaticLocator{locations: make(map[string]string, len(locations))}
	for agent, loc := range locations {
		l.locations[agent] = loc
	}
	return l
}

// Set moves agent to location.
func (l *StaticLocator) Set(agent, location string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locations[agent] = location
}

// Locate implements [Locator].
func (l *StaticLocator) Locate(_ context.Context, agent string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	loc, ok := l.locations[agent]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAgent, agent)
	}
	return loc, nil
}

type locationArgs struct {
	Agent string `json:"agent"`
}

type locationResult struct {
	Agent    string `json:"agent"`
	Location string `json:"location"`
}

func makeLocationHandler(l Locator) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a locationArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("world tool: get_location: failed to parse arguments: %w", err)
		}
		agent := strings.TrimSpace(a.Agent)
		if agent == "" {
			return "", fmt.Errorf("world tool: get_location: agent must not be empty")
		}
		loc, err := l.Locate(ctx, agent)
		if err != nil {
			return "", fmt.Errorf("world tool: get_location: %w", err)
		}
		res, err := json.Marshal(locationResult{Agent: agent, Location: loc})
		if err != nil {
			return "", fmt.Errorf("world tool: get_location: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// NewTools returns the "get_location" function backed by l.
func NewTools(l Locator) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llm.FunctionDefinition{
				Name:        "get_location",
				Description: "Get the current location of an agent.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"agent": map[string]any{
							"type":        "string",
							"description": "Name of the agent to locate.",
						},
					},
					"required": []string{"agent"},
				},
			},
			Handler: makeLocationHandler(l),
		},
	}
}
