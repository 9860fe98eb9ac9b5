// Package memorytool provides the built-in "recall_memories" function, which
// lets an agent look up what it remembers about a topic.
//
// The function delegates to a [Searcher]. [Store] is an in-process Searcher
// that ranks an agent's memories by embedding similarity; any other memory
// backend can be plugged in by implementing the interface.
//
// All handlers are safe for concurrent use.
package memorytool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrWong99/llmgate/internal/tools"
	"github.com/MrWong99/llmgate/pkg/llm"
)

// Memory is one remembered item.
type Memory struct {
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	Score       float64   `json:"score,omitempty"`
}

// Searcher returns up to limit memories of agent relevant to query, most
// relevant first.
type Searcher interface {
	Recall(ctx context.Context, agent, query string, limit int) ([]Memory, error)
}

// DefaultLimit is used when the model does not ask for a specific number of
// memories.
const DefaultLimit = 5

// maxLimit caps the number of memories a single call may return.
const maxLimit = 50

// recallArgs is the JSON-decoded input for the "recall_memories" function.
type recallArgs struct {
	// Agent is the name of the agent whose memories are searched.
	Agent string `json:"agent"`

	// Query is the topic to recall.
	Query string `json:"query"`

	// Limit caps the number of results. Defaults to DefaultLimit when ≤ 0.
	Limit int `json:"limit,omitempty"`
}

type recallResult struct {
	Agent    string   `json:"agent"`
	Memories []Memory `json:"memories"`
}

func makeRecallHandler(s Searcher) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a recallArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("memory tool: recall_memories: failed to parse arguments: %w", err)
		}
		if a.Agent == "" {
			return "", fmt.Errorf("memory tool: recall_memories: agent must not be empty")
		}
		if a.Query == "" {
			return "", fmt.Errorf("memory tool: recall_memories: query must not be empty")
		}
		limit := a.Limit
		if limit <= 0 {
			limit = DefaultLimit
		}
		limit = min(limit, maxLimit)

		mems, err := s.Recall(ctx, a.Agent, a.Query, limit)
		if err != nil {
			return "", fmt.Errorf("memory tool: recall_memories: %w", err)
		}
		if mems == nil {
			mems = []Memory{}
		}

		res, err := json.Marshal(recallResult{Agent: a.Agent, Memories: mems})
		if err != nil {
			return "", fmt.Errorf("memory tool: recall_memories: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// NewTools returns the "recall_memories" function backed by s.
func NewTools(s Searcher) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llm.FunctionDefinition{
				Name:        "recall_memories",
				Description: "Recall an agent's memories related to a topic. Returns the most relevant memories first.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"agent": map[string]any{
							"type":        "string",
							"description": "Name of the agent whose memories to search.",
						},
						"query": map[string]any{
							"type":        "string",
							"description": "Topic or question to recall memories about.",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of memories to return. Defaults to 5.",
						},
					},
					"required": []string{"agent", "query"},
				},
			},
			Handler: makeRecallHandler(s),
		},
	}
}
