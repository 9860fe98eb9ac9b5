// Package hubtool exposes the message hub to models through the
// "send_message" and "read_messages" functions.
package hubtool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/llmgate/internal/hub"
	"github.com/MrWong99/llmgate/internal/tools"
	"github.com/MrWong99/llmgate/pkg/llm"
)

// defaultReadLimit applies when read_messages is called without a limit.
const defaultReadLimit = 20

type sendArgs struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Content string `json:"content"`
}

type readArgs struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type readResult struct {
	Messages []hub.Message `json:"messages"`
}

func makeSendHandler(h *hub.Hub) func(context.Context, string) (string, error) {
	return func(_ context.Context, args string) (string, error) {
		var a sendArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("hub tool: send_message: failed to parse arguments: %w", err)
		}
		if strings.TrimSpace(a.From) == "" || strings.TrimSpace(a.To) == "" {
			return "", fmt.Errorf("hub tool: send_message: from and to must not be empty")
		}
		if a.Content == "" {
			return "", fmt.Errorf("hub tool: send_message: content must not be empty")
		}

		msg := h.Send(a.From, a.To, a.Content)
		res, err := json.Marshal(msg)
		if err != nil {
			return "", fmt.Errorf("hub tool: send_message: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

func makeReadHandler(h *hub.Hub) func(context.Context, string) (string, error) {
	return func(_ context.Context, args string) (string, error) {
		var a readArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("hub tool: read_messages: failed to parse arguments: %w", err)
		}
		limit := a.Limit
		if limit <= 0 {
			limit = defaultReadLimit
		}

		msgs := h.Query(hub.Query{
			Sender:    strings.TrimSpace(a.From),
			Recipient: strings.TrimSpace(a.To),
			Limit:     limit,
		})
		if msgs == nil {
			msgs = []hub.Message{}
		}
		res, err := json.Marshal(readResult{Messages: msgs})
		if err != nil {
			return "", fmt.Errorf("hub tool: read_messages: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// NewTools returns the "send_message" and "read_messages" functions backed
// by h.
func NewTools(h *hub.Hub) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llm.FunctionDefinition{
				Name:        "send_message",
				Description: "Send a message from one agent to another.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"from": map[string]any{
							"type":        "string",
							"description": "Name of the sending agent.",
						},
						"to": map[string]any{
							"type":        "string",
							"description": "Name of the receiving agent.",
						},
						"content": map[string]any{
							"type":        "string",
							"description": "Message text.",
						},
					},
					"required": []string{"from", "to", "content"},
				},
			},
			Handler: makeSendHandler(h),
		},
		{
			Definition: llm.FunctionDefinition{
				Name:        "read_messages",
				Description: "Read messages exchanged between agents, newest first. Omit from or to to match any agent.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"from": map[string]any{
							"type":        "string",
							"description": "Only messages sent by this agent.",
						},
						"to": map[string]any{
							"type":        "string",
							"description": "Only messages addressed to this agent.",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of messages to return. Defaults to 20.",
						},
					},
				},
			},
			Handler: makeReadHandler(h),
		},
	}
}
