package gateway

import (
	"encoding/json"

	"github.com/MrWong99/llmgate/pkg/llm"
)

// Wire types for the chat-completions and embeddings endpoints. Only the
// fields the gateway reads or writes are modelled.

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Stream           bool          `json:"stream"`
	Temperature      *float64      `json:"temperature,omitempty"`
	MaxTokens        *int          `json:"max_tokens,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
	Stop             []string      `json:"stop,omitempty"`
	Tools            []chatTool    `json:"tools,omitempty"`
}

// chatMessage.Content is either a string or a []chatPart.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   json.RawMessage `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func toWire(req llm.CompletionRequest, stream bool) chatRequest {
	out := chatRequest{
		Model:            req.Model,
		Messages:         make([]chatMessage, 0, len(req.Messages)),
		Stream:           stream,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Stop:             req.Stop,
	}
	for _, m := range req.Messages {
		wm := chatMessage{Role: string(m.Role), Content: m.Content}
		if m.Multimodal() {
			parts := make([]chatPart, 0, len(m.Parts))
			for _, p := range m.Parts {
				switch p.Kind {
				case llm.PartText:
					parts = append(parts, chatPart{Type: "text", Text: p.Text})
				case llm.PartImage:
					parts = append(parts, chatPart{
						Type:     "image_url",
						ImageURL: &chatImageURL{URL: p.ImageURL, Detail: string(p.Detail)},
					})
				}
			}
			wm.Content = parts
		}
		out.Messages = append(out.Messages, wm)
	}
	for _, f := range req.Functions {
		out.Tools = append(out.Tools, chatTool{
			Type:     "function",
			Function: chatFunction{Name: f.Name, Description: f.Description, Parameters: f.Parameters},
		})
	}
	return out
}

func fromWire(resp *chatResponse) *llm.CompletionResult {
	res := &llm.CompletionResult{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return res
	}
	choice := resp.Choices[0]
	res.FinishReason = choice.FinishReason
	res.Text = contentText(choice.Message.Content)
	for _, tc := range choice.Message.ToolCalls {
		call := llm.FunctionCall{
			ID:           tc.ID,
			Name:         tc.Function.Name,
			RawArguments: tc.Function.Arguments,
			Arguments:    map[string]any{},
		}
		if tc.Function.Arguments != "" {
			var args map[string]any
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil && args != nil {
				call.Arguments = args
			}
		}
		res.FunctionCalls = append(res.FunctionCalls, call)
	}
	return res
}

// contentText reads a response content field that may be null, a string, or
// an array of text parts.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []chatPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		var out string
		for _, p := range parts {
			if p.Type == "text" {
				out += p.Text
			}
		}
		return out
	}
	return ""
}
