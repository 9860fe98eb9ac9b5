// Package mock provides a scripted test double for llm.Completer and
// llm.Embedder.
//
// Responses are consumed in order; once the script is exhausted the last
// entry repeats. Per-model scripts take precedence over the shared script,
// which lets comparison tests give each model its own behaviour.
//
// Example:
//
//	c := &mock.Completer{Responses: []mock.Response{{Text: `{"score": 0.9}`}}}
//	res, err := c.Complete(ctx, req)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/llmgate/pkg/llm"
)

// Response is one scripted reply. When Err is set it is returned instead of
// a result.
type Response struct {
	Text          string
	FunctionCalls []llm.FunctionCall
	Usage         llm.Usage
	Err           error

	// Delay is slept (honouring ctx) before replying.
	Delay time.Duration

	// Panic, if non-empty, makes the call panic with this value.
	Panic string
}

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	Text  string
	Model string
}

// Completer is a mock implementation of llm.Completer and llm.Embedder.
// Zero values reply with an empty result and nil error.
type Completer struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Responses is the shared script.
	Responses []Response

	// ByModel holds per-model scripts keyed by CompletionRequest.Model.
	ByModel map[string][]Response

	// Embedding is returned by Embed.
	Embedding []float64

	// EmbedErr, if non-nil, is returned by Embed.
	EmbedErr error

	// --- Call records (read after test) ---

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	// EmbedCalls records every invocation of Embed in order.
	EmbedCalls []EmbedCall

	shared  int
	byModel map[string]int
}

// Complete records the call and returns the next scripted response.
func (c *Completer) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error) {
	c.mu.Lock()
	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	c.CompleteCalls = append(c.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	r := c.next(req.Model)
	c.mu.Unlock()

	if r.Panic != "" {
		panic(r.Panic)
	}
	if r.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.Delay):
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.CompletionResult{
		Text:          r.Text,
		Model:         req.Model,
		FinishReason:  "stop",
		FunctionCalls: r.FunctionCalls,
		Usage:         r.Usage,
	}, nil
}

// Embed records the call and returns Embedding, EmbedErr.
func (c *Completer) Embed(_ context.Context, text, model string) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EmbedCalls = append(c.EmbedCalls, EmbedCall{Text: text, Model: model})
	if c.EmbedErr != nil {
		return nil, c.EmbedErr
	}
	out := make([]float64, len(c.Embedding))
	copy(out, c.Embedding)
	return out, nil
}

// Calls returns a snapshot of the recorded Complete calls.
func (c *Completer) Calls() []CompleteCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CompleteCall, len(c.CompleteCalls))
	copy(out, c.CompleteCalls)
	return out
}

// Reset clears all recorded calls and rewinds the scripts. Thread-safe.
func (c *Completer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CompleteCalls = nil
	c.EmbedCalls = nil
	c.shared = 0
	c.byModel = nil
}

// next must be called with c.mu held.
func (c *Completer) next(model string) Response {
	if script, ok := c.ByModel[model]; ok && len(script) > 0 {
		if c.byModel == nil {
			c.byModel = make(map[string]int)
		}
		i := min(c.byModel[model], len(script)-1)
		c.byModel[model]++
		return script[i]
	}
	if len(c.Responses) == 0 {
		return Response{}
	}
	i := min(c.shared, len(c.Responses)-1)
	c.shared++
	return c.Responses[i]
}

var (
	_ llm.Completer = (*Completer)(nil)
	_ llm.Embedder  = (*Completer)(nil)
)
