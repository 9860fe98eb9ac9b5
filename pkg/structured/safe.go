package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/llmgate/pkg/llm"
)

// safeConfig holds the options of [SafeGenerate].
type safeConfig struct {
	config
	example     string
	instruction string
	failSafe    string
	validate    func(string) bool
	cleanup     func(string) string
	raw         bool
}

// SafeOption configures [SafeGenerate].
type SafeOption func(*safeConfig)

// Safe adapts a Generate option (model, system prompt, temperature, retries,
// logger) for SafeGenerate.
func Safe(o Option) SafeOption {
	return func(c *safeConfig) { o(&c.config) }
}

// WithExample sets the example value shown inside the output envelope.
func WithExample(example string) SafeOption {
	return func(c *safeConfig) { c.example = example }
}

// WithInstruction appends a task-specific instruction after the envelope
// request.
func WithInstruction(text string) SafeOption {
	return func(c *safeConfig) { c.instruction = text }
}

// WithFailSafe sets the value returned when every attempt fails.
func WithFailSafe(v string) SafeOption {
	return func(c *safeConfig) { c.failSafe = v }
}

// WithValidator rejects outputs for which fn returns false.
func WithValidator(fn func(string) bool) SafeOption {
	return func(c *safeConfig) { c.validate = fn }
}

// WithCleanup transforms an accepted output before it is returned.
func WithCleanup(fn func(string) string) SafeOption {
	return func(c *safeConfig) { c.cleanup = fn }
}

// WithRawOutput sends prompt unchanged and hands the whole reply to the
// validator and cleanup, without the {"output": ...} envelope. The example
// and instruction are ignored.
func WithRawOutput() SafeOption {
	return func(c *safeConfig) { c.raw = true }
}

// SafeGenerate wraps prompt in a request for an {"output": ...} envelope,
// retries until a reply parses and passes the validator, and returns the
// cleaned output with true. It never returns an error: after the last
// attempt it returns the fail-safe value and false. Each attempt is an
// independent single-message request.
func SafeGenerate(ctx context.Context, c llm.Completer, prompt string, opts ...SafeOption) (string, bool) {
	cfg := &safeConfig{config: config{retries: DefaultRetries}}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.retries < 1 {
		cfg.retries = 1
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	var msgs []llm.Message
	if cfg.systemPrompt != "" {
		msgs = append(msgs, llm.SystemMessage(cfg.systemPrompt))
	}
	if cfg.raw {
		msgs = append(msgs, llm.UserMessage(prompt))
	} else {
		msgs = append(msgs, llm.UserMessage(Envelope(prompt, cfg.example, cfg.instruction)))
	}

	for attempt := 1; attempt <= cfg.retries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		res, err := c.Complete(ctx, llm.CompletionRequest{
			Model:       cfg.model,
			Messages:    msgs,
			Temperature: cfg.temperature,
			MaxTokens:   cfg.maxTokens,
		})
		if err != nil {
			logger.Debug("structured: safe generate completion failed", "attempt", attempt, "err", err)
			continue
		}
		out := res.Text
		if !cfg.raw {
			out, err = unwrapOutput(res.Text)
			if err != nil {
				logger.Debug("structured: safe generate bad envelope", "attempt", attempt, "err", err)
				continue
			}
		}
		if cfg.validate != nil && !cfg.validate(out) {
			logger.Debug("structured: safe generate output rejected", "attempt", attempt)
			continue
		}
		if cfg.cleanup != nil {
			out = cfg.cleanup(out)
		}
		return out, true
	}
	return cfg.failSafe, false
}

// Envelope renders the {"output": ...} request around prompt.
func Envelope(prompt, example, instruction string) string {
	exampleJSON, _ := json.Marshal(map[string]string{"output": example})
	var b strings.Builder
	b.WriteString(`"""` + "\n")
	b.WriteString(prompt)
	b.WriteString("\n" + `"""` + "\n")
	b.WriteString("Output the response to the prompt above in json. ")
	b.WriteString(instruction)
	b.WriteString("\nExample output json:\n")
	b.Write(exampleJSON)
	return b.String()
}

func unwrapOutput(text string) (string, error) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return "", errNoJSON
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return "", fmt.Errorf("malformed JSON: %w", err)
	}
	out, ok := env["output"]
	if !ok {
		return "", fmt.Errorf("missing %q member", "output")
	}
	var s string
	if err := json.Unmarshal(out, &s); err == nil {
		return s, nil
	}
	return string(out), nil
}
