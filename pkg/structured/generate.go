package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/llmgate/pkg/llm"
)

const (
	// DefaultTemperature is used by Generate unless overridden.
	DefaultTemperature = 0.3

	// DefaultRetries is the default number of attempts.
	DefaultRetries = 3
)

var errNoJSON = errors.New("no JSON object found in response")

// config holds the options shared by Generate and SafeGenerate.
type config struct {
	model        string
	systemPrompt string
	temperature  *float64
	maxTokens    *int
	retries      int
	logger       *slog.Logger
}

// Option configures [Generate].
type Option func(*config)

// WithModel selects the model. Empty leaves the backend default.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithSystemPrompt sends text as the first message of every attempt.
func WithSystemPrompt(text string) Option {
	return func(c *config) { c.systemPrompt = text }
}

// WithTemperature overrides [DefaultTemperature].
func WithTemperature(t float64) Option {
	return func(c *config) { c.temperature = &t }
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option {
	return func(c *config) { c.maxTokens = &n }
}

// WithRetries sets the total number of attempts. Values below 1 are
// treated as 1.
func WithRetries(n int) Option {
	return func(c *config) { c.retries = n }
}

// WithLogger sets the logger for per-attempt debug diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) *config {
	cfg := &config{retries: DefaultRetries}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.retries < 1 {
		cfg.retries = 1
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg
}

// Generate asks c for a JSON object matching schema and decodes it into T.
//
// The conversation grows across attempts: the system prompt (once), the user
// prompt with the schema appended, then for every failed attempt the
// model's reply and a corrective message naming what was wrong. A gateway
// error also consumes an attempt but adds nothing to the conversation. When
// every attempt fails, the error of the last one is returned; validation
// failures are reported as *llm.ValidationError.
func Generate[T any](ctx context.Context, c llm.Completer, prompt string, schema *Schema, opts ...Option) (T, error) {
	var zero T
	cfg := newConfig(opts)
	temp := DefaultTemperature
	if cfg.temperature != nil {
		temp = *cfg.temperature
	}

	var msgs []llm.Message
	if cfg.systemPrompt != "" {
		msgs = append(msgs, llm.SystemMessage(cfg.systemPrompt))
	}
	msgs = append(msgs, llm.UserMessage(instruct(prompt, schema)))

	var lastErr error
	for attempt := 1; attempt <= cfg.retries; attempt++ {
		res, err := c.Complete(ctx, llm.CompletionRequest{
			Model:       cfg.model,
			Messages:    msgs,
			Temperature: llm.Float(temp),
			MaxTokens:   cfg.maxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				return zero, fmt.Errorf("structured: %w", err)
			}
			cfg.logger.Debug("structured: completion failed", "attempt", attempt, "err", err)
			lastErr = err
			continue
		}

		out, verr := decode[T](res.Text, schema)
		if verr == nil {
			cfg.logger.Debug("structured: valid response", "attempt", attempt)
			return out, nil
		}
		verr.Attempts = attempt
		lastErr = verr
		cfg.logger.Debug("structured: invalid response",
			"attempt", attempt,
			"violations", len(verr.Violations),
			"err", verr.Err,
		)
		msgs = append(msgs, llm.AssistantMessage(res.Text), llm.UserMessage(corrective(verr)))
	}

	var verr *llm.ValidationError
	if errors.As(lastErr, &verr) {
		verr.Attempts = cfg.retries
		return zero, verr
	}
	return zero, fmt.Errorf("structured: all %d attempts failed: %w", cfg.retries, lastErr)
}

// decode extracts, validates and unmarshals a reply.
func decode[T any](text string, schema *Schema) (T, *llm.ValidationError) {
	var out T
	raw, ok := ExtractJSON(text)
	if !ok {
		return out, &llm.ValidationError{Raw: text, Err: errNoJSON}
	}
	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return out, &llm.ValidationError{Raw: text, Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	if v := Validate(schema, generic); len(v) > 0 {
		return out, &llm.ValidationError{Raw: text, Violations: v}
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, &llm.ValidationError{Raw: text, Err: fmt.Errorf("decode into %T: %w", out, err)}
	}
	return out, nil
}

func instruct(prompt string, schema *Schema) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nRespond only with a single JSON object")
	if schema != nil {
		doc, _ := json.MarshalIndent(schema.JSONSchema(), "", "  ")
		b.WriteString(" matching this JSON Schema:\n")
		b.Write(doc)
	} else {
		b.WriteString(".")
	}
	return b.String()
}

func corrective(verr *llm.ValidationError) string {
	var b strings.Builder
	b.WriteString("Your previous response was not usable")
	switch {
	case len(verr.Violations) > 0:
		b.WriteString(" because of these problems:\n")
		for _, v := range verr.Violations {
			b.WriteString("- ")
			b.WriteString(v.String())
			b.WriteString("\n")
		}
	case verr.Err != nil:
		b.WriteString(": ")
		b.WriteString(verr.Err.Error())
		b.WriteString("\n")
	}
	b.WriteString("Respond again with only the corrected JSON object and no other text.")
	return b.String()
}
