// Package reasoning prompts a model to think step by step and parses the
// resulting trace.
//
// The expected reply format is one "STEP <n>: <text>" line per step followed
// by a "FINAL ANSWER: <text>" line. Models rarely follow it perfectly, so
// [Parse] is tolerant: it never fails, keeps the last occurrence of a
// duplicated step, and falls back to the whole reply when no final answer is
// marked.
package reasoning

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/MrWong99/llmgate/pkg/llm"
)

// Instruction is appended to a question to request the trace format.
const Instruction = `Think through the problem step by step.
Write each step on its own line in the form "STEP <n>: <reasoning>", numbering from 1.
After the last step, write one line in the form "FINAL ANSWER: <answer>".`

var (
	stepLine  = regexp.MustCompile(`(?i)^STEP\s+(\d+)\s*:\s*(.*)$`)
	finalLine = regexp.MustCompile(`(?i)^FINAL\s+ANSWER\s*:\s*(.*)$`)
)

// Step is one numbered reasoning step.
type Step struct {
	Index int
	Text  string
}

// Trace is a parsed reasoning reply.
type Trace struct {
	// Steps are ordered by Index ascending, without duplicates.
	Steps []Step

	// Answer is the final answer, or the whole reply when none was marked.
	Answer string

	// Marked reports whether Answer came from a FINAL ANSWER line.
	Marked bool

	// Raw is the reply as received.
	Raw string
}

// Parse extracts the steps and final answer from text. It never fails.
func Parse(text string) Trace {
	t := Trace{Raw: text, Answer: text}
	steps := make(map[int]string)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if m := stepLine.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			steps[n] = strings.TrimSpace(m[2])
			continue
		}
		if m := finalLine.FindStringSubmatch(line); m != nil {
			t.Answer = strings.TrimSpace(m[1])
			t.Marked = true
		}
	}

	t.Steps = make([]Step, 0, len(steps))
	for n, s := range steps {
		t.Steps = append(t.Steps, Step{Index: n, Text: s})
	}
	sort.Slice(t.Steps, func(i, j int) bool { return t.Steps[i].Index < t.Steps[j].Index })
	return t
}

// config holds optional configuration for [Solve].
type config struct {
	model       string
	temperature *float64
	maxTokens   *int
	system      string
}

// Option configures [Solve].
type Option func(*config)

// WithModel selects the model.
func WithModel(m string) Option { return func(c *config) { c.model = m } }

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option { return func(c *config) { c.temperature = &t } }

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option { return func(c *config) { c.maxTokens = &n } }

// WithSystemPrompt prepends a system message.
func WithSystemPrompt(s string) Option { return func(c *config) { c.system = s } }

// Solve asks c to reason about question in the trace format and parses the
// reply.
func Solve(ctx context.Context, c llm.Completer, question string, opts ...Option) (Trace, error) {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	var msgs []llm.Message
	if cfg.system != "" {
		msgs = append(msgs, llm.SystemMessage(cfg.system))
	}
	msgs = append(msgs, llm.UserMessage(question+"\n\n"+Instruction))

	res, err := c.Complete(ctx, llm.CompletionRequest{
		Model:       cfg.model,
		Messages:    msgs,
		Temperature: cfg.temperature,
		MaxTokens:   cfg.maxTokens,
	})
	if err != nil {
		return Trace{}, fmt.Errorf("reasoning: %w", err)
	}
	return Parse(res.Text), nil
}
