// Package compare runs the same conversation against several models and
// measures how each one does.
//
// A [Harness] fans a request out to every model (concurrently by default,
// or one at a time in list order), times each call, and estimates the size
// of each reply. A failing or panicking model only produces an error-tagged
// [Result] for itself; its siblings are unaffected. Results always come back
// in the order the models were given.
//
// [Rank] turns results into a cost ranking using a [cost.Table].
package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/llmgate/internal/observe"
	"github.com/MrWong99/llmgate/internal/resilience"
	"github.com/MrWong99/llmgate/pkg/llm"
)

// Options controls a single comparison run.
type Options struct {
	// Temperature and MaxTokens are forwarded to every model. Nil leaves the
	// upstream default in place.
	Temperature *float64
	MaxTokens   *int

	// Sequential calls models one after another in list order instead of
	// concurrently.
	Sequential bool

	// MaxConcurrency caps in-flight calls in parallel mode. Zero or negative
	// means no cap.
	MaxConcurrency int

	// BreakerThreshold enables a per-model circuit breaker in
	// [Harness.CompareBatch] that stops calling a model after this many
	// consecutive failures. Zero disables it.
	BreakerThreshold int
}

// Result is the outcome for one model. Exactly one of Response and Err is
// meaningful.
type Result struct {
	Model    string
	Response string

	// Elapsed is the wall-clock time of the call, success or failure.
	Elapsed time.Duration

	// TokenEstimate is a coarse size of Response; see [EstimateTokens].
	TokenEstimate int

	Err error
}

// OK reports whether the model produced a response.
func (r Result) OK() bool { return r.Err == nil }

// BatchResult holds the results of one prompt in a batch.
type BatchResult struct {
	Prompt  string
	Results []Result
}

// EstimateTokens approximates the token count of text as its length in
// characters divided by four.
func EstimateTokens(text string) int { return utf8.RuneCountInString(text) / 4 }

// Harness compares models through a shared [llm.Completer].
type Harness struct {
	completer llm.Completer
	metrics   *observe.Metrics
	logger    *slog.Logger
}

// HarnessOption configures a [Harness].
type HarnessOption func(*Harness)

// WithMetrics records per-model run outcomes on m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) HarnessOption {
	return func(h *Harness) { h.metrics = m }
}

// WithLogger sets the logger used for per-model diagnostics.
func WithLogger(l *slog.Logger) HarnessOption {
	return func(h *Harness) { h.logger = l }
}

// New returns a Harness that sends every request through c.
func New(c llm.Completer, opts ...HarnessOption) *Harness {
	h := &Harness{completer: c, logger: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// Compare sends messages to each model and returns one result per model in
// the order of models. It never returns early because of a single model's
// failure.
func (h *Harness) Compare(ctx context.Context, messages []llm.Message, models []string, o Options) []Result {
	return h.run(ctx, messages, models, o, nil)
}

// CompareBatch runs [Harness.Compare] for each prompt in turn, each prompt
// sent as a single user message. With o.BreakerThreshold > 0 a model that
// keeps failing is short-circuited for the remaining prompts and reports
// [resilience.ErrCircuitOpen].
func (h *Harness) CompareBatch(ctx context.Context, prompts []string, models []string, o Options) []BatchResult {
	var breakers map[string]*resilience.CircuitBreaker
	if o.BreakerThreshold > 0 {
		breakers = make(map[string]*resilience.CircuitBreaker, len(models))
		for _, m := range models {
			breakers[m] = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
				Name:        "compare/" + m,
				MaxFailures: o.BreakerThreshold,
				Logger:      h.logger,
			})
		}
	}

	out := make([]BatchResult, 0, len(prompts))
	for _, p := range prompts {
		results := h.run(ctx, []llm.Message{llm.UserMessage(p)}, models, o, breakers)
		out = append(out, BatchResult{Prompt: p, Results: results})
	}
	return out
}

func (h *Harness) run(ctx context.Context, messages []llm.Message, models []string, o Options, breakers map[string]*resilience.CircuitBreaker) []Result {
	results := make([]Result, len(models))

	if o.Sequential {
		for i, m := range models {
			results[i] = h.one(ctx, messages, m, o, breakers[m])
		}
		return results
	}

	// Every goroutine returns nil so that errgroup never cancels siblings.
	var g errgroup.Group
	if o.MaxConcurrency > 0 {
		g.SetLimit(o.MaxConcurrency)
	}
	for i, m := range models {
		g.Go(func() error {
			results[i] = h.one(ctx, messages, m, o, breakers[m])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// one calls a single model, optionally through its circuit breaker.
func (h *Harness) one(ctx context.Context, messages []llm.Message, model string, o Options, cb *resilience.CircuitBreaker) Result {
	req := llm.CompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	}

	var (
		text    string
		elapsed time.Duration
	)
	call := func() error {
		start := time.Now()
		var err error
		text, err = h.complete(ctx, req)
		elapsed = time.Since(start)
		return err
	}

	var err error
	if cb != nil {
		err = cb.Execute(call)
	} else {
		err = call()
	}

	res := Result{Model: model, Elapsed: elapsed}
	status := "ok"
	switch {
	case err != nil:
		res.Err = err
		status = "error"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			status = "circuit_open"
		}
		h.logger.Debug("compare: model failed", "model", model, "elapsed", elapsed, "err", err)
	default:
		res.Response = text
		res.TokenEstimate = EstimateTokens(text)
	}
	h.metrics.RecordComparison(ctx, model, status)
	return res
}

// complete performs the call and converts a panic into an error.
func (h *Harness) complete(ctx context.Context, req llm.CompletionRequest) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compare: model %s panicked: %v", req.Model, r)
		}
	}()
	res, err := h.completer.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", nil
	}
	return res.Text, nil
}
