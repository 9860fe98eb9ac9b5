// Package tools defines the [Tool] type used by every built-in function
// package and the [Dispatcher] that routes model-issued function calls to
// them.
//
// Each sub-package exports a constructor returning a slice of [Tool] values
// ready for [Dispatcher.Register]. Dispatch never fails with a Go error: an
// unknown name, a handler error and a handler panic all come back as a
// [Result] whose payload carries an "error" field, so the model can read it
// and correct itself.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/llmgate/internal/observe"
	"github.com/MrWong99/llmgate/pkg/llm"
)

// Tool pairs a function's model-facing schema with the handler that runs it.
type Tool struct {
	// Definition is the function's name, description, and JSON Schema
	// parameter schema as advertised to the model.
	Definition llm.FunctionDefinition

	// Handler executes the function with JSON-encoded args and returns a
	// JSON-encoded result on success, or a descriptive error.
	// Implementations must be safe for concurrent use and must respect
	// context cancellation.
	Handler func(ctx context.Context, args string) (string, error)
}

// Result is the outcome of one function call.
type Result struct {
	// CallID echoes [llm.FunctionCall.ID].
	CallID string `json:"-"`

	// Name is the function that was called.
	Name string `json:"name"`

	// Output is the handler's JSON result. Non-JSON handler output is stored
	// as a JSON string. Empty when Error is set.
	Output json.RawMessage `json:"output,omitempty"`

	// Error describes why the call failed. Empty on success.
	Error string `json:"error,omitempty"`

	// Duration is the handler's wall-clock time.
	Duration time.Duration `json:"-"`
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Error == "" }

// Payload renders the JSON handed back to the model: the handler output on
// success, or {"error": "..."} on failure.
func (r Result) Payload() string {
	if !r.OK() {
		b, _ := json.Marshal(map[string]string{"error": r.Error})
		return string(b)
	}
	if len(r.Output) == 0 {
		return "null"
	}
	return string(r.Output)
}

// Dispatcher maps function names to tools. It is safe for concurrent use.
type Dispatcher struct {
	metrics     *observe.Metrics
	logger      *slog.Logger
	callTimeout time.Duration
	parallelism int

	mu    sync.RWMutex
	tools map[string]Tool
}

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher)

// WithMetrics records call counts and durations on m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger used for call diagnostics.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithCallTimeout bounds every handler invocation. Zero means no bound
// beyond the caller's context.
func WithCallTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.callTimeout = t }
}

// WithParallelism lets [Dispatcher.ExecuteAll] run up to n calls at once.
// Values below 2 run calls one after another.
func WithParallelism(n int) DispatcherOption {
	return func(d *Dispatcher) { d.parallelism = n }
}

// NewDispatcher creates an empty [Dispatcher].
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		logger:      slog.Default(),
		parallelism: 1,
		tools:       make(map[string]Tool),
	}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Register adds t. The name must be non-empty and unique and the handler
// non-nil.
func (d *Dispatcher) Register(t Tool) error {
	name := t.Definition.Name
	if name == "" {
		return fmt.Errorf("tools: function must have a non-empty name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: function %q must have a non-nil handler", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.tools[name]; dup {
		return fmt.Errorf("tools: function %q is already registered", name)
	}
	d.tools[name] = t
	return nil
}

// RegisterAll registers each tool in order and stops at the first error.
func (d *Dispatcher) RegisterAll(ts []Tool) error {
	for _, t := range ts {
		if err := d.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Tools returns the registered tools sorted by name.
func (d *Dispatcher) Tools() []Tool {
	d.mu.RLock()
	out := make([]Tool, 0, len(d.tools))
	for _, t := range d.tools {
		out = append(out, t)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Definition.Name < out[j].Definition.Name })
	return out
}

// Definitions returns the schemas of all registered functions, sorted by
// name, ready for [llm.CompletionRequest.Functions].
func (d *Dispatcher) Definitions() []llm.FunctionDefinition {
	ts := d.Tools()
	defs := make([]llm.FunctionDefinition, len(ts))
	for i, t := range ts {
		defs[i] = t.Definition
	}
	return defs
}

// Execute runs one call. It never panics and never returns a Go error.
func (d *Dispatcher) Execute(ctx context.Context, call llm.FunctionCall) Result {
	res := Result{CallID: call.ID, Name: call.Name}

	d.mu.RLock()
	t, ok := d.tools[call.Name]
	d.mu.RUnlock()
	if !ok {
		res.Error = "unknown function: " + call.Name
		d.metrics.RecordToolCall(ctx, call.Name, "unknown")
		d.logger.Debug("function call rejected", "function", call.Name, "reason", "unknown")
		return res
	}

	args := callArguments(call)
	if d.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := invoke(ctx, t, args)
	res.Duration = time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		res.Error = err.Error()
	} else {
		res.Output = asJSON(out)
	}

	d.metrics.RecordToolCall(ctx, call.Name, status)
	d.metrics.ToolExecutionDuration.Record(ctx, res.Duration.Seconds(),
		metric.WithAttributes(attribute.String("tool", call.Name)))
	d.logger.Debug("function call",
		"function", call.Name,
		"status", status,
		"duration", res.Duration,
		"args", args,
	)
	return res
}

// ExecuteAll runs calls and returns their results in the same order.
func (d *Dispatcher) ExecuteAll(ctx context.Context, calls []llm.FunctionCall) []Result {
	results := make([]Result, len(calls))
	if d.parallelism < 2 || len(calls) < 2 {
		for i, c := range calls {
			results[i] = d.Execute(ctx, c)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(d.parallelism)
	for i, c := range calls {
		g.Go(func() error {
			results[i] = d.Execute(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// FollowUp renders results as the user message that hands function outputs
// back to the model. The chat role set has no dedicated function role, so
// results travel as user content, one "name: payload" line each.
func FollowUp(results []Result) llm.Message {
	var sb strings.Builder
	sb.WriteString("Function results:")
	for _, r := range results {
		sb.WriteString("\n")
		sb.WriteString(r.Name)
		sb.WriteString(": ")
		sb.WriteString(r.Payload())
	}
	return llm.UserMessage(sb.String())
}

// invoke runs the handler, converting a panic into an error.
func invoke(ctx context.Context, t Tool, args string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("function %s panicked: %v", t.Definition.Name, r)
		}
	}()
	return t.Handler(ctx, args)
}

// callArguments returns the raw JSON arguments of call, re-encoding the
// decoded map when the raw form is missing.
func callArguments(call llm.FunctionCall) string {
	if s := strings.TrimSpace(call.RawArguments); s != "" {
		return s
	}
	if len(call.Arguments) == 0 {
		return "{}"
	}
	b, err := json.Marshal(call.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// asJSON keeps valid JSON output as-is and encodes anything else as a JSON
// string.
func asJSON(out string) json.RawMessage {
	trimmed := strings.TrimSpace(out)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	b, _ := json.Marshal(out)
	return b
}
