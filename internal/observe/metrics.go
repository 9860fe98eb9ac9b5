// Package observe provides application-wide observability primitives for
// llmgate: OpenTelemetry metrics, distributed tracing, trace-aware logging,
// an instrumented [llm.Completer] decorator, and an HTTP client transport
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all llmgate metrics.
const meterName = "github.com/MrWong99/llmgate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks completion latency as seen by callers.
	LLMDuration metric.Float64Histogram

	// ToolExecutionDuration tracks function-call handler latency.
	ToolExecutionDuration metric.Float64Histogram

	// HTTPClientDuration tracks outgoing HTTP round trips to the upstream.
	// Use with attributes:
	//   attribute.String("method", ...), attribute.String("host", ...), attribute.Int("status", ...)
	HTTPClientDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts completion requests. Use with attributes:
	//   attribute.String("model", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed requests by error class. Use with attributes:
	//   attribute.String("model", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// TokensUsed counts tokens reported by the upstream. Use with attributes:
	//   attribute.String("model", ...), attribute.String("type", "prompt"|"completion")
	TokensUsed metric.Int64Counter

	// ToolCalls counts function-call dispatches. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// ComparisonRuns counts per-model comparison results. Use with attributes:
	//   attribute.String("model", ...), attribute.String("status", ...)
	ComparisonRuns metric.Int64Counter

	// --- Gauges ---

	// ActiveRequests tracks completions currently in flight.
	ActiveRequests metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// hosted-model round trips, which range from sub-second to a minute.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// toolBuckets defines histogram bucket boundaries (in seconds) for
// in-process tool handlers.
var toolBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMDuration, err = m.Float64Histogram("llmgate.llm.duration",
		metric.WithDescription("Latency of chat completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("llmgate.tool_execution.duration",
		metric.WithDescription("Latency of function-call handlers."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(toolBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPClientDuration, err = m.Float64Histogram("llmgate.http.client.duration",
		metric.WithDescription("Latency of outgoing HTTP requests by method, host, and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("llmgate.provider.requests",
		metric.WithDescription("Total completion requests by model, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("llmgate.provider.errors",
		metric.WithDescription("Total completion errors by model and error class."),
	); err != nil {
		return nil, err
	}
	if met.TokensUsed, err = m.Int64Counter("llmgate.tokens",
		metric.WithDescription("Total tokens reported by the upstream by model and type."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("llmgate.tool.calls",
		metric.WithDescription("Total function-call dispatches by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ComparisonRuns, err = m.Int64Counter("llmgate.compare.runs",
		metric.WithDescription("Total per-model comparison results by model and status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRequests, err = m.Int64UpDownCounter("llmgate.active_requests",
		metric.WithDescription("Number of completions currently in flight."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a completion request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, model, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a completion error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, model, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("kind", kind),
		),
	)
}

// RecordTokens adds prompt and completion token counts for model. Zero
// counts are skipped.
func (m *Metrics) RecordTokens(ctx context.Context, model string, prompt, completion int) {
	if prompt > 0 {
		m.TokensUsed.Add(ctx, int64(prompt),
			metric.WithAttributes(attribute.String("model", model), attribute.String("type", "prompt")))
	}
	if completion > 0 {
		m.TokensUsed.Add(ctx, int64(completion),
			metric.WithAttributes(attribute.String("model", model), attribute.String("type", "completion")))
	}
}

// RecordToolCall records a tool call counter increment with the standard
// attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordComparison records one model's outcome in a comparison run.
func (m *Metrics) RecordComparison(ctx context.Context, model, status string) {
	m.ComparisonRuns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("status", status),
		),
	)
}
