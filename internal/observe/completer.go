package observe

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/llmgate/pkg/llm"
)

// Completer decorates an [llm.Completer] with a span per call, latency and
// token metrics, and a debug log line. It adds no behaviour of its own:
// results and errors pass through unchanged.
type Completer struct {
	next    llm.Completer
	metrics *Metrics
	kind    string
}

// Instrument wraps next. kind labels the backend ("rest", "sdk", ...) in
// metrics and spans. A nil m uses [DefaultMetrics].
func Instrument(next llm.Completer, kind string, m *Metrics) *Completer {
	if m == nil {
		m = DefaultMetrics()
	}
	return &Completer{next: next, metrics: m, kind: kind}
}

// Complete implements [llm.Completer].
func (c *Completer) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = "default"
	}

	ctx, span := StartSpan(ctx, "llm.complete",
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.String("llm.backend", c.kind),
			attribute.Int("llm.messages", len(req.Messages)),
			attribute.Int("llm.functions", len(req.Functions)),
		),
	)

	c.metrics.ActiveRequests.Add(ctx, 1)
	start := time.Now()
	res, err := c.next.Complete(ctx, req)
	if err == nil && res == nil {
		err = llm.ErrNoResult
	}
	elapsed := time.Since(start)
	c.metrics.ActiveRequests.Add(ctx, -1)

	c.metrics.LLMDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("model", model), attribute.String("kind", c.kind)))

	if err != nil {
		class := ErrorClass(err)
		c.metrics.RecordProviderRequest(ctx, model, c.kind, "error")
		c.metrics.RecordProviderError(ctx, model, class)
		span.SetAttributes(attribute.String("llm.error_class", class))
		EndSpan(span, err)
		Logger(ctx).Debug("completion failed", "model", model, "backend", c.kind, "class", class, "duration", elapsed, "err", err)
		return nil, err
	}

	c.metrics.RecordProviderRequest(ctx, model, c.kind, "ok")
	c.metrics.RecordTokens(ctx, model, res.Usage.PromptTokens, res.Usage.CompletionTokens)
	span.SetAttributes(
		attribute.String("llm.finish_reason", res.FinishReason),
		attribute.Int("llm.usage.total_tokens", res.Usage.TotalTokens),
		attribute.Int("llm.function_calls", len(res.FunctionCalls)),
	)
	EndSpan(span, nil)
	Logger(ctx).LogAttrs(ctx, slog.LevelDebug, "completion done",
		slog.String("model", model),
		slog.String("backend", c.kind),
		slog.Duration("duration", elapsed),
		slog.Int("tokens", res.Usage.TotalTokens),
	)
	return res, nil
}

// ErrorClass returns a short, stable label for err suitable for metric
// attributes.
func ErrorClass(err error) string {
	var (
		te *llm.TransportError
		ue *llm.UpstreamError
		pe *llm.ProtocolError
		re *llm.RequestError
		ve *llm.ValidationError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &re):
		return "request"
	case errors.As(err, &ue):
		return "upstream"
	case errors.As(err, &pe):
		return "protocol"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &te):
		return "transport"
	default:
		return "other"
	}
}

var _ llm.Completer = (*Completer)(nil)
