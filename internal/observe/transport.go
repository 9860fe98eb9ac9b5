package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Transport is an [http.RoundTripper] that:
//
//  1. Starts a client span for every outgoing request.
//  2. Injects W3C Trace Context into the request headers using the global
//     propagator.
//  3. Records round-trip duration to [Metrics.HTTPClientDuration].
//  4. Logs the response status at debug level.
//
// The zero value is not usable; construct with [NewTransport].
type Transport struct {
	base    http.RoundTripper
	metrics *Metrics
}

// NewTransport wraps base. A nil base uses [http.DefaultTransport]; a nil
// m uses [DefaultMetrics].
func NewTransport(base http.RoundTripper, m *Metrics) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if m == nil {
		m = DefaultMetrics()
	}
	return &Transport{base: base, metrics: m}
}

// Client returns an [http.Client] that sends through a [Transport] wrapping
// [http.DefaultTransport].
func Client(m *Metrics) *http.Client {
	return &http.Client{Transport: NewTransport(nil, m)}
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	ctx, span := StartSpan(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.ServerAddress(req.URL.Hostname()),
			semconv.URLPath(req.URL.Path),
		),
	)

	// RoundTrippers must not mutate the caller's request.
	out := req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))

	resp, err := t.base.RoundTrip(out)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	}
	t.metrics.HTTPClientDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("method", req.Method),
			attribute.String("host", req.URL.Host),
			attribute.Int("status", status),
		),
	)

	if err == nil && status >= 500 {
		span.SetAttributes(attribute.Bool("error", true))
	}
	EndSpan(span, err)

	Logger(ctx).LogAttrs(ctx, slog.LevelDebug, "upstream request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
	)
	return resp, err
}

var _ http.RoundTripper = (*Transport)(nil)
