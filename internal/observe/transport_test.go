package observe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace"
)

// usePropagator installs the W3C trace-context propagator globally for the
// duration of the test.
func usePropagator(t *testing.T) {
	t.Helper()
	orig := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(orig) })
}

func TestTransport_InjectsTraceContext(t *testing.T) {
	exp := useTestTracerProvider(t)
	usePropagator(t)
	m, reader := newTestMetrics(t)

	var (
		mu          sync.Mutex
		traceparent string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		traceparent = r.Header.Get("traceparent")
		mu.Unlock()
		w.WriteHeader(http.StatusTeapot)
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: NewTransport(nil, m)}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/chat/completions", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if req.Header.Get("traceparent") != "" {
		t.Error("transport mutated the caller's request headers")
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].SpanKind != trace.SpanKindClient {
		t.Errorf("span kind = %v, want client", spans[0].SpanKind)
	}

	mu.Lock()
	got := traceparent
	mu.Unlock()
	if got == "" {
		t.Fatal("traceparent header was not injected")
	}
	if want := spans[0].SpanContext.TraceID().String(); len(got) < 35 || got[3:35] != want {
		t.Errorf("traceparent = %q, want trace ID %s", got, want)
	}

	rm := collect(t, reader)
	met := findMetric(rm, "llmgate.http.client.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1", len(hist.DataPoints))
	}
	if v, ok := hist.DataPoints[0].Attributes.Value("status"); !ok || v.AsInt64() != http.StatusTeapot {
		t.Errorf("status attribute = %v", v)
	}
}

type failingRoundTripper struct{}

func (failingRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestTransport_RecordsFailure(t *testing.T) {
	exp := useTestTracerProvider(t)
	m, _ := newTestMetrics(t)

	client := &http.Client{Transport: NewTransport(failingRoundTripper{}, m)}
	_, err := client.Get("http://upstream.invalid/models")
	if err == nil {
		t.Fatal("expected error")
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Status.Description == "" {
		t.Error("span status does not carry the error")
	}
}
