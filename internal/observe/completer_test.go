package observe

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MrWong99/llmgate/pkg/llm"
	"github.com/MrWong99/llmgate/pkg/llm/mock"
)

func TestInstrument_Success(t *testing.T) {
	exp := useTestTracerProvider(t)
	m, reader := newTestMetrics(t)

	inner := &mock.Completer{Responses: []mock.Response{{
		Text:  "hi",
		Usage: llm.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10},
	}}}
	c := Instrument(inner, "rest", m)

	res, err := c.Complete(context.Background(), llm.CompletionRequest{
		Model:    "openai/gpt-4o-mini",
		Messages: []llm.Message{llm.UserMessage("hello")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "hi" {
		t.Errorf("text = %q, want %q", res.Text, "hi")
	}
	if calls := inner.Calls(); len(calls) != 1 {
		t.Errorf("inner calls = %d, want 1", len(calls))
	}

	rm := collect(t, reader)
	if got, _ := sumFor(t, rm, "llmgate.provider.requests", "status", "ok"); got != 1 {
		t.Errorf("ok requests = %d, want 1", got)
	}
	if got, _ := sumFor(t, rm, "llmgate.tokens", "type", "prompt"); got != 7 {
		t.Errorf("prompt tokens = %d, want 7", got)
	}
	if findMetric(rm, "llmgate.llm.duration") == nil {
		t.Error("duration histogram not recorded")
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "llm.complete" {
		t.Fatalf("spans = %+v", spans)
	}
}

func TestInstrument_ErrorPassesThrough(t *testing.T) {
	useTestTracerProvider(t)
	m, reader := newTestMetrics(t)

	upstream := &llm.UpstreamError{Status: 503, Body: "overloaded"}
	c := Instrument(&mock.Completer{Responses: []mock.Response{{Err: upstream}}}, "sdk", m)

	_, err := c.Complete(context.Background(), llm.CompletionRequest{
		Model:    "m",
		Messages: []llm.Message{llm.UserMessage("hello")},
	})
	if !errors.Is(err, upstream) {
		t.Fatalf("error = %v, want the upstream error unchanged", err)
	}

	rm := collect(t, reader)
	if got, _ := sumFor(t, rm, "llmgate.provider.errors", "kind", "upstream"); got != 1 {
		t.Errorf("upstream errors = %d, want 1", got)
	}
}

// nilCompleter returns neither a result nor an error.
type nilCompleter struct{}

func (nilCompleter) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResult, error) {
	return nil, nil
}

func TestInstrument_NilResult(t *testing.T) {
	useTestTracerProvider(t)
	m, reader := newTestMetrics(t)

	res, err := Instrument(nilCompleter{}, "rest", m).Complete(context.Background(), llm.CompletionRequest{
		Model:    "m",
		Messages: []llm.Message{llm.UserMessage("hello")},
	})
	if !errors.Is(err, llm.ErrNoResult) {
		t.Fatalf("err = %v, want ErrNoResult", err)
	}
	if res != nil {
		t.Errorf("res = %+v, want nil", res)
	}
	if got, _ := sumFor(t, collect(t, reader), "llmgate.provider.requests", "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
}

func TestErrorClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{&llm.TransportError{Op: "complete", Err: errors.New("dial")}, "transport"},
		{&llm.UpstreamError{Status: 500}, "upstream"},
		{&llm.ProtocolError{Reason: "decode"}, "protocol"},
		{&llm.RequestError{Field: "model"}, "request"},
		{&llm.ValidationError{Attempts: 3}, "validation"},
		{fmt.Errorf("gateway: complete: %w", context.Canceled), "canceled"},
		{errors.New("mystery"), "other"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := ErrorClass(tt.err); got != tt.want {
				t.Errorf("ErrorClass(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
