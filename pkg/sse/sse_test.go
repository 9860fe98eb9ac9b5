package sse

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/MrWong99/llmgate/pkg/llm"
)

func drain(t *testing.T, ch <-chan llm.StreamEvent) []llm.StreamEvent {
	t.Helper()
	var out []llm.StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func tokens(events []llm.StreamEvent) []string {
	var out []string
	for _, ev := range events {
		if ev.Kind == llm.EventToken {
			out = append(out, ev.Text)
		}
	}
	return out
}

func TestDecode_TokensThenDone(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		`: keep-alive comment`,
		`event: message`,
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`data:{"choices":[{"delta":{"content":"lo"}}]}`,
		``,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
		``,
	}, "\n")

	events := drain(t, NewDecoder().Decode(context.Background(), io.NopCloser(strings.NewReader(body))))

	got := tokens(events)
	if strings.Join(got, "|") != "Hel|lo" {
		t.Fatalf("tokens = %q, want [Hel lo]", got)
	}
	last := events[len(events)-1]
	if last.Kind != llm.EventDone || last.Text != "Hello" {
		t.Errorf("last event = %+v, want Done(Hello)", last)
	}
}

func TestDecode_SkipsMalformedPayload(t *testing.T) {
	t.Parallel()

	body := "data: {not json\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n"
	events := drain(t, NewDecoder().Decode(context.Background(), io.NopCloser(strings.NewReader(body))))

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Kind != llm.EventToken || events[0].Text != "ok" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Kind != llm.EventDone || events[1].Text != "ok" {
		t.Errorf("second event = %+v", events[1])
	}
}

func TestDecode_EOFWithoutDoneMarker(t *testing.T) {
	t.Parallel()

	// No trailing newline and no [DONE]: the last line must still count.
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\ndata: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}"
	events := drain(t, NewDecoder().Decode(context.Background(), io.NopCloser(strings.NewReader(body))))

	last := events[len(events)-1]
	if last.Kind != llm.EventDone || last.Text != "ab" {
		t.Errorf("last event = %+v, want Done(ab)", last)
	}
}

func TestDecode_EmptyStream(t *testing.T) {
	t.Parallel()

	events := drain(t, NewDecoder().Decode(context.Background(), io.NopCloser(strings.NewReader(""))))
	if len(events) != 1 || events[0].Kind != llm.EventDone || events[0].Text != "" {
		t.Fatalf("events = %+v, want single Done(\"\")", events)
	}
}

func TestDecode_ReadErrorEmitsError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader("data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n"),
		iotest.ErrReader(boom),
	)
	events := drain(t, NewDecoder().Decode(context.Background(), io.NopCloser(r)))

	last := events[len(events)-1]
	if last.Kind != llm.EventError {
		t.Fatalf("last event = %+v, want error", last)
	}
	var te *llm.TransportError
	if !errors.As(last.Err, &te) || !errors.Is(last.Err, boom) {
		t.Errorf("error = %v, want TransportError wrapping boom", last.Err)
	}
	for _, ev := range events {
		if ev.Kind == llm.EventDone {
			t.Error("no Done event expected after a read error")
		}
	}
}

func TestDecode_LongLine(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("z", 200)
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"" + long + "\"}}]}\n\ndata: [DONE]\n"
	dec := NewDecoder(WithBufferSize(16))
	events := drain(t, dec.Decode(context.Background(), io.NopCloser(strings.NewReader(body))))

	last := events[len(events)-1]
	if last.Kind != llm.EventDone || last.Text != long {
		t.Errorf("long line not reassembled: %+v", last)
	}
}

func TestDecode_CancelledContext(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	ch := NewDecoder().Decode(ctx, pr)

	cancel()
	// Unblock the pending read; the decoder must then observe the cancelled
	// context and close the channel.
	pw.CloseWithError(context.Canceled)

	for ev := range ch {
		if ev.Kind == llm.EventDone {
			t.Errorf("unexpected Done after cancellation: %+v", ev)
		}
	}
}

func TestDataPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"data: hello\n", "hello", true},
		{"data:hello\r\n", "hello", true},
		{"data:  padded \n", "padded", true},
		{": comment\n", "", false},
		{"event: x\n", "", false},
		{"\n", "", false},
	}
	for _, tc := range tests {
		got, ok := dataPayload(tc.line)
		if got != tc.want || ok != tc.ok {
			t.Errorf("dataPayload(%q) = (%q, %v), want (%q, %v)", tc.line, got, ok, tc.want, tc.ok)
		}
	}
}
