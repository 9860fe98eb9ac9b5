package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// ─── Validate ────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		req   CompletionRequest
		field string // empty when valid
	}{
		{
			name: "plain text",
			req:  CompletionRequest{Messages: []Message{SystemMessage("s"), UserMessage("hi")}},
		},
		{
			name:  "empty messages",
			req:   CompletionRequest{},
			field: "messages",
		},
		{
			name:  "unknown role",
			req:   CompletionRequest{Messages: []Message{{Role: "tool", Content: "x"}}},
			field: "messages[0].role",
		},
		{
			name: "multimodal",
			req: CompletionRequest{Messages: []Message{{
				Role:  RoleUser,
				Parts: []ContentPart{TextPart("what is this?"), ImagePart("https://example.com/a.png", DetailLow)},
			}}},
		},
		{
			name: "image without url",
			req: CompletionRequest{Messages: []Message{{
				Role:  RoleUser,
				Parts: []ContentPart{{Kind: PartImage}},
			}}},
			field: "messages[0].parts[0]",
		},
		{
			name: "bad detail",
			req: CompletionRequest{Messages: []Message{{
				Role:  RoleUser,
				Parts: []ContentPart{ImagePart("https://example.com/a.png", "ultra")},
			}}},
			field: "messages[0].parts[0]",
		},
		{
			name:  "temperature out of range",
			req:   CompletionRequest{Messages: []Message{UserMessage("hi")}, Temperature: Float(2.5)},
			field: "temperature",
		},
		{
			name:  "zero max tokens",
			req:   CompletionRequest{Messages: []Message{UserMessage("hi")}, MaxTokens: Int(0)},
			field: "max_tokens",
		},
		{
			name:  "unnamed function",
			req:   CompletionRequest{Messages: []Message{UserMessage("hi")}, Functions: []FunctionDefinition{{}}},
			field: "functions[0].name",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.req.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var re *RequestError
			if !errors.As(err, &re) {
				t.Fatalf("expected *RequestError, got %v", err)
			}
			if re.Field != tc.field {
				t.Errorf("field = %q, want %q", re.Field, tc.field)
			}
		})
	}
}

// ─── Message ─────────────────────────────────────────────────────────────────

func TestMessageText(t *testing.T) {
	t.Parallel()

	m := Message{Role: RoleUser, Parts: []ContentPart{
		TextPart("first"),
		ImagePart("https://example.com/x.png", DetailAuto),
		TextPart("second"),
	}}
	if got := m.Text(); got != "first\nsecond" {
		t.Errorf("Text() = %q, want %q", got, "first\nsecond")
	}
	if got := UserMessage("plain").Text(); got != "plain" {
		t.Errorf("Text() = %q, want %q", got, "plain")
	}
}

// ─── Errors ──────────────────────────────────────────────────────────────────

func TestErrorsUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	var err error = &TransportError{Op: "complete", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("TransportError should unwrap to its cause")
	}

	err = &ValidationError{Attempts: 3, Violations: []Violation{{Path: "$.score", Message: "required"}}, Err: ErrNoResult}
	if !errors.Is(err, ErrNoResult) {
		t.Error("ValidationError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "$.score: required") {
		t.Errorf("error text missing violation: %s", err)
	}
}

func TestUpstreamErrorTruncatesBody(t *testing.T) {
	t.Parallel()

	err := &UpstreamError{Status: 500, Body: strings.Repeat("x", 2000)}
	if len(err.Error()) > 600 {
		t.Errorf("error text too long: %d bytes", len(err.Error()))
	}
}

// ─── Collect ─────────────────────────────────────────────────────────────────

func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("done", func(t *testing.T) {
		t.Parallel()
		ch := make(chan StreamEvent, 3)
		ch <- Token("Hel")
		ch <- Token("lo")
		ch <- Done("Hello")
		close(ch)
		got, err := Collect(context.Background(), ch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "Hello" {
			t.Errorf("got %q, want %q", got, "Hello")
		}
	})

	t.Run("error keeps partial text", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		ch := make(chan StreamEvent, 2)
		ch <- Token("par")
		ch <- Failed(boom)
		close(ch)
		got, err := Collect(context.Background(), ch)
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if got != "par" {
			t.Errorf("got %q, want %q", got, "par")
		}
	})

	t.Run("closed without terminal event", func(t *testing.T) {
		t.Parallel()
		ch := make(chan StreamEvent)
		close(ch)
		if _, err := Collect(context.Background(), ch); !errors.Is(err, ErrNoResult) {
			t.Fatalf("expected ErrNoResult, got %v", err)
		}
	})
}
