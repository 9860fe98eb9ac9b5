// Package llm defines the shared vocabulary of the gateway: chat messages,
// completion requests and results, stream events, function definitions, and
// the error taxonomy every backend reports through.
//
// Backends (the REST gateway, the SDK-backed client, test doubles) implement
// [Completer] and optionally [Embedder]. Higher layers such as structured
// generation, reasoning and the comparison harness depend only on these
// interfaces and never on a concrete backend.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"strings"
)

// Completer performs a blocking chat completion.
//
// Implementations must honour ctx: when it is cancelled the call must return
// promptly with an error wrapping ctx.Err().
type Completer interface {
	// Complete sends req and waits for the full reply. Errors are one of the
	// typed errors of this package (*TransportError, *UpstreamError,
	// *ProtocolError, *RequestError) possibly wrapped with context.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// Embedder turns text into a vector embedding.
type Embedder interface {
	// Embed returns the embedding of text under model. An empty model selects
	// the implementation's default embedding model.
	Embed(ctx context.Context, text, model string) ([]float64, error)
}

// BlankPlaceholder is sent in place of empty embedding input.
const BlankPlaceholder = "this is blank"

// EmbeddingInput normalises text for an embedding request: newlines become
// spaces and blank input becomes [BlankPlaceholder].
func EmbeddingInput(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if strings.TrimSpace(text) == "" {
		return BlankPlaceholder
	}
	return text
}
