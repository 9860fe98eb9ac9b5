// Package sse decodes the server-sent-event stream of an OpenAI-compatible
// chat completion into [llm.StreamEvent] values.
//
// The decoder is deliberately lenient: anything that is not a "data:" line is
// ignored, and data payloads that do not parse as a completion chunk are
// skipped. Only a failure to read the underlying body ends the stream with an
// error.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/MrWong99/llmgate/pkg/llm"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"

	defaultBufferSize = 64 * 1024
)

// chunk is the subset of a streamed completion chunk the decoder reads.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decoder turns an SSE body into stream events. A Decoder holds no per-stream
// state and may be shared.
type Decoder struct {
	bufSize int
	logger  *slog.Logger
}

// Option configures a [Decoder].
type Option func(*Decoder)

// WithBufferSize sets the read buffer size. Lines longer than the buffer are
// still assembled correctly; the buffer only bounds single reads.
func WithBufferSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.bufSize = n
		}
	}
}

// WithLogger sets the logger used for debug diagnostics about skipped
// payloads. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDecoder returns a Decoder with the given options applied.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{bufSize: defaultBufferSize}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Decode reads body until the "[DONE]" marker, EOF, a read error, or ctx
// cancellation. It takes ownership of body and closes it.
//
// The returned channel yields one Token event per non-empty content delta,
// then exactly one Done event carrying the full text (on "[DONE]" or EOF) or
// one Error event (on a read failure), and is then closed. On cancellation
// the channel is closed without a terminal event.
func (d *Decoder) Decode(ctx context.Context, body io.ReadCloser) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, 16)
	go func() {
		defer close(ch)
		defer body.Close()
		d.run(ctx, body, ch)
	}()
	return ch
}

func (d *Decoder) run(ctx context.Context, body io.Reader, ch chan<- llm.StreamEvent) {
	logger := d.logger
	if logger == nil {
		logger = slog.Default()
	}

	send := func(ev llm.StreamEvent) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	r := bufio.NewReaderSize(body, d.bufSize)
	var full strings.Builder
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			if ctx.Err() != nil {
				return
			}
			send(llm.Failed(&llm.TransportError{Op: "stream", Err: readErr}))
			return
		}

		if payload, ok := dataPayload(line); ok {
			if payload == doneMarker {
				send(llm.Done(full.String()))
				return
			}
			var c chunk
			if err := json.Unmarshal([]byte(payload), &c); err != nil {
				logger.Debug("sse: skipping undecodable payload", "err", err, "payload_len", len(payload))
			} else if len(c.Choices) > 0 && c.Choices[0].Delta.Content != nil && *c.Choices[0].Delta.Content != "" {
				text := *c.Choices[0].Delta.Content
				full.WriteString(text)
				if !send(llm.Token(text)) {
					return
				}
			}
		}

		if readErr != nil {
			send(llm.Done(full.String()))
			return
		}
	}
}

// dataPayload returns the payload of an SSE "data:" line. A single space
// after the colon is part of the framing and is removed.
func dataPayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload := strings.TrimPrefix(line, dataPrefix)
	payload = strings.TrimPrefix(payload, " ")
	return strings.TrimSpace(payload), true
}
