package llm

import (
	"context"
	"strings"
)

// EventKind discriminates [StreamEvent].
type EventKind int

const (
	// EventToken carries one incremental text fragment.
	EventToken EventKind = iota
	// EventDone is the final event of a successful stream; Text holds the
	// full accumulated reply.
	EventDone
	// EventError is the final event of a failed stream; Err is set.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventToken:
		return "token"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	}
	return "unknown"
}

// StreamEvent is one element of a streaming completion.
//
// A stream emits zero or more EventToken values followed by exactly one
// EventDone or EventError, after which the channel is closed.
type StreamEvent struct {
	Kind EventKind
	Text string
	Err  error
}

// Token builds an EventToken.
func Token(text string) StreamEvent { return StreamEvent{Kind: EventToken, Text: text} }

// Done builds an EventDone.
func Done(full string) StreamEvent { return StreamEvent{Kind: EventDone, Text: full} }

// Failed builds an EventError.
func Failed(err error) StreamEvent { return StreamEvent{Kind: EventError, Err: err} }

// Collect drains events and returns the full reply. If the stream ends in an
// error, the text accumulated so far is returned with it. If the channel is
// closed without a terminal event, the accumulated text and [ErrNoResult]
// are returned. Collect stops early when ctx is cancelled.
func Collect(ctx context.Context, events <-chan StreamEvent) (string, error) {
	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return b.String(), ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return b.String(), ErrNoResult
			}
			switch ev.Kind {
			case EventToken:
				b.WriteString(ev.Text)
			case EventDone:
				return ev.Text, nil
			case EventError:
				return b.String(), ev.Err
			}
		}
	}
}
