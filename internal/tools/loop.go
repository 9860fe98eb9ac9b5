package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/llmgate/pkg/llm"
)

// DefaultMaxRounds bounds [Dispatcher.Converse] when maxRounds is not
// positive.
const DefaultMaxRounds = 5

// ErrTooManyRounds is returned by [Dispatcher.Converse] when the model is
// still requesting function calls after the last allowed round.
var ErrTooManyRounds = errors.New("tools: model still calling functions after the last round")

// Conversation is the outcome of [Dispatcher.Converse].
type Conversation struct {
	// Final is the last completion, the one without function calls.
	Final *llm.CompletionResult

	// Messages is the full transcript including function round trips.
	Messages []llm.Message

	// Calls lists every function result in the order executed.
	Calls []Result

	// Rounds is the number of completions issued.
	Rounds int
}

// Converse completes req, executing any function calls the model requests
// and feeding the results back, until the model answers without calling a
// function or maxRounds completions have been made. When req.Functions is
// empty every registered function is offered.
func (d *Dispatcher) Converse(ctx context.Context, c llm.Completer, req llm.CompletionRequest, maxRounds int) (*Conversation, error) {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	if len(req.Functions) == 0 {
		req.Functions = d.Definitions()
	}
	conv := &Conversation{Messages: append([]llm.Message(nil), req.Messages...)}

	for conv.Rounds < maxRounds {
		req.Messages = conv.Messages
		res, err := c.Complete(ctx, req)
		conv.Rounds++
		if err != nil {
			return conv, fmt.Errorf("tools: round %d: %w", conv.Rounds, err)
		}
		conv.Final = res
		if len(res.FunctionCalls) == 0 {
			conv.Messages = append(conv.Messages, llm.AssistantMessage(res.Text))
			return conv, nil
		}

		results := d.ExecuteAll(ctx, res.FunctionCalls)
		conv.Calls = append(conv.Calls, results...)
		conv.Messages = append(conv.Messages, llm.AssistantMessage(describeCalls(res)), FollowUp(results))
	}
	return conv, ErrTooManyRounds
}

// describeCalls renders an assistant turn that requested function calls.
// The role set has no structured call message, so the request is kept as
// text for the next round.
func describeCalls(res *llm.CompletionResult) string {
	var sb strings.Builder
	if t := strings.TrimSpace(res.Text); t != "" {
		sb.WriteString(t)
		sb.WriteString("\n")
	}
	sb.WriteString("Calling functions:")
	for _, call := range res.FunctionCalls {
		sb.WriteString("\n")
		sb.WriteString(call.Name)
		sb.WriteString("(")
		sb.WriteString(callArguments(call))
		sb.WriteString(")")
	}
	return sb.String()
}
