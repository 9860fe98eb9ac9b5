package resilience

import (
	"context"
	"fmt"

	"github.com/MrWong99/llmgate/pkg/llm"
)

// ModelFallback implements [llm.Completer] by sending each request to a list
// of models in order until one succeeds. Every model has its own circuit
// breaker, so a model that keeps failing is skipped until its reset timeout
// elapses.
//
// The request's own Model field is ignored; the group decides.
type ModelFallback struct {
	next  llm.Completer
	group *FallbackGroup[string]
}

// NewModelFallback routes completions through next using primary first and
// then fallbacks in order.
func NewModelFallback(next llm.Completer, primary string, fallbacks []string, cfg FallbackConfig) (*ModelFallback, error) {
	if primary == "" {
		return nil, fmt.Errorf("resilience: primary model must not be empty")
	}
	group := NewFallbackGroup(primary, primary, cfg)
	seen := map[string]bool{primary: true}
	for _, m := range fallbacks {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		group.Add(m, m)
	}
	return &ModelFallback{next: next, group: group}, nil
}

// Models returns the models in the order they are tried.
func (f *ModelFallback) Models() []string { return f.group.Names() }

// Complete implements [llm.Completer]. The returned result's Model reports
// which model answered.
func (f *ModelFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error) {
	res, model, err := Execute(ctx, f.group, func(ctx context.Context, model string) (*llm.CompletionResult, error) {
		r := req
		r.Model = model
		return f.next.Complete(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	if res.Model == "" {
		res.Model = model
	}
	return res, nil
}

var _ llm.Completer = (*ModelFallback)(nil)
