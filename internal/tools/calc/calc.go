// Package calc provides the built-in "calculate" function, an arithmetic
// evaluator for models that should not do sums in their heads.
//
// Expressions are handled by a dedicated tokenizer and recursive-descent
// parser that understands numbers, + - * /, unary minus and parentheses and
// nothing else; see [Evaluate].
package calc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrWong99/llmgate/internal/tools"
	"github.com/MrWong99/llmgate/pkg/llm"
)

// calculateArgs is the JSON-decoded input for the "calculate" function.
type calculateArgs struct {
	Expression string `json:"expression"`
}

// calculateResult is the JSON-encoded output of the "calculate" function.
type calculateResult struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

func calculateHandler(_ context.Context, args string) (string, error) {
	var a calculateArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("calc: failed to parse arguments: %w", err)
	}
	if a.Expression == "" {
		return "", fmt.Errorf("calc: expression must not be empty")
	}

	v, err := Evaluate(a.Expression)
	if err != nil {
		return "", fmt.Errorf("calc: %q: %w", a.Expression, err)
	}

	res, err := json.Marshal(calculateResult{Expression: a.Expression, Result: v})
	if err != nil {
		return "", fmt.Errorf("calc: failed to encode result: %w", err)
	}
	return string(res), nil
}

// Tools returns the "calculate" function.
func Tools() []tools.Tool {
	return []tools.Tool{
		{
			Definition: llm.FunctionDefinition{
				Name:        "calculate",
				Description: "Evaluate an arithmetic expression and return the numeric result. Supports + - * /, unary minus, decimals and parentheses, e.g. (12.5 + 7) * 3 / 2.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"expression": map[string]any{
							"type":        "string",
							"description": "Arithmetic expression to evaluate.",
						},
					},
					"required": []string{"expression"},
				},
			},
			Handler: calculateHandler,
		},
	}
}
