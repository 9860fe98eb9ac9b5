package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has
// an open circuit breaker.
var ErrAllFailed = errors.New("resilience: all candidates failed")

// FallbackConfig configures the circuit breaker created for each entry in a
// [FallbackGroup]. The breaker's Name is set per entry.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary and zero or more fallback candidates of the
// same type. Calls go to the first candidate whose breaker admits them and
// move on when a candidate fails with an error that counts as a failure.
//
// Entries must all be added before the group is used concurrently.
type FallbackGroup[T any] struct {
	entries   []fallbackEntry[T]
	cfg       FallbackConfig
	isFailure func(error) bool
}

// NewFallbackGroup creates a [FallbackGroup] with primary as its first entry.
func NewFallbackGroup[T any](primaryName string, primary T, cfg FallbackConfig) *FallbackGroup[T] {
	isFailure := cfg.CircuitBreaker.IsFailure
	if isFailure == nil {
		isFailure = CountsAsFailure
	}
	fg := &FallbackGroup[T]{cfg: cfg, isFailure: isFailure}
	fg.Add(primaryName, primary)
	return fg
}

// Add appends a candidate. Candidates are tried in the order they are added.
func (fg *FallbackGroup[T]) Add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Names returns the candidate names in order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Breaker returns the circuit breaker of the named candidate, or nil.
func (fg *FallbackGroup[T]) Breaker(name string) *CircuitBreaker {
	for i := range fg.entries {
		if fg.entries[i].name == name {
			return fg.entries[i].breaker
		}
	}
	return nil
}

// Execute runs fn against each candidate in turn and returns the first
// success together with the candidate's name. An error that does not count
// as a failure (see [CircuitBreakerConfig.IsFailure]) is returned at once
// without trying further candidates, as is cancellation of ctx. When every
// candidate fails the result wraps [ErrAllFailed] and the last error.
func Execute[T, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, string, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		if err := ctx.Err(); err != nil {
			return zero, "", fmt.Errorf("resilience: %w", err)
		}

		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(ctx, entry.value)
			return innerErr
		})
		if err == nil {
			return result, entry.name, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping candidate with open circuit", "candidate", entry.name)
			lastErr = fmt.Errorf("%s: %w", entry.name, err)
			continue
		}
		if !fg.isFailure(err) {
			return zero, entry.name, err
		}
		lastErr = fmt.Errorf("%s: %w", entry.name, err)
		slog.Warn("candidate failed, trying next", "candidate", entry.name, "err", err)
	}
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
