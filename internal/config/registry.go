package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/MrWong99/llmgate/pkg/llm"
)

// ErrBackendNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// Streamer performs a streaming completion.
type Streamer interface {
	Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error)
}

// Clients bundles what a backend provides. Embedder and Streamer are nil
// when the backend does not support them.
type Clients struct {
	Completer llm.Completer
	Embedder  llm.Embedder
	Streamer  Streamer
}

// Factory builds a backend from cfg. hc is the HTTP client the backend must
// use for every upstream request.
type Factory func(cfg *Config, hc *http.Client) (*Clients, error)

// Registry maps backend names to their constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[Backend]Factory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Backend]Factory)}
}

// Register registers a backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) Register(name Backend, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Backend, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create instantiates the backend selected by cfg.Backend.
// Returns [ErrBackendNotRegistered] if no factory has been registered for it.
func (r *Registry) Create(cfg *Config, hc *http.Client) (*Clients, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, cfg.Backend)
	}
	c, err := f(cfg, hc)
	if err != nil {
		return nil, fmt.Errorf("config: create backend %q: %w", cfg.Backend, err)
	}
	if c == nil || c.Completer == nil {
		return nil, fmt.Errorf("config: backend %q returned no completer", cfg.Backend)
	}
	return c, nil
}
