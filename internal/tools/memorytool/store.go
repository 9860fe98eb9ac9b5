package memorytool

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/llmgate/pkg/llm"
)

type storedMemory struct {
	Memory
	vec []float64
}

// Store is an in-memory [Searcher] that ranks memories by cosine similarity
// between the query embedding and each memory's embedding. Embeddings are
// computed once, when a memory is added.
type Store struct {
	embedder llm.Embedder
	model    string
	now      func() time.Time

	mu     sync.RWMutex
	agents map[string][]storedMemory
}

// NewStore creates an empty Store that embeds text with e under model. An
// empty model selects the embedder's default.
func NewStore(e llm.Embedder, model string) *Store {
	return &Store{
		embedder: e,
		model:    model,
		now:      time.Now,
		agents:   make(map[string][]storedMemory),
	}
}

// Add embeds description and files it under agent.
func (s *Store) Add(ctx context.Context, agent, description string) error {
	agent = strings.TrimSpace(agent)
	if agent == "" {
		return fmt.Errorf("memory store: agent must not be empty")
	}
	vec, err := s.embedder.Embed(ctx, description, s.model)
	if err != nil {
		return fmt.Errorf("memory store: embed memory for %s: %w", agent, err)
	}

	m := storedMemory{Memory: Memory{Description: description, CreatedAt: s.now()}, vec: vec}
	s.mu.Lock()
	s.agents[agent] = append(s.agents[agent], m)
	s.mu.Unlock()
	return nil
}

// Len returns the number of memories held for agent.
func (s *Store) Len(agent string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents[agent])
}

// Recall implements [Searcher]. Ties keep insertion order. An agent with no
// memories yields an empty result without calling the embedder.
func (s *Store) Recall(ctx context.Context, agent, query string, limit int) ([]Memory, error) {
	s.mu.RLock()
	stored := append([]storedMemory(nil), s.agents[agent]...)
	s.mu.RUnlock()
	if len(stored) == 0 {
		return []Memory{}, nil
	}

	qvec, err := s.embedder.Embed(ctx, query, s.model)
	if err != nil {
		return nil, fmt.Errorf("memory store: embed query: %w", err)
	}

	out := make([]Memory, len(stored))
	for i, m := range stored {
		out[i] = m.Memory
		out[i].Score = cosine(qvec, m.vec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// cosine returns the cosine similarity of a and b, or 0 when either is empty,
// zero, or the lengths differ.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Searcher = (*Store)(nil)
