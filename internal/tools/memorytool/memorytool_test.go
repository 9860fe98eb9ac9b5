package memorytool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

// fakeSearcher records Recall calls and returns a fixed result.
type fakeSearcher struct {
	mu     sync.Mutex
	result []Memory
	err    error
	calls  []recallArgs
}

func (f *fakeSearcher) Recall(_ context.Context, agent, query string, limit int) ([]Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recallArgs{Agent: agent, Query: query, Limit: limit})
	return f.result, f.err
}

// keywordEmbedder maps text onto a tiny fixed vocabulary so similarity is
// predictable.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
}

var vocabulary = []string{"party", "coffee", "painting", "election"}

func (k *keywordEmbedder) Embed(_ context.Context, text, _ string) ([]float64, error) {
	k.mu.Lock()
	k.calls++
	k.mu.Unlock()
	vec := make([]float64, len(vocabulary))
	lower := strings.ToLower(text)
	for i, w := range vocabulary {
		if strings.Contains(lower, w) {
			vec[i] = 1
		}
	}
	return vec, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// recall_memories
// ─────────────────────────────────────────────────────────────────────────────

func TestRecall_Success(t *testing.T) {
	t.Parallel()
	s := &fakeSearcher{result: []Memory{{Description: "Isabella is planning a party"}}}
	handler := makeRecallHandler(s)

	out, err := handler(context.Background(), `{"agent":"Klaus","query":"party"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res recallResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("failed to unmarshal: %v\noutput: %s", err, out)
	}
	if res.Agent != "Klaus" || len(res.Memories) != 1 {
		t.Errorf("result = %+v", res)
	}
	if s.calls[0].Limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", s.calls[0].Limit, DefaultLimit)
	}
}

func TestRecall_LimitIsCapped(t *testing.T) {
	t.Parallel()
	s := &fakeSearcher{}
	handler := makeRecallHandler(s)

	out, err := handler(context.Background(), `{"agent":"a","query":"q","limit":1000}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.calls[0].Limit != maxLimit {
		t.Errorf("limit = %d, want %d", s.calls[0].Limit, maxLimit)
	}
	if !strings.Contains(out, `"memories":[]`) {
		t.Errorf("nil result should encode as an empty list, got %s", out)
	}
}

func TestRecall_Errors(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		args string
		err  error
	}{
		"bad json":      {args: `not json`},
		"missing agent": {args: `{"query":"party"}`},
		"missing query": {args: `{"agent":"Klaus"}`},
		"backend":       {args: `{"agent":"Klaus","query":"party"}`, err: errors.New("db down")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			handler := makeRecallHandler(&fakeSearcher{err: tc.err})
			_, err := handler(context.Background(), tc.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), "memory tool: recall_memories:") {
				t.Errorf("error = %q", err)
			}
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Store
// ─────────────────────────────────────────────────────────────────────────────

func TestStore_RanksBySimilarity(t *testing.T) {
	t.Parallel()
	emb := &keywordEmbedder{}
	s := NewStore(emb, "")
	ctx := context.Background()

	for _, m := range []string{
		"Klaus drank coffee at Hobbs Cafe",
		"Isabella invited Klaus to the Valentine's party",
		"Klaus is working on a painting",
	} {
		if err := s.Add(ctx, "Klaus", m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if s.Len("Klaus") != 3 {
		t.Fatalf("Len = %d", s.Len("Klaus"))
	}

	got, err := s.Recall(ctx, "Klaus", "Is there a party?", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !strings.Contains(got[0].Description, "party") || got[0].Score <= got[1].Score {
		t.Errorf("ranking = %+v", got)
	}
}

func TestStore_UnknownAgentSkipsEmbedding(t *testing.T) {
	t.Parallel()
	emb := &keywordEmbedder{}
	s := NewStore(emb, "")

	got, err := s.Recall(context.Background(), "nobody", "anything", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 || emb.calls != 0 {
		t.Errorf("got %v with %d embed calls", got, emb.calls)
	}
}

func TestStore_AddRequiresAgent(t *testing.T) {
	t.Parallel()
	if err := NewStore(&keywordEmbedder{}, "").Add(context.Background(), " ", "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b []float64
		want float64
	}{
		{[]float64{1, 0}, []float64{1, 0}, 1},
		{[]float64{1, 0}, []float64{0, 1}, 0},
		{[]float64{1, 0}, []float64{-1, 0}, -1},
		{[]float64{0, 0}, []float64{1, 0}, 0},
		{[]float64{1}, []float64{1, 0}, 0},
		{nil, nil, 0},
	}
	for _, tt := range tests {
		if got := cosine(tt.a, tt.b); got != tt.want {
			t.Errorf("cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
