package hub

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2023, 2, 13, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func contents(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSend(t *testing.T) {
	t.Parallel()
	h := New(WithClock(steppingClock()))

	m := h.Send(" Isabella ", "Klaus", "party at 5pm")
	if m.ID == "" {
		t.Error("message ID is empty")
	}
	if m.Key() != (Key{Sender: "Isabella", Recipient: "Klaus"}) {
		t.Errorf("key = %v", m.Key())
	}
	if m.SentAt.IsZero() {
		t.Error("timestamp not set")
	}

	other := h.Send("Isabella", "Klaus", "bring snacks")
	if other.ID == m.ID {
		t.Error("message IDs are not unique")
	}
}

func TestQuery(t *testing.T) {
	t.Parallel()
	h := New(WithClock(steppingClock()))
	h.Send("a", "b", "1")
	h.Send("b", "a", "2")
	h.Send("a", "c", "3")
	h.Send("a", "b", "4")

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"all newest first", Query{}, []string{"4", "3", "2", "1"}},
		{"by pair", Query{Sender: "a", Recipient: "b"}, []string{"4", "1"}},
		{"sender wildcard recipient", Query{Sender: "a"}, []string{"4", "3", "1"}},
		{"recipient only", Query{Recipient: "a"}, []string{"2"}},
		{"limit", Query{Limit: 2}, []string{"4", "3"}},
		{"unknown pair", Query{Sender: "x", Recipient: "y"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := contents(h.Query(tt.q)); !equal(got, tt.want) {
				t.Errorf("Query(%+v) = %v, want %v", tt.q, got, tt.want)
			}
		})
	}
}

func TestQuery_Since(t *testing.T) {
	t.Parallel()
	h := New(WithClock(steppingClock()))
	first := h.Send("a", "b", "old")
	h.Send("a", "b", "new")

	got := contents(h.Query(Query{Since: first.SentAt.Add(time.Millisecond)}))
	if !equal(got, []string{"new"}) {
		t.Errorf("got %v, want [new]", got)
	}
}

func TestQuery_EqualTimestampsLatestFirst(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2023, 2, 13, 9, 0, 0, 0, time.UTC)
	h := New(WithClock(func() time.Time { return fixed }))
	h.Send("a", "b", "first")
	h.Send("c", "d", "second")
	h.Send("a", "b", "third")

	got := contents(h.Query(Query{}))
	if !equal(got, []string{"third", "second", "first"}) {
		t.Errorf("got %v", got)
	}
}

func TestCreateClearReset(t *testing.T) {
	t.Parallel()
	h := New(WithIDGenerator(func() string { return "id" }))

	k := Key{Sender: "a", Recipient: "b"}
	h.Create(k)
	if keys := h.Keys(); len(keys) != 1 || keys[0] != k {
		t.Fatalf("Keys() = %v", keys)
	}
	h.Send("a", "b", "hello")
	h.Create(k)
	if got := h.Query(Query{}); len(got) != 1 || got[0].ID != "id" {
		t.Fatalf("Create dropped existing messages: %v", got)
	}

	h.Clear(k)
	if got := h.Query(Query{}); len(got) != 0 {
		t.Errorf("after Clear got %v", got)
	}
	if len(h.Keys()) != 1 {
		t.Error("Clear removed the key")
	}

	h.Send("x", "y", "z")
	h.Reset()
	if len(h.Keys()) != 0 || len(h.Query(Query{})) != 0 {
		t.Error("Reset left data behind")
	}
}

func TestConcurrentSendAndQuery(t *testing.T) {
	t.Parallel()
	h := New()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := range 50 {
				h.Send(fmt.Sprintf("agent-%d", i), "board", fmt.Sprint(j))
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				_ = h.Query(Query{Recipient: "board", Limit: 5})
			}
		}()
	}
	wg.Wait()

	if got := len(h.Query(Query{Recipient: "board"})); got != 400 {
		t.Errorf("message count = %d, want 400", got)
	}
}
