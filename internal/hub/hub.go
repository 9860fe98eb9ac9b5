// Package hub is an in-memory message board that lets agents leave messages
// for each other.
//
// Messages are grouped by a (sender, recipient) [Key]. Each key holds its
// messages in the order they were sent. A [Hub] is an ordinary value: create
// one per use and inject it where needed. All methods are safe for
// concurrent use.
package hub

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Key identifies a conversation direction between two agents.
type Key struct {
	Sender    string
	Recipient string
}

// String returns "sender→recipient".
func (k Key) String() string { return k.Sender + "→" + k.Recipient }

// Message is a single entry on the board.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"from"`
	Recipient string    `json:"to"`
	Content   string    `json:"content"`
	SentAt    time.Time `json:"sent_at"`

	seq uint64
}

// Key returns the message's conversation key.
func (m Message) Key() Key { return Key{Sender: m.Sender, Recipient: m.Recipient} }

// Query filters messages. Empty Sender or Recipient match any agent; a zero
// Since matches any time; Limit <= 0 returns every match.
type Query struct {
	Sender    string
	Recipient string
	Since     time.Time
	Limit     int
}

// Hub stores messages keyed by (sender, recipient).
type Hub struct {
	now   func() time.Time
	newID func() string

	mu    sync.RWMutex
	seq   uint64
	boxes map[Key][]Message
}

// Option configures a [Hub].
type Option func(*Hub)

// WithClock overrides the clock used to timestamp messages.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithIDGenerator overrides how message IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(h *Hub) { h.newID = gen }
}

// New creates an empty [Hub].
func New(opts ...Option) *Hub {
	h := &Hub{
		now:   time.Now,
		newID: uuid.NewString,
		boxes: make(map[Key][]Message),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Create ensures an (empty) list exists for key. Existing messages are kept.
func (h *Hub) Create(key Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.boxes[key]; !ok {
		h.boxes[key] = nil
	}
}

// Send appends a message from sender to recipient and returns it. Sender and
// recipient are trimmed of surrounding whitespace.
func (h *Hub) Send(sender, recipient, content string) Message {
	msg := Message{
		ID:        h.newID(),
		Sender:    strings.TrimSpace(sender),
		Recipient: strings.TrimSpace(recipient),
		Content:   content,
		SentAt:    h.now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	msg.seq = h.seq
	h.boxes[msg.Key()] = append(h.boxes[msg.Key()], msg)
	return msg
}

// Query returns the messages matching q, newest first. Messages with equal
// timestamps are ordered by send order, latest first.
func (h *Hub) Query(q Query) []Message {
	h.mu.RLock()
	var out []Message
	for key, msgs := range h.boxes {
		if q.Sender != "" && key.Sender != q.Sender {
			continue
		}
		if q.Recipient != "" && key.Recipient != q.Recipient {
			continue
		}
		for _, m := range msgs {
			if !q.Since.IsZero() && m.SentAt.Before(q.Since) {
				continue
			}
			out = append(out, m)
		}
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.After(out[j].SentAt)
		}
		return out[i].seq > out[j].seq
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Keys returns every key that has been created or sent to, sorted.
func (h *Hub) Keys() []Key {
	h.mu.RLock()
	keys := make([]Key, 0, len(h.boxes))
	for k := range h.boxes {
		keys = append(keys, k)
	}
	h.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Sender != keys[j].Sender {
			return keys[i].Sender < keys[j].Sender
		}
		return keys[i].Recipient < keys[j].Recipient
	})
	return keys
}

// Clear removes all messages under key. The key itself remains.
func (h *Hub) Clear(key Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.boxes[key]; ok {
		h.boxes[key] = nil
	}
}

// Reset removes every key and message.
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.boxes = make(map[Key][]Message)
}
