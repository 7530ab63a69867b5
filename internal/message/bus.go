// Package message provides the ephemeral message bus: direct messages with
// single-read semantics and location-scoped broadcasts with a time window.
// The bus is a log, not a transactional queue; the merged inbox carries no
// cross-channel ordering guarantee.
package message

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hollowsim/internal/world"
)

// Message is one bus entry. An empty To means a broadcast scoped to
// LocationID; Read is meaningful for direct messages only.
type Message struct {
	ID         string           `json:"id"`
	From       string           `json:"from"`
	To         string           `json:"to,omitempty"`
	LocationID world.LocationID `json:"location_id,omitempty"`
	Channel    string           `json:"channel"`
	Content    string           `json:"content"`
	Read       bool             `json:"read"`
	SentAt     time.Time        `json:"sent_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// Broadcast reports whether the message is location-scoped.
func (m *Message) Broadcast() bool { return m.To == "" }

// DefaultDirectTTL is how long an unread direct message survives.
const DefaultDirectTTL = 24 * time.Hour

// Bus holds all live messages behind one mutex. Writes are independent
// appends; no cross-entity locking is needed.
type Bus struct {
	mu       sync.Mutex
	messages []*Message
	now      func() time.Time
}

// NewBus creates an empty bus. The clock is injectable for tests.
func NewBus(now func() time.Time) *Bus {
	if now == nil {
		now = time.Now
	}
	return &Bus{now: now}
}

// SendDirect queues a direct message from one agent to another.
func (b *Bus) SendDirect(from, to, channel, content string) *Message {
	t := b.now()
	m := &Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Channel:   channel,
		Content:   content,
		SentAt:    t,
		ExpiresAt: t.Add(DefaultDirectTTL),
	}
	b.mu.Lock()
	b.messages = append(b.messages, m)
	b.mu.Unlock()
	return m
}

// Broadcast publishes a message visible to occupants of a location for ttl.
func (b *Bus) Broadcast(from string, loc world.LocationID, channel, content string, ttl time.Duration) *Message {
	t := b.now()
	m := &Message{
		ID:         uuid.NewString(),
		From:       from,
		LocationID: loc,
		Channel:    channel,
		Content:    content,
		SentAt:     t,
		ExpiresAt:  t.Add(ttl),
	}
	b.mu.Lock()
	b.messages = append(b.messages, m)
	b.mu.Unlock()
	return m
}

// ReceiveDirect returns up to limit unread direct messages for an agent,
// most recent first, and marks them read. A message is returned at most
// once across calls.
func (b *Bus) ReceiveDirect(agentID string, limit int) []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.now()
	var out []*Message
	for _, m := range b.messages {
		if m.Broadcast() || m.To != agentID || m.Read || t.After(m.ExpiresAt) {
			continue
		}
		out = append(out, m)
	}
	sortRecentFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for _, m := range out {
		m.Read = true
	}
	return out
}

// Requeue marks consumed direct messages unread again, so a failed reply
// attempt does not destroy the stimulus. Broadcasts are ignored; they were
// never marked read.
func (b *Bus) Requeue(msgs []*Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range msgs {
		if !m.Broadcast() {
			m.Read = false
		}
	}
}

// UnreadCount returns how many unexpired direct messages await an agent.
// Read-only so the stimulus gate never consumes messages.
func (b *Bus) UnreadCount(agentID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.now()
	n := 0
	for _, m := range b.messages {
		if !m.Broadcast() && m.To == agentID && !m.Read && !t.After(m.ExpiresAt) {
			n++
		}
	}
	return n
}

// RecentBroadcasts returns broadcasts at a location within window, excluding
// the asking agent's own, most recent first. Broadcasts are never marked
// read; visibility is purely time-windowed.
func (b *Bus) RecentBroadcasts(loc world.LocationID, excludeAgent string, window time.Duration, limit int) []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.now()
	cutoff := t.Add(-window)
	var out []*Message
	for _, m := range b.messages {
		if !m.Broadcast() || m.LocationID != loc || m.From == excludeAgent {
			continue
		}
		if t.After(m.ExpiresAt) || m.SentAt.Before(cutoff) {
			continue
		}
		out = append(out, m)
	}
	sortRecentFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Inbox merges direct messages and local broadcasts for one agent: direct
// first, then broadcasts. Direct rows are marked read.
func (b *Bus) Inbox(agentID string, loc world.LocationID, limit int) []*Message {
	direct := b.ReceiveDirect(agentID, limit)
	remaining := 0
	if limit > 0 {
		remaining = limit - len(direct)
		if remaining <= 0 {
			return direct
		}
	}
	broadcasts := b.RecentBroadcasts(loc, agentID, DefaultDirectTTL, remaining)
	return append(direct, broadcasts...)
}

// CleanupExpired drops expired messages and returns how many were removed.
func (b *Bus) CleanupExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.now()
	kept := b.messages[:0]
	dropped := 0
	for _, m := range b.messages {
		if t.After(m.ExpiresAt) {
			dropped++
			continue
		}
		kept = append(kept, m)
	}
	b.messages = kept
	return dropped
}

// All returns a copy of every live message, for persistence snapshots.
func (b *Bus) All() []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Restore re-inserts persisted messages.
func (b *Bus) Restore(msgs []*Message) {
	b.mu.Lock()
	b.messages = append(b.messages, msgs...)
	b.mu.Unlock()
}

func sortRecentFirst(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.After(msgs[j].SentAt)
	})
}
