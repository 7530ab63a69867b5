package world

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocationEvent is extra perception context scoped to a place: a festival in
// the square, a leak in the bathhouse. Valid only inside its window.
type LocationEvent struct {
	ID          string     `json:"id"`
	LocationID  LocationID `json:"location_id"`
	Description string     `json:"description"`
	Importance  int        `json:"importance"` // 1–10
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      time.Time  `json:"ends_at"`
}

// Active reports whether the event is valid at t.
func (e *LocationEvent) Active(t time.Time) bool {
	return !t.Before(e.StartsAt) && t.Before(e.EndsAt)
}

// EventLog stores location events. Append-only aside from pruning.
type EventLog struct {
	mu     sync.Mutex
	events []*LocationEvent
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// CreateEvent records an event at a location. Importance is clamped to 1–10.
func (l *EventLog) CreateEvent(loc LocationID, description string, importance int, start, end time.Time) *LocationEvent {
	if importance < 1 {
		importance = 1
	}
	if importance > 10 {
		importance = 10
	}
	ev := &LocationEvent{
		ID:          uuid.NewString(),
		LocationID:  loc,
		Description: description,
		Importance:  importance,
		StartsAt:    start,
		EndsAt:      end,
	}

	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
	return ev
}

// Restore re-inserts persisted events.
func (l *EventLog) Restore(events []*LocationEvent) {
	l.mu.Lock()
	l.events = append(l.events, events...)
	l.mu.Unlock()
}

// RecentEvents returns events at loc active at t or started within window
// before t, most recent first.
func (l *EventLog) RecentEvents(loc LocationID, t time.Time, window time.Duration) []*LocationEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*LocationEvent
	cutoff := t.Add(-window)
	for _, ev := range l.events {
		if ev.LocationID != loc {
			continue
		}
		if ev.Active(t) || (ev.StartsAt.After(cutoff) && ev.StartsAt.Before(t)) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out
}

// All returns a copy of every stored event, for persistence snapshots.
func (l *EventLog) All() []*LocationEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*LocationEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Prune drops events that ended before cutoff and returns how many.
func (l *EventLog) Prune(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.events[:0]
	dropped := 0
	for _, ev := range l.events {
		if ev.EndsAt.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, ev)
	}
	l.events = kept
	return dropped
}
