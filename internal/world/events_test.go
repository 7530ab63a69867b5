package world

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestCreateEventClampsImportance(t *testing.T) {
	l := NewEventLog()
	hi := l.CreateEvent("square", "festival", 99, eventTime, eventTime.Add(time.Hour))
	lo := l.CreateEvent("square", "a dropped coin", -4, eventTime, eventTime.Add(time.Hour))

	assert.Equal(t, 10, hi.Importance)
	assert.Equal(t, 1, lo.Importance)
	assert.NotEqual(t, hi.ID, lo.ID)
}

func TestEventActiveWindow(t *testing.T) {
	ev := &LocationEvent{StartsAt: eventTime, EndsAt: eventTime.Add(time.Hour)}
	assert.False(t, ev.Active(eventTime.Add(-time.Second)))
	assert.True(t, ev.Active(eventTime))
	assert.True(t, ev.Active(eventTime.Add(59*time.Minute)))
	assert.False(t, ev.Active(eventTime.Add(time.Hour)))
}

func TestRecentEventsScopedAndOrdered(t *testing.T) {
	l := NewEventLog()
	l.CreateEvent("square", "morning market", 5, eventTime.Add(-2*time.Hour), eventTime.Add(-90*time.Minute))
	l.CreateEvent("square", "street music", 5, eventTime.Add(-30*time.Minute), eventTime.Add(time.Hour))
	l.CreateEvent("square", "juggler arrives", 5, eventTime.Add(-10*time.Minute), eventTime.Add(time.Hour))
	l.CreateEvent("tavern", "spilled ale", 5, eventTime.Add(-5*time.Minute), eventTime.Add(time.Hour))

	got := l.RecentEvents("square", eventTime, time.Hour)
	require.Len(t, got, 2, "the long-ended market is out of window")
	assert.Equal(t, "juggler arrives", got[0].Description)
	assert.Equal(t, "street music", got[1].Description)
}

func TestPruneDropsEndedEvents(t *testing.T) {
	l := NewEventLog()
	l.CreateEvent("square", "over", 5, eventTime.Add(-3*time.Hour), eventTime.Add(-2*time.Hour))
	l.CreateEvent("square", "ongoing", 5, eventTime.Add(-time.Hour), eventTime.Add(time.Hour))

	assert.Equal(t, 1, l.Prune(eventTime))
	all := l.All()
	require.Len(t, all, 1)
	assert.Equal(t, "ongoing", all[0].Description)
}

func TestAmbienceDeterministic(t *testing.T) {
	a := NewAmbience(7)
	b := NewAmbience(7)
	loc := &Location{ID: "square", Name: "Village Square", AmbientTags: []string{"cobblestones"}}

	assert.Equal(t, a.Level("square", eventTime), b.Level("square", eventTime))
	assert.Equal(t, a.Describe(loc, eventTime), b.Describe(loc, eventTime))

	lvl := a.Level("square", eventTime)
	assert.GreaterOrEqual(t, lvl, 0.0)
	assert.Less(t, lvl, 1.01)

	desc := a.Describe(loc, eventTime)
	assert.Contains(t, desc, "The Village Square is ")
	assert.Contains(t, desc, "cobblestones")
}
