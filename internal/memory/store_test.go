package memory

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestStore() (*Store, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	return NewStore(clk.now), clk
}

func TestEpisodicLogBounded(t *testing.T) {
	s, clk := newTestStore()
	for i := 0; i < MaxEpisodic+20; i++ {
		s.RecordEpisodic("mira", ActivityAct, fmt.Sprintf("entry %d", i))
		clk.advance(time.Minute)
	}

	ep, _, _ := s.Snapshot()
	log := ep["mira"]
	require.Len(t, log, MaxEpisodic)
	// Eviction dropped the oldest, kept the newest.
	assert.Equal(t, "entry 20", log[0].Text)
	assert.Equal(t, fmt.Sprintf("entry %d", MaxEpisodic+19), log[len(log)-1].Text)
}

func TestBuildContextOrder(t *testing.T) {
	s, clk := newTestStore()
	s.RecordEpisodic("mira", ActivitySocial, "talked with Tobin in the square")
	s.Compress("mira")
	clk.advance(time.Hour)
	s.RecordEpisodic("mira", ActivityMove, "walked to the garden")
	s.RecordSocial("mira", "Tobin", SocialConversation, "he told a long story", "amused", 4)

	ctx := s.BuildContext("mira")

	iSummary := strings.Index(ctx, "Your past days:")
	iRecent := strings.Index(ctx, "Recently:")
	iPeople := strings.Index(ctx, "People in your life:")
	iGround := strings.Index(ctx, "Ground yourself in the memories above.")
	require.True(t, iSummary >= 0 && iRecent >= 0 && iPeople >= 0 && iGround >= 0, ctx)
	assert.Less(t, iSummary, iRecent)
	assert.Less(t, iRecent, iPeople)
	assert.Less(t, iPeople, iGround)

	// Episodic entries read oldest-first inside the context.
	assert.Less(t, strings.Index(ctx, "talked with Tobin"), strings.Index(ctx, "walked to the garden"))
}

func TestBuildContextEmptyStillGrounded(t *testing.T) {
	s, _ := newTestStore()
	ctx := s.BuildContext("nobody")
	assert.Contains(t, ctx, "Do not invent events")
	assert.NotContains(t, ctx, "Recently:")
}

func TestFirstMeetingRecordedOnce(t *testing.T) {
	s, _ := newTestStore()
	require.True(t, s.IsFirstMeeting("mira", "Tobin"))

	s.RecordFirstMeeting("mira", "Tobin", "met Tobin by the well")
	assert.False(t, s.IsFirstMeeting("mira", "Tobin"))

	// First-meeting status is per counterpart and per direction.
	assert.True(t, s.IsFirstMeeting("mira", "Wren"))
	assert.True(t, s.IsFirstMeeting("Tobin", "mira"))
}

func TestSocialImportanceClamped(t *testing.T) {
	s, _ := newTestStore()
	s.RecordSocial("mira", "Tobin", SocialImpression, "loud", "wary", 99)
	s.RecordSocial("mira", "Wren", SocialImpression, "kind", "warm", -3)

	_, so, _ := s.Snapshot()
	rows := so["mira"]
	require.Len(t, rows, 2)
	assert.Equal(t, 10, rows[0].Importance)
	assert.Equal(t, 1, rows[1].Importance)
}

func TestActivityCountsWindow(t *testing.T) {
	s, clk := newTestStore()
	s.RecordEpisodic("mira", ActivitySocial, "old chat")
	clk.advance(10 * 24 * time.Hour)
	s.RecordEpisodic("mira", ActivitySocial, "recent chat")
	s.RecordEpisodic("mira", ActivityMove, "recent walk")

	counts := s.ActivityCounts("mira", 7)
	assert.Equal(t, 1, counts[ActivitySocial])
	assert.Equal(t, 1, counts[ActivityMove])
}

func TestCompressReplacesSameDayLine(t *testing.T) {
	s, clk := newTestStore()
	s.RecordEpisodic("mira", ActivitySocial, "morning chat")
	first := s.Compress("mira")
	assert.Contains(t, first, "1 conversations")

	clk.advance(time.Hour)
	s.RecordEpisodic("mira", ActivitySocial, "afternoon chat")
	second := s.Compress("mira")

	// Same day: the line was replaced, not appended.
	assert.Equal(t, 1, strings.Count(second, clk.t.Format("2006-01-02")))
	assert.Contains(t, second, "2 conversations")
}

func TestCompressAppendsAcrossDays(t *testing.T) {
	s, clk := newTestStore()
	s.RecordEpisodic("mira", ActivityRest, "napped")
	s.Compress("mira")

	clk.advance(24 * time.Hour)
	s.RecordEpisodic("mira", ActivityThink, "wondered about the stars")
	summary := s.Compress("mira")

	assert.Len(t, strings.Split(summary, "\n"), 2)
}

func TestCompressNeverExceedsBudget(t *testing.T) {
	s, clk := newTestStore()
	for day := 0; day < 60; day++ {
		for i := 0; i < 5; i++ {
			s.RecordEpisodic("mira", ActivitySocial, "a chat")
			s.RecordEpisodic("mira", ActivityMove, "a walk")
		}
		summary := s.Compress("mira")
		assert.LessOrEqual(t, len(summary), SummaryBudget)
		clk.advance(24 * time.Hour)
	}

	// Oldest days fell off the front; the latest day survived.
	final := s.Summary("mira")
	assert.Contains(t, final, clk.t.AddDate(0, 0, -1).Format("2006-01-02"))
}

func TestCompressNoEntriesToday(t *testing.T) {
	s, clk := newTestStore()
	s.RecordEpisodic("mira", ActivityAct, "whittled a spoon")
	before := s.Compress("mira")

	clk.advance(48 * time.Hour)
	after := s.Compress("mira") // nothing happened today
	assert.Equal(t, before, after)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s, clk := newTestStore()
	s.RecordEpisodic("mira", ActivitySocial, "a chat")
	s.RecordFirstMeeting("mira", "Tobin", "met Tobin by the well")
	s.RecordSocial("mira", "Tobin", SocialFriendship, "we are friends now", "happy", 8)
	s.Compress("mira")

	ep, so, su := s.Snapshot()
	fresh := NewStore(clk.now)
	fresh.Restore(ep, so, su)

	assert.False(t, fresh.IsFirstMeeting("mira", "Tobin"))
	assert.Equal(t, s.Summary("mira"), fresh.Summary("mira"))
	assert.Equal(t, s.BuildContext("mira"), fresh.BuildContext("mira"))
}
