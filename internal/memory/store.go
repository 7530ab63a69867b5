// Package memory provides the two memory layers behind agent cognition: a
// bounded per-agent episodic log and per-counterpart social memories, plus
// the compressed daily summary that is the only long-lived memory.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ActivityKind classifies an episodic record for summary and personality
// statistics.
type ActivityKind string

const (
	ActivitySocial ActivityKind = "social" // spoke with or messaged someone
	ActivityMove   ActivityKind = "move"   // changed location
	ActivityAct    ActivityKind = "act"    // free-form action
	ActivityRest   ActivityKind = "rest"
	ActivityThink  ActivityKind = "think" // private reflection
)

// Episodic is one timestamped activity record.
type Episodic struct {
	At   time.Time    `json:"at"`
	Kind ActivityKind `json:"kind"`
	Text string       `json:"text"`
}

// SocialKind types a social memory row.
type SocialKind string

const (
	SocialFirstMeeting   SocialKind = "first_meeting"
	SocialConversation   SocialKind = "conversation"
	SocialSharedActivity SocialKind = "shared_activity"
	SocialImpression     SocialKind = "impression"
	SocialFriendship     SocialKind = "friendship"
)

// Social is a memory about a specific counterpart.
type Social struct {
	Counterpart string     `json:"counterpart"`
	Kind        SocialKind `json:"kind"`
	Text        string     `json:"text"`
	Emotion     string     `json:"emotion"`
	Importance  int        `json:"importance"` // 1–10
	At          time.Time  `json:"at"`
}

const (
	// MaxEpisodic bounds the rolling activity log per agent.
	MaxEpisodic = 50
	// ContextEpisodic is how many recent entries go into a thinking context.
	ContextEpisodic = 10
	// ContextSocial is how many recent social rows go into a context.
	ContextSocial = 5
	// CompressWindow is how many recent entries one compression reads.
	CompressWindow = 100
	// SummaryBudget caps the stored summary, in characters.
	SummaryBudget = 1200
)

// groundingInstruction terminates every assembled context. It keeps the
// generation step from inventing a past the agent never lived.
const groundingInstruction = "Ground yourself in the memories above. " +
	"Do not invent events, people, or conversations you have not actually experienced."

// Store owns both memory layers for all agents.
type Store struct {
	mu        sync.Mutex
	episodic  map[string][]Episodic
	social    map[string][]Social
	summaries map[string]string
	now       func() time.Time
}

// NewStore creates an empty memory store with an injectable clock.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		episodic:  make(map[string][]Episodic),
		social:    make(map[string][]Social),
		summaries: make(map[string]string),
		now:       now,
	}
}

// RecordEpisodic appends one activity record, evicting the oldest entry
// once the agent's log is full.
func (s *Store) RecordEpisodic(agentID string, kind ActivityKind, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.episodic[agentID], Episodic{At: s.now(), Kind: kind, Text: text})
	if len(log) > MaxEpisodic {
		log = log[len(log)-MaxEpisodic:]
	}
	s.episodic[agentID] = log
}

// RecordSocial appends one social memory row. Importance clamps to 1–10.
func (s *Store) RecordSocial(agentID, counterpart string, kind SocialKind, text, emotion string, importance int) {
	if importance < 1 {
		importance = 1
	}
	if importance > 10 {
		importance = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.social[agentID] = append(s.social[agentID], Social{
		Counterpart: counterpart,
		Kind:        kind,
		Text:        text,
		Emotion:     emotion,
		Importance:  importance,
		At:          s.now(),
	})
}

// IsFirstMeeting reports whether agent has no recorded meeting with
// counterpart yet.
func (s *Store) IsFirstMeeting(agentID, counterpart string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.social[agentID] {
		if row.Counterpart == counterpart && row.Kind == SocialFirstMeeting {
			return false
		}
	}
	return true
}

// RecordFirstMeeting stores the one-time "we just met" row.
func (s *Store) RecordFirstMeeting(agentID, counterpart, text string) {
	s.RecordSocial(agentID, counterpart, SocialFirstMeeting, text, "curious", 7)
}

// BuildContext assembles the memory portion of a thinking prompt,
// deterministically and in fixed order: compressed summary, recent episodic
// entries oldest-first, recent social memories, grounding instruction.
func (s *Store) BuildContext(agentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder

	if summary := s.summaries[agentID]; summary != "" {
		b.WriteString("Your past days:\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}

	log := s.episodic[agentID]
	if len(log) > 0 {
		recent := log
		if len(recent) > ContextEpisodic {
			recent = recent[len(recent)-ContextEpisodic:]
		}
		b.WriteString("Recently:\n")
		for _, e := range recent { // already oldest-first
			fmt.Fprintf(&b, "- %s\n", e.Text)
		}
		b.WriteString("\n")
	}

	social := s.social[agentID]
	if len(social) > 0 {
		rows := make([]Social, len(social))
		copy(rows, social)
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].At.After(rows[j].At) })
		if len(rows) > ContextSocial {
			rows = rows[:ContextSocial]
		}
		b.WriteString("People in your life:\n")
		for _, r := range rows {
			fmt.Fprintf(&b, "- %s (%s, feeling %s): %s\n", r.Counterpart, r.Kind, r.Emotion, r.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString(groundingInstruction)
	return b.String()
}

// ActivityCounts tallies episodic kinds over the last `days` days. Feeds
// personality evolution.
func (s *Store) ActivityCounts(agentID string, days int) map[ActivityKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().AddDate(0, 0, -days)
	counts := make(map[ActivityKind]int)
	for _, e := range s.episodic[agentID] {
		if e.At.Before(cutoff) {
			continue
		}
		counts[e.Kind]++
	}
	return counts
}

// Summary returns the agent's compressed summary string.
func (s *Store) Summary(agentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries[agentID]
}

// Compress reads the most recent episodic entries, derives one natural-
// language line for today, and folds it into the stored summary. A repeat
// run on the same day replaces that day's line. The summary is truncated
// from the front, whole lines at a time, to stay within SummaryBudget.
func (s *Store) Compress(agentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.episodic[agentID]
	if len(log) > CompressWindow {
		log = log[len(log)-CompressWindow:]
	}
	if len(log) == 0 {
		return s.summaries[agentID]
	}

	today := s.now().Format("2006-01-02")
	counts := make(map[ActivityKind]int)
	total := 0
	for _, e := range log {
		if e.At.Format("2006-01-02") != today {
			continue
		}
		counts[e.Kind]++
		total++
	}
	if total == 0 {
		return s.summaries[agentID]
	}

	line := today + ": " + describeDay(counts, total)

	lines := splitSummary(s.summaries[agentID])
	replaced := false
	for i, l := range lines {
		if strings.HasPrefix(l, today+":") {
			lines[i] = line
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, line)
	}

	// Drop oldest lines until the whole summary fits the budget.
	for len(strings.Join(lines, "\n")) > SummaryBudget && len(lines) > 1 {
		lines = lines[1:]
	}
	summary := strings.Join(lines, "\n")
	if len(summary) > SummaryBudget {
		summary = summary[len(summary)-SummaryBudget:]
	}
	s.summaries[agentID] = summary
	return summary
}

// describeDay turns activity tallies into one sentence.
func describeDay(counts map[ActivityKind]int, total int) string {
	var parts []string
	if n := counts[ActivitySocial]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d conversations", n))
	}
	if n := counts[ActivityMove]; n > 0 {
		parts = append(parts, fmt.Sprintf("visited %d places", n))
	}
	if n := counts[ActivityAct]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d activities", n))
	}
	if n := counts[ActivityRest]; n > 0 {
		parts = append(parts, fmt.Sprintf("rested %d times", n))
	}
	if n := counts[ActivityThink]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d quiet reflections", n))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("an uneventful day (%d entries)", total)
	}
	return "a day of " + strings.Join(parts, ", ")
}

func splitSummary(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Snapshot returns copies of all memory state for persistence.
func (s *Store) Snapshot() (map[string][]Episodic, map[string][]Social, map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep := make(map[string][]Episodic, len(s.episodic))
	for k, v := range s.episodic {
		ep[k] = append([]Episodic(nil), v...)
	}
	so := make(map[string][]Social, len(s.social))
	for k, v := range s.social {
		so[k] = append([]Social(nil), v...)
	}
	su := make(map[string]string, len(s.summaries))
	for k, v := range s.summaries {
		su[k] = v
	}
	return ep, so, su
}

// Restore loads persisted memory state, replacing current contents.
func (s *Store) Restore(episodic map[string][]Episodic, social map[string][]Social, summaries map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range episodic {
		s.episodic[k] = append([]Episodic(nil), v...)
	}
	for k, v := range social {
		s.social[k] = append([]Social(nil), v...)
	}
	for k, v := range summaries {
		s.summaries[k] = v
	}
}
