package soul

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"hollowsim/internal/memory"
)

// evolutionRule names one activity-driven trait delta. Deltas stay within
// ±3 so a single week never remakes a personality.
type evolutionRule struct {
	kind    memory.ActivityKind
	atLeast int // threshold; ignored when zero is set
	zero    bool
	trait   Trait
	delta   int
	note    string
}

var evolutionRules = []evolutionRule{
	{kind: memory.ActivitySocial, atLeast: 5, trait: TraitSociability, delta: +3, note: "a social week"},
	{kind: memory.ActivitySocial, zero: true, trait: TraitSociability, delta: -1, note: "a week alone"},
	{kind: memory.ActivityMove, atLeast: 5, trait: TraitCuriosity, delta: +2, note: "a week of wandering"},
	{kind: memory.ActivityMove, zero: true, trait: TraitCuriosity, delta: -1, note: "a week of staying put"},
	{kind: memory.ActivityAct, atLeast: 7, trait: TraitDiligence, delta: +2, note: "a week of doing"},
	{kind: memory.ActivityThink, atLeast: 5, trait: TraitPatience, delta: +2, note: "a thoughtful week"},
	{kind: memory.ActivityRest, atLeast: 7, trait: TraitCheer, delta: +1, note: "a well-rested week"},
}

// activityLabel is the preference-list name for each activity kind.
var activityLabel = map[memory.ActivityKind]string{
	memory.ActivitySocial: "chatting with friends",
	memory.ActivityMove:   "wandering the village",
	memory.ActivityAct:    "keeping busy",
	memory.ActivityRest:   "lazy afternoons",
	memory.ActivityThink:  "quiet reflection",
}

// Model owns the souls of all agents.
type Model struct {
	mu    sync.Mutex
	souls map[string]*Soul
	now   func() time.Time
}

// NewModel creates an empty personality model with an injectable clock.
func NewModel(now func() time.Time) *Model {
	if now == nil {
		now = time.Now
	}
	return &Model{souls: make(map[string]*Soul), now: now}
}

// Create generates and stores a soul for an agent at birth.
func (m *Model) Create(agentID string, rng *rand.Rand) *Soul {
	s := Generate(rng, m.now())
	m.mu.Lock()
	m.souls[agentID] = s
	m.mu.Unlock()
	return s
}

// Get returns an agent's soul, or nil.
func (m *Model) Get(agentID string) *Soul {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.souls[agentID]
}

// Restore loads a persisted soul.
func (m *Model) Restore(agentID string, s *Soul) {
	m.mu.Lock()
	m.souls[agentID] = s
	m.mu.Unlock()
}

// Snapshot returns the full soul map for persistence.
func (m *Model) Snapshot() map[string]*Soul {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*Soul, len(m.souls))
	for k, v := range m.souls {
		out[k] = v
	}
	return out
}

// Evolve applies the week's activity counts to an agent's soul: bounded
// trait deltas per the rule table, a favorite-activity update from the most
// frequent kind, one evolution-log line summarizing every delta applied,
// and a version bump iff anything changed.
func (m *Model) Evolve(agentID string, counts map[memory.ActivityKind]int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.souls[agentID]
	if !ok {
		return false
	}

	changed := false
	var notes []string
	for _, r := range evolutionRules {
		n := counts[r.kind]
		fire := false
		if r.zero {
			fire = n == 0
		} else {
			fire = n >= r.atLeast
		}
		if !fire {
			continue
		}
		if s.adjust(r.trait, r.delta) {
			changed = true
			notes = append(notes, fmt.Sprintf("%s: %s %+d", r.note, r.trait, r.delta))
		}
	}

	// Favorite activity follows the most frequent kind of the week.
	if top, ok := topActivity(counts); ok {
		label := activityLabel[top]
		if label != "" && s.Preferences.FavoriteActivity != label {
			s.Preferences.FavoriteActivity = label
			changed = true
			notes = append(notes, "new favorite: "+label)
		}
	}

	if !changed {
		return false
	}

	s.Version++
	s.Evolution = append(s.Evolution, EvolutionEntry{
		Version: s.Version,
		At:      m.now(),
		Note:    strings.Join(notes, "; "),
	})
	return true
}

// topActivity returns the most frequent nonzero kind, ties broken by kind
// name so the result is deterministic.
func topActivity(counts map[memory.ActivityKind]int) (memory.ActivityKind, bool) {
	kinds := make([]memory.ActivityKind, 0, len(counts))
	for k, n := range counts {
		if n > 0 {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return "", false
	}
	sort.Slice(kinds, func(i, j int) bool {
		if counts[kinds[i]] != counts[kinds[j]] {
			return counts[kinds[i]] > counts[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	return kinds[0], true
}
