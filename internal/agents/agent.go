// Package agents provides the agent data model shared by the world graph,
// scheduler, and orchestrator.
package agents

import "hollowsim/internal/world"

// AgentID is a unique identifier for an agent.
type AgentID string

// Agent is a villager: one body, exactly one current location, and a
// handful of bounded stats that decay over time.
type Agent struct {
	ID   AgentID `json:"id"`
	Name string  `json:"name"`

	// The graph owns occupancy truth; this mirror is updated by the
	// orchestrator after a successful move.
	Location world.LocationID `json:"location"`

	Stats Stats `json:"stats"`

	// Soul version currently loaded for this agent. The soul itself lives
	// in the personality model.
	SoulVersion int `json:"soul_version"`

	BornAt int64 `json:"born_at"` // Unix seconds
}

// Stats are the agent's resource scalars, each clamped to 0–100.
type Stats struct {
	Energy  int `json:"energy"`
	Satiety int `json:"satiety"`
	Social  int `json:"social"`
}

// LowStatThreshold is the level below which a stat counts as a stimulus.
const LowStatThreshold = 25

// Clamp bounds every stat to [0, 100].
func (s *Stats) Clamp() {
	s.Energy = clamp(s.Energy)
	s.Satiety = clamp(s.Satiety)
	s.Social = clamp(s.Social)
}

// AnyLow reports whether any stat has fallen below the stimulus threshold.
func (s Stats) AnyLow() bool {
	return s.Energy < LowStatThreshold ||
		s.Satiety < LowStatThreshold ||
		s.Social < LowStatThreshold
}

// Adjust applies deltas to each stat and re-clamps.
func (s *Stats) Adjust(energy, satiety, social int) {
	s.Energy += energy
	s.Satiety += satiety
	s.Social += social
	s.Clamp()
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
