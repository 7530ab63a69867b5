// Package scheduler decides whether an agent thinks at all this tick, how
// urgent the thought is, which generation tier pays for it, and runs the
// bounded-concurrency dispatch to the generation collaborator. It is the
// cost-control core: most agents, most ticks, never reach a paid call.
package scheduler

import (
	"math/rand"

	"hollowsim/internal/llm"
)

// Trigger names the event that woke an agent's decision pipeline.
type Trigger string

const (
	TriggerUserInitiated Trigger = "user_initiated"
	TriggerFirstMeeting  Trigger = "first_meeting"
	TriggerReflection    Trigger = "reflection"
	TriggerMessageReply  Trigger = "message_reply"
	TriggerRoutineSocial Trigger = "routine_social"
	TriggerIdle          Trigger = "idle"
)

// Priority orders thinking requests.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Classify maps a trigger to a priority.
func Classify(t Trigger) Priority {
	switch t {
	case TriggerUserInitiated:
		return PriorityCritical
	case TriggerFirstMeeting, TriggerReflection:
		return PriorityHigh
	case TriggerMessageReply, TriggerRoutineSocial:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// TierFor maps priority to a generation tier. Low and medium share the
// cheap tier; only high-stakes moments pay for the stronger model.
func TierFor(p Priority) llm.Tier {
	if p >= PriorityHigh {
		return llm.TierExpensive
	}
	return llm.TierCheap
}

// Stimulus bundles the boolean signals the gate evaluates for one agent.
type Stimulus struct {
	UnreadCount      int
	OccupancyChanged bool
	HasNewEvent      bool
	LowStats         bool
	RandomChance     float64 // probability of a spontaneous thought
}

// ShouldThink is the stimulus gate: true if any concrete signal is present,
// or if the spontaneous draw succeeds. Deterministic given fixed inputs and
// a seeded rng.
func ShouldThink(s Stimulus, rng *rand.Rand) bool {
	if s.UnreadCount > 0 || s.OccupancyChanged || s.HasNewEvent || s.LowStats {
		return true
	}
	return s.RandomChance > 0 && rng.Float64() < s.RandomChance
}
