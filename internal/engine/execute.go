package engine

import (
	"fmt"
	"log/slog"

	"hollowsim/internal/agents"
	"hollowsim/internal/memory"
	"hollowsim/internal/world"
)

// execute applies one recognized action. An action's effects land together
// or not at all: a failed move writes no entry claiming success.
func (o *Orchestrator) execute(a *agents.Agent, p perception, action Action) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch action.Kind {
	case ActionSpeak:
		o.executeSpeak(a, action)
	case ActionMove:
		o.executeMove(a, action)
	case ActionBroadcast:
		o.executeBroadcast(a, action)
	case ActionThink:
		o.memories.RecordEpisodic(string(a.ID), memory.ActivityThink, "Thought to myself: "+action.Content)
	default:
		a.Stats.Adjust(-2, 0, 0)
		o.memories.RecordEpisodic(string(a.ID), memory.ActivityAct, action.Content)
	}
	slog.Debug("action executed", "agent", a.Name, "kind", action.Kind, "target", action.Target)
}

func (o *Orchestrator) executeSpeak(a *agents.Agent, action Action) {
	target := o.resolveAgentAt(a.Location, action.Target)
	if target == nil {
		// Unknown or absent target: no-op with a truthful trace.
		slog.Info("speak target not here", "agent", a.Name, "target", action.Target)
		o.memories.RecordEpisodic(string(a.ID), memory.ActivityAct,
			fmt.Sprintf("Wanted to talk to %s, but they were not here", action.Target))
		return
	}

	o.bus.SendDirect(string(a.ID), string(target.ID), "chat", action.Content)

	if o.memories.IsFirstMeeting(string(a.ID), target.Name) {
		o.memories.RecordFirstMeeting(string(a.ID), target.Name,
			fmt.Sprintf("Met %s for the first time at the %s", target.Name, o.locationName(a.Location)))
		o.memories.RecordFirstMeeting(string(target.ID), a.Name,
			fmt.Sprintf("Met %s for the first time at the %s", a.Name, o.locationName(a.Location)))
	} else {
		o.memories.RecordSocial(string(a.ID), target.Name, memory.SocialConversation,
			"Talked with "+target.Name, "warm", 4)
	}

	a.Stats.Adjust(0, 0, +10)
	o.memories.RecordEpisodic(string(a.ID), memory.ActivitySocial,
		fmt.Sprintf("Said to %s: %s", target.Name, action.Content))
}

func (o *Orchestrator) executeMove(a *agents.Agent, action Action) {
	dest := o.resolveLocation(action.Target)
	if dest == nil {
		slog.Info("move to unknown place", "agent", a.Name, "target", action.Target)
		o.memories.RecordEpisodic(string(a.ID), memory.ActivityAct,
			fmt.Sprintf("Looked for a way to %q, but no such place exists", action.Target))
		return
	}

	rec, err := o.graph.Move(string(a.ID), dest.ID)
	if err != nil {
		if world.IsValidation(err) {
			// Structured reason, recovered immediately: logged no-op.
			slog.Info("move rejected", "agent", a.Name, "dest", dest.ID, "reason", err)
			o.memories.RecordEpisodic(string(a.ID), memory.ActivityAct,
				fmt.Sprintf("Tried to go to the %s, but could not (%v)", dest.Name, err))
		} else {
			slog.Error("move failed", "agent", a.Name, "dest", dest.ID, "error", err)
		}
		return
	}

	a.Location = rec.To
	a.Stats.Adjust(-3, 0, 0)
	o.memories.RecordEpisodic(string(a.ID), memory.ActivityMove,
		fmt.Sprintf("Walked from the %s to the %s", o.locationName(rec.From), dest.Name))
}

func (o *Orchestrator) executeBroadcast(a *agents.Agent, action Action) {
	o.bus.Broadcast(string(a.ID), a.Location, "square", action.Content, o.cfg.BroadcastTTL)
	a.Stats.Adjust(0, 0, +5)
	o.memories.RecordEpisodic(string(a.ID), memory.ActivitySocial,
		"Said aloud: "+action.Content)
}

func (o *Orchestrator) locationName(id world.LocationID) string {
	if l := o.graph.Get(id); l != nil {
		return l.Name
	}
	return string(id)
}
