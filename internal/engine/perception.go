package engine

import (
	"fmt"
	"strings"

	"hollowsim/internal/agents"
	"hollowsim/internal/message"
	"hollowsim/internal/soul"
	"hollowsim/internal/world"
)

// perception is everything an agent can see this tick, plus the deltas the
// stimulus gate feeds on. Gathering it never costs a generation call.
type perception struct {
	location  *world.Location
	ambience  string
	occupants []*agents.Agent // others at the same location
	events    []*world.LocationEvent

	unreadCount      int
	occupancyChanged bool
	hasNewEvent      bool
	firstMeeting     string // name of a co-located agent never met, if any
}

func (o *Orchestrator) perceive(a *agents.Agent) perception {
	p := perception{location: o.graph.Get(a.Location)}
	if p.location == nil {
		return p
	}
	t := o.now()

	p.ambience = o.ambience.Describe(p.location, t)

	occupantIDs := o.graph.Occupants(a.Location)
	for _, id := range occupantIDs {
		if id == string(a.ID) {
			continue
		}
		if other, ok := o.agentByID[agents.AgentID(id)]; ok {
			p.occupants = append(p.occupants, other)
		}
	}

	// Occupancy change since the agent's last look.
	key := occupantsKey(occupantIDs)
	if prev, seen := o.lastOccupants[a.ID]; seen && prev != key {
		p.occupancyChanged = true
	}
	o.lastOccupants[a.ID] = key

	// First meeting: someone here this agent has no memory of.
	for _, other := range p.occupants {
		if o.memories.IsFirstMeeting(string(a.ID), other.Name) {
			p.firstMeeting = other.Name
			break
		}
	}

	p.events = o.events.RecentEvents(a.Location, t, o.cfg.EventWindow)
	if len(p.events) > 0 {
		newest := p.events[0].ID
		if o.lastEvent[a.ID] != newest {
			p.hasNewEvent = true
		}
		o.lastEvent[a.ID] = newest
	}

	p.unreadCount = o.bus.UnreadCount(string(a.ID))
	return p
}

// buildPrompt assembles the combined context string: identity and
// personality, perception, memory, and the allowed action forms.
func (o *Orchestrator) buildPrompt(a *agents.Agent, p perception, inbox []*message.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a villager of the Hollow.\n", a.Name)

	if s := o.souls.Get(string(a.ID)); s != nil {
		if traits := soul.Project(s); len(traits) > 0 {
			b.WriteString("You are " + strings.Join(traits, "; ") + ".\n")
		}
		if fav := s.Preferences.FavoriteActivity; fav != "" {
			fmt.Fprintf(&b, "You love %s.\n", fav)
		}
	}
	fmt.Fprintf(&b, "Energy %d/100, satiety %d/100, social %d/100.\n\n",
		a.Stats.Energy, a.Stats.Satiety, a.Stats.Social)

	if p.location != nil {
		fmt.Fprintf(&b, "You are at the %s. %s\n", p.location.Name, p.ambience)
		if len(p.occupants) > 0 {
			names := make([]string, len(p.occupants))
			for i, other := range p.occupants {
				names[i] = other.Name
			}
			fmt.Fprintf(&b, "Also here: %s.\n", strings.Join(names, ", "))
		} else {
			b.WriteString("You are alone here.\n")
		}
		if len(p.location.Adjacent) > 0 {
			var adj []string
			for _, id := range p.location.Adjacent {
				if l := o.graph.Get(id); l != nil {
					adj = append(adj, l.Name)
				}
			}
			fmt.Fprintf(&b, "From here you can reach: %s.\n", strings.Join(adj, ", "))
		}
	}

	if len(p.events) > 0 {
		b.WriteString("\nHappening here:\n")
		for _, ev := range p.events {
			fmt.Fprintf(&b, "- %s\n", ev.Description)
		}
	}

	if len(inbox) > 0 {
		b.WriteString("\nMessages for you:\n")
		for _, m := range inbox {
			who := m.From
			if sender, ok := o.agentByID[agents.AgentID(m.From)]; ok {
				who = sender.Name
			}
			if m.Broadcast() {
				fmt.Fprintf(&b, "- %s said aloud: %s\n", who, m.Content)
			} else {
				fmt.Fprintf(&b, "- %s told you: %s\n", who, m.Content)
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(o.memories.BuildContext(string(a.ID)))
	b.WriteString("\n\n")
	b.WriteString(actionInstructions)
	return b.String()
}
