// Package engine drives one decision cycle per agent per interval: gather
// perception, consult the stimulus gate, dispatch a thinking request under
// the global pool, filter the result, and execute the parsed action against
// the world. One agent's failure never blocks the loop.
package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"hollowsim/internal/agents"
	"hollowsim/internal/memory"
	"hollowsim/internal/message"
	"hollowsim/internal/safety"
	"hollowsim/internal/scheduler"
	"hollowsim/internal/soul"
	"hollowsim/internal/world"
)

// Config tunes the orchestrator.
type Config struct {
	Interval     time.Duration // tick interval
	RandomChance float64       // spontaneous-thought probability per agent per tick
	BroadcastTTL time.Duration
	EventWindow  time.Duration // how far back perception looks for events
}

// Orchestrator owns the tick loop and wires every component together.
// Reflect and UserMessage may be called from other goroutines; mu keeps
// them serialized with the loop.
type Orchestrator struct {
	cfg Config

	graph    *world.Graph
	events   *world.EventLog
	ambience *world.Ambience
	bus      *message.Bus
	memories *memory.Store
	souls    *soul.Model
	pool     *scheduler.Pool
	filter   *safety.Filter

	agents       []*agents.Agent
	agentByID    map[agents.AgentID]*agents.Agent
	agentsByName map[string]*agents.Agent

	rng *rand.Rand
	now func() time.Time

	// mu guards the tick counter, agent rows, the rng, and the perception
	// deltas below. It is never held across a generation wait.
	mu sync.Mutex

	// Per-agent perception deltas from the previous tick, for the
	// occupancy-changed and new-event stimuli.
	lastOccupants map[agents.AgentID]string
	lastEvent     map[agents.AgentID]string

	tick uint64
}

// New creates an orchestrator. The clock and rng are injectable so tests
// can simulate many ticks without real delay.
func New(cfg Config, graph *world.Graph, events *world.EventLog, amb *world.Ambience,
	bus *message.Bus, memories *memory.Store, souls *soul.Model,
	pool *scheduler.Pool, filter *safety.Filter,
	roster []*agents.Agent, rng *rand.Rand, now func() time.Time) *Orchestrator {

	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BroadcastTTL <= 0 {
		cfg.BroadcastTTL = 2 * time.Hour
	}
	if cfg.EventWindow <= 0 {
		cfg.EventWindow = time.Hour
	}
	if now == nil {
		now = time.Now
	}

	o := &Orchestrator{
		cfg:           cfg,
		graph:         graph,
		events:        events,
		ambience:      amb,
		bus:           bus,
		memories:      memories,
		souls:         souls,
		pool:          pool,
		filter:        filter,
		agents:        roster,
		agentByID:     make(map[agents.AgentID]*agents.Agent, len(roster)),
		agentsByName:  make(map[string]*agents.Agent, len(roster)),
		rng:           rng,
		now:           now,
		lastOccupants: make(map[agents.AgentID]string),
		lastEvent:     make(map[agents.AgentID]string),
	}
	for _, a := range roster {
		o.agentByID[a.ID] = a
		o.agentsByName[strings.ToLower(a.Name)] = a
	}
	return o
}

// Run drives the tick loop until ctx ends.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	slog.Info("orchestrator started", "agents", len(o.agents), "interval", o.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("orchestrator stopped", "tick", o.tick)
			return
		case <-ticker.C:
			o.Step(ctx)
		}
	}
}

// Tick returns the number of completed passes.
func (o *Orchestrator) Tick() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tick
}

// Roster returns a copy of every agent row, safe for observers running on
// other goroutines.
func (o *Orchestrator) Roster() []*agents.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*agents.Agent, len(o.agents))
	for i, a := range o.agents {
		c := *a
		out[i] = &c
	}
	return out
}

// SyncSoulVersion copies the personality model's current version onto the
// agent row, after an evolution pass.
func (o *Orchestrator) SyncSoulVersion(agentID agents.AgentID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.agentByID[agentID]
	if !ok {
		return
	}
	if s := o.souls.Get(string(agentID)); s != nil {
		a.SoulVersion = s.Version
	}
}

// Step runs one pass across all agents. Exported so tests and the daemon
// can drive ticks deterministically.
func (o *Orchestrator) Step(ctx context.Context) {
	o.mu.Lock()
	o.tick++
	o.mu.Unlock()
	for _, a := range o.agents {
		o.stepAgent(ctx, a)
	}
	o.bus.CleanupExpired()
}

func (o *Orchestrator) stepAgent(ctx context.Context, a *agents.Agent) {
	o.mu.Lock()
	a.Stats.Adjust(-1, -2, -1) // slow ambient decay

	p := o.perceive(a)

	stim := scheduler.Stimulus{
		UnreadCount:      p.unreadCount,
		OccupancyChanged: p.occupancyChanged,
		HasNewEvent:      p.hasNewEvent,
		LowStats:         a.Stats.AnyLow(),
		RandomChance:     o.cfg.RandomChance,
	}
	if !scheduler.ShouldThink(stim, o.rng) {
		o.mu.Unlock()
		return // skipped at zero cost
	}

	trigger := classifyTrigger(stim, p)
	// Only now consume the inbox; a skipped agent must not mark mail read.
	inbox := o.bus.Inbox(string(a.ID), a.Location, 10)
	prompt := o.buildPrompt(a, p, inbox)
	o.mu.Unlock()

	o.think(ctx, a, p, trigger, prompt, inbox)
}

// think runs the paid half of the pipeline for one agent. Callers must not
// hold o.mu; the generation wait would stall every other entry point.
func (o *Orchestrator) think(ctx context.Context, a *agents.Agent, p perception,
	trigger scheduler.Trigger, prompt string, inbox []*message.Message) {

	req := &scheduler.Request{
		AgentID:  string(a.ID),
		Context:  prompt,
		Priority: scheduler.Classify(trigger),
	}

	res := o.pool.Submit(req)
	text, err := res.Wait(ctx)
	if err != nil {
		// Generation failure aborts this agent's tick only. Consumed mail
		// goes back unread, so the reply stimulus fires again next interval.
		o.bus.Requeue(inbox)
		slog.Warn("thinking failed", "agent", a.Name, "trigger", trigger, "error", err)
		return
	}

	text = o.filter.Apply(text)
	action := ParseDecision(text)
	o.execute(a, p, action)
}

// classifyTrigger names the strongest stimulus, in a fixed order.
func classifyTrigger(s scheduler.Stimulus, p perception) scheduler.Trigger {
	switch {
	case s.UnreadCount > 0:
		return scheduler.TriggerMessageReply
	case p.firstMeeting != "":
		return scheduler.TriggerFirstMeeting
	case s.OccupancyChanged || s.HasNewEvent:
		return scheduler.TriggerRoutineSocial
	default:
		return scheduler.TriggerIdle
	}
}

// Reflect queues a high-priority private reflection for an agent. Driven by
// the weekly cron alongside personality evolution.
func (o *Orchestrator) Reflect(ctx context.Context, agentID agents.AgentID) {
	a, ok := o.agentByID[agentID]
	if !ok {
		return
	}
	o.mu.Lock()
	p := o.perceive(a)
	prompt := o.buildPrompt(a, p, nil) +
		"\n\nTonight, reflect privately on the week behind you. Use the \"think\" action."
	o.mu.Unlock()
	req := &scheduler.Request{
		AgentID:  string(a.ID),
		Context:  prompt,
		Priority: scheduler.Classify(scheduler.TriggerReflection),
	}
	res := o.pool.Submit(req)
	text, err := res.Wait(ctx)
	if err != nil {
		slog.Warn("reflection failed", "agent", a.Name, "error", err)
		return
	}
	action := ParseDecision(o.filter.Apply(text))
	action.Kind = ActionThink // reflections stay private regardless
	o.execute(a, p, action)
}

// UserMessage delivers a visitor's message to an agent and wakes them at
// critical priority. The observation API stays read-only; this is the entry
// point for embedding applications.
func (o *Orchestrator) UserMessage(ctx context.Context, from string, agentID agents.AgentID, content string) {
	a, ok := o.agentByID[agentID]
	if !ok {
		return
	}
	o.bus.SendDirect(from, string(agentID), "visitor", content)

	o.mu.Lock()
	p := o.perceive(a)
	inbox := o.bus.Inbox(string(a.ID), a.Location, 10)
	prompt := o.buildPrompt(a, p, inbox)
	o.mu.Unlock()

	o.think(ctx, a, p, scheduler.TriggerUserInitiated, prompt, inbox)
}

// resolveAgentAt finds a co-located agent by name (case-insensitive), or by
// ID.
func (o *Orchestrator) resolveAgentAt(loc world.LocationID, name string) *agents.Agent {
	target := o.agentsByName[strings.ToLower(name)]
	if target == nil {
		target = o.agentByID[agents.AgentID(name)]
	}
	if target == nil || target.Location != loc {
		return nil
	}
	return target
}

// resolveLocation finds a location by ID or display name.
func (o *Orchestrator) resolveLocation(name string) *world.Location {
	if l := o.graph.Get(world.LocationID(strings.ToLower(name))); l != nil {
		return l
	}
	for _, l := range o.graph.Locations() {
		if strings.EqualFold(l.Name, name) {
			return l
		}
	}
	return nil
}

func occupantsKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
