package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hollowsim/internal/agents"
	"hollowsim/internal/llm"
	"hollowsim/internal/memory"
	"hollowsim/internal/message"
	"hollowsim/internal/safety"
	"hollowsim/internal/scheduler"
	"hollowsim/internal/soul"
	"hollowsim/internal/world"
)

// scriptedGen replays canned responses in call order.
type scriptedGen struct {
	mu        sync.Mutex
	responses []string
	err       error // returned instead, when set
	prompts   []string
	calls     int
}

func (g *scriptedGen) Generate(ctx context.Context, prompt string, tier llm.Tier) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "[THINK] nothing comes to mind", nil
	}
	r := g.responses[0]
	g.responses = g.responses[1:]
	return r, nil
}

func (g *scriptedGen) script(responses ...string) {
	g.mu.Lock()
	g.responses = append(g.responses, responses...)
	g.mu.Unlock()
}

func (g *scriptedGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *scriptedGen) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type harness struct {
	graph    *world.Graph
	events   *world.EventLog
	bus      *message.Bus
	memories *memory.Store
	souls    *soul.Model
	gen      *scriptedGen
	orch     *Orchestrator
	roster   []*agents.Agent
}

var fixedTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// newHarness builds a three-place world with the given agents, a scripted
// generator, and a fixed clock. RandomChance is zero so only concrete
// stimuli wake anyone.
func newHarness(t *testing.T, roster []*agents.Agent) *harness {
	t.Helper()

	graph, err := world.NewGraph([]*world.Location{
		{ID: "square", Name: "Village Square", Capacity: 10, Adjacent: []world.LocationID{"tavern", "garden"}},
		{ID: "tavern", Name: "Tavern", Capacity: 4, Adjacent: []world.LocationID{"square"}},
		{ID: "garden", Name: "Garden", Capacity: 1, Adjacent: []world.LocationID{"square"}},
	})
	require.NoError(t, err)

	now := func() time.Time { return fixedTime }
	h := &harness{
		graph:    graph,
		events:   world.NewEventLog(),
		bus:      message.NewBus(now),
		memories: memory.NewStore(now),
		souls:    soul.NewModel(now),
		gen:      &scriptedGen{},
		roster:   roster,
	}

	var names []string
	for _, a := range roster {
		require.NoError(t, graph.Place(string(a.ID), a.Location))
		names = append(names, a.Name)
	}
	names = append(names, "Village Square", "Tavern", "Garden")

	pool := scheduler.NewPool(h.gen, 2, time.Second)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	h.orch = New(Config{
		Interval:     time.Second,
		RandomChance: 0,
		BroadcastTTL: 2 * time.Hour,
		EventWindow:  time.Hour,
	}, graph, h.events, world.NewAmbience(1), h.bus, h.memories, h.souls,
		pool, safety.NewFilter(names), roster, rand.New(rand.NewSource(1)), now)
	return h
}

func villager(id, name string, loc world.LocationID) *agents.Agent {
	return &agents.Agent{
		ID:       agents.AgentID(id),
		Name:     name,
		Location: loc,
		Stats:    agents.Stats{Energy: 80, Satiety: 80, Social: 60},
	}
}

func episodicTexts(h *harness, id string) []string {
	ep, _, _ := h.memories.Snapshot()
	var out []string
	for _, e := range ep[id] {
		out = append(out, e.Text)
	}
	return out
}

func TestStepSkipsWithoutStimulus(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	h := newHarness(t, []*agents.Agent{mira})

	h.orch.Step(context.Background())

	assert.Zero(t, h.gen.callCount(), "no stimulus, no paid call")
	assert.Equal(t, agents.Stats{Energy: 79, Satiety: 78, Social: 59}, mira.Stats)
	assert.Equal(t, uint64(1), h.orch.Tick())
}

func TestStepRepliesToMessage(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	tobin := villager("tobin", "Tobin", "square")
	h := newHarness(t, []*agents.Agent{mira, tobin})

	h.bus.SendDirect("mira", "tobin", "chat", "have you seen my hat?")
	h.gen.script(`{"action": "speak", "target": "Mira", "content": "it is on your head"}`)

	h.orch.Step(context.Background())

	require.Equal(t, 1, h.gen.callCount(), "only the messaged agent thinks")
	prompt := h.gen.lastPrompt()
	assert.Contains(t, prompt, "You are Tobin")
	assert.Contains(t, prompt, "Mira told you: have you seen my hat?")
	assert.Contains(t, prompt, "Also here: Mira")

	// The reply landed on the bus for Mira.
	assert.Equal(t, 1, h.bus.UnreadCount("mira"))

	// First conversation records the meeting for both sides.
	assert.False(t, h.memories.IsFirstMeeting("tobin", "Mira"))
	assert.False(t, h.memories.IsFirstMeeting("mira", "Tobin"))

	assert.Contains(t, episodicTexts(h, "tobin"), "Said to Mira: it is on your head")
	assert.Equal(t, 69, tobin.Stats.Social) // decayed then lifted by speaking
}

func TestStepMoveRejectedLeavesTruthfulTrace(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	wren := villager("wren", "Wren", "garden")
	h := newHarness(t, []*agents.Agent{mira, wren})

	// Wake mira twice with direct mail; she tries the full garden, then an
	// unknown place.
	h.bus.SendDirect("tobin", "mira", "chat", "try the garden")
	h.gen.script(`{"action": "move", "target": "garden"}`)
	h.orch.Step(context.Background())

	assert.Equal(t, world.LocationID("square"), mira.Location)
	assert.Equal(t, []string{"wren"}, h.graph.Occupants("garden"))

	texts := episodicTexts(h, "mira")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "could not")
	for _, text := range texts {
		assert.NotContains(t, text, "Walked from")
	}

	h.bus.SendDirect("tobin", "mira", "chat", "what about the moonbase?")
	h.gen.script(`{"action": "move", "target": "moonbase"}`)
	h.orch.Step(context.Background())

	texts = episodicTexts(h, "mira")
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "no such place exists")
}

func TestStepMoveSucceeds(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	h := newHarness(t, []*agents.Agent{mira})
	mira.Stats.Energy = 20 // low stat wakes her

	h.gen.script(`{"action": "move", "target": "tavern"}`)
	h.orch.Step(context.Background())

	assert.Equal(t, world.LocationID("tavern"), mira.Location)
	loc, _ := h.graph.LocationOf("mira")
	assert.Equal(t, world.LocationID("tavern"), loc)
	assert.Equal(t, 16, mira.Stats.Energy) // -1 decay, -3 walking

	texts := episodicTexts(h, "mira")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Walked from the Village Square to the Tavern")
}

func TestStepSpeakToAbsentTarget(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	h := newHarness(t, []*agents.Agent{mira})
	mira.Stats.Social = 10

	h.gen.script(`{"action": "speak", "target": "Gerald", "content": "hello?"}`)
	h.orch.Step(context.Background())

	texts := episodicTexts(h, "mira")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Wanted to talk to Gerald")
	assert.Empty(t, h.bus.All(), "no message goes to an absent target")
}

func TestStepBroadcast(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	tobin := villager("tobin", "Tobin", "tavern")
	h := newHarness(t, []*agents.Agent{mira, tobin})
	mira.Stats.Satiety = 10

	h.gen.script(`{"action": "broadcast", "content": "soup is ready"}`)
	h.orch.Step(context.Background())

	// Audible in the square, not in the tavern.
	square := h.bus.RecentBroadcasts("square", "tobin", time.Hour, 10)
	require.Len(t, square, 1)
	assert.Equal(t, "soup is ready", square[0].Content)
	assert.Empty(t, h.bus.RecentBroadcasts("tavern", "mira", time.Hour, 10))
}

func TestStepGenerationFailureAbandonsTickOnly(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	h := newHarness(t, []*agents.Agent{mira})
	mira.Stats.Energy = 10 // persistent stimulus

	h.gen.err = errors.New("model overloaded")
	h.orch.Step(context.Background())

	assert.Equal(t, 1, h.gen.callCount())
	assert.Empty(t, episodicTexts(h, "mira"), "a failed tick writes nothing")

	// Next tick the agent is eligible again.
	h.gen.err = nil
	h.gen.script(`[ACT] rests by the fire`)
	h.orch.Step(context.Background())

	assert.Equal(t, 2, h.gen.callCount())
	assert.Contains(t, episodicTexts(h, "mira"), "rests by the fire")
}

func TestStepFiltersResponseBeforeExecution(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	h := newHarness(t, []*agents.Agent{mira})
	mira.Stats.Energy = 10

	h.gen.script(`[THINK] I am an AI pondering the internet`)
	h.orch.Step(context.Background())

	texts := episodicTexts(h, "mira")
	require.Len(t, texts, 1)
	assert.Equal(t, "Thought to myself: I am a villager of the Hollow pondering the aether", texts[0])
}

func TestReflectStaysPrivate(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	tobin := villager("tobin", "Tobin", "square")
	h := newHarness(t, []*agents.Agent{mira, tobin})

	// Even a chatty response is forced into a private thought.
	h.gen.script(`{"action": "speak", "target": "Tobin", "content": "a week well spent"}`)
	h.orch.Reflect(context.Background(), "mira")

	assert.Equal(t, 1, h.gen.callCount())
	assert.Empty(t, h.bus.All())
	texts := episodicTexts(h, "mira")
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Thought to myself")
}

func TestUserMessageWakesAgent(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	h := newHarness(t, []*agents.Agent{mira})

	h.gen.script(`{"action": "think", "content": "a visitor, how nice"}`)
	h.orch.UserMessage(context.Background(), "visitor", "mira", "hello from outside")

	require.Equal(t, 1, h.gen.callCount())
	assert.Contains(t, h.gen.lastPrompt(), "hello from outside")
	assert.Contains(t, episodicTexts(h, "mira"), "Thought to myself: a visitor, how nice")
}

func TestStepGenerationFailureKeepsMailUnread(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	tobin := villager("tobin", "Tobin", "square")
	h := newHarness(t, []*agents.Agent{mira, tobin})
	h.bus.SendDirect("mira", "tobin", "chat", "got a minute?")

	h.gen.err = errors.New("model overloaded")
	h.orch.Step(context.Background())

	assert.Equal(t, 1, h.gen.callCount())
	assert.Equal(t, 1, h.bus.UnreadCount("tobin"), "undelivered mail survives a failed reply")

	// The stimulus fires again and the reply lands.
	h.gen.err = nil
	h.gen.script(`{"action": "speak", "target": "Mira", "content": "always"}`)
	h.orch.Step(context.Background())

	assert.Equal(t, 2, h.gen.callCount())
	assert.Contains(t, h.gen.lastPrompt(), "Mira told you: got a minute?")
	assert.Contains(t, episodicTexts(h, "tobin"), "Said to Mira: always")
}

func TestConcurrentEntryPoints(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	tobin := villager("tobin", "Tobin", "square")
	h := newHarness(t, []*agents.Agent{mira, tobin})

	// Reflect, UserMessage, and the observers all run off the tick
	// goroutine in the daemon; hammer them together.
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			h.orch.Step(ctx)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			h.orch.Reflect(ctx, "mira")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			h.orch.UserMessage(ctx, "visitor", "tobin", "hello there")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_ = h.orch.Tick()
			_ = h.orch.Roster()
		}
	}()
	wg.Wait()

	assert.Equal(t, uint64(20), h.orch.Tick())
}

func TestRosterReturnsCopies(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	h := newHarness(t, []*agents.Agent{mira})

	snap := h.orch.Roster()
	require.Len(t, snap, 1)
	snap[0].Stats.Energy = 0
	assert.Equal(t, 80, mira.Stats.Energy)
}

func TestSyncSoulVersion(t *testing.T) {
	mira := villager("mira", "Mira", "square")
	h := newHarness(t, []*agents.Agent{mira})
	h.souls.Restore("mira", &soul.Soul{Version: 5})

	h.orch.SyncSoulVersion("mira")
	assert.Equal(t, 5, mira.SoulVersion)

	h.orch.SyncSoulVersion("nobody") // unknown agent is a no-op
}

func TestStepDeterministicWithFixedSeed(t *testing.T) {
	run := func() []string {
		mira := villager("mira", "Mira", "square")
		tobin := villager("tobin", "Tobin", "square")
		h := newHarness(t, []*agents.Agent{mira, tobin})
		h.bus.SendDirect("mira", "tobin", "chat", "morning")
		h.gen.script(`{"action": "speak", "target": "Mira", "content": "morning to you"}`)
		h.orch.Step(context.Background())
		return append(episodicTexts(h, "mira"), episodicTexts(h, "tobin")...)
	}
	assert.Equal(t, run(), run())
}
