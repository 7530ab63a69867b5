// Command hollowsim runs the Hollow, an autonomous village of thinking
// agents.
package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"hollowsim/internal/agents"
	"hollowsim/internal/api"
	"hollowsim/internal/config"
	"hollowsim/internal/engine"
	"hollowsim/internal/llm"
	"hollowsim/internal/memory"
	"hollowsim/internal/message"
	"hollowsim/internal/persistence"
	"hollowsim/internal/safety"
	"hollowsim/internal/scheduler"
	"hollowsim/internal/soul"
	"hollowsim/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to config YAML (empty = built-in default world)")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── World components ─────────────────────────────────────────────
	graph, err := world.NewGraph(cfg.BuildLocations())
	if err != nil {
		slog.Error("failed to build location graph", "error", err)
		os.Exit(1)
	}
	events := world.NewEventLog()
	ambience := world.NewAmbience(cfg.Seed)
	bus := message.NewBus(nil)
	memories := memory.NewStore(nil)
	souls := soul.NewModel(nil)
	rng := rand.New(rand.NewSource(cfg.Seed))

	var roster []*agents.Agent
	var startTick uint64

	if db.HasWorldState() {
		slog.Info("found saved world state, loading...")
		roster, err = db.LoadAgents()
		if err != nil {
			slog.Error("failed to load agents", "error", err)
			os.Exit(1)
		}
		loaded, err := db.LoadSouls()
		if err != nil {
			slog.Error("failed to load souls", "error", err)
			os.Exit(1)
		}
		for id, s := range loaded {
			souls.Restore(id, s)
		}
		ep, so, su, err := db.LoadMemories()
		if err != nil {
			slog.Error("failed to load memories", "error", err)
			os.Exit(1)
		}
		memories.Restore(ep, so, su)
		if msgs, err := db.LoadMessages(); err == nil {
			bus.Restore(msgs)
		}
		if evs, err := db.LoadEvents(); err == nil {
			events.Restore(evs)
		}
		if tickStr, err := db.GetMeta("last_tick"); err == nil && tickStr != "" {
			if t, err := strconv.ParseUint(tickStr, 10, 64); err == nil {
				startTick = t
			}
		}
		slog.Info("world state restored", "agents", len(roster), "tick", startTick)
	} else {
		slog.Info("seeding fresh world", "agents", len(cfg.Agents), "locations", len(cfg.Locations))
		now := time.Now().Unix()
		for _, spec := range cfg.Agents {
			a := &agents.Agent{
				ID:       agents.AgentID(spec.ID),
				Name:     spec.Name,
				Location: world.LocationID(spec.Location),
				Stats:    agents.Stats{Energy: 80, Satiety: 80, Social: 60},
				BornAt:   now,
			}
			s := souls.Create(spec.ID, rng)
			a.SoulVersion = s.Version
			roster = append(roster, a)
		}
	}

	// Occupancy truth lives in the graph.
	for _, a := range roster {
		if err := graph.Place(string(a.ID), a.Location); err != nil {
			slog.Error("failed to place agent", "agent", a.ID, "error", err)
			os.Exit(1)
		}
	}

	// ── Generation + scheduler ───────────────────────────────────────
	gen := llm.NewClient(os.Getenv(cfg.Generation.APIKeyEnv), cfg.Generation.BaseURL,
		cfg.Generation.CheapModel, cfg.Generation.ExpensiveModel)
	if !gen.Enabled() {
		slog.Warn("no generation key set, agents will not think", "env", cfg.Generation.APIKeyEnv)
	}

	pool := scheduler.NewPool(gen, cfg.Scheduler.Capacity,
		config.Duration(cfg.Scheduler.Timeout, 60*time.Second))

	// ── Safety filter over the known-name registry ───────────────────
	var knownNames []string
	for _, a := range roster {
		knownNames = append(knownNames, a.Name)
	}
	for _, l := range graph.Locations() {
		knownNames = append(knownNames, l.Name)
	}
	filter := safety.NewFilter(knownNames)

	// ── Orchestrator ─────────────────────────────────────────────────
	orch := engine.New(engine.Config{
		Interval:     config.Duration(cfg.TickInterval, 30*time.Second),
		RandomChance: cfg.RandomChance,
		BroadcastTTL: config.Duration(cfg.BroadcastTTL, 2*time.Hour),
	}, graph, events, ambience, bus, memories, souls, pool, filter, roster, rng, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)

	snapshot := func() *persistence.Snapshot {
		soulMap := souls.Snapshot()
		ep, so, su := memories.Snapshot()
		return &persistence.Snapshot{
			Agents:    orch.Roster(),
			Souls:     soulMap,
			Episodic:  ep,
			Social:    so,
			Summaries: su,
			Messages:  bus.All(),
			Events:    events.All(),
			Tick:      startTick + orch.Tick(),
		}
	}

	// ── Background schedules: compression, evolution, snapshots ─────
	c := cron.New()
	if _, err := c.AddFunc(cfg.Cron.Compress, func() {
		for _, a := range roster {
			memories.Compress(string(a.ID))
		}
		slog.Info("daily memory compression done", "agents", len(roster))
	}); err != nil {
		slog.Error("failed to schedule memory compression", "spec", cfg.Cron.Compress, "error", err)
		os.Exit(1)
	}
	if _, err := c.AddFunc(cfg.Cron.Evolve, func() {
		for _, a := range roster {
			if gen.Enabled() {
				orch.Reflect(ctx, a.ID)
			}
			counts := memories.ActivityCounts(string(a.ID), 7)
			if souls.Evolve(string(a.ID), counts) {
				orch.SyncSoulVersion(a.ID)
			}
		}
		slog.Info("weekly personality evolution done", "agents", len(roster))
	}); err != nil {
		slog.Error("failed to schedule personality evolution", "spec", cfg.Cron.Evolve, "error", err)
		os.Exit(1)
	}
	if _, err := c.AddFunc(cfg.Cron.Snapshot, func() {
		if err := db.SaveWorldState(snapshot()); err != nil {
			slog.Error("periodic save failed", "error", err)
		}
	}); err != nil {
		slog.Error("failed to schedule periodic save", "spec", cfg.Cron.Snapshot, "error", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	// ── Observation API ──────────────────────────────────────────────
	server := api.NewServer(cfg.APIAddr, graph, events, bus, memories, souls, orch.Roster, orch.Tick)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("api server failed", "error", err)
		}
	}()

	go orch.Run(ctx)

	// ── Shutdown ─────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	cancel()
	pool.Stop()
	if err := db.SaveWorldState(snapshot()); err != nil {
		slog.Error("final save failed", "error", err)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
