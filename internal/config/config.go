// Package config loads the world seed and runtime settings from YAML:
// the location graph, the agent roster, scheduler limits, and the
// generation model names.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"hollowsim/internal/world"
)

// Config is the full daemon configuration.
type Config struct {
	Seed    int64  `yaml:"seed"`
	DBPath  string `yaml:"db_path"`
	APIAddr string `yaml:"api_addr"`

	TickInterval string  `yaml:"tick_interval"`
	RandomChance float64 `yaml:"random_chance"`
	BroadcastTTL string  `yaml:"broadcast_ttl"`

	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Generation GenerationConfig `yaml:"generation"`
	Cron       CronConfig       `yaml:"cron"`

	Locations []LocationSpec `yaml:"locations"`
	Agents    []AgentSpec    `yaml:"agents"`
}

type SchedulerConfig struct {
	Capacity int    `yaml:"capacity"`
	Timeout  string `yaml:"timeout"`
}

type GenerationConfig struct {
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	CheapModel     string `yaml:"cheap_model"`
	ExpensiveModel string `yaml:"expensive_model"`
}

type CronConfig struct {
	Compress string `yaml:"compress"` // daily memory compression
	Evolve   string `yaml:"evolve"`   // weekly personality evolution
	Snapshot string `yaml:"snapshot"` // periodic persistence save
}

type LocationSpec struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Capacity    int      `yaml:"capacity"`
	Adjacent    []string `yaml:"adjacent"`
	AmbientTags []string `yaml:"ambient_tags,omitempty"`
}

type AgentSpec struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

// Load reads a config file, applies defaults, normalizes, and validates.
// An empty path yields the built-in default world.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Seed:         42,
		DBPath:       "data/hollow.db",
		APIAddr:      ":8080",
		TickInterval: "30s",
		RandomChance: 0.05,
		BroadcastTTL: "2h",
		Scheduler:    SchedulerConfig{Capacity: 10, Timeout: "60s"},
		Generation: GenerationConfig{
			APIKeyEnv:      "HOLLOW_API_KEY",
			CheapModel:     "gpt-4o-mini",
			ExpensiveModel: "gpt-4o",
		},
		Cron: CronConfig{
			Compress: "0 4 * * *",
			Evolve:   "30 4 * * 0",
			Snapshot: "*/10 * * * *",
		},
		Locations: []LocationSpec{
			{ID: "square", Name: "village square", Capacity: 12, Adjacent: []string{"tavern", "garden", "workshop"}, AmbientTags: []string{"open sky", "cobblestones"}},
			{ID: "tavern", Name: "tavern", Capacity: 8, Adjacent: []string{"square"}, AmbientTags: []string{"warm light", "smell of bread"}},
			{ID: "garden", Name: "garden", Capacity: 4, Adjacent: []string{"square"}, AmbientTags: []string{"herbs", "birdsong"}},
			{ID: "workshop", Name: "workshop", Capacity: 3, Adjacent: []string{"square"}, AmbientTags: []string{"sawdust", "lamplight"}},
		},
		Agents: []AgentSpec{
			{ID: "mira", Name: "Mira", Location: "square"},
			{ID: "tobin", Name: "Tobin", Location: "tavern"},
			{ID: "wren", Name: "Wren", Location: "garden"},
		},
	}
}

// Normalize lowercases IDs and makes adjacency symmetric: a door you can
// enter is a door you can leave by.
func (c *Config) Normalize() {
	adj := make(map[string]map[string]bool, len(c.Locations))
	for i := range c.Locations {
		c.Locations[i].ID = strings.ToLower(strings.TrimSpace(c.Locations[i].ID))
		if c.Locations[i].Name == "" {
			c.Locations[i].Name = c.Locations[i].ID
		}
		adj[c.Locations[i].ID] = make(map[string]bool)
	}
	for i := range c.Locations {
		for _, a := range c.Locations[i].Adjacent {
			a = strings.ToLower(strings.TrimSpace(a))
			adj[c.Locations[i].ID][a] = true
			if _, known := adj[a]; known {
				adj[a][c.Locations[i].ID] = true
			}
		}
	}
	for i := range c.Locations {
		var out []string
		for a := range adj[c.Locations[i].ID] {
			out = append(out, a)
		}
		sort.Strings(out)
		c.Locations[i].Adjacent = out
	}
	for i := range c.Agents {
		c.Agents[i].ID = strings.ToLower(strings.TrimSpace(c.Agents[i].ID))
		c.Agents[i].Location = strings.ToLower(strings.TrimSpace(c.Agents[i].Location))
	}
}

// Validate rejects configs the graph or roster cannot be built from.
func (c *Config) Validate() error {
	if len(c.Locations) == 0 {
		return fmt.Errorf("no locations defined")
	}
	known := make(map[string]bool, len(c.Locations))
	for _, l := range c.Locations {
		if l.ID == "" {
			return fmt.Errorf("location with empty id")
		}
		if known[l.ID] {
			return fmt.Errorf("duplicate location %q", l.ID)
		}
		known[l.ID] = true
		if l.Capacity <= 0 {
			return fmt.Errorf("location %q: capacity must be positive", l.ID)
		}
	}
	for _, l := range c.Locations {
		for _, a := range l.Adjacent {
			if !known[a] {
				return fmt.Errorf("location %q: unknown adjacent %q", l.ID, a)
			}
		}
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" || a.Name == "" {
			return fmt.Errorf("agent with empty id or name")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent %q", a.ID)
		}
		seen[a.ID] = true
		if !known[a.Location] {
			return fmt.Errorf("agent %q: unknown location %q", a.ID, a.Location)
		}
	}
	if c.RandomChance < 0 || c.RandomChance > 1 {
		return fmt.Errorf("random_chance must be in [0, 1]")
	}
	// A malformed schedule would otherwise silently disable its job.
	for _, spec := range []struct{ name, expr string }{
		{"cron.compress", c.Cron.Compress},
		{"cron.evolve", c.Cron.Evolve},
		{"cron.snapshot", c.Cron.Snapshot},
	} {
		if _, err := cron.ParseStandard(spec.expr); err != nil {
			return fmt.Errorf("%s: %w", spec.name, err)
		}
	}
	return nil
}

// BuildLocations converts specs into world locations.
func (c *Config) BuildLocations() []*world.Location {
	out := make([]*world.Location, 0, len(c.Locations))
	for _, spec := range c.Locations {
		adj := make([]world.LocationID, 0, len(spec.Adjacent))
		for _, a := range spec.Adjacent {
			adj = append(adj, world.LocationID(a))
		}
		out = append(out, &world.Location{
			ID:          world.LocationID(spec.ID),
			Name:        spec.Name,
			Capacity:    spec.Capacity,
			Adjacent:    adj,
			AmbientTags: spec.AmbientTags,
		})
	}
	return out
}

// Duration parses a duration field, falling back when unset or malformed.
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
