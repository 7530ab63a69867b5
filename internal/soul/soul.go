// Package soul implements the personality model: a clamped trait vector per
// agent, pure projection of traits into descriptor phrasing, and the weekly
// evolution pass that nudges traits from lived activity.
package soul

import (
	"math/rand"
	"time"
)

// Trait names the fixed trait set. Every trait ranges 0–100.
type Trait string

const (
	TraitSociability Trait = "sociability"
	TraitCuriosity   Trait = "curiosity"
	TraitDiligence   Trait = "diligence"
	TraitCheer       Trait = "cheer"
	TraitBravery     Trait = "bravery"
	TraitPatience    Trait = "patience"
)

// traitOrder fixes iteration order for projection and logging.
var traitOrder = []Trait{
	TraitSociability, TraitCuriosity, TraitDiligence,
	TraitCheer, TraitBravery, TraitPatience,
}

// Tendencies are boolean dispositions set at birth.
type Tendencies struct {
	NightOwl   bool `json:"night_owl"`
	Homebody   bool `json:"homebody"`
	Talkative  bool `json:"talkative"`
	Daydreamer bool `json:"daydreamer"`
}

// Preferences hold small taste lists.
type Preferences struct {
	Likes            []string `json:"likes"`
	Dislikes         []string `json:"dislikes"`
	FavoriteActivity string   `json:"favorite_activity"`
	FavoritePlace    string   `json:"favorite_place"`
}

// EvolutionEntry is one append-only line in a soul's history.
type EvolutionEntry struct {
	Version int       `json:"version"`
	At      time.Time `json:"at"`
	Note    string    `json:"note"`
}

// Soul is an agent's personality: trait vector, tendencies, preferences,
// and the evolution log. Created once at birth; mutated only by Evolve.
type Soul struct {
	Traits      map[Trait]int    `json:"traits"`
	Tendencies  Tendencies       `json:"tendencies"`
	Preferences Preferences      `json:"preferences"`
	Evolution   []EvolutionEntry `json:"evolution"`
	Version     int              `json:"version"`
}

// birthRanges gives each trait its randomized birth range. Ranges rather
// than fixed values keep agents distinct.
var birthRanges = map[Trait][2]int{
	TraitSociability: {20, 80},
	TraitCuriosity:   {30, 90},
	TraitDiligence:   {25, 85},
	TraitCheer:       {30, 80},
	TraitBravery:     {15, 75},
	TraitPatience:    {20, 80},
}

// Generate creates a fresh soul with traits drawn from the birth ranges and
// the initial evolution entry.
func Generate(rng *rand.Rand, now time.Time) *Soul {
	s := &Soul{
		Traits:  make(map[Trait]int, len(traitOrder)),
		Version: 1,
	}
	for _, t := range traitOrder {
		r := birthRanges[t]
		s.Traits[t] = r[0] + rng.Intn(r[1]-r[0]+1)
	}
	s.Tendencies = Tendencies{
		NightOwl:   rng.Intn(100) < 30,
		Homebody:   rng.Intn(100) < 40,
		Talkative:  s.Traits[TraitSociability] > 60,
		Daydreamer: rng.Intn(100) < 25,
	}
	s.Evolution = append(s.Evolution, EvolutionEntry{
		Version: 1,
		At:      now,
		Note:    "born",
	})
	return s
}

// Get returns a trait value, clamped.
func (s *Soul) Get(t Trait) int {
	return clampTrait(s.Traits[t])
}

// adjust applies a bounded delta to a trait and reports whether the stored
// value changed.
func (s *Soul) adjust(t Trait, delta int) bool {
	before := s.Traits[t]
	after := clampTrait(before + delta)
	s.Traits[t] = after
	return after != before
}

func clampTrait(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
