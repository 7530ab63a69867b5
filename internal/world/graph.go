// Package world provides the static location graph: named places with
// capacity, adjacency, and ambient tags, plus derived occupancy accounting.
// Locations are seeded once at boot and never mutated afterwards; occupancy
// is the only runtime state and lives behind a single mutex so concurrent
// moves and reads are well-defined.
package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// LocationID is a unique identifier for a place.
type LocationID string

// Location is a static place in the village.
type Location struct {
	ID          LocationID   `json:"id"`
	Name        string       `json:"name"`
	Capacity    int          `json:"capacity"`
	Adjacent    []LocationID `json:"adjacent"`
	AmbientTags []string     `json:"ambient_tags"` // mood/lighting, prompt text only
}

// Move validation failures. These are structured reasons, not faults; the
// orchestrator logs them as no-op outcomes.
var (
	ErrUnknownLocation = errors.New("unknown location")
	ErrAlreadyThere    = errors.New("already at destination")
	ErrUnreachable     = errors.New("destination not adjacent")
	ErrFull            = errors.New("destination at capacity")
)

// MoveRecord describes a completed move for the activity log.
type MoveRecord struct {
	AgentID string
	From    LocationID
	To      LocationID
}

// Graph holds the location set and current occupancy.
type Graph struct {
	mu        sync.Mutex
	locations map[LocationID]*Location
	occupants map[LocationID]map[string]bool // location → agent IDs
	agentAt   map[string]LocationID          // agent ID → location
}

// NewGraph builds a graph from seeded locations. Adjacency must resolve;
// the config layer validates symmetry before this is called.
func NewGraph(locs []*Location) (*Graph, error) {
	g := &Graph{
		locations: make(map[LocationID]*Location, len(locs)),
		occupants: make(map[LocationID]map[string]bool, len(locs)),
		agentAt:   make(map[string]LocationID),
	}
	for _, l := range locs {
		if _, dup := g.locations[l.ID]; dup {
			return nil, fmt.Errorf("duplicate location %q", l.ID)
		}
		g.locations[l.ID] = l
		g.occupants[l.ID] = make(map[string]bool)
	}
	for _, l := range locs {
		for _, adj := range l.Adjacent {
			if _, ok := g.locations[adj]; !ok {
				return nil, fmt.Errorf("location %q adjacent to unknown %q", l.ID, adj)
			}
		}
	}
	return g, nil
}

// Get returns a location by ID, or nil if unknown.
func (g *Graph) Get(id LocationID) *Location {
	return g.locations[id] // static after boot, no lock needed
}

// Locations returns all locations sorted by ID.
func (g *Graph) Locations() []*Location {
	out := make([]*Location, 0, len(g.locations))
	for _, l := range g.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Place puts an agent at a location without validation. Used only at boot
// and restore; returns an error if the location is unknown.
func (g *Graph) Place(agentID string, loc LocationID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.locations[loc]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLocation, loc)
	}
	if prev, ok := g.agentAt[agentID]; ok {
		delete(g.occupants[prev], agentID)
	}
	g.occupants[loc][agentID] = true
	g.agentAt[agentID] = loc
	return nil
}

// Occupants returns the agent IDs currently at a location, sorted.
func (g *Graph) Occupants(id LocationID) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	set := g.occupants[id]
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// LocationOf returns the agent's current location.
func (g *Graph) LocationOf(agentID string) (LocationID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	loc, ok := g.agentAt[agentID]
	return loc, ok
}

// Move relocates an agent to dest. Validation order: destination exists,
// destination differs from current, destination adjacent, destination under
// capacity. The checks and the write run under one lock, so two concurrent
// moves cannot jointly overfill a destination.
func (g *Graph) Move(agentID string, dest LocationID) (*MoveRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	destLoc, ok := g.locations[dest]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, dest)
	}

	from, placed := g.agentAt[agentID]
	if !placed {
		return nil, fmt.Errorf("agent %q has no current location", agentID)
	}
	if from == dest {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyThere, dest)
	}

	adjacent := false
	for _, adj := range g.locations[from].Adjacent {
		if adj == dest {
			adjacent = true
			break
		}
	}
	if !adjacent {
		return nil, fmt.Errorf("%w: %q from %q", ErrUnreachable, dest, from)
	}

	if len(g.occupants[dest]) >= destLoc.Capacity {
		return nil, fmt.Errorf("%w: %q (%d/%d)", ErrFull, dest, len(g.occupants[dest]), destLoc.Capacity)
	}

	delete(g.occupants[from], agentID)
	g.occupants[dest][agentID] = true
	g.agentAt[agentID] = dest

	return &MoveRecord{AgentID: agentID, From: from, To: dest}, nil
}

// IsValidation reports whether err is a move validation failure rather than
// a fault.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnknownLocation) ||
		errors.Is(err, ErrAlreadyThere) ||
		errors.Is(err, ErrUnreachable) ||
		errors.Is(err, ErrFull)
}
