// Package api provides the read-only observation surface: JSON endpoints
// over world state and a capped websocket feed of presence changes. Nothing
// here mutates core state.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hollowsim/internal/agents"
	"hollowsim/internal/memory"
	"hollowsim/internal/message"
	"hollowsim/internal/soul"
	"hollowsim/internal/world"
)

// Server serves the observation API.
type Server struct {
	addr     string
	graph    *world.Graph
	events   *world.EventLog
	bus      *message.Bus
	memories *memory.Store
	souls    *soul.Model
	roster   func() []*agents.Agent // snapshot copies, safe to read freely
	tick     func() uint64

	hub *hub
}

// NewServer wires the read-only API over live components. The roster
// function must return copies; the handlers read them without locking.
func NewServer(addr string, graph *world.Graph, events *world.EventLog, bus *message.Bus,
	memories *memory.Store, souls *soul.Model, roster func() []*agents.Agent, tick func() uint64) *Server {
	return &Server{
		addr:     addr,
		graph:    graph,
		events:   events,
		bus:      bus,
		memories: memories,
		souls:    souls,
		roster:   roster,
		tick:     tick,
		hub:      newHub(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /locations", s.handleLocations)
	mux.HandleFunc("GET /agents", s.handleAgents)
	mux.HandleFunc("GET /agents/{id}", s.handleAgent)
	mux.HandleFunc("GET /ws", s.hub.handleWS)
	return mux
}

// Start runs the HTTP server and the presence broadcaster. Blocks.
func (s *Server) Start() error {
	go s.broadcastPresence()

	slog.Info("observation api listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"tick":      s.tick(),
		"agents":    len(s.roster()),
		"locations": len(s.graph.Locations()),
	})
}

type locationView struct {
	ID        world.LocationID `json:"id"`
	Name      string           `json:"name"`
	Capacity  int              `json:"capacity"`
	Occupants []string         `json:"occupants"`
	Events    []string         `json:"events,omitempty"`
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	var out []locationView
	for _, l := range s.graph.Locations() {
		v := locationView{
			ID:        l.ID,
			Name:      l.Name,
			Capacity:  l.Capacity,
			Occupants: s.graph.Occupants(l.ID),
		}
		for _, ev := range s.events.RecentEvents(l.ID, now, time.Hour) {
			v.Events = append(v.Events, ev.Description)
		}
		out = append(out, v)
	}
	writeJSON(w, out)
}

type agentView struct {
	ID       agents.AgentID   `json:"id"`
	Name     string           `json:"name"`
	Location world.LocationID `json:"location"`
	Stats    agents.Stats     `json:"stats"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	roster := s.roster()
	out := make([]agentView, 0, len(roster))
	for _, a := range roster {
		out = append(out, agentView{ID: a.ID, Name: a.Name, Location: a.Location, Stats: a.Stats})
	}
	writeJSON(w, out)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(r.PathValue("id"))
	for _, a := range s.roster() {
		if string(a.ID) == id {
			detail := map[string]any{
				"agent":   agentView{ID: a.ID, Name: a.Name, Location: a.Location, Stats: a.Stats},
				"summary": s.memories.Summary(string(a.ID)),
			}
			if sl := s.souls.Get(string(a.ID)); sl != nil {
				detail["personality"] = soul.Project(sl)
				detail["soul_version"] = sl.Version
			}
			writeJSON(w, detail)
			return
		}
	}
	http.NotFound(w, r)
}

// broadcastPresence pushes a presence frame to websocket observers every
// few seconds.
func (s *Server) broadcastPresence() {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		frame := presenceFrame{Tick: s.tick(), At: time.Now().Unix()}
		for _, l := range s.graph.Locations() {
			frame.Presence = append(frame.Presence, presenceEntry{
				Location:  l.ID,
				Occupants: s.graph.Occupants(l.ID),
			})
		}
		s.hub.publish(frame)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}
