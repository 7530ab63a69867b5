package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hollowsim/internal/world"
)

// maxObservers caps concurrent websocket connections.
const maxObservers = 8

type presenceEntry struct {
	Location  world.LocationID `json:"location"`
	Occupants []string         `json:"occupants"`
}

type presenceFrame struct {
	Tick     uint64          `json:"tick"`
	At       int64           `json:"at"`
	Presence []presenceEntry `json:"presence"`
}

// hub fans presence frames out to connected observers.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan presenceFrame

	upgrader websocket.Upgrader
}

func newHub() *hub {
	return &hub{
		conns: make(map[*websocket.Conn]chan presenceFrame),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Observation feed is public read-only data.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	full := len(h.conns) >= maxObservers
	h.mu.Unlock()
	if full {
		http.Error(w, "too many observers", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	ch := make(chan presenceFrame, 4)
	h.mu.Lock()
	h.conns[conn] = ch
	h.mu.Unlock()
	slog.Info("observer connected", "remote", conn.RemoteAddr())

	go h.writeLoop(conn, ch)
	h.readLoop(conn)
}

// readLoop discards incoming frames; the feed is one-way. Returning closes
// the connection.
func (h *hub) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) writeLoop(conn *websocket.Conn, ch chan presenceFrame) {
	for frame := range ch {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(frame); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(ch)
	}
	h.mu.Unlock()
	conn.Close()
}

// publish sends a frame to every observer, skipping any with a full buffer.
func (h *hub) publish(frame presenceFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.conns {
		select {
		case ch <- frame:
		default:
		}
	}
}
