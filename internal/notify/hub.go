// Package notify pushes store change events to connected views over
// WebSocket.
package notify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-study/internal/state"
)

const (
	// clientBuffer is how many events a slow client may lag behind before
	// events are dropped for it.
	clientBuffer = 32
	writeTimeout = 5 * time.Second
)

// Event tells a view that a slot changed and should be re-read.
type Event struct {
	Key state.Key `json:"key"`
	At  time.Time `json:"at"`
}

// Hub fans store changes out to every connected client.
type Hub struct {
	store *state.Store
	unsub func()

	mu      sync.RWMutex
	clients map[uint64]chan Event
	nextID  uint64
	closed  bool

	// AcceptOptions is passed to websocket.Accept.
	AcceptOptions *websocket.AcceptOptions
}

// NewHub creates a hub subscribed to every slot of s.
func NewHub(s *state.Store) *Hub {
	h := &Hub{
		store:   s,
		clients: make(map[uint64]chan Event),
	}
	h.unsub = s.Subscribe(state.Wildcard, func(key state.Key, _, _ any) {
		h.Broadcast(Event{Key: key, At: s.Now()})
	})
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues ev for every client. Clients whose buffer is full miss
// the event.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			slog.Warn("dropping event for slow client", "client", id, "key", ev.Key)
		}
	}
}

// Close unsubscribes from the store and disconnects every client.
func (h *Hub) Close() {
	h.unsub()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

func (h *Hub) register() (uint64, chan Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, nil, false
	}
	h.nextID++
	ch := make(chan Event, clientBuffer)
	h.clients[h.nextID] = ch
	return h.nextID, ch, true
}

func (h *Hub) unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams events until
// the client goes away or the hub is closed. Messages from the client are
// ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.AcceptOptions)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	id, events, ok := h.register()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.unregister(id)
	slog.Info("view connected", "client", id)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			slog.Info("view disconnected", "client", id)
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := write(ctx, conn, ev); err != nil {
				slog.Warn("websocket write failed", "client", id, "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
