package spectate

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Client is a single spectator connection
type Client struct {
	ID       string
	SendChan chan Frame
}

// Hub fans frames out to spectators
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
	latest  *Frame
	nextID  int
	dropped int
}

// NewHub creates a new spectator hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a client. It receives the latest frame right away if there is one.
func (h *Hub) Register() *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	client := &Client{
		ID:       fmt.Sprintf("spectator-%d-%d", h.nextID, time.Now().UnixNano()),
		SendChan: make(chan Frame, 16),
	}
	if h.latest != nil {
		client.SendChan <- *h.latest
	}
	h.clients[client.ID] = client
	slog.Info("Spectator registered", "clientID", client.ID, "clients", len(h.clients))
	return client
}

// Unregister removes a client and closes its channel
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.SendChan)
	slog.Info("Spectator unregistered", "clientID", client.ID, "clients", len(h.clients))
}

// Publish sends f to every client. Clients that fall behind miss frames.
func (h *Hub) Publish(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = &f
	for _, client := range h.clients {
		select {
		case client.SendChan <- f:
		default:
			h.dropped++
			slog.Debug("Dropping frame for slow spectator", "clientID", client.ID)
		}
	}
}

// Close unregisters every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.SendChan)
	}
}

// ClientCount returns the number of connected spectators
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many frames were skipped for slow clients
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
