// Package hub fans optimization-run progress out to websocket subscribers.
// Clients subscribe to run ids and receive the route entries of each waypoint
// as it completes.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"slroute/internal/domain"
)

type Client struct {
	ID   string
	Send chan []byte
	runs map[string]struct{}
	mu   sync.RWMutex
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:   id,
		Send: make(chan []byte, bufferSize),
		runs: make(map[string]struct{}),
	}
}

func (c *Client) AddRuns(runIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range runIDs {
		c.runs[id] = struct{}{}
	}
}

func (c *Client) RemoveRuns(runIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range runIDs {
		delete(c.runs, id)
	}
}

func (c *Client) GetRuns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	runs := make([]string, 0, len(c.runs))
	for id := range c.runs {
		runs = append(runs, id)
	}
	return runs
}

// EntryBatch is one progress message: the entries produced for one sampled
// waypoint, or the final Done marker of a run.
type EntryBatch struct {
	RunID         string              `json:"run_id"`
	WaypointIndex int                 `json:"waypoint_index"`
	Entries       []domain.RouteEntry `json:"entries,omitempty"`
	Done          bool                `json:"done,omitempty"`
	Partial       bool                `json:"partial,omitempty"`
}

type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	runClients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan EntryBatch

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		runClients: make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan EntryBatch, 256),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID)

		case client := <-h.unregister:
			h.removeClient(client)

		case batch := <-h.broadcast:
			h.fanout(batch)
		}
	}
}

func (h *Hub) Subscribe(client *Client, runIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.AddRuns(runIDs)

	for _, runID := range runIDs {
		if h.runClients[runID] == nil {
			h.runClients[runID] = make(map[*Client]struct{})
		}
		h.runClients[runID][client] = struct{}{}
	}
}

func (h *Hub) Unsubscribe(client *Client, runIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.RemoveRuns(runIDs)

	for _, runID := range runIDs {
		if h.runClients[runID] != nil {
			delete(h.runClients[runID], client)
			if len(h.runClients[runID]) == 0 {
				delete(h.runClients, runID)
			}
		}
	}
}

// Broadcast queues a batch for fanout; a full queue drops the batch rather
// than stalling the optimizer.
func (h *Hub) Broadcast(batch EntryBatch) {
	select {
	case h.broadcast <- batch:
	default:
		h.logger.Warn("broadcast channel full, dropping batch", "run_id", batch.RunID, "waypoint_index", batch.WaypointIndex)
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type batchMessage struct {
	Type    string     `json:"type"`
	Payload EntryBatch `json:"payload"`
}

func (h *Hub) fanout(batch EntryBatch) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.runClients[batch.RunID]
	if !ok {
		return
	}

	data, err := json.Marshal(batchMessage{Type: "entries", Payload: batch})
	if err != nil {
		return
	}

	for client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	for _, runID := range client.GetRuns() {
		if h.runClients[runID] != nil {
			delete(h.runClients[runID], client)
			if len(h.runClients[runID]) == 0 {
				delete(h.runClients, runID)
			}
		}
	}

	delete(h.clients, client)
	close(client.Send)
	h.logger.Debug("client unregistered", "client_id", client.ID)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.runClients = make(map[string]map[*Client]struct{})
}
