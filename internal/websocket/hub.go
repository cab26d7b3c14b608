package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/darts-scorer/internal/match"
)

// Hub maintains the set of connected clients and broadcasts match state to watchers
type Hub struct {
	// Connected clients
	clients map[*Client]bool

	// Watchers by match ID
	matchClients map[string]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		matchClients: make(map[string]map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		done:         make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Debug().Str("client", client.id).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				h.remove(client)
			}
			h.mu.Unlock()
			log.Debug().Str("client", client.id).Msg("client unregistered")
		}
	}
}

// Register adds a client, reporting false once the hub has stopped
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// remove drops a client and closes its send channel. Callers hold h.mu.
func (h *Hub) remove(client *Client) {
	h.unwatch(client)
	delete(h.clients, client)
	client.closed = true
	close(client.send)
}

func (h *Hub) unwatch(client *Client) {
	if client.matchID == "" {
		return
	}
	if watchers := h.matchClients[client.matchID]; watchers != nil {
		delete(watchers, client)
		if len(watchers) == 0 {
			delete(h.matchClients, client.matchID)
		}
	}
	client.matchID = ""
}

// Watch subscribes a client to one match, replacing any previous subscription
func (h *Hub) Watch(matchID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unwatch(client)
	if h.matchClients[matchID] == nil {
		h.matchClients[matchID] = make(map[*Client]bool)
	}
	h.matchClients[matchID][client] = true
	client.matchID = matchID
}

// Watching returns the match a client is subscribed to
func (h *Hub) Watching(client *Client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return client.matchID
}

// Watchers returns how many clients watch a match
func (h *Hub) Watchers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matchClients[matchID])
}

// BroadcastState sends the state to every watcher of its match
func (h *Hub) BroadcastState(s match.State) {
	h.broadcastToMatch(s.MatchID, Message{
		Type:    TypeState,
		MatchID: s.MatchID,
		State:   &s,
	})
}

func (h *Hub) broadcastToMatch(matchID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("error marshaling message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.matchClients[matchID]
	log.Debug().Str("type", msg.Type).Str("matchId", matchID).Int("clients", len(clients)).Msg("broadcast")

	for client := range clients {
		select {
		case client.send <- data:
		default:
			log.Warn().Str("client", client.id).Str("type", msg.Type).Msg("send buffer full, message dropped")
		}
	}
}
