package websocket

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// ClientInterface abstracts a connected client so the hub can be
// tested without real websocket connections.
type ClientInterface interface {
	GetID() string
	GetUserID() string
	SendEvent(event Event) error
	Close()
}

// Hub tracks connected clients grouped by user so events can be
// fanned out to every open session of a chama member.
type Hub struct {
	mu sync.RWMutex
	// users maps a user's hex ObjectID to that user's connected clients,
	// keyed by client id. One user may hold several connections.
	users map[string]map[string]ClientInterface
}

func NewHub() *Hub {
	return &Hub{
		users: make(map[string]map[string]ClientInterface),
	}
}

// Register adds a client to its user's connection set.
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.GetUserID()
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]ClientInterface)
	}
	h.users[userID][client.GetID()] = client

	log.Debug().
		Str("client_id", client.GetID()).
		Str("user_id", userID).
		Int("user_clients", len(h.users[userID])).
		Msg("websocket client registered")
}

// Unregister removes a client and drops the user entry when it was
// the last connection.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.GetUserID()
	clients, ok := h.users[userID]
	if !ok {
		return
	}
	if _, ok := clients[client.GetID()]; !ok {
		return
	}
	delete(clients, client.GetID())
	if len(clients) == 0 {
		delete(h.users, userID)
	}

	log.Debug().
		Str("client_id", client.GetID()).
		Str("user_id", userID).
		Msg("websocket client unregistered")
}

// Publish delivers the event to every connection of each recipient.
// Sends happen outside the lock so a slow client cannot stall
// registration. Implements EventPublisher.
func (h *Hub) Publish(recipientIDs []string, event Event) {
	h.mu.RLock()
	var targets []ClientInterface
	for _, userID := range recipientIDs {
		for _, client := range h.users[userID] {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		go func(c ClientInterface) {
			if err := c.SendEvent(event); err != nil {
				log.Warn().
					Err(err).
					Str("client_id", c.GetID()).
					Str("event_type", event.Type).
					Msg("failed to send websocket event")
			}
		}(client)
	}
}

// ClientCount returns the number of open connections for a user.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// TotalClients returns the number of open connections across all users.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, clients := range h.users {
		total += len(clients)
	}
	return total
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clients := range h.users {
		for _, client := range clients {
			client.Close()
		}
		delete(h.users, userID)
	}
}
