package websocket

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrClientClosed is returned when sending to a closed client
	ErrClientClosed = errors.New("client is closed")
	// ErrSlowClient is returned when a client's send buffer is full
	ErrSlowClient = errors.New("client send buffer is full")
	// ErrTooManyConnections is returned by Register when an actor is at the limit
	ErrTooManyConnections = errors.New("too many connections for actor")
)

// ClientInterface is what the hub needs from a connection
type ClientInterface interface {
	ID() string
	ActorID() string
	Subscription() Subscription
	Send(data []byte) error
	Close() error
}

// Hub fans events out to subscribed clients. Clients that cannot keep up are
// dropped. It is safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]ClientInterface
	perActor    map[string]int
	maxPerActor int
}

// NewHub creates a Hub. maxPerActor caps concurrent connections of one actor;
// zero means no cap.
func NewHub(maxPerActor int) *Hub {
	return &Hub{
		clients:     make(map[string]ClientInterface),
		perActor:    make(map[string]int),
		maxPerActor: maxPerActor,
	}
}

// Register adds a client
func (h *Hub) Register(client ClientInterface) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client.ID()]; exists {
		return nil
	}
	actorID := client.ActorID()
	if h.maxPerActor > 0 && h.perActor[actorID] >= h.maxPerActor {
		return ErrTooManyConnections
	}

	h.clients[client.ID()] = client
	h.perActor[actorID]++

	log.Debug().
		Str("client_id", client.ID()).
		Str("actor_id", actorID).
		Strs("accounts", client.Subscription().Accounts()).
		Msg("WebSocket client registered")
	return nil
}

// Unregister removes a client; unknown clients are ignored
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client ClientInterface) bool {
	if _, exists := h.clients[client.ID()]; !exists {
		return false
	}
	delete(h.clients, client.ID())
	actorID := client.ActorID()
	if h.perActor[actorID]--; h.perActor[actorID] <= 0 {
		delete(h.perActor, actorID)
	}
	return true
}

// Broadcast delivers event to every matching client. Send never blocks, so
// this runs inline; a client with a full buffer is evicted and closed.
func (h *Hub) Broadcast(event Event) {
	data, err := event.ToJSON()
	if err != nil {
		log.Error().
			Err(err).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	h.mu.RLock()
	targets := make([]ClientInterface, 0, len(h.clients))
	for _, client := range h.clients {
		if client.Subscription().Matches(event) {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	var dropped []ClientInterface
	for _, client := range targets {
		if err := client.Send(data); err != nil {
			dropped = append(dropped, client)
			log.Warn().
				Err(err).
				Str("client_id", client.ID()).
				Str("actor_id", client.ActorID()).
				Msg("Dropping WebSocket client")
		}
	}
	h.evict(dropped)

	log.Debug().
		Str("event_type", event.Type).
		Int("delivered", len(targets)-len(dropped)).
		Msg("Broadcast event")
}

func (h *Hub) evict(clients []ClientInterface) {
	if len(clients) == 0 {
		return
	}
	h.mu.Lock()
	removed := make([]ClientInterface, 0, len(clients))
	for _, c := range clients {
		if h.removeLocked(c) {
			removed = append(removed, c)
		}
	}
	h.mu.Unlock()

	for _, c := range removed {
		c.Close()
	}
}

// CloseAll disconnects every client, used on shutdown
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]ClientInterface, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]ClientInterface)
	h.perActor = make(map[string]int)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	log.Info().Int("client_count", len(clients)).Msg("WebSocket clients closed")
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ActorConnections returns how many clients actorID has open
func (h *Hub) ActorConnections(actorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.perActor[actorID]
}
