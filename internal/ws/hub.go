package ws

import (
	"log"
	"sync"

	"chat-realtime/internal/models"
	"chat-realtime/internal/observability"
)

// Hub is the registry of live connections: every connection, the connections of
// each user (their personal channel) and the connections subscribed to each room.
// Publishing encodes once, snapshots the targets under the read lock and enqueues
// without blocking.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	byUser  map[int]map[*Client]struct{}
	rooms   map[int]map[*Client]struct{}
	log     *log.Logger
}

// NewHub creates an empty hub.
func NewHub(l *log.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[int]map[*Client]struct{}),
		rooms:   make(map[int]map[*Client]struct{}),
		log:     l,
	}
}

// Register adds a connection and its personal channel membership.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	conns, ok := h.byUser[c.user.ID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.byUser[c.user.ID] = conns
	}
	conns[c] = struct{}{}
}

// Unregister removes a connection everywhere. It reports how many connections the
// user still has and whether c was registered at all.
func (h *Hub) Unregister(c *Client) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return len(h.byUser[c.user.ID]), false
	}
	delete(h.clients, c)

	for roomID := range c.rooms {
		h.removeFromRoom(c, roomID)
	}
	remaining := 0
	if conns, ok := h.byUser[c.user.ID]; ok {
		delete(conns, c)
		remaining = len(conns)
		if remaining == 0 {
			delete(h.byUser, c.user.ID)
		}
	}
	return remaining, true
}

// Subscribe adds a registered connection to a room channel.
func (h *Hub) Subscribe(c *Client, roomID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.addToRoom(c, roomID)
}

// Unsubscribe removes a connection from a room channel.
func (h *Hub) Unsubscribe(c *Client, roomID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(c, roomID)
}

// IsSubscribed reports whether c currently listens to roomID.
func (h *Hub) IsSubscribed(c *Client, roomID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[roomID]
	return ok
}

// JoinUserToRoom subscribes every live connection of userID to roomID.
func (h *Hub) JoinUserToRoom(userID int, roomID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.byUser[userID] {
		h.addToRoom(c, roomID)
	}
}

// DropRoom unsubscribes everyone from roomID.
func (h *Hub) DropRoom(roomID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[roomID] {
		delete(c.rooms, roomID)
	}
	delete(h.rooms, roomID)
}

func (h *Hub) addToRoom(c *Client, roomID int) {
	conns, ok := h.rooms[roomID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.rooms[roomID] = conns
	}
	conns[c] = struct{}{}
	c.rooms[roomID] = struct{}{}
}

func (h *Hub) removeFromRoom(c *Client, roomID int) {
	delete(c.rooms, roomID)
	if conns, ok := h.rooms[roomID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// PublishRoom sends event to every connection subscribed to roomID.
func (h *Hub) PublishRoom(roomID int, event models.Event) {
	h.PublishRoomExcept(roomID, nil, event)
}

// PublishRoomExcept sends event to the room's connections other than except.
func (h *Hub) PublishRoomExcept(roomID int, except *Client, event models.Event) {
	h.mu.RLock()
	targets := snapshot(h.rooms[roomID], except)
	h.mu.RUnlock()
	h.deliver(targets, event)
}

// PublishUser sends event to every connection of userID.
func (h *Hub) PublishUser(userID int, event models.Event) {
	h.mu.RLock()
	targets := snapshot(h.byUser[userID], nil)
	h.mu.RUnlock()
	h.deliver(targets, event)
}

// BroadcastExcept sends event to every connection other than except.
func (h *Hub) BroadcastExcept(except *Client, event models.Event) {
	h.mu.RLock()
	targets := snapshot(h.clients, except)
	h.mu.RUnlock()
	h.deliver(targets, event)
}

// CloseAll disconnects every connection, used on shutdown.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	targets := snapshot(h.clients, nil)
	h.mu.RUnlock()
	for _, c := range targets {
		c.close(reason)
	}
}

// ConnectionCount returns the number of live connections of userID.
func (h *Hub) ConnectionCount(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// RoomSize returns the number of connections subscribed to roomID.
func (h *Hub) RoomSize(roomID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func snapshot(set map[*Client]struct{}, except *Client) []*Client {
	out := make([]*Client, 0, len(set))
	for c := range set {
		if c != except {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) deliver(targets []*Client, event models.Event) {
	if len(targets) == 0 {
		return
	}
	payload, err := models.EncodeEvent(event)
	if err != nil {
		h.log.Printf("encode event failed event=%s: %v", event.EventName(), err)
		return
	}
	observability.IncWSEvent("out", string(event.EventName()))
	for _, c := range targets {
		c.enqueue(payload)
	}
}
