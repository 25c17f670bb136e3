package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"student-chat/internal/models"
	"student-chat/pkg/logger"
)

// ErrClientGone is returned when subscribing a connection that has already
// been unregistered.
var ErrClientGone = errors.New("connection is closed")

const (
	defaultTombstoneTTL = 5 * time.Minute
	sweepInterval       = time.Minute
)

// Hub owns every live connection and the room -> subscriber broadcast groups.
// Fan-out takes the read lock; membership changes take the write lock. No
// I/O happens while the lock is held, only non-blocking enqueues.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	rooms      map[string]map[*Client]struct{}
	tombstones map[string]time.Time

	tombstoneTTL time.Duration
	now          func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*Client]struct{}),
		rooms:        make(map[string]map[*Client]struct{}),
		tombstones:   make(map[string]time.Time),
		tombstoneTTL: defaultTombstoneTTL,
		now:          time.Now,
	}
}

// Run sweeps expired tombstones until ctx is cancelled, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case <-ticker.C:
			h.sweepTombstones()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.closeSend()
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// unregister drops c from every group it joined and marks it gone so a
// subscribe racing the disconnect cannot leave a ghost subscription.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range c.rooms {
		h.removeFromRoom(c, roomID)
	}
	c.rooms = nil
	c.gone = true
	delete(h.clients, c)
}

// Subscribe adds c to roomID's broadcast group. It reports whether c was
// newly added.
func (h *Hub) Subscribe(c *Client, roomID string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.gone {
		return false, ErrClientGone
	}
	if _, ok := c.rooms[roomID]; ok {
		return false, nil
	}

	group, ok := h.rooms[roomID]
	if !ok {
		group = make(map[*Client]struct{})
		h.rooms[roomID] = group
	}
	group[c] = struct{}{}
	c.rooms[roomID] = struct{}{}
	return true, nil
}

// Unsubscribe removes c from roomID's group and reports whether it was a
// member.
func (h *Hub) Unsubscribe(c *Client, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := c.rooms[roomID]; !ok {
		return false
	}
	h.removeFromRoom(c, roomID)
	delete(c.rooms, roomID)
	return true
}

func (h *Hub) removeFromRoom(c *Client, roomID string) {
	group := h.rooms[roomID]
	delete(group, c)
	if len(group) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) IsSubscribed(c *Client, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][c]
	return ok
}

func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll delivers ev to every registered connection except skip.
func (h *Hub) BroadcastAll(ev models.OutboundEvent, skip *Client) {
	data, err := ev.Encode()
	if err != nil {
		logger.Error("Error encoding %s event: %v", ev.Event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c != skip {
			c.enqueue(data)
		}
	}
}

// BroadcastRoom delivers ev to roomID's subscribers except skip.
func (h *Hub) BroadcastRoom(roomID string, ev models.OutboundEvent, skip *Client) {
	data, err := ev.Encode()
	if err != nil {
		logger.Error("Error encoding %s event: %v", ev.Event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.fanOut(roomID, data, skip)
}

func (h *Hub) fanOut(roomID string, data []byte, skip *Client) {
	for c := range h.rooms[roomID] {
		if c != skip {
			c.enqueue(data)
		}
	}
}

// PublishMessage fans a persisted message out to the whole room, sender
// included. Messages already retracted are dropped.
func (h *Hub) PublishMessage(roomID string, msg models.MessageReceived) {
	data, err := models.OutboundEvent{Event: models.EventMessageReceived, Data: msg}.Encode()
	if err != nil {
		logger.Error("Error encoding message %s: %v", msg.ID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, deleted := h.tombstones[msg.ID]; deleted {
		logger.Debug("Dropping delivery of deleted message %s", msg.ID)
		return
	}
	h.fanOut(roomID, data, nil)
}

// RetractMessage records messageID as deleted and tells the room's
// subscribers to drop it.
func (h *Hub) RetractMessage(roomID, messageID string) {
	data, err := models.OutboundEvent{
		Event: models.EventMessageDeleted,
		Data:  models.MessageDeleted{ID: messageID, RoomID: roomID},
	}.Encode()
	if err != nil {
		logger.Error("Error encoding deletion of %s: %v", messageID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.tombstones[messageID] = h.now().Add(h.tombstoneTTL)
	h.fanOut(roomID, data, nil)
}

func (h *Hub) sweepTombstones() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for id, expires := range h.tombstones {
		if now.After(expires) {
			delete(h.tombstones, id)
		}
	}
}
