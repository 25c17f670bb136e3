package websocket

import (
	"context"
	"sync"
	"time"

	"student-chat/internal/database"
	"student-chat/internal/models"
	"student-chat/pkg/logger"
)

const presenceQueueSize = 256

type presenceWrite struct {
	userID string
	online bool
}

type presenceEntry struct {
	connections int
	lastChanged time.Time
}

// Registry maps live connections to their identities and keeps a per-user
// connection count. userOnline goes out when a user's first connection is
// admitted and userOffline when the last one retires; extra tabs are silent.
type Registry struct {
	hub      *Hub
	presence database.PresenceRepository
	timeout  time.Duration

	mu     sync.Mutex
	conns  map[string]*Client
	users  map[string]*presenceEntry
	writes chan presenceWrite
}

func NewRegistry(hub *Hub, presence database.PresenceRepository, timeout time.Duration) *Registry {
	return &Registry{
		hub:      hub,
		presence: presence,
		timeout:  timeout,
		conns:    make(map[string]*Client),
		users:    make(map[string]*presenceEntry),
		writes:   make(chan presenceWrite, presenceQueueSize),
	}
}

// Admit records c and registers it with the hub. The presence transition and
// its broadcast happen under one lock so concurrent admits and retires for
// the same user are observed in order.
func (r *Registry) Admit(c *Client) {
	identity := c.info.Identity

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c.info.ConnectionID] = c
	r.hub.register(c)

	entry, ok := r.users[identity.ID]
	if !ok {
		entry = &presenceEntry{}
		r.users[identity.ID] = entry
	}
	entry.connections++

	if entry.connections == 1 {
		entry.lastChanged = time.Now()
		r.hub.BroadcastAll(presenceEvent(models.EventUserOnline, identity), c)
		r.queueWrite(identity.ID, true)
		logger.Info("User %s is online", identity.Username)
	}
	logger.Debug("Admitted connection %s for %s (%d active)", c.info.ConnectionID, identity.Username, entry.connections)
}

// Retire removes c and all of its room subscriptions. Retiring an unknown
// or already retired connection is a no-op.
func (r *Registry) Retire(c *Client) {
	identity := c.info.Identity

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c.info.ConnectionID]; !ok {
		return
	}
	delete(r.conns, c.info.ConnectionID)
	r.hub.unregister(c)

	entry := r.users[identity.ID]
	entry.connections--
	if entry.connections > 0 {
		logger.Debug("Retired connection %s for %s (%d still active)", c.info.ConnectionID, identity.Username, entry.connections)
		return
	}

	delete(r.users, identity.ID)
	r.hub.BroadcastAll(presenceEvent(models.EventUserOffline, identity), nil)
	r.queueWrite(identity.ID, false)
	logger.Info("User %s is offline after %s", identity.Username, time.Since(entry.lastChanged).Round(time.Second))
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[userID]
	return ok
}

func (r *Registry) ConnectionCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.users[userID]; ok {
		return entry.connections
	}
	return 0
}

// Run persists the denormalized online flag in transition order until ctx
// is cancelled. Failures are logged and never reach admit or retire.
func (r *Registry) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case w := <-r.writes:
			r.persist(ctx, w)
		}
	}
}

func (r *Registry) persist(ctx context.Context, w presenceWrite) {
	if r.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.presence.SetUserOnline(ctx, w.userID, w.online); err != nil {
		logger.Warn("Failed to persist presence for user %s: %v", w.userID, err)
	}
}

// queueWrite must be called with r.mu held.
func (r *Registry) queueWrite(userID string, online bool) {
	select {
	case r.writes <- presenceWrite{userID: userID, online: online}:
	default:
		logger.Warn("Presence queue full, dropping update for user %s", userID)
	}
}

func presenceEvent(name models.EventName, identity models.Identity) models.OutboundEvent {
	return models.OutboundEvent{
		Event: name,
		Data:  models.UserPresence{UserID: identity.ID, Username: identity.Username},
	}
}
