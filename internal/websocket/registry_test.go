package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"student-chat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PresenceTransitions(t *testing.T) {
	hub := NewHub()
	reg := NewRegistry(hub, nil, time.Second)

	observer := newTestClient("o", "olga", 16)
	reg.Admit(observer)
	assert.Empty(t, drain(t, observer), "no self notification")

	tab1 := newTestClient("a", "alice", 16)
	tab2 := newTestClient("a", "alice", 16)

	reg.Admit(tab1)
	got := drain(t, observer)
	require.Len(t, got, 1)
	assert.Equal(t, models.EventUserOnline, got[0].Event)
	var p models.UserPresence
	require.NoError(t, json.Unmarshal(got[0].Data, &p))
	assert.Equal(t, models.UserPresence{UserID: "a", Username: "alice"}, p)
	assert.Empty(t, drain(t, tab1))

	reg.Admit(tab2)
	assert.Empty(t, drain(t, observer), "second tab is silent")
	assert.Equal(t, 2, reg.ConnectionCount("a"))

	reg.Retire(tab1)
	assert.Empty(t, drain(t, observer), "user still connected elsewhere")
	assert.True(t, reg.IsOnline("a"))

	reg.Retire(tab2)
	assert.Equal(t, []models.EventName{models.EventUserOffline}, eventNames(drain(t, observer)))
	assert.False(t, reg.IsOnline("a"))

	// retire runs once
	reg.Retire(tab2)
	assert.Empty(t, drain(t, observer))
}

func TestRegistry_RetireReleasesSubscriptions(t *testing.T) {
	hub := NewHub()
	reg := NewRegistry(hub, nil, time.Second)

	c := newTestClient("a", "alice", 8)
	reg.Admit(c)
	_, err := hub.Subscribe(c, "room-1")
	require.NoError(t, err)

	reg.Retire(c)
	assert.Equal(t, 0, hub.SubscriberCount("room-1"))
	assert.Equal(t, 0, hub.ClientCount())
}

func TestRegistry_ConcurrentAdmitRetireSameUser(t *testing.T) {
	hub := NewHub()
	reg := NewRegistry(hub, nil, time.Second)

	const n = 50
	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = newTestClient("a", "alice", 4)
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			reg.Admit(c)
		}(c)
	}
	wg.Wait()
	assert.Equal(t, n, reg.ConnectionCount("a"))

	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			reg.Retire(c)
		}(c)
	}
	wg.Wait()
	assert.False(t, reg.IsOnline("a"))
	assert.Equal(t, 0, hub.ClientCount())
}

func TestRegistry_PersistsPresence(t *testing.T) {
	store := newMemStore()
	user := store.addUser("alice")
	reg := NewRegistry(NewHub(), store, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reg.Run(ctx)

	c := newTestClient(user.ID, user.Username, 4)
	reg.Admit(c)
	assert.Eventually(t, func() bool { return store.isOnline(user.ID) }, time.Second, 10*time.Millisecond)

	reg.Retire(c)
	assert.Eventually(t, func() bool { return !store.isOnline(user.ID) }, time.Second, 10*time.Millisecond)
}
