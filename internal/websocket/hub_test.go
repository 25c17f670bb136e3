package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"student-chat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_SubscribeAndBroadcastRoom(t *testing.T) {
	hub := NewHub()
	a := newTestClient("a", "alice", 8)
	b := newTestClient("b", "bob", 8)
	c := newTestClient("c", "carol", 8)
	for _, cl := range []*Client{a, b, c} {
		hub.register(cl)
	}

	added, err := hub.Subscribe(a, "room-1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = hub.Subscribe(a, "room-1")
	require.NoError(t, err)
	assert.False(t, added, "second subscribe is a no-op")

	_, err = hub.Subscribe(b, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 2, hub.SubscriberCount("room-1"))

	hub.BroadcastRoom("room-1", models.OutboundEvent{Event: models.EventUserJoinedRoom}, b)

	assert.Equal(t, []models.EventName{models.EventUserJoinedRoom}, eventNames(drain(t, a)))
	assert.Empty(t, drain(t, b))
	assert.Empty(t, drain(t, c))
}

func TestHub_PublishMessageReachesSubscribersOnly(t *testing.T) {
	hub := NewHub()
	a := newTestClient("a", "alice", 8)
	b := newTestClient("b", "bob", 8)
	outsider := newTestClient("c", "carol", 8)
	for _, cl := range []*Client{a, b, outsider} {
		hub.register(cl)
	}
	_, _ = hub.Subscribe(a, "room-1")
	_, _ = hub.Subscribe(b, "room-1")

	hub.PublishMessage("room-1", models.MessageReceived{ID: "m1", RoomID: "room-1", Content: "hi"})

	for _, cl := range []*Client{a, b} {
		got := drain(t, cl)
		require.Len(t, got, 1)
		assert.Equal(t, models.EventMessageReceived, got[0].Event)
		var payload models.MessageReceived
		require.NoError(t, json.Unmarshal(got[0].Data, &payload))
		assert.Equal(t, "hi", payload.Content)
	}
	assert.Empty(t, drain(t, outsider))
}

func TestHub_UnsubscribeAndUnregister(t *testing.T) {
	hub := NewHub()
	a := newTestClient("a", "alice", 8)
	hub.register(a)
	_, _ = hub.Subscribe(a, "room-1")
	_, _ = hub.Subscribe(a, "room-2")

	assert.True(t, hub.Unsubscribe(a, "room-1"))
	assert.False(t, hub.Unsubscribe(a, "room-1"))
	assert.False(t, hub.IsSubscribed(a, "room-1"))
	assert.True(t, hub.IsSubscribed(a, "room-2"))

	hub.unregister(a)
	assert.Equal(t, 0, hub.SubscriberCount("room-2"))
	assert.Equal(t, 0, hub.ClientCount())

	_, err := hub.Subscribe(a, "room-3")
	assert.ErrorIs(t, err, ErrClientGone)
	assert.Equal(t, 0, hub.SubscriberCount("room-3"))
}

func TestHub_RetractedMessageIsNotDelivered(t *testing.T) {
	hub := NewHub()
	a := newTestClient("a", "alice", 8)
	hub.register(a)
	_, _ = hub.Subscribe(a, "room-1")

	hub.RetractMessage("room-1", "m1")
	hub.PublishMessage("room-1", models.MessageReceived{ID: "m1", RoomID: "room-1"})

	got := drain(t, a)
	assert.Equal(t, []models.EventName{models.EventMessageDeleted}, eventNames(got))
}

func TestHub_TombstonesExpire(t *testing.T) {
	hub := NewHub()
	now := time.Now()
	hub.now = func() time.Time { return now }

	hub.RetractMessage("room-1", "m1")
	hub.sweepTombstones()
	assert.Len(t, hub.tombstones, 1)

	now = now.Add(defaultTombstoneTTL + time.Second)
	hub.sweepTombstones()
	assert.Empty(t, hub.tombstones)
}

func TestHub_SlowConsumerIsClosed(t *testing.T) {
	hub := NewHub()
	slow := newTestClient("s", "slow", 1)
	fast := newTestClient("f", "fast", 8)
	hub.register(slow)
	hub.register(fast)

	ev := models.OutboundEvent{Event: models.EventUserOnline}
	hub.BroadcastAll(ev, nil)
	hub.BroadcastAll(ev, nil)

	assert.Len(t, drain(t, fast), 2)

	// first frame was queued, the overflow closed the buffer
	assert.Len(t, drain(t, slow), 1)
	_, ok := <-slow.send
	assert.False(t, ok)
	assert.False(t, slow.enqueue([]byte("{}")))
}

func TestHub_RunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub()
	a := newTestClient("a", "alice", 8)
	hub.register(a)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, ok := <-a.send
	assert.False(t, ok)
}
