package websocket

import (
	"context"

	"student-chat/internal/models"
	"student-chat/internal/services"
	"student-chat/pkg/logger"
)

type RoomAuthorizer interface {
	Authorize(ctx context.Context, identity models.Identity, roomID string) (*models.RoomMembership, error)
}

type MessageSender interface {
	SendText(ctx context.Context, sender models.Identity, roomID, content string) (*models.Message, error)
}

// Dispatcher turns decoded client events into guard, hub and pipeline calls.
// Every rejected event produces exactly one error event to its sender.
type Dispatcher struct {
	hub      *Hub
	guard    RoomAuthorizer
	messages MessageSender
}

func NewDispatcher(hub *Hub, guard RoomAuthorizer, messages MessageSender) *Dispatcher {
	return &Dispatcher{hub: hub, guard: guard, messages: messages}
}

func (d *Dispatcher) Handle(ctx context.Context, c *Client, frame []byte) {
	ev, err := models.DecodeClientEvent(frame)
	if err != nil {
		d.reject(c, err)
		return
	}

	switch e := ev.(type) {
	case models.JoinRoom:
		d.joinRoom(ctx, c, e)
	case models.LeaveRoom:
		d.leaveRoom(ctx, c, e)
	case models.SendMessage:
		d.sendMessage(ctx, c, e)
	}
}

func (d *Dispatcher) joinRoom(ctx context.Context, c *Client, e models.JoinRoom) {
	identity := c.info.Identity

	room, err := d.guard.Authorize(ctx, identity, e.RoomID)
	if err != nil {
		d.reject(c, err)
		return
	}

	added, err := d.hub.Subscribe(c, room.ID)
	if err != nil {
		// connection closed while the lookup was in flight
		return
	}

	c.Send(models.OutboundEvent{
		Event: models.EventRoomJoined,
		Data:  models.RoomJoined{RoomID: room.ID, RoomName: room.Name},
	})
	if added {
		d.hub.BroadcastRoom(room.ID, memberEvent(models.EventUserJoinedRoom, room.ID, identity), c)
		logger.Debug("User %s joined room %s", identity.Username, room.ID)
	}
}

// leaveRoom always drops the subscription, even when the guard rejects the
// caller, so a removed participant can still stop receiving the room.
func (d *Dispatcher) leaveRoom(ctx context.Context, c *Client, e models.LeaveRoom) {
	identity := c.info.Identity

	_, authErr := d.guard.Authorize(ctx, identity, e.RoomID)
	removed := d.hub.Unsubscribe(c, e.RoomID)
	if authErr != nil {
		d.reject(c, authErr)
		return
	}

	if removed {
		d.hub.BroadcastRoom(e.RoomID, memberEvent(models.EventUserLeftRoom, e.RoomID, identity), c)
		logger.Debug("User %s left room %s", identity.Username, e.RoomID)
	}
}

func (d *Dispatcher) sendMessage(ctx context.Context, c *Client, e models.SendMessage) {
	if _, err := d.messages.SendText(ctx, c.info.Identity, e.RoomID, e.Content); err != nil {
		d.reject(c, err)
	}
}

func (d *Dispatcher) reject(c *Client, err error) {
	ev := services.ErrorEvent(err)
	if p, ok := ev.Data.(models.ErrorPayload); ok && p.Type == models.ErrorServer {
		logger.Error("Event from connection %s failed: %v", c.info.ConnectionID, err)
	}
	c.Send(ev)
}

func memberEvent(name models.EventName, roomID string, identity models.Identity) models.OutboundEvent {
	return models.OutboundEvent{
		Event: name,
		Data:  models.RoomMemberEvent{RoomID: roomID, UserID: identity.ID, Username: identity.Username},
	}
}
