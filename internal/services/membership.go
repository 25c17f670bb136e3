package services

import (
	"context"
	"errors"
	"fmt"

	"student-chat/internal/database"
	"student-chat/internal/models"

	"github.com/google/uuid"
)

// MembershipGuard re-reads a room's participant set on every call; a
// previous successful join is never treated as standing authorization.
type MembershipGuard struct {
	rooms database.RoomRepository
}

func NewMembershipGuard(rooms database.RoomRepository) *MembershipGuard {
	return &MembershipGuard{rooms: rooms}
}

// Authorize succeeds iff identity is listed in the room's participants at
// call time.
func (g *MembershipGuard) Authorize(ctx context.Context, identity models.Identity, roomID string) (*models.RoomMembership, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return nil, ErrRoomNotFound
	}

	room, err := g.rooms.GetRoomParticipants(ctx, roomID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to load room participants: %w", err)
	}

	if !room.HasParticipant(identity.ID) {
		return nil, ErrNotParticipant
	}

	return room, nil
}
