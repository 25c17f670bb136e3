package database

import (
	"context"
	"errors"

	"student-chat/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("already exists")
)

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type PresenceRepository interface {
	SetUserOnline(ctx context.Context, userID string, online bool) error
}

type RoomRepository interface {
	GetRoomParticipants(ctx context.Context, roomID string) (*models.RoomMembership, error)
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.NewMessage) (*models.Message, error)
	GetMessageByID(ctx context.Context, id string) (*models.Message, error)
	DeleteMessage(ctx context.Context, id string) error
}

type Database interface {
	UserRepository
	PresenceRepository
	RoomRepository
	MessageRepository
	Close() error
}
