package models

import "time"

type RoomType string

const (
	RoomTypePrivate RoomType = "private"
	RoomTypeGroup   RoomType = "group"
)

// RoomMembership is the participant set of a room as Storage reports it at
// call time.
type RoomMembership struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Type           RoomType `json:"type"`
	ParticipantIDs []string `json:"participantIds"`
}

func (r *RoomMembership) HasParticipant(userID string) bool {
	for _, id := range r.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	FileURL   *string   `json:"fileUrl,omitempty"`
	FileType  *string   `json:"fileType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    Identity  `json:"sender"`
}

// NewMessage is what the pipeline hands to Storage for persistence.
type NewMessage struct {
	RoomID   string
	SenderID string
	Content  string
	FileURL  *string
	FileType *string
}

// FileDescriptor describes an upload already stored by the upload collaborator.
type FileDescriptor struct {
	URL      string `json:"url" validate:"required"`
	MimeType string `json:"mimeType" validate:"required"`
	Size     int64  `json:"size"`
	Name     string `json:"name" validate:"required"`
}
