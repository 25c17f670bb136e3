package services

import (
	"context"
	"errors"
	"fmt"

	"student-chat/internal/config"
	"student-chat/internal/database"
	"student-chat/internal/models"
	"student-chat/pkg/logger"

	"github.com/google/uuid"
)

// RoomBroadcaster fans persisted events out to a room's subscribers.
type RoomBroadcaster interface {
	PublishMessage(roomID string, msg models.MessageReceived)
	RetractMessage(roomID, messageID string)
}

type MessageService struct {
	guard       *MembershipGuard
	messages    database.MessageRepository
	broadcaster RoomBroadcaster
	limits      config.MessageConfig
}

func NewMessageService(guard *MembershipGuard, messages database.MessageRepository, broadcaster RoomBroadcaster, limits config.MessageConfig) *MessageService {
	return &MessageService{
		guard:       guard,
		messages:    messages,
		broadcaster: broadcaster,
		limits:      limits,
	}
}

// SendText validates, re-authorizes, persists and then fans out a text
// message. The sender's own connection receives the fan-out like everyone
// else; there is no separate acknowledgment.
func (s *MessageService) SendText(ctx context.Context, sender models.Identity, roomID, content string) (*models.Message, error) {
	content, err := ValidateContent(content, s.limits.MaxContentLength)
	if err != nil {
		return nil, err
	}

	return s.send(ctx, sender, &models.NewMessage{
		RoomID:   roomID,
		SenderID: sender.ID,
		Content:  content,
	})
}

// SendFile records a message for a file the upload collaborator already
// stored. The file name becomes the message content.
func (s *MessageService) SendFile(ctx context.Context, sender models.Identity, roomID string, file models.FileDescriptor) (*models.Message, error) {
	if err := ValidateFile(file, s.limits); err != nil {
		return nil, err
	}

	url, mimeType := file.URL, file.MimeType
	return s.send(ctx, sender, &models.NewMessage{
		RoomID:   roomID,
		SenderID: sender.ID,
		Content:  file.Name,
		FileURL:  &url,
		FileType: &mimeType,
	})
}

func (s *MessageService) send(ctx context.Context, sender models.Identity, msg *models.NewMessage) (*models.Message, error) {
	if _, err := s.guard.Authorize(ctx, sender, msg.RoomID); err != nil {
		return nil, err
	}

	// One attempt per send; failures surface to the sender.
	saved, err := s.messages.CreateMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	if saved.Sender.ID == "" {
		saved.Sender = sender
	}

	s.broadcaster.PublishMessage(saved.RoomID, models.NewMessageReceived(saved))
	logger.Debug("Message %s from %s delivered to room %s", saved.ID, sender.ID, saved.RoomID)

	return saved, nil
}

// Delete removes a message on behalf of its original sender and retracts it
// from live subscribers.
func (s *MessageService) Delete(ctx context.Context, requester models.Identity, messageID string) error {
	if _, err := uuid.Parse(messageID); err != nil {
		return ErrMessageNotFound
	}

	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to load message: %w", err)
	}

	if msg.SenderID != requester.ID {
		return ErrNotMessageSender
	}

	if err := s.messages.DeleteMessage(ctx, messageID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to delete message: %w", err)
	}

	s.broadcaster.RetractMessage(msg.RoomID, msg.ID)
	return nil
}
