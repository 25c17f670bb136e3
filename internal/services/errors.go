package services

import (
	"errors"

	"student-chat/internal/models"
)

var (
	ErrRoomNotFound     = errors.New("chat room not found")
	ErrNotParticipant   = errors.New("not a participant of this chat room")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotMessageSender = errors.New("only the sender can delete this message")
)

// ValidationError rejects malformed content or file descriptors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Classify maps an error onto the wire error taxonomy. Anything not
// recognized is a SERVER_ERROR.
func Classify(err error) models.ErrorType {
	var ve *ValidationError
	var de *models.DecodeError
	switch {
	case errors.As(err, &de):
		return de.Type
	case errors.As(err, &ve):
		return models.ErrorValidation
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrMessageNotFound):
		return models.ErrorNotFound
	case errors.Is(err, ErrNotParticipant), errors.Is(err, ErrNotMessageSender):
		return models.ErrorForbidden
	default:
		return models.ErrorServer
	}
}

// ErrorEvent builds the caller-facing error event for err. Server errors get
// a generic message so storage details never reach clients.
func ErrorEvent(err error) models.OutboundEvent {
	errType := Classify(err)

	var field string
	var ve *ValidationError
	var de *models.DecodeError
	if errors.As(err, &ve) {
		field = ve.Field
	} else if errors.As(err, &de) {
		field = de.Field
	}

	msg := err.Error()
	if errType == models.ErrorServer {
		msg = "internal server error"
	}
	return models.ErrorEvent(errType, msg, field)
}
