package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"student-chat/internal/models"
	"student-chat/internal/services"
	"student-chat/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type MessageService interface {
	SendFile(ctx context.Context, sender models.Identity, roomID string, file models.FileDescriptor) (*models.Message, error)
	Delete(ctx context.Context, requester models.Identity, messageID string) error
}

// RoomHandlers serves the HTTP side of the message pipeline: file messages
// handed over by the upload collaborator, and deletions.
type RoomHandlers struct {
	messages MessageService
}

func NewRoomHandlers(messages MessageService) *RoomHandlers {
	return &RoomHandlers{messages: messages}
}

func (h *RoomHandlers) SendFile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, models.ErrorAuth, "unauthorized")
		return
	}

	var file models.FileDescriptor
	if err := json.NewDecoder(r.Body).Decode(&file); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorValidation, "invalid request")
		return
	}

	msg, err := h.messages.SendFile(r.Context(), user.Identity(), chi.URLParam(r, "roomId"), file)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *RoomHandlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, models.ErrorAuth, "unauthorized")
		return
	}

	if err := h.messages.Delete(r.Context(), user.Identity(), chi.URLParam(r, "messageId")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, err error) {
	ev := services.ErrorEvent(err)
	payload := ev.Data.(models.ErrorPayload)

	status := http.StatusInternalServerError
	switch payload.Type {
	case models.ErrorValidation:
		status = http.StatusBadRequest
	case models.ErrorForbidden:
		status = http.StatusForbidden
	case models.ErrorNotFound:
		status = http.StatusNotFound
	default:
		logger.Error("Request failed: %v", err)
	}

	writeJSON(w, status, payload)
}
