package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"student-chat/internal/auth"
	"student-chat/internal/models"
	"student-chat/pkg/logger"
)

type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.LoginResponse, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	Logout(ctx context.Context, token string) error
}

type AuthHandlers struct {
	authService AuthService
}

func NewAuthHandlers(authService AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorValidation, "invalid request")
		return
	}

	response, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		var de *models.DecodeError
		switch {
		case errors.As(err, &de):
			writeJSON(w, http.StatusBadRequest, models.ErrorPayload{Type: models.ErrorValidation, Message: de.Error(), Field: de.Field})
		case errors.Is(err, auth.ErrUserExists):
			writeError(w, http.StatusConflict, models.ErrorConflict, err.Error())
		default:
			logger.Error("Registration error: %v", err)
			writeError(w, http.StatusInternalServerError, models.ErrorServer, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorValidation, "invalid request")
		return
	}

	response, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		logger.Warn("Login error: %v", err)
		writeError(w, http.StatusUnauthorized, models.ErrorAuth, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// Logout revokes the bearer token the request was authenticated with.
// Connections already open with it stay open.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		logger.Error("Logout error: %v", err)
		writeError(w, http.StatusInternalServerError, models.ErrorServer, "logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
