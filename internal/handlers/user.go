package handlers

import (
	"encoding/json"
	"net/http"

	"ourapp-backend/internal/middleware"
	"ourapp-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles sign-up, session and logout requests
type UserHandler struct {
	userService *services.UserService
	pairService *services.PairService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, pairService *services.PairService) *UserHandler {
	return &UserHandler{
		userService: userService,
		pairService: pairService,
	}
}

// CreateUser handles POST /api/v1/users. A valid bearer token keeps the
// caller's session and replaces its identity.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sessionID := ""
	if token, ok := middleware.BearerToken(r); ok {
		if sid, err := h.userService.ValidateJWT(token); err == nil {
			sessionID = sid
		}
	}

	result, err := h.userService.Signup(ctx, sessionID, req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign up")
		respondServiceError(w, err)
		return
	}

	log.Info().
		Str("session_id", result.SessionID).
		Str("user_id", result.User.ID).
		Msg("User signed up")

	respondJSON(w, http.StatusOK, result)
}

// GetSession handles GET /api/v1/session
func (h *UserHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	session, err := h.pairService.RefreshPairing(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to load session")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

// UpdatePushTokenRequest represents the request body for registering a device
type UpdatePushTokenRequest struct {
	PushToken *string `json:"push_token"`
}

// UpdatePushToken handles PUT /api/v1/users/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	var req UpdatePushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdatePushToken(ctx, sessionID, req.PushToken); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to update push token")
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Logout handles POST /api/v1/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	if err := h.userService.Logout(ctx, sessionID); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to log out")
		respondServiceError(w, err)
		return
	}

	log.Info().Str("session_id", sessionID).Msg("Logged out")

	w.WriteHeader(http.StatusNoContent)
}
