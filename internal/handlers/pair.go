package handlers

import (
	"encoding/json"
	"net/http"

	"ourapp-backend/internal/middleware"
	"ourapp-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PairHandler handles pair-related HTTP requests
type PairHandler struct {
	pairService *services.PairService
}

// NewPairHandler creates a new pair handler
func NewPairHandler(pairService *services.PairService) *PairHandler {
	return &PairHandler{
		pairService: pairService,
	}
}

// IssueCode handles POST /api/v1/pairs/code
func (h *PairHandler) IssueCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	pair, err := h.pairService.IssueCode(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to issue code")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, pair)
}

// RegenerateCode handles POST /api/v1/pairs/code/regenerate
func (h *PairHandler) RegenerateCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	pair, err := h.pairService.RegenerateCode(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to regenerate code")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, pair)
}

// JoinPairRequest represents the request body for joining by code
type JoinPairRequest struct {
	Code string `json:"code"`
}

// JoinPair handles POST /api/v1/pairs/join
func (h *PairHandler) JoinPair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	var req JoinPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	partner, err := h.pairService.JoinByCode(ctx, sessionID, req.Code)
	if err != nil {
		log.Warn().
			Err(err).
			Str("session_id", sessionID).
			Str("code", req.Code).
			Msg("Failed to join by code")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"paired":  true,
		"partner": partner,
	})
}
