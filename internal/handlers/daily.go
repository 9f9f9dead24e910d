package handlers

import (
	"encoding/json"
	"net/http"

	"ourapp-backend/internal/middleware"
	"ourapp-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// DailyHandler handles prompt, answer and dashboard requests
type DailyHandler struct {
	dailyService *services.DailyService
}

// NewDailyHandler creates a new daily handler
func NewDailyHandler(dailyService *services.DailyService) *DailyHandler {
	return &DailyHandler{
		dailyService: dailyService,
	}
}

// GetPrompt handles GET /api/v1/prompt
func (h *DailyHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"question": h.dailyService.TodayPrompt(),
	})
}

// SaveAnswerRequest represents the request body for saving an answer
type SaveAnswerRequest struct {
	Text string `json:"text"`
}

// SaveAnswer handles POST /api/v1/answers
func (h *DailyHandler) SaveAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	var req SaveAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	answer, err := h.dailyService.SaveAnswer(ctx, sessionID, req.Text)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to save answer")
		respondServiceError(w, err)
		return
	}

	streak, err := h.dailyService.CurrentStreak(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to compute streak")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"answer": answer,
		"streak": streak,
	})
}

// GetDashboard handles GET /api/v1/dashboard
func (h *DailyHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	dashboard, err := h.dailyService.Dashboard(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to build dashboard")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dashboard)
}
