package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ourapp-backend/internal/models"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends v as a JSON body
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// respondServiceError maps a service error onto a status code. Unknown
// errors are reported as a generic 500.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrIncompleteCode):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrCodeNotFound):
		respondError(w, "Code not found. Double-check and try again.", http.StatusNotFound)
	case errors.Is(err, models.ErrOwnCode):
		respondError(w, "That's your own code! Share it with your partner.", http.StatusConflict)
	case errors.Is(err, models.ErrNotSignedUp):
		respondError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, models.ErrNotPaired), errors.Is(err, models.ErrAlreadyPaired):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	default:
		respondError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandleHealthz handles GET /healthz
func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
