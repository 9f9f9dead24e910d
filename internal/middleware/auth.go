package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const sessionIDKey contextKey = "session_id"

// TokenValidator resolves a bearer token to a session ID
type TokenValidator interface {
	ValidateJWT(token string) (string, error)
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			sessionID, err := validator.ValidateJWT(token)
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
		})
	}
}

// WithSessionID stores the session ID in ctx
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// GetSessionID extracts session ID from context
func GetSessionID(ctx context.Context) string {
	sessionID, ok := ctx.Value(sessionIDKey).(string)
	if !ok {
		return ""
	}
	return sessionID
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
