package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticValidator map[string]string

func (v staticValidator) ValidateJWT(token string) (string, error) {
	sid, ok := v[token]
	if !ok {
		return "", errors.New("invalid token")
	}
	return sid, nil
}

func TestAuthMiddleware(t *testing.T) {
	validator := staticValidator{"good": "session-1"}

	var seen string
	handler := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSessionID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		status int
		sid    string
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", status: http.StatusOK, sid: "session-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.sid, seen)
		})
	}
}

func TestGetSessionIDWithoutValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, GetSessionID(req.Context()))
}
