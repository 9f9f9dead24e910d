package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ourapp-backend/internal/models"
	"ourapp-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	jwtExpDays   = 365
	defaultEmoji = "😊"
)

// UserService handles sign-up, tokens and logout
type UserService struct {
	sessions  *repository.SessionRepository
	journal   *repository.JournalRepository
	codes     *repository.CodeRepository
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(
	sessions *repository.SessionRepository,
	journal *repository.JournalRepository,
	codes *repository.CodeRepository,
	jwtSecret string,
) *UserService {
	return &UserService{
		sessions:  sessions,
		journal:   journal,
		codes:     codes,
		jwtSecret: jwtSecret,
	}
}

// SignupRequest represents the sign-up form
type SignupRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Emoji string `json:"emoji"`
}

// SignupResult is returned after a successful sign-up
type SignupResult struct {
	SessionID string      `json:"session_id"`
	Token     string      `json:"token"`
	User      models.User `json:"user"`
}

// Signup creates a fresh identity for sessionID, or for a new session when
// sessionID is empty. Any previous pairing, answers and streak of the
// session are dropped; the registry entry of an old code is left alone.
func (s *UserService) Signup(ctx context.Context, sessionID string, req SignupRequest) (*SignupResult, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("please fill in all fields: %w", models.ErrValidation)
	}

	emoji := req.Emoji
	if emoji == "" {
		emoji = defaultEmoji
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	} else if err := s.sessions.Clear(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to reset session: %w", err)
	}

	user := models.User{
		ID:    uuid.New().String(),
		Name:  name,
		Email: email,
		Emoji: emoji,
	}
	if err := s.sessions.SaveUser(ctx, sessionID, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	token, err := s.GenerateJWT(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &SignupResult{SessionID: sessionID, Token: token, User: user}, nil
}

// GetSession returns the stored state of a session
func (s *UserService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.sessions.Load(ctx, sessionID)
}

// UpdatePushToken stores the APNs device token of the session's user. An
// outstanding code is rewritten so the joiner can notify the device.
func (s *UserService) UpdatePushToken(ctx context.Context, sessionID string, pushToken *string) error {
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.User == nil {
		return models.ErrNotSignedUp
	}

	user := *session.User
	user.PushToken = pushToken
	if err := s.sessions.SaveUser(ctx, sessionID, user); err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}

	if session.Pair != nil && !session.IsPaired() {
		if err := s.codes.UpdateIssuer(ctx, session.Pair.Code, user); err != nil {
			return fmt.Errorf("failed to update code: %w", err)
		}
	}
	return nil
}

// Logout removes the session's own registry entry and clears the session.
// A failed registry removal is logged and not retried.
func (s *UserService) Logout(ctx context.Context, sessionID string) error {
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return err
	}

	if session.Pair != nil {
		if err := s.codes.Remove(ctx, session.Pair.Code); err != nil {
			log.Warn().
				Err(err).
				Str("session_id", sessionID).
				Str("code", session.Pair.Code).
				Msg("Failed to remove code on logout")
		}
	}

	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// GenerateJWT generates a JWT token for a session
func (s *UserService) GenerateJWT(sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the session ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	sessionID, ok := claims["session_id"].(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session_id not found in token")
	}

	return sessionID, nil
}
