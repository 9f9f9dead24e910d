package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ourapp-backend/internal/models"
	"ourapp-backend/internal/store"
)

const (
	keyUser    = "user"
	keyPair    = "pair"
	keyPartner = "partner"
	keyJoined  = "joined"
)

// SessionRepository keeps per-session identity and pairing state
type SessionRepository struct {
	store store.Store
	mu    sync.Mutex
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(s store.Store) *SessionRepository {
	return &SessionRepository{store: s}
}

func sessionKey(sessionID, name string) string {
	return fmt.Sprintf("sessions/%s/%s", sessionID, name)
}

func (r *SessionRepository) get(ctx context.Context, sessionID, name string, v any) (bool, error) {
	err := store.GetJSON(ctx, r.store, sessionKey(sessionID, name), v)
	if err != nil {
		if store.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read session %s: %w", name, err)
	}
	return true, nil
}

func (r *SessionRepository) set(ctx context.Context, sessionID, name string, v any) error {
	if err := store.SetJSON(ctx, r.store, sessionKey(sessionID, name), v); err != nil {
		return fmt.Errorf("failed to write session %s: %w", name, err)
	}
	return nil
}

// Load assembles the full session. A session that never signed up comes
// back with only its ID set.
func (r *SessionRepository) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	session := &models.Session{ID: sessionID}

	var user models.User
	if ok, err := r.get(ctx, sessionID, keyUser, &user); err != nil {
		return nil, err
	} else if ok {
		session.User = &user
	}

	var pair models.PairRecord
	if ok, err := r.get(ctx, sessionID, keyPair, &pair); err != nil {
		return nil, err
	} else if ok {
		session.Pair = &pair
	}

	var partner models.User
	if ok, err := r.get(ctx, sessionID, keyPartner, &partner); err != nil {
		return nil, err
	} else if ok {
		session.Partner = &partner
	}

	var joined time.Time
	if ok, err := r.get(ctx, sessionID, keyJoined, &joined); err != nil {
		return nil, err
	} else if ok {
		session.JoinedAt = &joined
	}

	return session, nil
}

// SaveUser stores the session's identity
func (r *SessionRepository) SaveUser(ctx context.Context, sessionID string, user models.User) error {
	return r.set(ctx, sessionID, keyUser, user)
}

// SavePair stores the session's own pairing code
func (r *SessionRepository) SavePair(ctx context.Context, sessionID string, pair models.PairRecord) error {
	return r.set(ctx, sessionID, keyPair, pair)
}

// SetPartner records the partner and join time. It reports false without
// writing when the session already has a partner.
func (r *SessionRepository) SetPartner(ctx context.Context, sessionID string, partner models.User, joinedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing models.User
	ok, err := r.get(ctx, sessionID, keyPartner, &existing)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}

	if err := r.set(ctx, sessionID, keyPartner, partner); err != nil {
		return false, err
	}
	if err := r.set(ctx, sessionID, keyJoined, joinedAt); err != nil {
		return false, err
	}
	return true, nil
}

// ClearPairing drops the code, partner and join time but keeps the user
func (r *SessionRepository) ClearPairing(ctx context.Context, sessionID string) error {
	return r.remove(ctx, sessionID, keyPair, keyPartner, keyJoined)
}

// Clear drops everything stored for the session
func (r *SessionRepository) Clear(ctx context.Context, sessionID string) error {
	return r.remove(ctx, sessionID, keyUser, keyPair, keyPartner, keyJoined, keyAnswers, keyStreak)
}

func (r *SessionRepository) remove(ctx context.Context, sessionID string, names ...string) error {
	var errs []error
	for _, name := range names {
		if err := r.store.Delete(ctx, sessionKey(sessionID, name)); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete session %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
