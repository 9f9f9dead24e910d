package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ourapp-backend/internal/models"
	"ourapp-backend/internal/store"

	"github.com/rs/zerolog/log"
)

// CodeRepository is the registry mapping pairing codes to registry entries
type CodeRepository struct {
	store store.Store
	root  string
	now   func() time.Time
}

// NewCodeRepository creates a registry rooted at root (e.g. "ourapp")
func NewCodeRepository(s store.Store, root string) *CodeRepository {
	return &CodeRepository{store: s, root: root, now: time.Now}
}

func (r *CodeRepository) key(code string) string {
	return fmt.Sprintf("%s/codes/%s", r.root, code)
}

// Register writes a new entry for code, replacing whatever was there
func (r *CodeRepository) Register(ctx context.Context, code string, user models.User) (*models.RegistryEntry, error) {
	entry := &models.RegistryEntry{
		User:      user,
		PairCode:  code,
		CreatedAt: r.now(),
	}
	if err := store.SetJSON(ctx, r.store, r.key(code), entry); err != nil {
		return nil, fmt.Errorf("failed to register code: %w", err)
	}
	return entry, nil
}

// Lookup returns the entry for code, matched exactly
func (r *CodeRepository) Lookup(ctx context.Context, code string) (*models.RegistryEntry, error) {
	var entry models.RegistryEntry
	if err := store.GetJSON(ctx, r.store, r.key(code), &entry); err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("code %s: %w", code, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lookup code: %w", err)
	}
	return &entry, nil
}

// Remove deletes the entry for code; absent codes are ignored
func (r *CodeRepository) Remove(ctx context.Context, code string) error {
	if err := r.store.Delete(ctx, r.key(code)); err != nil {
		return fmt.Errorf("failed to remove code: %w", err)
	}
	return nil
}

// Join attaches partner to the entry for code. When the entry does not
// exist the write still happens and leaves a partner-only entry.
func (r *CodeRepository) Join(ctx context.Context, code string, partner models.User) error {
	entry, err := r.Lookup(ctx, code)
	if err != nil {
		if !store.IsNotFound(err) {
			return err
		}
		entry = &models.RegistryEntry{}
	}

	entry.Partner = &partner
	if err := store.SetJSON(ctx, r.store, r.key(code), entry); err != nil {
		return fmt.Errorf("failed to join code: %w", err)
	}
	return nil
}

// UpdateIssuer replaces the issuer stored under code and keeps any partner
// already attached. A missing entry is registered afresh.
func (r *CodeRepository) UpdateIssuer(ctx context.Context, code string, user models.User) error {
	entry, err := r.Lookup(ctx, code)
	if err != nil {
		if !store.IsNotFound(err) {
			return err
		}
		_, err := r.Register(ctx, code, user)
		return err
	}

	entry.User = user
	if entry.PairCode == "" {
		entry.PairCode = code
	}
	if err := store.SetJSON(ctx, r.store, r.key(code), entry); err != nil {
		return fmt.Errorf("failed to update code: %w", err)
	}
	return nil
}

// WatchPartner calls fn every time the entry for code is seen with a
// partner attached.
func (r *CodeRepository) WatchPartner(ctx context.Context, code string, fn func(partner models.User)) (store.Unsubscribe, error) {
	return r.store.Subscribe(ctx, r.key(code), func(value []byte, exists bool) {
		if !exists {
			return
		}
		var entry models.RegistryEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			log.Warn().Err(err).Str("code", code).Msg("Ignoring malformed registry entry")
			return
		}
		if entry.Partner != nil {
			fn(*entry.Partner)
		}
	})
}
