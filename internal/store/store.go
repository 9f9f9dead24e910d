package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ourapp-backend/internal/models"
)

// ErrNotFound is returned by Get when the key is absent
var ErrNotFound = models.ErrNotFound

// ChangeFunc receives the current value of a watched key. exists is false
// once the key has been deleted.
type ChangeFunc func(value []byte, exists bool)

// Unsubscribe stops a subscription. Calling it more than once is safe.
type Unsubscribe func()

// Store is a best-effort key-value persistence provider
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Subscribe calls fn with the current value if the key exists, then
	// again every time it changes, until the returned Unsubscribe is called.
	Subscribe(ctx context.Context, key string, fn ChangeFunc) (Unsubscribe, error)
}

// GetJSON reads key and decodes it into v
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and writes it under key
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// IsNotFound reports whether err means the key is absent
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
