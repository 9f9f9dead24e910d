package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis is a shared remote store. Every write is published on a per-key
// channel so subscribers are pushed changes instead of polling.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to addr and verifies the connection
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{client: client}, nil
}

func changeChannel(key string) string {
	return "changes:" + key
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	if err := r.client.Publish(ctx, changeChannel(key), value).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	// an empty payload means the key is gone
	if err := r.client.Publish(ctx, changeChannel(key), "").Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, key string, fn ChangeFunc) (Unsubscribe, error) {
	pubsub := r.client.Subscribe(ctx, changeChannel(key))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	// subscribed before reading so no write between the two is lost
	current, err := r.Get(ctx, key)
	if err != nil && !IsNotFound(err) {
		pubsub.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		if err == nil {
			fn(current, true)
		}
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == "" {
					fn(nil, false)
					continue
				}
				fn([]byte(msg.Payload), true)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				log.Debug().Err(err).Str("key", key).Msg("Failed to close redis subscription")
			}
		})
	}, nil
}

// Close closes the client
func (r *Redis) Close() error {
	return r.client.Close()
}
