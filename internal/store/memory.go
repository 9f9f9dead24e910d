package store

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local store. Subscriptions are served by polling.
type Memory struct {
	mu           sync.RWMutex
	data         map[string][]byte
	pollInterval time.Duration
}

// NewMemory creates an empty in-memory store
func NewMemory(pollInterval time.Duration) *Memory {
	return &Memory{
		data:         make(map[string][]byte),
		pollInterval: pollInterval,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, key string, fn ChangeFunc) (Unsubscribe, error) {
	return poll(ctx, m.Get, key, m.pollInterval, fn), nil
}

// Len returns the number of stored keys
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
