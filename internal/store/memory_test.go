package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeRecorder struct {
	mu      sync.Mutex
	changes []string
}

func (r *changeRecorder) record(value []byte, exists bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !exists {
		r.changes = append(r.changes, "<deleted>")
		return
	}
	r.changes = append(r.changes, string(value))
}

func (r *changeRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changes...)
}

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Second)

	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "a", []byte(`"one"`)))
	value, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `"one"`, string(value))

	require.NoError(t, m.Delete(ctx, "a"))
	require.NoError(t, m.Delete(ctx, "a"))
	_, err = m.Get(ctx, "a")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, m.Len())
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Second)

	input := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", input))
	input[0] = 'x'

	value, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(value))
}

func TestMemory_SubscribePollsChanges(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(5 * time.Millisecond)
	require.NoError(t, m.Set(ctx, "k", []byte("v1")))

	rec := &changeRecorder{}
	unsub, err := m.Subscribe(ctx, "k", rec.record)
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Set(ctx, "k", []byte("v2")))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Delete(ctx, "k"))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 3 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"v1", "v2", "<deleted>"}, rec.snapshot())
}

func TestMemory_SubscribeSkipsAbsentKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(5 * time.Millisecond)

	rec := &changeRecorder{}
	unsub, err := m.Subscribe(ctx, "missing", rec.record)
	require.NoError(t, err)
	defer unsub()

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestMemory_UnsubscribeStopsCallbacks(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(5 * time.Millisecond)

	rec := &changeRecorder{}
	unsub, err := m.Subscribe(ctx, "k", rec.record)
	require.NoError(t, err)

	unsub()
	unsub()

	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}
