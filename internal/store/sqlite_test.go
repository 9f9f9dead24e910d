package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"), 5*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	_, err := s.Get(ctx, "ourapp/codes/ABC234")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "ourapp/codes/ABC234", []byte(`{"id":"1"}`)))
	require.NoError(t, s.Set(ctx, "ourapp/codes/ABC234", []byte(`{"id":"2"}`)))

	value, err := s.Get(ctx, "ourapp/codes/ABC234")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"2"}`, string(value))

	require.NoError(t, s.Delete(ctx, "ourapp/codes/ABC234"))
	require.NoError(t, s.Delete(ctx, "ourapp/codes/ABC234"))

	_, err = s.Get(ctx, "ourapp/codes/ABC234")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := NewSQLite(ctx, path, time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(ctx, path, time.Second)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(value))
}

func TestSQLite_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	rec := &changeRecorder{}
	unsub, err := s.Subscribe(ctx, "k", rec.record)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	require.Eventually(t, func() bool {
		changes := rec.snapshot()
		return len(changes) == 1 && changes[0] == "v1"
	}, time.Second, 5*time.Millisecond)
}
