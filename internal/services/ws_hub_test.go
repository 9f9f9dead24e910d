package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connect registers the server side of a fresh connection under sessionID
// and returns the client side
func connect(t *testing.T, hub *WSHub, sessionID string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(sessionID, conn)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.IsOnline(sessionID) }, time.Second, 5*time.Millisecond)
	return conn
}

func TestWSHub_SendToSession(t *testing.T) {
	hub := NewWSHub()
	conn := connect(t, hub, "s1")

	require.NoError(t, hub.SendError("s1", "boom"))

	var msg WSMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "boom", msg.Message)

	assert.Error(t, hub.SendError("nobody", "boom"))
}

func TestWSHub_StalledPeerDoesNotBlockOthers(t *testing.T) {
	hub := NewWSHub()
	hub.writeWait = 50 * time.Millisecond

	// the stalled client never reads
	connect(t, hub, "stalled")
	healthy := connect(t, hub, "healthy")

	payload := strings.Repeat("x", 1<<20)
	sendErr := make(chan error, 1)
	go func() {
		for i := 0; i < 512; i++ {
			if err := hub.SendToSession("stalled", WSMessage{Type: "bulk", Message: payload}); err != nil {
				sendErr <- err
				return
			}
		}
		sendErr <- nil
	}()

	require.NoError(t, hub.SendToSession("healthy", WSMessage{Type: "pong"}))
	var msg WSMessage
	require.NoError(t, healthy.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, healthy.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)

	select {
	case err := <-sendErr:
		require.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("write to a stalled peer never timed out")
	}
	assert.False(t, hub.IsOnline("stalled"))
	assert.True(t, hub.IsOnline("healthy"))
}
