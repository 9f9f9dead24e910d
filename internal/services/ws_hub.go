package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ourapp-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string       `json:"type"`
	Code    string       `json:"code,omitempty"`
	Partner *models.User `json:"partner,omitempty"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
}

const writeWait = 10 * time.Second

// wsClient is one connection. gorilla connections support one concurrent
// writer, so writes go through mu.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WSHub manages WebSocket connections, one per session
type WSHub struct {
	mu        sync.RWMutex
	clients   map[string]*wsClient
	writeWait time.Duration
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients:   make(map[string]*wsClient),
		writeWait: writeWait,
	}
}

// Register registers a new WebSocket connection for a session
func (h *WSHub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existing, exists := h.clients[sessionID]; exists && existing.conn != conn {
		existing.conn.Close()
	}

	h.clients[sessionID] = &wsClient{conn: conn}

	log.Info().Str("session_id", sessionID).Msg("WebSocket connection registered")
}

// Unregister removes the WebSocket connection of a session if it is still conn
func (h *WSHub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[sessionID]; exists && current.conn == conn {
		current.conn.Close()
		delete(h.clients, sessionID)
		log.Info().Str("session_id", sessionID).Msg("WebSocket connection unregistered")
	}
}

// SendToSession sends a message to a specific session. A peer that stops
// reading fails the write after writeWait and is dropped.
func (h *WSHub) SendToSession(sessionID string, message WSMessage) error {
	h.mu.RLock()
	client, exists := h.clients[sessionID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("session %s is not connected", sessionID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	client.mu.Lock()
	err = client.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	if err == nil {
		err = client.conn.WriteMessage(websocket.TextMessage, data)
	}
	client.mu.Unlock()
	if err != nil {
		h.Unregister(sessionID, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a session has an open connection
func (h *WSHub) IsOnline(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.clients[sessionID]
	return exists
}

// NotifyPairStatus tells a freshly connected session where it stands
func (h *WSHub) NotifyPairStatus(session *models.Session) error {
	data := map[string]interface{}{
		"paired": session.IsPaired(),
	}
	if session.Pair != nil {
		data["code"] = session.Pair.Code
	}

	message := WSMessage{
		Type:    "pair_status",
		Partner: session.Partner,
		Data:    data,
	}
	return h.SendToSession(session.ID, message)
}

// NotifyPartnerJoined tells the issuer that a partner joined their code
func (h *WSHub) NotifyPartnerJoined(sessionID string, partner models.User) error {
	message := WSMessage{
		Type:    "partner_joined",
		Partner: &partner,
		Message: fmt.Sprintf("%s joined! You're now paired! 💜", partner.Name),
	}
	return h.SendToSession(sessionID, message)
}

// SendError sends an error message to a session
func (h *WSHub) SendError(sessionID, message string) error {
	return h.SendToSession(sessionID, WSMessage{Type: "error", Message: message})
}
