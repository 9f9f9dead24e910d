package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"ourapp-backend/internal/models"
	"ourapp-backend/internal/services"
	"ourapp-backend/internal/store"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connections. While an unpaired issuer
// is connected the handler waits for a partner to join their code.
type WebSocketHandler struct {
	hub         *services.WSHub
	userService *services.UserService
	pairService *services.PairService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	pairService *services.PairService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		userService: userService,
		pairService: pairService,
	}
}

// partnerWatch holds the subscription of one connection. Watches are
// started one at a time so the last one started follows the newest code.
type partnerWatch struct {
	start  sync.Mutex
	mu     sync.Mutex
	unsub  store.Unsubscribe
	closed bool
}

// replace swaps in a new subscription. After close every new one is
// dropped straight away.
func (p *partnerWatch) replace(unsub store.Unsubscribe) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsub != nil {
		p.unsub()
	}
	p.unsub = unsub
	if p.closed && p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
}

func (p *partnerWatch) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.replace(nil)
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get token from query parameter
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	sessionID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(sessionID, conn)
	defer h.hub.Unregister(sessionID, conn)

	ctx := r.Context()
	watch := &partnerWatch{}
	defer watch.close()

	// codes issued over HTTP or this socket move the watch to the new code
	codes, stopCodes := h.pairService.SubscribeCodes(sessionID)
	defer stopCodes()
	go func() {
		for range codes {
			h.watchPartner(ctx, sessionID, watch)
		}
	}()

	session, err := h.pairService.RefreshPairing(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to load session")
		return
	}
	if err := h.hub.NotifyPairStatus(session); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to send pair_status message")
	}

	if session.User != nil && !session.IsPaired() && session.Pair != nil {
		h.watchPartner(ctx, sessionID, watch)
	}

	log.Info().Str("session_id", sessionID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("session_id", sessionID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to parse WebSocket message")
			h.hub.SendError(sessionID, "Invalid message format")
			continue
		}

		if err := h.handleMessage(ctx, sessionID, msg); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Str("type", msg.Type).Msg("Failed to handle message")
			h.hub.SendError(sessionID, err.Error())
		}
	}
}

func (h *WebSocketHandler) watchPartner(ctx context.Context, sessionID string, watch *partnerWatch) {
	watch.start.Lock()
	defer watch.start.Unlock()

	unsub, err := h.pairService.WatchPartner(ctx, sessionID, func(partner models.User) {
		if err := h.hub.NotifyPartnerJoined(sessionID, partner); err != nil {
			log.Error().
				Err(err).
				Str("session_id", sessionID).
				Msg("Failed to notify session about partner")
		}
	})
	if err != nil {
		if !errors.Is(err, models.ErrAlreadyPaired) {
			log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to watch for partner")
		}
		return
	}
	watch.replace(unsub)
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, sessionID string, msg services.WSMessage) error {
	switch msg.Type {
	case "ping":
		return h.hub.SendToSession(sessionID, services.WSMessage{Type: "pong"})
	case "issue_code":
		return h.handleIssueCode(ctx, sessionID, false)
	case "regenerate_code":
		return h.handleIssueCode(ctx, sessionID, true)
	default:
		return h.hub.SendError(sessionID, "Unknown message type")
	}
}

// handleIssueCode issues (or regenerates) the session's code. The code
// event it triggers moves the partner watch.
func (h *WebSocketHandler) handleIssueCode(ctx context.Context, sessionID string, regenerate bool) error {
	var (
		pair *models.PairRecord
		err  error
	)
	if regenerate {
		pair, err = h.pairService.RegenerateCode(ctx, sessionID)
	} else {
		pair, err = h.pairService.IssueCode(ctx, sessionID)
	}
	if err != nil {
		return err
	}

	return h.hub.SendToSession(sessionID, services.WSMessage{Type: "code_issued", Code: pair.Code})
}
