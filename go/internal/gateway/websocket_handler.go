package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/chylnx/hub/go/internal/gate"
	"github.com/chylnx/hub/go/internal/identity"
	"github.com/chylnx/hub/go/internal/models"
)

// IdentityService resolves usernames to identities on join
type IdentityService interface {
	GetOrCreate(ctx context.Context, username string) (*models.Identity, error)
}

// JoinGate runs the payment/admin access check for a joining identity
type JoinGate interface {
	Check(ctx context.Context, identity *models.Identity) (gate.State, error)
}

// WebSocketHandler handles WebSocket upgrade requests for chat connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	identities        IdentityService
	gate              JoinGate
	router            *Router
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, identities IdentityService, joinGate JoinGate, router *Router) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		identities:        identities,
		gate:              joinGate,
		router:            router,
	}
}

// HandleChatConnection runs the join flow: resolve the identity, check the
// payment gate, then either bind the connection into the room or send the
// denial event and close. Denials happen after the upgrade so the client
// learns why it was refused.
func (h *WebSocketHandler) HandleChatConnection(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ident, err := h.identities.GetOrCreate(ctx, username)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidUsername) {
			http.Error(w, "invalid username", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Str("username", username).Msg("failed to resolve identity for join")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	state, err := h.gate.Check(ctx, ident)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("gate check failed, denying join")
	}

	conn, err := h.connectionManager.UpgradeConnection(w, r)
	if err != nil {
		log.Error().
			Err(err).
			Str("username", username).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	switch state {
	case gate.StateGranted:
		h.router.HandleJoin(context.Background(), conn, *ident)

	case gate.StateLocked:
		h.deny(conn, EventTypeChatStatus, ChatStatusPayload{Locked: true})
		log.Info().Str("username", username).Msg("join denied, chat locked")

	default:
		// payment_pending, and unverified when the store is degraded
		h.deny(conn, EventTypePaymentRequired, PaymentRequiredPayload{Username: ident.Username})
		log.Info().Str("username", username).Str("state", state.String()).Msg("join denied, payment required")
	}
}

// deny writes one event to a just-upgraded connection and closes it
func (h *WebSocketHandler) deny(conn *Connection, eventType EventType, payload interface{}) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build denial event")
		h.connectionManager.Disconnect(conn)
		return
	}

	if data, err := json.Marshal(event); err == nil {
		conn.trySend(data)
	}
	h.connectionManager.Disconnect(conn)
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/chat", h.HandleChatConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
