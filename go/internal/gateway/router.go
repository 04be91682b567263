package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chylnx/hub/go/internal/gate"
	"github.com/chylnx/hub/go/internal/messages"
	"github.com/chylnx/hub/go/internal/models"
	"github.com/chylnx/hub/go/internal/presence"
	"github.com/chylnx/hub/go/internal/session"
	"github.com/chylnx/hub/go/internal/timers"
)

// ClientCommand is the envelope for every client-to-server frame
type ClientCommand struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client command types
const (
	CommandSend                = "send"
	CommandMarkDelivered       = "mark_delivered"
	CommandMarkRead            = "mark_read"
	CommandSetTimer            = "set_timer"
	CommandGetTimer            = "get_timer"
	CommandStopTimer           = "stop_timer"
	CommandToggleLock          = "toggle_lock"
	CommandAnnounceWinners     = "announce_winners"
	CommandStartNewSession     = "start_new_session"
	CommandSetChallengeMessage = "set_challenge_message"
)

type sendCommand struct {
	Text string `json:"text"`
}

type markCommand struct {
	MessageID string `json:"message_id"`
}

type timerCommand struct {
	Kind    string `json:"kind"`
	Seconds int    `json:"seconds"`
}

type winnersCommand struct {
	Winners []string `json:"winners"`
}

type challengeCommand struct {
	Message string `json:"message"`
}

// MessageService defines what the router needs from the messages app
type MessageService interface {
	Submit(ctx context.Context, sender *models.Identity, body string) (*models.Message, error)
	RecordBroadcastStatuses(ctx context.Context, messageID, authorID uuid.UUID, present []uuid.UUID)
	MarkDelivered(ctx context.Context, messageID, identityID uuid.UUID) (*models.MessageStatus, bool, error)
	MarkRead(ctx context.Context, messageID, identityID uuid.UUID) (*models.MessageStatus, bool, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	History(ctx context.Context, identityID uuid.UUID, now time.Time) ([]messages.HistoryMessage, error)
}

// TimerService defines what the router needs from the timers app
type TimerService interface {
	Set(ctx context.Context, kind models.TimerKind, d time.Duration) (*models.Timer, error)
	Remaining(ctx context.Context, kind models.TimerKind) (int, bool, error)
	Stop(ctx context.Context, kind models.TimerKind) error
	Snapshot(ctx context.Context) map[models.TimerKind]timers.TimerState
}

// SessionService defines what the router needs from the session controller
type SessionService interface {
	StartNewSession(ctx context.Context, actor *models.Identity) (int64, error)
	ToggleChatLock(ctx context.Context, actor *models.Identity) (bool, error)
	AnnounceWinners(ctx context.Context, actor *models.Identity, winners []string) error
}

// ChallengeStore defines what the router needs from the settings app
type ChallengeStore interface {
	ChatLocked(ctx context.Context) (bool, error)
	SetChallengeMessage(ctx context.Context, message string) error
}

// EventSink delivers events to connections. Satisfied by ConnectionManager.
type EventSink interface {
	Broadcast(event *ChatEvent)
	SendTo(connID string, event *ChatEvent)
}

// Router dispatches client commands to the domain apps. Commands from
// connections with no presence binding are dropped; privileged commands
// answer denials with an explicit Error event.
type Router struct {
	registry *presence.Registry
	gate     *gate.Gate
	messages MessageService
	timers   TimerService
	session  SessionService
	settings ChallengeStore
	events   EventSink
}

// NewRouter creates a command Router
func NewRouter(registry *presence.Registry, g *gate.Gate, msgs MessageService, tms TimerService, sess SessionService, settings ChallengeStore, events EventSink) *Router {
	return &Router{
		registry: registry,
		gate:     g,
		messages: msgs,
		timers:   tms,
		session:  sess,
		settings: settings,
		events:   events,
	}
}

// HandleJoin binds a granted connection to its identity and synchronizes it:
// history window, lock state and timer snapshot to the connection, the new
// presence count to everyone.
func (r *Router) HandleJoin(ctx context.Context, conn *Connection, ident models.Identity) {
	r.registry.Register(conn.ID, ident)

	history, err := r.messages.History(ctx, ident.ID, time.Now())
	if err != nil {
		// Degraded store: the join still proceeds, just without history.
		log.Error().Err(err).Str("username", ident.Username).Msg("failed to load history for join")
		history = nil
	}
	r.sendTo(conn.ID, EventTypeChatHistory, ChatHistoryPayload{Messages: history})

	locked, err := r.settings.ChatLocked(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read lock state for join")
	}
	r.sendTo(conn.ID, EventTypeChatStatus, ChatStatusPayload{Locked: locked})

	for kind, state := range r.timers.Snapshot(ctx) {
		r.sendTo(conn.ID, EventTypeTimerRemaining, TimerRemainingPayload{
			Kind:    kind,
			Seconds: state.Seconds,
			Running: state.Running,
		})
	}

	r.broadcast(EventTypePresenceCount, PresenceCountPayload{Count: r.registry.Count()})

	log.Info().
		Str("connection_id", conn.ID).
		Str("username", ident.Username).
		Int("present", r.registry.Count()).
		Msg("identity joined chat")
}

// HandleDisconnect drops the presence binding and broadcasts the new count.
// Idempotent; a connection that never joined changes nothing.
func (r *Router) HandleDisconnect(conn *Connection) {
	ident, ok := r.registry.Unregister(conn.ID)
	if !ok {
		return
	}

	r.broadcast(EventTypePresenceCount, PresenceCountPayload{Count: r.registry.Count()})

	log.Info().
		Str("connection_id", conn.ID).
		Str("username", ident.Username).
		Msg("identity left chat")
}

// HandleCommand parses and dispatches one client frame
func (r *Router) HandleCommand(conn *Connection, message []byte) {
	var cmd ClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		log.Debug().Err(err).Str("connection_id", conn.ID).Msg("dropping malformed frame")
		return
	}

	ident, ok := r.registry.Get(conn.ID)
	if !ok {
		// Commands are only valid after a successful join.
		log.Debug().Str("connection_id", conn.ID).Str("command", cmd.Type).Msg("dropping command from unbound connection")
		return
	}

	ctx := context.Background()

	switch cmd.Type {
	case CommandSend:
		r.handleSend(ctx, conn, ident, cmd.Data)
	case CommandMarkDelivered:
		r.handleMark(ctx, ident, cmd.Data, false)
	case CommandMarkRead:
		r.handleMark(ctx, ident, cmd.Data, true)
	case CommandSetTimer:
		r.handleSetTimer(ctx, conn, ident, cmd.Data)
	case CommandGetTimer:
		r.handleGetTimer(ctx, conn, cmd.Data)
	case CommandStopTimer:
		r.handleStopTimer(ctx, conn, ident, cmd.Data)
	case CommandToggleLock:
		r.handleToggleLock(ctx, conn, ident)
	case CommandAnnounceWinners:
		r.handleAnnounceWinners(ctx, conn, ident, cmd.Data)
	case CommandStartNewSession:
		r.handleStartNewSession(ctx, conn, ident)
	case CommandSetChallengeMessage:
		r.handleSetChallengeMessage(ctx, conn, ident, cmd.Data)
	default:
		log.Warn().Str("command", cmd.Type).Str("connection_id", conn.ID).Msg("unknown client command")
	}
}

// handleSend persists and fans out one message. Live delivery is prioritized
// over durability: a persistence failure is logged and the message still
// reaches every present connection, it just will not survive a restart.
func (r *Router) handleSend(ctx context.Context, conn *Connection, ident models.Identity, data json.RawMessage) {
	var cmd sendCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		log.Debug().Err(err).Str("connection_id", conn.ID).Msg("dropping malformed send")
		return
	}

	locked, err := r.settings.ChatLocked(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to read lock state for send")
	}
	if locked && !ident.IsAdmin {
		// Locked chat drops non-admin submissions and re-asserts the state.
		r.sendTo(conn.ID, EventTypeChatStatus, ChatStatusPayload{Locked: true})
		return
	}

	msg, err := r.messages.Submit(ctx, &ident, cmd.Text)
	if err != nil {
		if errors.Is(err, messages.ErrEmptyMessage) {
			return
		}

		log.Error().Err(err).Str("username", ident.Username).Msg("message not persisted, fanning out live only")
		r.broadcast(EventTypeMessage, MessagePayload{
			ID:        uuid.New().String(),
			Author:    ident.Username,
			Body:      strings.TrimSpace(cmd.Text),
			Timestamp: time.Now(),
			Status:    string(models.MessageStateSent),
		})
		return
	}

	present := r.registry.Identities()
	presentIDs := make([]uuid.UUID, 0, len(present))
	for _, p := range present {
		presentIDs = append(presentIDs, p.ID)
	}
	r.messages.RecordBroadcastStatuses(ctx, msg.ID, ident.ID, presentIDs)

	r.broadcast(EventTypeMessage, MessagePayload{
		ID:        msg.ID.String(),
		Author:    msg.Author,
		Body:      msg.Body,
		Timestamp: msg.CreatedAt,
		Status:    string(models.MessageStateSent),
	})
}

// handleMark advances a recipient's delivery state and, when the state
// actually moved, notifies the author's connections.
func (r *Router) handleMark(ctx context.Context, ident models.Identity, data json.RawMessage, read bool) {
	var cmd markCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		log.Debug().Err(err).Msg("dropping malformed mark command")
		return
	}

	messageID, err := uuid.Parse(cmd.MessageID)
	if err != nil {
		log.Debug().Str("message_id", cmd.MessageID).Msg("dropping mark for invalid message id")
		return
	}

	var status *models.MessageStatus
	var advanced bool
	if read {
		status, advanced, err = r.messages.MarkRead(ctx, messageID, ident.ID)
	} else {
		status, advanced, err = r.messages.MarkDelivered(ctx, messageID, ident.ID)
	}
	if err != nil {
		log.Error().Err(err).Str("message_id", messageID.String()).Msg("failed to update message status")
		return
	}
	if !advanced {
		return
	}

	msg, err := r.messages.GetMessage(ctx, messageID)
	if err != nil {
		log.Error().Err(err).Str("message_id", messageID.String()).Msg("failed to resolve author for status update")
		return
	}

	payload := StatusUpdatePayload{
		MessageID: messageID.String(),
		Recipient: ident.Username,
		Status:    string(status.State),
		UpdatedAt: status.UpdatedAt,
	}
	for _, connID := range r.registry.ConnectionsFor(msg.IdentityID) {
		r.sendTo(connID, EventTypeStatusUpdate, payload)
	}
}

func (r *Router) handleSetTimer(ctx context.Context, conn *Connection, ident models.Identity, data json.RawMessage) {
	if err := r.gate.RequireAdmin(&ident); err != nil {
		r.sendError(conn.ID, "authorization_error", "admin access required")
		return
	}

	var cmd timerCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		r.sendError(conn.ID, "validation_error", "malformed timer command")
		return
	}

	_, err := r.timers.Set(ctx, models.TimerKind(cmd.Kind), time.Duration(cmd.Seconds)*time.Second)
	if err != nil {
		if errors.Is(err, timers.ErrUnknownKind) || errors.Is(err, timers.ErrInvalidDuration) {
			r.sendError(conn.ID, "validation_error", err.Error())
			return
		}
		log.Error().Err(err).Str("kind", cmd.Kind).Msg("failed to set timer")
		r.sendError(conn.ID, "store_unavailable", "timer could not be set")
	}
}

func (r *Router) handleGetTimer(ctx context.Context, conn *Connection, data json.RawMessage) {
	var cmd timerCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		r.sendError(conn.ID, "validation_error", "malformed timer command")
		return
	}

	seconds, running, err := r.timers.Remaining(ctx, models.TimerKind(cmd.Kind))
	if err != nil {
		if errors.Is(err, timers.ErrUnknownKind) {
			r.sendError(conn.ID, "validation_error", err.Error())
			return
		}
		log.Error().Err(err).Str("kind", cmd.Kind).Msg("failed to read timer")
		return
	}

	r.sendTo(conn.ID, EventTypeTimerRemaining, TimerRemainingPayload{
		Kind:    models.TimerKind(cmd.Kind),
		Seconds: seconds,
		Running: running,
	})
}

func (r *Router) handleStopTimer(ctx context.Context, conn *Connection, ident models.Identity, data json.RawMessage) {
	if err := r.gate.RequireAdmin(&ident); err != nil {
		r.sendError(conn.ID, "authorization_error", "admin access required")
		return
	}

	var cmd timerCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		r.sendError(conn.ID, "validation_error", "malformed timer command")
		return
	}

	if err := r.timers.Stop(ctx, models.TimerKind(cmd.Kind)); err != nil {
		if errors.Is(err, timers.ErrUnknownKind) {
			r.sendError(conn.ID, "validation_error", err.Error())
			return
		}
		log.Error().Err(err).Str("kind", cmd.Kind).Msg("failed to stop timer")
		r.sendError(conn.ID, "store_unavailable", "timer could not be stopped")
	}
}

func (r *Router) handleToggleLock(ctx context.Context, conn *Connection, ident models.Identity) {
	if _, err := r.session.ToggleChatLock(ctx, &ident); err != nil {
		if errors.Is(err, gate.ErrNotAdmin) {
			r.sendError(conn.ID, "authorization_error", "admin access required")
			return
		}
		log.Error().Err(err).Msg("failed to toggle chat lock")
		r.sendError(conn.ID, "store_unavailable", "lock state could not be changed")
	}
}

func (r *Router) handleAnnounceWinners(ctx context.Context, conn *Connection, ident models.Identity, data json.RawMessage) {
	var cmd winnersCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		r.sendError(conn.ID, "validation_error", "malformed winners command")
		return
	}

	if err := r.session.AnnounceWinners(ctx, &ident, cmd.Winners); err != nil {
		switch {
		case errors.Is(err, gate.ErrNotAdmin):
			r.sendError(conn.ID, "authorization_error", "admin access required")
		case errors.Is(err, session.ErrNoWinners):
			r.sendError(conn.ID, "validation_error", err.Error())
		default:
			log.Error().Err(err).Msg("failed to announce winners")
			r.sendError(conn.ID, "store_unavailable", "announcement could not be completed")
		}
	}
}

func (r *Router) handleStartNewSession(ctx context.Context, conn *Connection, ident models.Identity) {
	if _, err := r.session.StartNewSession(ctx, &ident); err != nil {
		if errors.Is(err, gate.ErrNotAdmin) {
			r.sendError(conn.ID, "authorization_error", "admin access required")
			return
		}
		log.Error().Err(err).Msg("failed to start new session")
		r.sendError(conn.ID, "store_unavailable", "session could not be reset")
	}
}

func (r *Router) handleSetChallengeMessage(ctx context.Context, conn *Connection, ident models.Identity, data json.RawMessage) {
	if err := r.gate.RequireAdmin(&ident); err != nil {
		r.sendError(conn.ID, "authorization_error", "admin access required")
		return
	}

	var cmd challengeCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		r.sendError(conn.ID, "validation_error", "malformed challenge command")
		return
	}

	if err := r.settings.SetChallengeMessage(ctx, cmd.Message); err != nil {
		log.Error().Err(err).Msg("failed to set challenge message")
		r.sendError(conn.ID, "store_unavailable", "challenge message could not be saved")
	}
}

func (r *Router) broadcast(eventType EventType, payload interface{}) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	r.events.Broadcast(event)
}

func (r *Router) sendTo(connID string, eventType EventType, payload interface{}) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	r.events.SendTo(connID, event)
}

func (r *Router) sendError(connID, code, message string) {
	r.sendTo(connID, EventTypeError, ErrorPayload{Code: code, Message: message})
}
