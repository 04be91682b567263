package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chylnx/hub/go/internal/gate"
	"github.com/chylnx/hub/go/internal/models"
)

// ResetMessage is pushed with the forced-reset event so clients can explain
// why their grant vanished.
const ResetMessage = "Chat session reset! Payment required to continue chatting."

// ErrNoWinners is returned when an announcement names nobody
var ErrNoWinners = errors.New("no winners selected")

// PaymentExpirer invalidates all successful payment grants
type PaymentExpirer interface {
	ExpireGrants(ctx context.Context) (int64, error)
}

// SessionSettings is the persisted lock and epoch state
type SessionSettings interface {
	ChatLocked(ctx context.Context) (bool, error)
	SetChatLocked(ctx context.Context, locked bool) error
	BumpSessionEpoch(ctx context.Context) (int64, error)
}

// PresenceClearer drops every live connection binding
type PresenceClearer interface {
	Clear() int
}

// Broadcaster pushes session state changes to every connected client
type Broadcaster interface {
	SessionReset(epoch int64, message string)
	ChatStatus(locked bool)
	Announcement(text string, winners []string)
	PresenceCount(count int)
}

// Controller runs the admin-triggered session operations. Every entry point
// passes the same gate capability check before touching state.
type Controller struct {
	gate        *gate.Gate
	payments    PaymentExpirer
	settings    SessionSettings
	presence    PresenceClearer
	broadcaster Broadcaster
}

// NewController creates a session Controller
func NewController(g *gate.Gate, payments PaymentExpirer, settings SessionSettings, presence PresenceClearer) *Controller {
	return &Controller{
		gate:     g,
		payments: payments,
		settings: settings,
		presence: presence,
	}
}

// SetBroadcaster wires the fan-out sink. Called once during startup.
func (c *Controller) SetBroadcaster(b Broadcaster) {
	c.broadcaster = b
}

// StartNewSession expires every successful payment, bumps the persisted
// session epoch, clears ephemeral presence state and broadcasts a forced
// reset. The next join check for any non-admin returns payment_pending.
func (c *Controller) StartNewSession(ctx context.Context, actor *models.Identity) (int64, error) {
	if err := c.gate.RequireAdmin(actor); err != nil {
		return 0, err
	}

	expired, err := c.payments.ExpireGrants(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to expire grants: %w", err)
	}

	epoch, err := c.settings.BumpSessionEpoch(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to advance session epoch: %w", err)
	}

	cleared := c.presence.Clear()
	if c.broadcaster != nil {
		c.broadcaster.SessionReset(epoch, ResetMessage)
		// Bindings are gone; push the emptied count so clients do not keep
		// the stale pre-reset number.
		c.broadcaster.PresenceCount(0)
	}

	log.Info().
		Str("admin", actor.Username).
		Int64("epoch", epoch).
		Int64("grants_expired", expired).
		Int("connections_cleared", cleared).
		Msg("session reset")
	return epoch, nil
}

// ToggleChatLock flips the persisted global lock and broadcasts the new
// state to all connections.
func (c *Controller) ToggleChatLock(ctx context.Context, actor *models.Identity) (bool, error) {
	if err := c.gate.RequireAdmin(actor); err != nil {
		return false, err
	}

	locked, err := c.settings.ChatLocked(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read lock state: %w", err)
	}

	locked = !locked
	if err := c.settings.SetChatLocked(ctx, locked); err != nil {
		return false, fmt.Errorf("failed to persist lock state: %w", err)
	}

	if c.broadcaster != nil {
		c.broadcaster.ChatStatus(locked)
	}

	log.Info().Str("admin", actor.Username).Bool("locked", locked).Msg("chat lock toggled")
	return locked, nil
}

// AnnounceWinners broadcasts the announcement, then forces the lock and
// expires session grants as one combined operation.
func (c *Controller) AnnounceWinners(ctx context.Context, actor *models.Identity, winners []string) error {
	if err := c.gate.RequireAdmin(actor); err != nil {
		return err
	}
	if len(winners) == 0 {
		return ErrNoWinners
	}

	text := fmt.Sprintf("WINNER(S) ANNOUNCEMENT: %s! Congratulations!", strings.Join(winners, ", "))
	if c.broadcaster != nil {
		c.broadcaster.Announcement(text, winners)
	}

	if err := c.settings.SetChatLocked(ctx, true); err != nil {
		return fmt.Errorf("failed to lock chat: %w", err)
	}
	if c.broadcaster != nil {
		c.broadcaster.ChatStatus(true)
	}

	if _, err := c.payments.ExpireGrants(ctx); err != nil {
		return fmt.Errorf("failed to expire grants: %w", err)
	}

	log.Info().Str("admin", actor.Username).Strs("winners", winners).Msg("winners announced")
	return nil
}
