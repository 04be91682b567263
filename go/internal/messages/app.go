package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chylnx/hub/go/internal/models"
)

// History window served to joining connections, whichever bound hits first.
const (
	HistoryWindow = 7 * 24 * time.Hour
	HistoryLimit  = 500
)

// ErrEmptyMessage is returned when a submitted body is empty after trimming
var ErrEmptyMessage = errors.New("empty message")

// MessagesRepository defines what the app layer needs from the repository
type MessagesRepository interface {
	CreateMessage(ctx context.Context, identityID uuid.UUID, body string) (*models.Message, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	UpsertStatus(ctx context.Context, messageID, identityID uuid.UUID, state models.MessageState) (bool, error)
	GetStatus(ctx context.Context, messageID, identityID uuid.UUID) (*models.MessageStatus, error)
	ListWithStatus(ctx context.Context, identityID uuid.UUID, since time.Time, limit int32) ([]HistoryMessage, error)
}

// App handles message persistence and delivery-state tracking
type App struct {
	repo MessagesRepository
}

// NewApp creates a new messages App
func NewApp(repo MessagesRepository) *App {
	return &App{
		repo: repo,
	}
}

// Submit persists a message from the given sender. The body must be
// non-empty after trimming. The returned message carries the author name
// for fan-out.
func (a *App) Submit(ctx context.Context, sender *models.Identity, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}

	msg, err := a.repo.CreateMessage(ctx, sender.ID, body)
	if err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}
	msg.Author = sender.Username

	return msg, nil
}

// RecordBroadcastStatuses writes the initial status rows for a message:
// sent for the author, delivered for every other identity present at
// broadcast time. Per-recipient failures are logged and isolated so one bad
// row never blocks the rest.
func (a *App) RecordBroadcastStatuses(ctx context.Context, messageID, authorID uuid.UUID, present []uuid.UUID) {
	seen := make(map[uuid.UUID]bool, len(present)+1)

	record := func(identityID uuid.UUID, state models.MessageState) {
		if seen[identityID] {
			return
		}
		seen[identityID] = true
		if _, err := a.repo.UpsertStatus(ctx, messageID, identityID, state); err != nil {
			log.Error().
				Err(err).
				Str("message_id", messageID.String()).
				Str("identity_id", identityID.String()).
				Str("state", string(state)).
				Msg("failed to record message status")
		}
	}

	record(authorID, models.MessageStateSent)
	for _, identityID := range present {
		record(identityID, models.MessageStateDelivered)
	}
}

// MarkDelivered upserts a delivered status for the recipient. Monotonic:
// a read row never downgrades. Returns the resulting status row and whether
// the state advanced.
func (a *App) MarkDelivered(ctx context.Context, messageID, identityID uuid.UUID) (*models.MessageStatus, bool, error) {
	return a.mark(ctx, messageID, identityID, models.MessageStateDelivered)
}

// MarkRead upserts a read status for the recipient
func (a *App) MarkRead(ctx context.Context, messageID, identityID uuid.UUID) (*models.MessageStatus, bool, error) {
	return a.mark(ctx, messageID, identityID, models.MessageStateRead)
}

func (a *App) mark(ctx context.Context, messageID, identityID uuid.UUID, state models.MessageState) (*models.MessageStatus, bool, error) {
	advanced, err := a.repo.UpsertStatus(ctx, messageID, identityID, state)
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark %s: %w", state, err)
	}

	status, err := a.repo.GetStatus(ctx, messageID, identityID)
	if err != nil {
		return nil, advanced, fmt.Errorf("failed to load message status: %w", err)
	}
	return status, advanced, nil
}

// GetMessage retrieves a message with its author name
func (a *App) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	return a.repo.GetMessage(ctx, id)
}

// History returns the trailing window of messages for an identity in
// ascending order. Rows are fetched newest-first so the limit trims the
// oldest messages, then re-ordered before delivery. Messages with no status
// row for this identity default to delivered.
func (a *App) History(ctx context.Context, identityID uuid.UUID, now time.Time) ([]HistoryMessage, error) {
	history, err := a.repo.ListWithStatus(ctx, identityID, now.Add(-HistoryWindow), HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	// newest-first from the store; reverse to ascending
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}
