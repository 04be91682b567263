package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chylnx/hub/go/internal/messages/db"
	"github.com/chylnx/hub/go/internal/models"
	"github.com/chylnx/hub/go/internal/sqlutil"
)

// ErrNotFound is returned when no message or status row matches the lookup
var ErrNotFound = errors.New("message not found")

// Querier defines what the repository needs from the database layer
type Querier interface {
	CreateMessage(ctx context.Context, arg db.CreateMessageParams) (db.Message, error)
	GetMessage(ctx context.Context, id uuid.UUID) (db.GetMessageRow, error)
	GetMessageStatus(ctx context.Context, arg db.GetMessageStatusParams) (db.MessageStatus, error)
	ListMessagesWithStatus(ctx context.Context, arg db.ListMessagesWithStatusParams) ([]db.ListMessagesWithStatusRow, error)
	UpsertMessageStatus(ctx context.Context, arg db.UpsertMessageStatusParams) (int64, error)
}

// Repository implements message data access operations
type Repository struct {
	queries Querier
}

// NewRepository creates a new messages repository
func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
	}
}

// CreateMessage persists a new immutable message
func (r *Repository) CreateMessage(ctx context.Context, identityID uuid.UUID, body string) (*models.Message, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	msg, err := r.queries.CreateMessage(ctx, db.CreateMessageParams{
		IdentityID: identityID,
		Body:       body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", sqlutil.Fault(err))
	}

	return &models.Message{
		ID:         msg.ID,
		IdentityID: msg.IdentityID,
		Body:       msg.Body,
		CreatedAt:  msg.CreatedAt,
	}, nil
}

// GetMessage retrieves a message joined with its author's username
func (r *Repository) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	row, err := r.queries.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", sqlutil.Fault(err))
	}

	return &models.Message{
		ID:         row.ID,
		IdentityID: row.IdentityID,
		Author:     row.Username,
		Body:       row.Body,
		CreatedAt:  row.CreatedAt,
	}, nil
}

// UpsertStatus records a delivery state for one recipient. The update is
// monotonic: a row never moves backwards (read stays read). The returned
// bool reports whether the state actually advanced.
func (r *Repository) UpsertStatus(ctx context.Context, messageID, identityID uuid.UUID, state models.MessageState) (bool, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	affected, err := r.queries.UpsertMessageStatus(ctx, db.UpsertMessageStatusParams{
		MessageID:  messageID,
		IdentityID: identityID,
		State:      string(state),
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert message status: %w", sqlutil.Fault(err))
	}

	return affected > 0, nil
}

// GetStatus retrieves the status row for one (message, recipient) pair
func (r *Repository) GetStatus(ctx context.Context, messageID, identityID uuid.UUID) (*models.MessageStatus, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	row, err := r.queries.GetMessageStatus(ctx, db.GetMessageStatusParams{
		MessageID:  messageID,
		IdentityID: identityID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message status: %w", sqlutil.Fault(err))
	}

	return &models.MessageStatus{
		MessageID:  row.MessageID,
		IdentityID: row.IdentityID,
		State:      models.MessageState(row.State),
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

// ListWithStatus fetches messages since the window cutoff, newest first,
// each joined with the given identity's own status row.
func (r *Repository) ListWithStatus(ctx context.Context, identityID uuid.UUID, since time.Time, limit int32) ([]HistoryMessage, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	rows, err := r.queries.ListMessagesWithStatus(ctx, db.ListMessagesWithStatusParams{
		IdentityID: identityID,
		CreatedAt:  since,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", sqlutil.Fault(err))
	}

	history := make([]HistoryMessage, 0, len(rows))
	for _, row := range rows {
		history = append(history, HistoryMessage{
			ID:        row.ID,
			Author:    row.Username,
			Body:      row.Body,
			CreatedAt: row.CreatedAt,
			State:     models.MessageState(row.State),
		})
	}
	return history, nil
}
