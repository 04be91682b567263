package timers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chylnx/hub/go/internal/models"
	"github.com/chylnx/hub/go/internal/sqlutil"
	"github.com/chylnx/hub/go/internal/timers/db"
)

// ErrNotFound is returned when no running timer exists for a kind
var ErrNotFound = errors.New("timer not found")

// Querier defines what the repository needs from the database layer
type Querier interface {
	CreateTimer(ctx context.Context, arg db.CreateTimerParams) (db.Timer, error)
	DeactivateTimers(ctx context.Context, kind string) (int64, error)
	GetRunningTimer(ctx context.Context, kind string) (db.Timer, error)
	ClaimExpiredTimer(ctx context.Context, arg db.ClaimExpiredTimerParams) (db.Timer, error)
}

// Repository implements timer data access operations
type Repository struct {
	queries  Querier
	database *sql.DB
}

// NewRepository creates a new timers repository
func NewRepository(querier Querier, database *sql.DB) *Repository {
	return &Repository{
		queries:  querier,
		database: database,
	}
}

// Supersede deactivates any running row of kind and inserts the new one in
// a single unit of work, preserving the one-running-row-per-kind invariant
// even under concurrent sets.
func (r *Repository) Supersede(ctx context.Context, kind models.TimerKind, endTime time.Time) (*models.Timer, error) {
	var created db.Timer
	err := sqlutil.Run(ctx, r.database, db.New(r.database).WithTx, func(q *db.Queries) error {
		if _, err := q.DeactivateTimers(ctx, string(kind)); err != nil {
			return err
		}
		timer, err := q.CreateTimer(ctx, db.CreateTimerParams{
			Kind:    string(kind),
			EndTime: endTime,
		})
		if err != nil {
			return err
		}
		created = timer
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to supersede %s timer: %w", kind, sqlutil.Fault(err))
	}

	return r.dbTimerToModel(created), nil
}

// GetRunning retrieves the running timer for a kind
func (r *Repository) GetRunning(ctx context.Context, kind models.TimerKind) (*models.Timer, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	timer, err := r.queries.GetRunningTimer(ctx, string(kind))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get running timer: %w", sqlutil.Fault(err))
	}

	return r.dbTimerToModel(timer), nil
}

// ClaimExpired atomically marks an expired running timer as stopped. The
// conditional update means exactly one caller wins across processes, so the
// completion broadcast fires once. Expiry is judged against the caller's
// clock, the same one Remaining computes with, so the claim cannot lag the
// reported zero on a skewed database clock.
func (r *Repository) ClaimExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	if _, err := r.queries.ClaimExpiredTimer(ctx, db.ClaimExpiredTimerParams{ID: id, EndTime: now}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim expired timer: %w", sqlutil.Fault(err))
	}
	return true, nil
}

// Deactivate stops any running timer of kind without completing it
func (r *Repository) Deactivate(ctx context.Context, kind models.TimerKind) (int64, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	stopped, err := r.queries.DeactivateTimers(ctx, string(kind))
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate %s timer: %w", kind, sqlutil.Fault(err))
	}
	return stopped, nil
}

// dbTimerToModel converts a database timer to domain model
func (r *Repository) dbTimerToModel(dbTimer db.Timer) *models.Timer {
	return &models.Timer{
		ID:        dbTimer.ID,
		Kind:      models.TimerKind(dbTimer.Kind),
		EndTime:   dbTimer.EndTime,
		IsRunning: dbTimer.IsRunning,
		CreatedAt: dbTimer.CreatedAt,
	}
}
