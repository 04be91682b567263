package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks a store connectivity or timeout fault. Callers treat
// it as degraded operation, never as "zero rows".
var ErrUnavailable = errors.New("store unavailable")

// StoreTimeout bounds every persistence call. A timeout is handled exactly
// like a connectivity fault.
const StoreTimeout = 3 * time.Second

// WithTimeout derives the bounded context used for a single persistence call.
func WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, StoreTimeout)
}

// Fault tags err as ErrUnavailable so callers can tell a degraded store from
// a domain error. sql.ErrNoRows stays a domain-level miss and passes through.
func Fault(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Run executes fn inside a *sql.Tx scoped to one unit of work.
// If fn returns an error the tx rolls back, else it commits.
func Run[T any](
	ctx context.Context,
	db *sql.DB,
	newQueries func(*sql.Tx) *T,
	fn func(q *T) error,
) error {
	ctx, cancel := WithTimeout(ctx)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil) // BEGIN
	if err != nil {
		return err
	}
	q := newQueries(tx) // bind sqlc Queries to this tx
	if err := fn(q); err != nil {
		_ = tx.Rollback() // ROLLBACK
		return err
	}
	return tx.Commit() // COMMIT
}
