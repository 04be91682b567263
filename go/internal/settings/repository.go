package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chylnx/hub/go/internal/settings/db"
	"github.com/chylnx/hub/go/internal/sqlutil"
)

// ErrNotFound is returned when a settings key has never been written
var ErrNotFound = errors.New("setting not found")

// Querier defines what the repository needs from the database layer
type Querier interface {
	GetSetting(ctx context.Context, key string) (db.Setting, error)
	UpsertSetting(ctx context.Context, arg db.UpsertSettingParams) (db.Setting, error)
}

// Repository implements settings data access operations
type Repository struct {
	queries Querier
}

// NewRepository creates a new settings repository
func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
	}
}

// Get retrieves a setting value by key
func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	setting, err := r.queries.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, sqlutil.Fault(err))
	}
	return setting.Value, nil
}

// Set upserts a setting value
func (r *Repository) Set(ctx context.Context, key, value string) error {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	if _, err := r.queries.UpsertSetting(ctx, db.UpsertSettingParams{
		Key:   key,
		Value: value,
	}); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, sqlutil.Fault(err))
	}
	return nil
}
