package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chylnx/hub/go/internal/identity/db"
	"github.com/chylnx/hub/go/internal/models"
	"github.com/chylnx/hub/go/internal/sqlutil"
)

// ErrNotFound is returned when no identity matches the lookup
var ErrNotFound = errors.New("identity not found")

// Querier defines what the repository needs from the database layer
type Querier interface {
	CreateIdentity(ctx context.Context, arg db.CreateIdentityParams) (db.Identity, error)
	GetIdentity(ctx context.Context, id uuid.UUID) (db.Identity, error)
	GetIdentityByUsername(ctx context.Context, username string) (db.Identity, error)
	SetIdentityAdmin(ctx context.Context, arg db.SetIdentityAdminParams) (db.Identity, error)
}

// Repository implements identity data access operations
type Repository struct {
	queries Querier
}

// NewRepository creates a new identity repository
func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
	}
}

// CreateIdentity creates a new identity
func (r *Repository) CreateIdentity(ctx context.Context, username string) (*models.Identity, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	ident, err := r.queries.CreateIdentity(ctx, db.CreateIdentityParams{
		Username: username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", sqlutil.Fault(err))
	}

	return r.dbIdentityToModel(ident), nil
}

// GetIdentity retrieves an identity by ID
func (r *Repository) GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	ident, err := r.queries.GetIdentity(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", sqlutil.Fault(err))
	}

	return r.dbIdentityToModel(ident), nil
}

// GetIdentityByUsername retrieves an identity by its unique username
func (r *Repository) GetIdentityByUsername(ctx context.Context, username string) (*models.Identity, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	ident, err := r.queries.GetIdentityByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity by username: %w", sqlutil.Fault(err))
	}

	return r.dbIdentityToModel(ident), nil
}

// SetAdmin flips the privileged flag for a username
func (r *Repository) SetAdmin(ctx context.Context, username string, admin bool) (*models.Identity, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	ident, err := r.queries.SetIdentityAdmin(ctx, db.SetIdentityAdminParams{
		Username: username,
		IsAdmin:  admin,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to set admin flag: %w", sqlutil.Fault(err))
	}

	return r.dbIdentityToModel(ident), nil
}

// dbIdentityToModel converts a database identity to domain model
func (r *Repository) dbIdentityToModel(dbIdent db.Identity) *models.Identity {
	return &models.Identity{
		ID:        dbIdent.ID,
		Username:  dbIdent.Username,
		IsAdmin:   dbIdent.IsAdmin,
		CreatedAt: dbIdent.CreatedAt,
	}
}
