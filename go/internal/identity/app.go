package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chylnx/hub/go/internal/models"
)

// ErrInvalidUsername is returned for empty or whitespace-only usernames
var ErrInvalidUsername = errors.New("invalid username")

// IdentityRepository defines what the app layer needs from the repository
type IdentityRepository interface {
	CreateIdentity(ctx context.Context, username string) (*models.Identity, error)
	GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error)
	GetIdentityByUsername(ctx context.Context, username string) (*models.Identity, error)
	SetAdmin(ctx context.Context, username string, admin bool) (*models.Identity, error)
}

// App handles identity business logic
type App struct {
	repo IdentityRepository
}

// NewApp creates a new identity App
func NewApp(repo IdentityRepository) *App {
	return &App{
		repo: repo,
	}
}

// GetOrCreate resolves a username to its identity, creating it on first join.
// Usernames are globally unique; the id is immutable once assigned.
func (a *App) GetOrCreate(ctx context.Context, username string) (*models.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	ident, err := a.repo.GetIdentityByUsername(ctx, username)
	if err == nil {
		return ident, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	ident, err = a.repo.CreateIdentity(ctx, username)
	if err != nil {
		// Lost a create race: the unique username row exists now.
		if existing, getErr := a.repo.GetIdentityByUsername(ctx, username); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	log.Info().Str("username", ident.Username).Str("identity_id", ident.ID.String()).Msg("identity created")
	return ident, nil
}

// Get retrieves an identity by ID
func (a *App) Get(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	return a.repo.GetIdentity(ctx, id)
}

// SetAdmin grants or revokes the privileged flag for a username
func (a *App) SetAdmin(ctx context.Context, username string, admin bool) (*models.Identity, error) {
	ident, err := a.repo.SetAdmin(ctx, username, admin)
	if err != nil {
		return nil, fmt.Errorf("failed to update admin flag: %w", err)
	}

	log.Info().Str("username", ident.Username).Bool("is_admin", ident.IsAdmin).Msg("admin flag updated")
	return ident, nil
}
