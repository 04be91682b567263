package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Persisted keys. Lock state and the session epoch live in the store, not
// process memory, so restarts and multiple instances agree.
const (
	keyChatLocked       = "chat_locked"
	keySessionEpoch     = "session_epoch"
	keyChallengeMessage = "weekly_challenge_message"
)

// DefaultChallengeMessage is broadcast when the weekly challenge completes
// and no admin has set a custom message.
const DefaultChallengeMessage = "The weekly challenge has ended!"

// SettingsRepository defines what the app layer needs from the repository
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// App exposes typed accessors over the persisted settings table
type App struct {
	repo SettingsRepository
}

// NewApp creates a new settings App
func NewApp(repo SettingsRepository) *App {
	return &App{
		repo: repo,
	}
}

// ChatLocked reads the persisted global lock. A key that was never written
// means unlocked.
func (a *App) ChatLocked(ctx context.Context) (bool, error) {
	value, err := a.repo.Get(ctx, keyChatLocked)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return value == "true", nil
}

// SetChatLocked persists the global lock state
func (a *App) SetChatLocked(ctx context.Context, locked bool) error {
	if err := a.repo.Set(ctx, keyChatLocked, strconv.FormatBool(locked)); err != nil {
		return err
	}
	log.Info().Bool("locked", locked).Msg("chat lock state persisted")
	return nil
}

// SessionEpoch reads the current session epoch, 0 if never reset
func (a *App) SessionEpoch(ctx context.Context) (int64, error) {
	value, err := a.repo.Get(ctx, keySessionEpoch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	epoch, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session epoch %q: %w", value, err)
	}
	return epoch, nil
}

// BumpSessionEpoch advances the epoch and returns the new value
func (a *App) BumpSessionEpoch(ctx context.Context) (int64, error) {
	epoch, err := a.SessionEpoch(ctx)
	if err != nil {
		return 0, err
	}

	epoch++
	if err := a.repo.Set(ctx, keySessionEpoch, strconv.FormatInt(epoch, 10)); err != nil {
		return 0, err
	}
	return epoch, nil
}

// ChallengeMessage returns the admin-settable weekly challenge completion
// text, falling back to the default
func (a *App) ChallengeMessage(ctx context.Context) string {
	value, err := a.repo.Get(ctx, keyChallengeMessage)
	if err != nil || value == "" {
		return DefaultChallengeMessage
	}
	return value
}

// SetChallengeMessage persists the weekly challenge completion text
func (a *App) SetChallengeMessage(ctx context.Context, message string) error {
	return a.repo.Set(ctx, keyChallengeMessage, message)
}
