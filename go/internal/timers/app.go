package timers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/chylnx/hub/go/internal/models"
)

// ErrInvalidDuration is returned for zero or negative durations
var ErrInvalidDuration = errors.New("invalid timer duration")

// ErrUnknownKind is returned for a kind outside the tracked set
var ErrUnknownKind = errors.New("unknown timer kind")

// Broadcaster pushes timer state to every connected client
type Broadcaster interface {
	TimerRemaining(kind models.TimerKind, seconds int, running bool)
	TimerCompleted(kind models.TimerKind, message string)
}

// ChallengeMessages supplies the admin-settable weekly completion text
type ChallengeMessages interface {
	ChallengeMessage(ctx context.Context) string
}

// TimersRepository defines what the app layer needs from the repository
type TimersRepository interface {
	Supersede(ctx context.Context, kind models.TimerKind, endTime time.Time) (*models.Timer, error)
	GetRunning(ctx context.Context, kind models.TimerKind) (*models.Timer, error)
	ClaimExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	Deactivate(ctx context.Context, kind models.TimerKind) (int64, error)
}

// App manages the persisted countdown timers. The persisted end_time is the
// sole authority; in-process clockwork timers are wakeups only, so state
// survives restarts and instances sharing one store.
type App struct {
	repo        TimersRepository
	settings    ChallengeMessages
	clock       clockwork.Clock
	broadcaster Broadcaster

	runCtx    context.Context
	wakeups   map[models.TimerKind]clockwork.Timer
	wakeupsMu sync.Mutex
}

// NewApp creates a new timers App
func NewApp(repo TimersRepository, settings ChallengeMessages, clock clockwork.Clock) *App {
	return &App{
		repo:     repo,
		settings: settings,
		clock:    clock,
		runCtx:   context.Background(),
		wakeups:  make(map[models.TimerKind]clockwork.Timer),
	}
}

// SetBroadcaster wires the fan-out sink. Called once during startup before
// Start.
func (a *App) SetBroadcaster(b Broadcaster) {
	a.broadcaster = b
}

// Start recovers persisted running timers after a restart, scheduling a
// wakeup per kind so completion still fires without any client traffic.
func (a *App) Start(ctx context.Context) {
	a.runCtx = ctx

	for _, kind := range models.TimerKinds {
		timer, err := a.repo.GetRunning(ctx, kind)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Error().Err(err).Str("kind", string(kind)).Msg("failed to recover timer")
			}
			continue
		}

		a.scheduleWakeup(kind, timer.EndTime)
		log.Info().
			Str("kind", string(kind)).
			Time("end_time", timer.EndTime).
			Msg("recovered running timer")
	}
}

// Set supersedes the running row of kind with end_time = now + d and
// broadcasts the new remaining time to all connections.
func (a *App) Set(ctx context.Context, kind models.TimerKind, d time.Duration) (*models.Timer, error) {
	if !validKind(kind) {
		return nil, ErrUnknownKind
	}
	if d <= 0 {
		return nil, ErrInvalidDuration
	}

	now := a.clock.Now()
	timer, err := a.repo.Supersede(ctx, kind, now.Add(d))
	if err != nil {
		return nil, fmt.Errorf("failed to set timer: %w", err)
	}

	a.scheduleWakeup(kind, timer.EndTime)
	if a.broadcaster != nil {
		a.broadcaster.TimerRemaining(kind, timer.Remaining(now), true)
	}

	log.Info().
		Str("kind", string(kind)).
		Dur("duration", d).
		Time("end_time", timer.EndTime).
		Msg("timer set")
	return timer, nil
}

// Remaining recomputes seconds left from the persisted end_time. An expired
// row is claimed with a conditional update; the winner fires the one-time
// completion broadcast and everyone observes zero.
func (a *App) Remaining(ctx context.Context, kind models.TimerKind) (int, bool, error) {
	if !validKind(kind) {
		return 0, false, ErrUnknownKind
	}

	timer, err := a.repo.GetRunning(ctx, kind)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to load timer: %w", err)
	}

	now := a.clock.Now()
	if timer.EndTime.After(now) {
		return timer.Remaining(now), true, nil
	}

	claimed, err := a.repo.ClaimExpired(ctx, timer.ID, now)
	if err != nil {
		return 0, false, fmt.Errorf("failed to complete timer: %w", err)
	}
	if claimed {
		a.cancelWakeup(kind)
		message := a.completionMessage(ctx, kind)
		if a.broadcaster != nil {
			a.broadcaster.TimerCompleted(kind, message)
		}
		log.Info().Str("kind", string(kind)).Msg("timer completed")
	}
	return 0, false, nil
}

// Stop deactivates the running row of kind without completing it and
// broadcasts the stopped state.
func (a *App) Stop(ctx context.Context, kind models.TimerKind) error {
	if !validKind(kind) {
		return ErrUnknownKind
	}

	if _, err := a.repo.Deactivate(ctx, kind); err != nil {
		return fmt.Errorf("failed to stop timer: %w", err)
	}

	a.cancelWakeup(kind)
	if a.broadcaster != nil {
		a.broadcaster.TimerRemaining(kind, 0, false)
	}

	log.Info().Str("kind", string(kind)).Msg("timer stopped")
	return nil
}

// Snapshot returns remaining seconds per kind for one connection, so late
// joiners synchronize without waiting for a tick.
func (a *App) Snapshot(ctx context.Context) map[models.TimerKind]TimerState {
	snapshot := make(map[models.TimerKind]TimerState, len(models.TimerKinds))
	for _, kind := range models.TimerKinds {
		seconds, running, err := a.Remaining(ctx, kind)
		if err != nil {
			log.Error().Err(err).Str("kind", string(kind)).Msg("failed to snapshot timer")
			continue
		}
		snapshot[kind] = TimerState{Seconds: seconds, Running: running}
	}
	return snapshot
}

// TimerState is one kind's remaining time for a connection sync
type TimerState struct {
	Seconds int  `json:"seconds"`
	Running bool `json:"running"`
}

// scheduleWakeup arms a one-shot clockwork timer that drives the completion
// path at end_time, replacing any wakeup already armed for the kind.
func (a *App) scheduleWakeup(kind models.TimerKind, endTime time.Time) {
	duration := endTime.Sub(a.clock.Now())
	if duration < 0 {
		duration = 0
	}
	wakeup := a.clock.NewTimer(duration)
	a.replaceWakeup(kind, wakeup)

	go func(kind models.TimerKind, t clockwork.Timer) {
		select {
		case <-t.Chan():
			a.removeWakeup(kind, t)
			if _, _, err := a.Remaining(a.runCtx, kind); err != nil {
				log.Error().Err(err).Str("kind", string(kind)).Msg("timer wakeup failed")
			}
		case <-a.runCtx.Done():
			stopAndDrainTimer(t)
			a.removeWakeup(kind, t)
		}
	}(kind, wakeup)
}

// replaceWakeup atomically swaps the armed wakeup for a kind, cancelling
// any existing one so a superseded timer never fires a stale completion.
func (a *App) replaceWakeup(kind models.TimerKind, newWakeup clockwork.Timer) {
	a.wakeupsMu.Lock()
	defer a.wakeupsMu.Unlock()

	if existing, exists := a.wakeups[kind]; exists {
		stopAndDrainTimer(existing)
	}
	a.wakeups[kind] = newWakeup
}

func (a *App) cancelWakeup(kind models.TimerKind) {
	a.wakeupsMu.Lock()
	defer a.wakeupsMu.Unlock()

	if existing, exists := a.wakeups[kind]; exists {
		stopAndDrainTimer(existing)
		delete(a.wakeups, kind)
	}
}

// removeWakeup clears a fired wakeup, unless a newer one replaced it already
func (a *App) removeWakeup(kind models.TimerKind, fired clockwork.Timer) {
	a.wakeupsMu.Lock()
	defer a.wakeupsMu.Unlock()

	if a.wakeups[kind] == fired {
		delete(a.wakeups, kind)
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent
// goroutine leaks, per the time.Timer.Stop documentation pattern.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

func (a *App) completionMessage(ctx context.Context, kind models.TimerKind) string {
	switch kind {
	case models.TimerKindWeeklyChallenge:
		return a.settings.ChallengeMessage(ctx)
	case models.TimerKindRound:
		return "Round timer finished!"
	case models.TimerKindMultiDay:
		return "Countdown complete!"
	}
	return "Timer complete"
}

func validKind(kind models.TimerKind) bool {
	for _, k := range models.TimerKinds {
		if k == kind {
			return true
		}
	}
	return false
}
