package timers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/chylnx/hub/go/internal/models"
)

type fakeTimersRepo struct {
	mu          sync.Mutex
	running     map[models.TimerKind]*models.Timer
	lastClaimAt time.Time
}

func newFakeTimersRepo() *fakeTimersRepo {
	return &fakeTimersRepo{
		running: make(map[models.TimerKind]*models.Timer),
	}
}

func (f *fakeTimersRepo) Supersede(ctx context.Context, kind models.TimerKind, endTime time.Time) (*models.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	timer := &models.Timer{
		ID:        uuid.New(),
		Kind:      kind,
		EndTime:   endTime,
		IsRunning: true,
		CreatedAt: time.Now(),
	}
	f.running[kind] = timer
	return timer, nil
}

func (f *fakeTimersRepo) GetRunning(ctx context.Context, kind models.TimerKind) (*models.Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	timer, ok := f.running[kind]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *timer
	return &copied, nil
}

// ClaimExpired honors the conditional update's end_time guard
func (f *fakeTimersRepo) ClaimExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastClaimAt = now
	for kind, timer := range f.running {
		if timer.ID == id {
			if timer.EndTime.After(now) {
				return false, nil
			}
			delete(f.running, kind)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTimersRepo) Deactivate(ctx context.Context, kind models.TimerKind) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.running[kind]; !ok {
		return 0, nil
	}
	delete(f.running, kind)
	return 1, nil
}

type fakeTimerBroadcaster struct {
	mu          sync.Mutex
	remaining   []int
	completions []models.TimerKind
}

func (f *fakeTimerBroadcaster) TimerRemaining(kind models.TimerKind, seconds int, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining = append(f.remaining, seconds)
}

func (f *fakeTimerBroadcaster) TimerCompleted(kind models.TimerKind, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, kind)
}

func (f *fakeTimerBroadcaster) completionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completions)
}

type fixedChallengeMessages struct{}

func (fixedChallengeMessages) ChallengeMessage(ctx context.Context) string {
	return "challenge over"
}

func newTestApp(repo *fakeTimersRepo, clock clockwork.Clock) (*App, *fakeTimerBroadcaster) {
	app := NewApp(repo, fixedChallengeMessages{}, clock)
	broadcaster := &fakeTimerBroadcaster{}
	app.SetBroadcaster(broadcaster)
	return app, broadcaster
}

func TestSetValidation(t *testing.T) {
	app, _ := newTestApp(newFakeTimersRepo(), clockwork.NewFakeClock())

	if _, err := app.Set(context.Background(), models.TimerKindRound, 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := app.Set(context.Background(), models.TimerKindRound, -time.Minute); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := app.Set(context.Background(), models.TimerKind("bogus"), time.Minute); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestRemainingNeverIncreases(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeTimersRepo()
	app, _ := newTestApp(repo, clock)

	if _, err := app.Set(context.Background(), models.TimerKindRound, 90*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}

	last := 91
	for i := 0; i < 4; i++ {
		seconds, running, err := app.Remaining(context.Background(), models.TimerKindRound)
		if err != nil {
			t.Fatalf("remaining: %v", err)
		}
		if !running {
			t.Fatal("expected timer to be running")
		}
		if seconds > last {
			t.Fatalf("remaining increased from %d to %d", last, seconds)
		}
		last = seconds
		clock.Advance(20 * time.Second)
	}
}

func TestCompletionFiresExactlyOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeTimersRepo()
	app, broadcaster := newTestApp(repo, clock)

	if _, err := app.Set(context.Background(), models.TimerKindMultiDay, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	clock.Advance(2 * time.Minute)

	for i := 0; i < 3; i++ {
		seconds, running, err := app.Remaining(context.Background(), models.TimerKindMultiDay)
		if err != nil {
			t.Fatalf("remaining after expiry: %v", err)
		}
		if seconds != 0 || running {
			t.Fatalf("expected 0/stopped after expiry, got %d/%v", seconds, running)
		}
	}

	// Allow the armed wakeup goroutine to observe the claim as well
	time.Sleep(50 * time.Millisecond)
	if got := broadcaster.completionCount(); got != 1 {
		t.Fatalf("expected exactly one completion, got %d", got)
	}
}

func TestClaimCarriesAppClockTime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeTimersRepo()
	app, _ := newTestApp(repo, clock)

	if _, err := app.Set(context.Background(), models.TimerKindRound, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	clock.Advance(2 * time.Minute)

	if _, _, err := app.Remaining(context.Background(), models.TimerKindRound); err != nil {
		t.Fatalf("remaining: %v", err)
	}

	repo.mu.Lock()
	claimedAt := repo.lastClaimAt
	repo.mu.Unlock()
	// the claim must judge expiry with the same clock Remaining computed with
	if !claimedAt.Equal(clock.Now()) {
		t.Fatalf("expected claim at %v, got %v", clock.Now(), claimedAt)
	}
}

func TestSetSupersedesRunningTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeTimersRepo()
	app, _ := newTestApp(repo, clock)

	if _, err := app.Set(context.Background(), models.TimerKindRound, time.Minute); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if _, err := app.Set(context.Background(), models.TimerKindRound, 10*time.Minute); err != nil {
		t.Fatalf("second set: %v", err)
	}

	seconds, running, err := app.Remaining(context.Background(), models.TimerKindRound)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if !running || seconds != 600 {
		t.Fatalf("expected 600s running, got %d/%v", seconds, running)
	}

	repo.mu.Lock()
	count := len(repo.running)
	repo.mu.Unlock()
	if count != 1 {
		t.Fatalf("expected one running row, got %d", count)
	}
}

func TestStopDeactivatesWithoutCompletion(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app, broadcaster := newTestApp(newFakeTimersRepo(), clock)

	if _, err := app.Set(context.Background(), models.TimerKindWeeklyChallenge, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := app.Stop(context.Background(), models.TimerKindWeeklyChallenge); err != nil {
		t.Fatalf("stop: %v", err)
	}

	seconds, running, err := app.Remaining(context.Background(), models.TimerKindWeeklyChallenge)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if seconds != 0 || running {
		t.Fatalf("expected stopped timer, got %d/%v", seconds, running)
	}
	if got := broadcaster.completionCount(); got != 0 {
		t.Fatalf("expected no completion on stop, got %d", got)
	}
}

func TestStartRecoversPersistedTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeTimersRepo()

	// A running row persisted by a previous process
	if _, err := repo.Supersede(context.Background(), models.TimerKindRound, clock.Now().Add(5*time.Minute)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	app, _ := newTestApp(repo, clock)
	app.Start(context.Background())

	seconds, running, err := app.Remaining(context.Background(), models.TimerKindRound)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if !running || seconds != 300 {
		t.Fatalf("expected recovered timer with 300s, got %d/%v", seconds, running)
	}
}

func TestSnapshotCoversAllKinds(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app, _ := newTestApp(newFakeTimersRepo(), clock)

	if _, err := app.Set(context.Background(), models.TimerKindRound, 30*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}

	snapshot := app.Snapshot(context.Background())
	if len(snapshot) != len(models.TimerKinds) {
		t.Fatalf("expected %d kinds, got %d", len(models.TimerKinds), len(snapshot))
	}
	if state := snapshot[models.TimerKindRound]; !state.Running || state.Seconds != 30 {
		t.Fatalf("expected round 30s running, got %+v", state)
	}
	if state := snapshot[models.TimerKindMultiDay]; state.Running || state.Seconds != 0 {
		t.Fatalf("expected multi_day idle, got %+v", state)
	}
}
