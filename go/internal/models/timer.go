package models

import (
	"time"

	"github.com/google/uuid"
)

// TimerKind defines the independently tracked countdowns.
type TimerKind string

const (
	TimerKindRound           TimerKind = "round"
	TimerKindMultiDay        TimerKind = "multi_day"
	TimerKindWeeklyChallenge TimerKind = "weekly_challenge"
)

// TimerKinds lists every kind pushed to late joiners on connect.
var TimerKinds = []TimerKind{TimerKindRound, TimerKindMultiDay, TimerKindWeeklyChallenge}

// Timer represents a persisted countdown. The persisted end_time is
// authoritative; remaining time is always recomputed from it.
type Timer struct {
	ID        uuid.UUID `json:"id"`
	Kind      TimerKind `json:"kind"`
	EndTime   time.Time `json:"end_time"`
	IsRunning bool      `json:"is_running"`
	CreatedAt time.Time `json:"created_at"`
}

// Remaining returns whole seconds left at now, never negative.
func (t Timer) Remaining(now time.Time) int {
	remaining := int(t.EndTime.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
