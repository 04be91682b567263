package gateway

import (
	"github.com/rs/zerolog/log"

	"github.com/chylnx/hub/go/internal/models"
)

// EventBroadcaster adapts the connection manager to the fan-out interfaces
// the domain apps publish through. Domain packages never see wire framing.
type EventBroadcaster struct {
	manager *ConnectionManager
}

// NewEventBroadcaster creates an EventBroadcaster over the connection manager
func NewEventBroadcaster(manager *ConnectionManager) *EventBroadcaster {
	return &EventBroadcaster{manager: manager}
}

// TimerRemaining broadcasts a countdown's remaining seconds
func (b *EventBroadcaster) TimerRemaining(kind models.TimerKind, seconds int, running bool) {
	b.broadcast(EventTypeTimerRemaining, TimerRemainingPayload{
		Kind:    kind,
		Seconds: seconds,
		Running: running,
	})
}

// TimerCompleted broadcasts the one-time completion notice for a countdown
func (b *EventBroadcaster) TimerCompleted(kind models.TimerKind, message string) {
	b.broadcast(EventTypeTimerComplete, TimerCompletePayload{
		Kind:    kind,
		Message: message,
	})
}

// SessionReset broadcasts the forced-reset notice after a session restart
func (b *EventBroadcaster) SessionReset(epoch int64, message string) {
	b.broadcast(EventTypeSessionReset, SessionResetPayload{
		Epoch:   epoch,
		Message: message,
	})
}

// ChatStatus broadcasts the global lock state
func (b *EventBroadcaster) ChatStatus(locked bool) {
	b.broadcast(EventTypeChatStatus, ChatStatusPayload{Locked: locked})
}

// Announcement broadcasts an admin announcement
func (b *EventBroadcaster) Announcement(text string, winners []string) {
	b.broadcast(EventTypeAnnouncement, AnnouncementPayload{
		Text:    text,
		Winners: winners,
	})
}

// PresenceCount broadcasts the live connection count
func (b *EventBroadcaster) PresenceCount(count int) {
	b.broadcast(EventTypePresenceCount, PresenceCountPayload{Count: count})
}

func (b *EventBroadcaster) broadcast(eventType EventType, payload interface{}) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	b.manager.Broadcast(event)
}
