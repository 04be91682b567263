package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/chylnx/hub/go/internal/messages"
	"github.com/chylnx/hub/go/internal/models"
)

// ChatEvent is the envelope for every server-to-client event
type ChatEvent struct {
	ID        string          `json:"id"`        // Event UUID
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of chat event
type EventType string

const (
	EventTypeChatHistory     EventType = "ChatHistory"
	EventTypeMessage         EventType = "Message"
	EventTypeStatusUpdate    EventType = "StatusUpdate"
	EventTypePresenceCount   EventType = "PresenceCount"
	EventTypeChatStatus      EventType = "ChatStatus"
	EventTypeTimerRemaining  EventType = "TimerRemaining"
	EventTypeTimerComplete   EventType = "TimerComplete"
	EventTypeAnnouncement    EventType = "Announcement"
	EventTypeSessionReset    EventType = "SessionReset"
	EventTypePaymentRequired EventType = "PaymentRequired"
	EventTypeError           EventType = "Error"
)

// ChatHistoryPayload carries the trailing message window on join
type ChatHistoryPayload struct {
	Messages []messages.HistoryMessage `json:"messages"`
}

// MessagePayload is one fanned-out chat message
type MessagePayload struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// StatusUpdatePayload notifies an author that a recipient's state advanced
type StatusUpdatePayload struct {
	MessageID string    `json:"message_id"`
	Recipient string    `json:"recipient"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PresenceCountPayload carries the live connection count
type PresenceCountPayload struct {
	Count int `json:"count"`
}

// ChatStatusPayload carries the global lock state
type ChatStatusPayload struct {
	Locked bool `json:"locked"`
}

// TimerRemainingPayload carries one countdown's remaining time
type TimerRemainingPayload struct {
	Kind    models.TimerKind `json:"kind"`
	Seconds int              `json:"seconds"`
	Running bool             `json:"running"`
}

// TimerCompletePayload fires exactly once when a countdown reaches zero
type TimerCompletePayload struct {
	Kind    models.TimerKind `json:"kind"`
	Message string           `json:"message"`
}

// AnnouncementPayload carries an admin announcement
type AnnouncementPayload struct {
	Text    string   `json:"text"`
	Winners []string `json:"winners,omitempty"`
}

// SessionResetPayload forces clients back through the payment gate
type SessionResetPayload struct {
	Epoch   int64  `json:"epoch"`
	Message string `json:"message"`
}

// PaymentRequiredPayload signals a denied join
type PaymentRequiredPayload struct {
	Username string `json:"username"`
}

// ErrorPayload surfaces an explicit denial or failure notice
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent wraps a payload in the event envelope
func NewEvent(eventType EventType, payload interface{}) (*ChatEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &ChatEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}
