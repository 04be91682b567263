package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageState defines the delivery state of a message for one recipient.
type MessageState string

const (
	MessageStateSent      MessageState = "sent"
	MessageStateDelivered MessageState = "delivered"
	MessageStateRead      MessageState = "read"
)

// Rank orders states so that upserts never regress. Unknown states rank lowest.
func (s MessageState) Rank() int {
	switch s {
	case MessageStateSent:
		return 1
	case MessageStateDelivered:
		return 2
	case MessageStateRead:
		return 3
	}
	return 0
}

// Message represents a persisted chat message. Messages are immutable;
// ordering is created_at with id as tie-break.
type Message struct {
	ID         uuid.UUID `json:"id"`
	IdentityID uuid.UUID `json:"identity_id"`
	Author     string    `json:"author"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageStatus is one (message, recipient) delivery state row.
type MessageStatus struct {
	MessageID  uuid.UUID    `json:"message_id"`
	IdentityID uuid.UUID    `json:"identity_id"`
	State      MessageState `json:"state"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
