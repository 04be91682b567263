package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity represents a chat participant, registered or ad hoc
type Identity struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}
