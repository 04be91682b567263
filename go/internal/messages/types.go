package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/chylnx/hub/go/internal/models"
)

// HistoryMessage is one trailing-history entry joined with the requesting
// identity's own delivery state.
type HistoryMessage struct {
	ID        uuid.UUID           `json:"id"`
	Author    string              `json:"author"`
	Body      string              `json:"body"`
	CreatedAt time.Time           `json:"created_at"`
	State     models.MessageState `json:"state"`
}
