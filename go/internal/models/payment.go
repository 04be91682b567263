package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus defines the status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
	// PaymentStatusExpired is reachable only from success, via session reset.
	PaymentStatusExpired PaymentStatus = "expired"
)

// Payment represents a payment attempt verified against the external
// processor. The external reference is globally unique so verification
// stays idempotent.
type Payment struct {
	ID              uuid.UUID       `json:"id"`
	IdentityID      uuid.UUID       `json:"identity_id"`
	Reference       string          `json:"reference"`
	Amount          string          `json:"amount"`
	Status          PaymentStatus   `json:"status"`
	GatewayResponse json.RawMessage `json:"gateway_response,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
