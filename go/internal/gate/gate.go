package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chylnx/hub/go/internal/models"
)

// State is the access-control position of one identity
type State int

const (
	StateUnverified State = iota
	StatePaymentPending
	StateGranted
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateUnverified:
		return "unverified"
	case StatePaymentPending:
		return "payment_pending"
	case StateGranted:
		return "granted"
	case StateLocked:
		return "locked"
	}
	return "unknown"
}

// ErrNotAdmin is returned when a non-privileged identity invokes an
// admin-only operation
var ErrNotAdmin = errors.New("admin access required")

// GrantChecker reports whether an identity holds a successful payment
type GrantChecker interface {
	HasActiveGrant(ctx context.Context, identityID uuid.UUID) (bool, error)
}

// LockSettings reads the persisted global chat lock
type LockSettings interface {
	ChatLocked(ctx context.Context) (bool, error)
}

// Gate is the payment/admin state machine governing chat participation.
// Every privileged operation funnels through the same capability check.
type Gate struct {
	grants   GrantChecker
	settings LockSettings
}

// New creates a Gate over the payment grants and persisted lock state
func New(grants GrantChecker, settings LockSettings) *Gate {
	return &Gate{
		grants:   grants,
		settings: settings,
	}
}

// Check runs the join gate for an identity. The successful-payment lookup
// happens fresh on every call, never from a cached flag, so an expired
// grant takes effect on the next join. Privileged identities bypass both
// the payment requirement and the lock.
func (g *Gate) Check(ctx context.Context, identity *models.Identity) (State, error) {
	if identity.IsAdmin {
		return StateGranted, nil
	}

	paid, err := g.grants.HasActiveGrant(ctx, identity.ID)
	if err != nil {
		// Store degraded: deny rather than guess.
		return StateUnverified, fmt.Errorf("failed to check payment grant: %w", err)
	}
	if !paid {
		return StatePaymentPending, nil
	}

	locked, err := g.settings.ChatLocked(ctx)
	if err != nil {
		return StateUnverified, fmt.Errorf("failed to check lock state: %w", err)
	}
	if locked {
		return StateLocked, nil
	}

	return StateGranted, nil
}

// RequireAdmin is the single capability check consumed by every privileged
// operation: lock toggle, timer set/stop, session reset, announcements.
func (g *Gate) RequireAdmin(identity *models.Identity) error {
	if identity == nil || !identity.IsAdmin {
		return ErrNotAdmin
	}
	return nil
}
