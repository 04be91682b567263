package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chylnx/hub/go/internal/models"
)

// ErrAlreadyProcessed is returned when a reference was verified before.
// Verification is idempotent: callers treat this as a no-op, not a failure.
var ErrAlreadyProcessed = errors.New("payment already processed")

// VerifyResult is the processor's answer for one reference
type VerifyResult struct {
	Success bool
	Amount  string
	Raw     json.RawMessage
}

// Processor is the external payment gateway contract. The core never sees
// gateway wire details beyond initialize/verify.
type Processor interface {
	Initialize(ctx context.Context, email, amount, reference string) (redirectURL string, err error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}

// PaymentsRepository defines what the app layer needs from the repository
type PaymentsRepository interface {
	CreatePayment(ctx context.Context, identityID uuid.UUID, reference, amount string, status models.PaymentStatus, gatewayResponse json.RawMessage) (*models.Payment, error)
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	LatestSuccess(ctx context.Context, identityID uuid.UUID) (*models.Payment, error)
	Resolve(ctx context.Context, reference string, status models.PaymentStatus, amount string, gatewayResponse json.RawMessage) (*models.Payment, error)
	ExpireAllSuccessful(ctx context.Context) (int64, error)
}

// App handles payment business logic
type App struct {
	repo      PaymentsRepository
	processor Processor
}

// NewApp creates a new payments App
func NewApp(repo PaymentsRepository, processor Processor) *App {
	return &App{
		repo:      repo,
		processor: processor,
	}
}

// Initialize starts a payment with the processor and records the pending row
func (a *App) Initialize(ctx context.Context, identity *models.Identity, email, amount string) (*models.Payment, string, error) {
	reference := uuid.New().String()

	redirectURL, err := a.processor.Initialize(ctx, email, amount, reference)
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize payment: %w", err)
	}

	payment, err := a.repo.CreatePayment(ctx, identity.ID, reference, amount, models.PaymentStatusPending, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to record pending payment: %w", err)
	}

	log.Info().
		Str("reference", reference).
		Str("identity_id", identity.ID.String()).
		Msg("payment initialized")
	return payment, redirectURL, nil
}

// Verify settles a reference against the processor and persists the result.
// Idempotent by unique external reference: a reference that already settled
// returns the stored payment with ErrAlreadyProcessed and changes nothing.
func (a *App) Verify(ctx context.Context, identityID uuid.UUID, reference string) (*models.Payment, error) {
	existing, err := a.repo.GetByReference(ctx, reference)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check reference: %w", err)
	}
	if existing != nil && existing.Status != models.PaymentStatusPending {
		return existing, ErrAlreadyProcessed
	}

	result, err := a.processor.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	status := models.PaymentStatusFailed
	if result.Success {
		status = models.PaymentStatusSuccess
	}

	var payment *models.Payment
	if existing != nil {
		payment, err = a.repo.Resolve(ctx, reference, status, result.Amount, result.Raw)
		if errors.Is(err, ErrNotFound) {
			// Lost a verify race; the row settled underneath us.
			if settled, getErr := a.repo.GetByReference(ctx, reference); getErr == nil {
				return settled, ErrAlreadyProcessed
			}
		}
	} else {
		// Verification for a reference initialized outside the core, as the
		// processor redirect flow allows. Insert the settled row directly.
		payment, err = a.repo.CreatePayment(ctx, identityID, reference, result.Amount, status, result.Raw)
		if err != nil {
			// Lost an insert race on the unique reference; another verify
			// settled it first.
			if settled, getErr := a.repo.GetByReference(ctx, reference); getErr == nil {
				return settled, ErrAlreadyProcessed
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist verification: %w", err)
	}

	log.Info().
		Str("reference", reference).
		Str("status", string(payment.Status)).
		Str("identity_id", identityID.String()).
		Msg("payment verified")
	return payment, nil
}

// HasActiveGrant reports whether the identity holds a successful payment.
// Queried fresh on every join check, never from a cached flag.
func (a *App) HasActiveGrant(ctx context.Context, identityID uuid.UUID) (bool, error) {
	_, err := a.repo.LatestSuccess(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return true, nil
}

// ExpireGrants invalidates every successful payment as part of a session
// reset. Expired is reachable only from success.
func (a *App) ExpireGrants(ctx context.Context) (int64, error) {
	expired, err := a.repo.ExpireAllSuccessful(ctx)
	if err != nil {
		return 0, err
	}

	log.Info().Int64("expired", expired).Msg("payment grants expired")
	return expired, nil
}
