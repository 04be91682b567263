package payments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/chylnx/hub/go/internal/models"
	"github.com/chylnx/hub/go/internal/payments/db"
	"github.com/chylnx/hub/go/internal/sqlutil"
)

// ErrNotFound is returned when no payment matches the lookup
var ErrNotFound = errors.New("payment not found")

// Querier defines what the repository needs from the database layer
type Querier interface {
	CreatePayment(ctx context.Context, arg db.CreatePaymentParams) (db.Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (db.Payment, error)
	GetLatestSuccessfulPayment(ctx context.Context, identityID uuid.UUID) (db.Payment, error)
	ResolvePayment(ctx context.Context, arg db.ResolvePaymentParams) (db.Payment, error)
	ExpireSuccessfulPayments(ctx context.Context) (int64, error)
}

// Repository implements payment data access operations
type Repository struct {
	queries Querier
}

// NewRepository creates a new payments repository
func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
	}
}

// CreatePayment inserts a payment row with the given status
func (r *Repository) CreatePayment(ctx context.Context, identityID uuid.UUID, reference, amount string, status models.PaymentStatus, gatewayResponse json.RawMessage) (*models.Payment, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	payment, err := r.queries.CreatePayment(ctx, db.CreatePaymentParams{
		IdentityID:      identityID,
		Reference:       reference,
		Amount:          amount,
		Status:          string(status),
		GatewayResponse: rawToNullRaw(gatewayResponse),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", sqlutil.Fault(err))
	}

	return r.dbPaymentToModel(payment), nil
}

// GetByReference retrieves a payment by its unique external reference
func (r *Repository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	payment, err := r.queries.GetPaymentByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment by reference: %w", sqlutil.Fault(err))
	}

	return r.dbPaymentToModel(payment), nil
}

// LatestSuccess retrieves the most recent successful payment for an identity
func (r *Repository) LatestSuccess(ctx context.Context, identityID uuid.UUID) (*models.Payment, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	payment, err := r.queries.GetLatestSuccessfulPayment(ctx, identityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest successful payment: %w", sqlutil.Fault(err))
	}

	return r.dbPaymentToModel(payment), nil
}

// Resolve moves a pending payment to its verified terminal status. The
// WHERE status = 'pending' guard keeps transitions one-directional; a
// payment that already settled returns ErrNotFound.
func (r *Repository) Resolve(ctx context.Context, reference string, status models.PaymentStatus, amount string, gatewayResponse json.RawMessage) (*models.Payment, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	payment, err := r.queries.ResolvePayment(ctx, db.ResolvePaymentParams{
		Reference:       reference,
		Status:          string(status),
		Amount:          amount,
		GatewayResponse: rawToNullRaw(gatewayResponse),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve payment: %w", sqlutil.Fault(err))
	}

	return r.dbPaymentToModel(payment), nil
}

// ExpireAllSuccessful marks every successful payment expired, returning the
// number of grants invalidated
func (r *Repository) ExpireAllSuccessful(ctx context.Context) (int64, error) {
	ctx, cancel := sqlutil.WithTimeout(ctx)
	defer cancel()

	expired, err := r.queries.ExpireSuccessfulPayments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to expire payments: %w", sqlutil.Fault(err))
	}
	return expired, nil
}

// dbPaymentToModel converts a database payment to domain model
func (r *Repository) dbPaymentToModel(dbPayment db.Payment) *models.Payment {
	p := &models.Payment{
		ID:         dbPayment.ID,
		IdentityID: dbPayment.IdentityID,
		Reference:  dbPayment.Reference,
		Amount:     dbPayment.Amount,
		Status:     models.PaymentStatus(dbPayment.Status),
		CreatedAt:  dbPayment.CreatedAt,
	}
	if dbPayment.GatewayResponse.Valid {
		p.GatewayResponse = dbPayment.GatewayResponse.RawMessage
	}
	return p
}

func rawToNullRaw(raw json.RawMessage) pqtype.NullRawMessage {
	if len(raw) == 0 {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}
