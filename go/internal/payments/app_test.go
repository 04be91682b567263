package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chylnx/hub/go/internal/models"
)

type fakePaymentsRepo struct {
	byReference map[string]*models.Payment
}

func newFakePaymentsRepo() *fakePaymentsRepo {
	return &fakePaymentsRepo{
		byReference: make(map[string]*models.Payment),
	}
}

func (f *fakePaymentsRepo) CreatePayment(ctx context.Context, identityID uuid.UUID, reference, amount string, status models.PaymentStatus, gatewayResponse json.RawMessage) (*models.Payment, error) {
	if _, ok := f.byReference[reference]; ok {
		return nil, errors.New("duplicate reference")
	}
	payment := &models.Payment{
		ID:              uuid.New(),
		IdentityID:      identityID,
		Reference:       reference,
		Amount:          amount,
		Status:          status,
		GatewayResponse: gatewayResponse,
		CreatedAt:       time.Now(),
	}
	f.byReference[reference] = payment
	return payment, nil
}

func (f *fakePaymentsRepo) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	payment, ok := f.byReference[reference]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *payment
	return &copied, nil
}

func (f *fakePaymentsRepo) LatestSuccess(ctx context.Context, identityID uuid.UUID) (*models.Payment, error) {
	for _, payment := range f.byReference {
		if payment.IdentityID == identityID && payment.Status == models.PaymentStatusSuccess {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// Resolve only moves pending rows, mirroring the guarded update
func (f *fakePaymentsRepo) Resolve(ctx context.Context, reference string, status models.PaymentStatus, amount string, gatewayResponse json.RawMessage) (*models.Payment, error) {
	payment, ok := f.byReference[reference]
	if !ok || payment.Status != models.PaymentStatusPending {
		return nil, ErrNotFound
	}
	payment.Status = status
	payment.Amount = amount
	payment.GatewayResponse = gatewayResponse
	copied := *payment
	return &copied, nil
}

func (f *fakePaymentsRepo) ExpireAllSuccessful(ctx context.Context) (int64, error) {
	var expired int64
	for _, payment := range f.byReference {
		if payment.Status == models.PaymentStatusSuccess {
			payment.Status = models.PaymentStatusExpired
			expired++
		}
	}
	return expired, nil
}

type fakeProcessor struct {
	success     bool
	verifyErr   error
	verifyCalls int
}

func (f *fakeProcessor) Initialize(ctx context.Context, email, amount, reference string) (string, error) {
	return "https://checkout.example/" + reference, nil
}

func (f *fakeProcessor) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &VerifyResult{
		Success: f.success,
		Amount:  "500",
		Raw:     json.RawMessage(`{"status":true}`),
	}, nil
}

func TestInitializeRecordsPendingRow(t *testing.T) {
	repo := newFakePaymentsRepo()
	app := NewApp(repo, &fakeProcessor{})
	ident := &models.Identity{ID: uuid.New(), Username: "alice"}

	payment, redirectURL, err := app.Initialize(context.Background(), ident, "alice@example.com", "500")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if payment.Status != models.PaymentStatusPending {
		t.Fatalf("expected pending, got %q", payment.Status)
	}
	if redirectURL == "" {
		t.Fatal("expected redirect URL")
	}
}

func TestVerifyGrantsAccessOnSuccess(t *testing.T) {
	repo := newFakePaymentsRepo()
	app := NewApp(repo, &fakeProcessor{success: true})
	ident := &models.Identity{ID: uuid.New(), Username: "alice"}

	pending, _, err := app.Initialize(context.Background(), ident, "alice@example.com", "500")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	payment, err := app.Verify(context.Background(), ident.ID, pending.Reference)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if payment.Status != models.PaymentStatusSuccess {
		t.Fatalf("expected success, got %q", payment.Status)
	}

	granted, err := app.HasActiveGrant(context.Background(), ident.ID)
	if err != nil {
		t.Fatalf("grant check: %v", err)
	}
	if !granted {
		t.Fatal("expected active grant after successful verification")
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	repo := newFakePaymentsRepo()
	processor := &fakeProcessor{success: true}
	app := NewApp(repo, processor)
	identityID := uuid.New()

	first, err := app.Verify(context.Background(), identityID, "ref-1")
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if first.Status != models.PaymentStatusSuccess {
		t.Fatalf("expected success, got %q", first.Status)
	}

	// Replayed verification returns the stored outcome without touching the
	// processor again.
	second, err := app.Verify(context.Background(), identityID, "ref-1")
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if second.ID != first.ID || second.Status != first.Status {
		t.Fatal("expected replay to return the stored payment unchanged")
	}
	if processor.verifyCalls != 1 {
		t.Fatalf("expected one processor call, got %d", processor.verifyCalls)
	}
}

// racingPaymentsRepo misses the first lookup and fails the insert with a
// unique violation, mirroring two concurrent verifies of an unknown reference.
type racingPaymentsRepo struct {
	*fakePaymentsRepo
	settled *models.Payment
	lookups int
}

func (r *racingPaymentsRepo) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, ErrNotFound
	}
	return r.settled, nil
}

func (r *racingPaymentsRepo) CreatePayment(ctx context.Context, identityID uuid.UUID, reference, amount string, status models.PaymentStatus, gatewayResponse json.RawMessage) (*models.Payment, error) {
	return nil, errors.New("duplicate reference")
}

func TestVerifySurvivesCreateRace(t *testing.T) {
	settled := &models.Payment{
		ID:        uuid.New(),
		Reference: "ref-race",
		Status:    models.PaymentStatusSuccess,
	}
	repo := &racingPaymentsRepo{fakePaymentsRepo: newFakePaymentsRepo(), settled: settled}
	app := NewApp(repo, &fakeProcessor{success: true})

	payment, err := app.Verify(context.Background(), uuid.New(), "ref-race")
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if payment.ID != settled.ID {
		t.Fatal("expected the row the race winner settled")
	}
}

func TestFailedPaymentGrantsNothing(t *testing.T) {
	repo := newFakePaymentsRepo()
	app := NewApp(repo, &fakeProcessor{success: false})
	identityID := uuid.New()

	payment, err := app.Verify(context.Background(), identityID, "ref-fail")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if payment.Status != models.PaymentStatusFailed {
		t.Fatalf("expected failed, got %q", payment.Status)
	}

	granted, err := app.HasActiveGrant(context.Background(), identityID)
	if err != nil {
		t.Fatalf("grant check: %v", err)
	}
	if granted {
		t.Fatal("failed payment must not grant access")
	}
}

func TestExpireGrantsOnlyTouchesSuccess(t *testing.T) {
	repo := newFakePaymentsRepo()
	app := NewApp(repo, &fakeProcessor{})

	alice := uuid.New()
	bob := uuid.New()
	if _, err := repo.CreatePayment(context.Background(), alice, "ref-success", "500", models.PaymentStatusSuccess, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.CreatePayment(context.Background(), bob, "ref-pending", "500", models.PaymentStatusPending, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.CreatePayment(context.Background(), bob, "ref-failed", "500", models.PaymentStatusFailed, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	expired, err := app.ExpireGrants(context.Background())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}
	if repo.byReference["ref-success"].Status != models.PaymentStatusExpired {
		t.Fatal("expected success row to expire")
	}
	if repo.byReference["ref-pending"].Status != models.PaymentStatusPending {
		t.Fatal("pending row must not expire")
	}
	if repo.byReference["ref-failed"].Status != models.PaymentStatusFailed {
		t.Fatal("failed row must not expire")
	}

	granted, err := app.HasActiveGrant(context.Background(), alice)
	if err != nil {
		t.Fatalf("grant check: %v", err)
	}
	if granted {
		t.Fatal("expired grant must not pass the check")
	}
}
