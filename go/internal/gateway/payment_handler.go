package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chylnx/hub/go/internal/models"
	"github.com/chylnx/hub/go/internal/payments"
	"github.com/chylnx/hub/go/internal/sqlutil"
)

// PaymentService defines what the handler needs from the payments app
type PaymentService interface {
	Initialize(ctx context.Context, identity *models.Identity, email, amount string) (*models.Payment, string, error)
	Verify(ctx context.Context, identityID uuid.UUID, reference string) (*models.Payment, error)
}

// InitializePaymentRequest is the body of POST /api/payments/initialize
type InitializePaymentRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Amount   string `json:"amount"`
}

// InitializePaymentResponse carries the gateway redirect for the client
type InitializePaymentResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// VerifyPaymentResponse is the settled state of one reference
type VerifyPaymentResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Granted   bool   `json:"granted"`
}

// PaymentHandler handles HTTP requests for the payment flow. Payments settle
// over HTTP because the gateway redirect lands the client outside its
// WebSocket session.
type PaymentHandler struct {
	payments      PaymentService
	identities    IdentityService
	defaultAmount string
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService PaymentService, identities IdentityService, defaultAmount string) *PaymentHandler {
	return &PaymentHandler{
		payments:      paymentService,
		identities:    identities,
		defaultAmount: defaultAmount,
	}
}

// HandleInitialize handles POST /api/payments/initialize
func (h *PaymentHandler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req InitializePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount == "" {
		req.Amount = h.defaultAmount
	}
	if req.Username == "" || req.Email == "" || req.Amount == "" {
		http.Error(w, "username, email and amount are required", http.StatusBadRequest)
		return
	}

	ident, err := h.identities.GetOrCreate(r.Context(), req.Username)
	if err != nil {
		log.Error().Err(err).Str("username", req.Username).Msg("failed to resolve identity for payment")
		writePaymentError(w, err)
		return
	}

	payment, redirectURL, err := h.payments.Initialize(r.Context(), ident, req.Email, req.Amount)
	if err != nil {
		log.Error().Err(err).Str("username", req.Username).Msg("failed to initialize payment")
		writePaymentError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(InitializePaymentResponse{
		Reference:        payment.Reference,
		AuthorizationURL: redirectURL,
	}); err != nil {
		log.Error().Err(err).Msg("failed to encode initialize response")
	}
}

// HandleVerify handles GET /api/payments/verify/{reference}. Idempotent: a
// reference that already settled returns its stored outcome unchanged.
func (h *PaymentHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reference := extractReferenceFromPath(r.URL.Path)
	if reference == "" {
		http.Error(w, "Payment reference is required", http.StatusBadRequest)
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	ident, err := h.identities.GetOrCreate(r.Context(), username)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("failed to resolve identity for verification")
		writePaymentError(w, err)
		return
	}

	payment, err := h.payments.Verify(r.Context(), ident.ID, reference)
	if err != nil && !errors.Is(err, payments.ErrAlreadyProcessed) {
		log.Error().Err(err).Str("reference", reference).Msg("failed to verify payment")
		writePaymentError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(VerifyPaymentResponse{
		Reference: payment.Reference,
		Status:    string(payment.Status),
		Granted:   payment.Status == models.PaymentStatusSuccess,
	}); err != nil {
		log.Error().Err(err).Msg("failed to encode verify response")
	}
}

// RegisterPaymentRoutes registers payment HTTP routes
func (h *PaymentHandler) RegisterPaymentRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/payments/initialize", h.HandleInitialize)
	mux.HandleFunc("/api/payments/verify/", h.HandleVerify)
}

// writePaymentError maps a degraded store to 503 so clients retry instead
// of treating the failure as terminal.
func writePaymentError(w http.ResponseWriter, err error) {
	if errors.Is(err, sqlutil.ErrUnavailable) {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "Payment processing failed", http.StatusInternalServerError)
}

// extractReferenceFromPath extracts the reference from a path like
// /api/payments/verify/{reference}
func extractReferenceFromPath(path string) string {
	const prefix = "/api/payments/verify/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	reference := strings.TrimPrefix(path, prefix)
	if strings.Contains(reference, "/") {
		return ""
	}
	return reference
}
