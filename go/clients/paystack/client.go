package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/chylnx/hub/go/internal/payments"
)

const defaultBaseURL = "https://api.paystack.co"

// Client talks to the Paystack transaction API. It implements the
// payments.Processor contract and hides every gateway wire detail from the
// core.
type Client struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewClient creates a Paystack client with the given secret key
func NewClient(secretKey string) *Client {
	return &Client{
		baseURL:   defaultBaseURL,
		secretKey: secretKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetBaseURL overrides the API host, used in tests
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

type initializeRequest struct {
	Email     string `json:"email"`
	Amount    string `json:"amount"` // subunits (kobo)
	Reference string `json:"reference"`
}

type initializeResponse struct {
	Status bool `json:"status"`
	Data   struct {
		AuthorizationURL string `json:"authorization_url"`
	} `json:"data"`
}

// Initialize starts a transaction and returns the gateway redirect URL
func (c *Client) Initialize(ctx context.Context, email, amount, reference string) (string, error) {
	payload, err := json.Marshal(initializeRequest{
		Email:     email,
		Amount:    amount,
		Reference: reference,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode initialize request: %w", err)
	}

	body, err := c.makeRequest(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	var resp initializeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode initialize response: %w", err)
	}
	if !resp.Status || resp.Data.AuthorizationURL == "" {
		return "", fmt.Errorf("gateway rejected initialize for reference %s", reference)
	}

	return resp.Data.AuthorizationURL, nil
}

type verifyResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Status string `json:"status"`
		Amount int64  `json:"amount"` // subunits (kobo)
	} `json:"data"`
}

// Verify settles a reference against the gateway
func (c *Client) Verify(ctx context.Context, reference string) (*payments.VerifyResult, error) {
	body, err := c.makeRequest(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var resp verifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}

	return &payments.VerifyResult{
		Success: resp.Status && resp.Data.Status == "success",
		Amount:  koboToAmount(resp.Data.Amount),
		Raw:     json.RawMessage(body),
	}, nil
}

func (c *Client) makeRequest(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	return responseBody, nil
}

// koboToAmount converts gateway subunits to a major-unit decimal string
func koboToAmount(kobo int64) string {
	return strconv.FormatInt(kobo/100, 10) + "." + fmt.Sprintf("%02d", kobo%100)
}
