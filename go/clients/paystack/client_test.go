package paystack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitialize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		w.Write([]byte(`{"status":true,"data":{"authorization_url":"https://checkout.paystack.com/abc123"}}`))
	}))
	defer server.Close()

	client := NewClient("sk_test")
	client.SetBaseURL(server.URL)

	url, err := client.Initialize(context.Background(), "alice@example.com", "50000", "ref-1")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if url != "https://checkout.paystack.com/abc123" {
		t.Fatalf("unexpected redirect url %q", url)
	}
}

func TestInitializeGatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"data":{}}`))
	}))
	defer server.Close()

	client := NewClient("sk_test")
	client.SetBaseURL(server.URL)

	if _, err := client.Initialize(context.Background(), "alice@example.com", "50000", "ref-1"); err == nil {
		t.Fatal("expected error on gateway rejection")
	}
}

func TestVerifySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref-1" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"status":true,"data":{"status":"success","amount":50000}}`))
	}))
	defer server.Close()

	client := NewClient("sk_test")
	client.SetBaseURL(server.URL)

	result, err := client.Verify(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if result.Amount != "500.00" {
		t.Fatalf("expected amount 500.00, got %q", result.Amount)
	}
	if len(result.Raw) == 0 {
		t.Fatal("expected raw gateway response retained")
	}
}

func TestVerifyFailedTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"data":{"status":"abandoned","amount":0}}`))
	}))
	defer server.Close()

	client := NewClient("sk_test")
	client.SetBaseURL(server.URL)

	result, err := client.Verify(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Success {
		t.Fatal("abandoned transaction must not report success")
	}
}

func TestVerifyHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("sk_test")
	client.SetBaseURL(server.URL)

	if _, err := client.Verify(context.Background(), "ref-unknown"); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}
