package payhost

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestGateway_CreateSession(t *testing.T) {
	var gotAuth string
	var gotBody createSessionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"sess-1","url":"https://pay.example/s/sess-1"}`))
	}))
	defer srv.Close()

	gateway := NewGateway(srv.URL, "test-key", nil)
	session, err := gateway.CreateSession(context.Background(), domain.SessionRequest{
		OrderID:     "order-1",
		AmountMinor: 3700,
		Currency:    "RUB",
		SuccessURL:  "https://shop.example/done",
		CancelURL:   "https://shop.example/cancel",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if session.ID != "sess-1" || session.URL != "https://pay.example/s/sess-1" {
		t.Errorf("unexpected session: %+v", session)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if gotBody.AmountMinor != 3700 {
		t.Errorf("amount must stay in minor units, got %d", gotBody.AmountMinor)
	}
	if gotBody.Currency != "rub" {
		t.Errorf("currency must be lowercased, got %q", gotBody.Currency)
	}
	if gotBody.Metadata["order_id"] != "order-1" {
		t.Errorf("order id must travel in metadata, got %v", gotBody.Metadata)
	}
}

func TestGateway_CreateSessionRejectsNonPositiveAmount(t *testing.T) {
	gateway := NewGateway("http://unused", "key", nil)
	_, err := gateway.CreateSession(context.Background(), domain.SessionRequest{
		OrderID:     "order-1",
		AmountMinor: 0,
		Currency:    "RUB",
	})
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}
}

func TestGateway_CreateSessionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gateway := NewGateway(srv.URL, "key", nil)
	_, err := gateway.CreateSession(context.Background(), domain.SessionRequest{
		OrderID: "order-1", AmountMinor: 100, Currency: "RUB",
	})
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("5xx must map to ErrGatewayUnavailable, got %v", err)
	}
}

func TestGateway_CreateSessionClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	gateway := NewGateway(srv.URL, "key", nil)
	_, err := gateway.CreateSession(context.Background(), domain.SessionRequest{
		OrderID: "order-1", AmountMinor: 100, Currency: "RUB",
	})
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("4xx must map to ErrGateway, got %v", err)
	}
	if errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatal("4xx must not be retriable")
	}
}
