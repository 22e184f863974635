package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/gateway/payhost"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/webhook"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

type stubOrchestrator struct {
	result checkout.Result
	err    error
}

func (s *stubOrchestrator) Checkout(context.Context, checkout.Input) (checkout.Result, error) {
	return s.result, s.err
}

func newTestRouter(t *testing.T, orch checkout.Orchestrator, orders domain.OrderRepository) http.Handler {
	t.Helper()
	ingestor := webhook.NewIngestorWithoutMetrics(orders, "test-secret", nil)
	return NewRouter(orch, ingestor, orders, nil)
}

func doCheckout(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders/checkout", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const validCheckoutBody = `{"cart_id":"cart-1","user_id":"user-1","address_id":"addr-1","redirect_url":"https://shop.example/r"}`

func TestCheckoutEndpoint_Success(t *testing.T) {
	orch := &stubOrchestrator{result: checkout.Result{OrderID: "order-1", CheckoutURL: "https://pay.example/s/1"}}
	router := newTestRouter(t, orch, memory.NewOrderRepository())

	rec := doCheckout(t, router, validCheckoutBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CheckoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OrderID != "order-1" || resp.CheckoutURL != "https://pay.example/s/1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCheckoutEndpoint_BadRequests(t *testing.T) {
	orch := &stubOrchestrator{}
	router := newTestRouter(t, orch, memory.NewOrderRepository())

	cases := []struct {
		name string
		body string
	}{
		{"broken json", `{{{`},
		{"missing fields", `{"cart_id":"cart-1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := doCheckout(t, router, tc.body); rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestCheckoutEndpoint_DomainErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"empty cart", domain.ErrCartEmpty, http.StatusBadRequest},
		{"foreign cart", domain.ErrCartOwnerMismatch, http.StatusBadRequest},
		{"unknown cart", domain.ErrCartNotFound, http.StatusNotFound},
		{"unknown user", domain.ErrUserNotFound, http.StatusNotFound},
		{"unknown product", domain.ErrProductNotFound, http.StatusNotFound},
		{"insufficient stock", domain.ErrInsufficientStock, http.StatusConflict},
		{"gateway rejected", domain.ErrGateway, http.StatusBadGateway},
		{"gateway down", domain.ErrGatewayUnavailable, http.StatusBadGateway},
		{"catalog down", domain.ErrCatalogUnavailable, http.StatusBadGateway},
		{"storage broken", domain.ErrOrderVersionConflict, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, &stubOrchestrator{err: tc.err}, memory.NewOrderRepository())
			rec := doCheckout(t, router, validCheckoutBody)
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCheckoutEndpoint_InsufficientStockCode(t *testing.T) {
	router := newTestRouter(t, &stubOrchestrator{err: domain.ErrInsufficientStock}, memory.NewOrderRepository())
	rec := doCheckout(t, router, validCheckoutBody)

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error.Code != "INSUFFICIENT_STOCK" {
		t.Errorf("expected INSUFFICIENT_STOCK code, got %q", resp.Error.Code)
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	orders := memory.NewOrderRepository()
	now := time.Now().UTC()
	err := orders.Create(domain.Order{
		ID:         "order-1",
		CustomerID: "customer-1",
		AddressID:  "address-1",
		Status:     domain.OrderStatusPending,
		Currency:   "RUB",
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	router := newTestRouter(t, &stubOrchestrator{}, orders)

	req := httptest.NewRequest(http.MethodGet, "/orders/order-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var view OrderView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode order view: %v", err)
	}
	if view.ID != "order-1" || view.Status != "pending" {
		t.Errorf("unexpected order view: %+v", view)
	}

	req = httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWebhookEndpoint_SignatureHandling(t *testing.T) {
	orders := memory.NewOrderRepository()
	now := time.Now().UTC()
	if err := orders.Create(domain.Order{
		ID:         "order-1",
		CustomerID: "customer-1",
		AddressID:  "address-1",
		Status:     domain.OrderStatusPending,
		Currency:   "RUB",
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	router := newTestRouter(t, &stubOrchestrator{}, orders)

	payload := []byte(`{"id":"evt-1","type":"checkout_session_completed","transaction_id":"tx-1","amount_minor":100,"currency":"rub","metadata":{"order_id":"order-1"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set(payhost.SignatureHeader, "forged")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged signature: expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set(payhost.SignatureHeader, payhost.SignPayload("test-secret", payload))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid signature: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	order, err := orders.Get("order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Errorf("expected paid after webhook, got %s", order.Status)
	}
}
