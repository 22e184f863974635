package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/gateway/payhost"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

const testSecret = "webhook-secret"

func seedPendingOrder(t *testing.T, repo domain.OrderRepository, id string) {
	t.Helper()

	now := time.Now().UTC()
	order := domain.Order{
		ID:         id,
		CustomerID: "customer-1",
		AddressID:  "address-1",
		Status:     domain.OrderStatusPending,
		Currency:   "RUB",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.Create(order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func signedCompletedEvent(orderID string) ([]byte, string) {
	payload := []byte(`{
		"id": "evt-1",
		"type": "checkout_session_completed",
		"transaction_id": "tx-42",
		"amount_minor": 3700,
		"currency": "rub",
		"metadata": {"order_id": "` + orderID + `"}
	}`)
	return payload, payhost.SignPayload(testSecret, payload)
}

func TestIngestor_CompletedEventMarksOrderPaid(t *testing.T) {
	repo := memory.NewOrderRepository()
	seedPendingOrder(t, repo, "order-1")
	ingestor := NewIngestorWithoutMetrics(repo, testSecret, nil)

	payload, signature := signedCompletedEvent("order-1")
	if result := ingestor.Handle(context.Background(), payload, signature); result != ResultProcessed {
		t.Fatalf("expected ResultProcessed, got %v", result)
	}

	order, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Errorf("expected paid, got %s", order.Status)
	}

	payment, err := repo.GetPayment("order-1")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	// Поля платежа берутся из события как есть.
	if payment.TransactionID != "tx-42" || payment.AmountMinor != 3700 || payment.Currency != "rub" {
		t.Errorf("unexpected payment: %+v", payment)
	}
	if payment.Status != domain.PaymentStatusSucceeded {
		t.Errorf("unexpected payment status: %s", payment.Status)
	}
}

func TestIngestor_DuplicateDeliveryIsAcknowledged(t *testing.T) {
	repo := memory.NewOrderRepository()
	seedPendingOrder(t, repo, "order-1")
	ingestor := NewIngestorWithoutMetrics(repo, testSecret, nil)

	payload, signature := signedCompletedEvent("order-1")
	if result := ingestor.Handle(context.Background(), payload, signature); result != ResultProcessed {
		t.Fatalf("first delivery: got %v", result)
	}
	if result := ingestor.Handle(context.Background(), payload, signature); result != ResultIgnored {
		t.Fatalf("duplicate must be acknowledged without effect, got %v", result)
	}

	payment, err := repo.GetPayment("order-1")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if payment.TransactionID != "tx-42" {
		t.Errorf("payment must stay from the first delivery: %+v", payment)
	}
}

func TestIngestor_InvalidSignatureIsRejected(t *testing.T) {
	repo := memory.NewOrderRepository()
	seedPendingOrder(t, repo, "order-1")
	ingestor := NewIngestorWithoutMetrics(repo, testSecret, nil)

	payload, _ := signedCompletedEvent("order-1")
	if result := ingestor.Handle(context.Background(), payload, "bad-signature"); result != ResultRejected {
		t.Fatalf("expected ResultRejected, got %v", result)
	}

	order, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("rejected event must not change state, got %s", order.Status)
	}
}

func TestIngestor_UnknownEventTypeIsIgnored(t *testing.T) {
	repo := memory.NewOrderRepository()
	seedPendingOrder(t, repo, "order-1")
	ingestor := NewIngestorWithoutMetrics(repo, testSecret, nil)

	payload := []byte(`{"id":"evt-2","type":"refund.created","metadata":{"order_id":"order-1"}}`)
	signature := payhost.SignPayload(testSecret, payload)
	if result := ingestor.Handle(context.Background(), payload, signature); result != ResultIgnored {
		t.Fatalf("unknown type must be acknowledged, got %v", result)
	}

	order, _ := repo.Get("order-1")
	if order.Status != domain.OrderStatusPending {
		t.Errorf("unknown event must not change state, got %s", order.Status)
	}
}

func TestIngestor_ExpiredSessionIsIgnored(t *testing.T) {
	repo := memory.NewOrderRepository()
	seedPendingOrder(t, repo, "order-1")
	ingestor := NewIngestorWithoutMetrics(repo, testSecret, nil)

	payload := []byte(`{"id":"evt-3","type":"checkout_session_expired","metadata":{"order_id":"order-1"}}`)
	signature := payhost.SignPayload(testSecret, payload)
	if result := ingestor.Handle(context.Background(), payload, signature); result != ResultIgnored {
		t.Fatalf("expired session must be acknowledged, got %v", result)
	}
}

func TestIngestor_MalformedEventsAreAcknowledged(t *testing.T) {
	repo := memory.NewOrderRepository()
	ingestor := NewIngestorWithoutMetrics(repo, testSecret, nil)

	cases := []struct {
		name string
		raw  string
	}{
		{"broken json", `{{{`},
		{"missing order id", `{"id":"evt-4","type":"checkout_session_completed","transaction_id":"tx-1","amount_minor":100,"currency":"rub"}`},
		{"missing transaction id", `{"id":"evt-5","type":"checkout_session_completed","amount_minor":100,"currency":"rub","metadata":{"order_id":"order-1"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := []byte(tc.raw)
			signature := payhost.SignPayload(testSecret, payload)
			if result := ingestor.Handle(context.Background(), payload, signature); result != ResultIgnored {
				t.Fatalf("permanent data error must be acknowledged, got %v", result)
			}
		})
	}
}

func TestIngestor_MissingOrderIsAcknowledged(t *testing.T) {
	repo := memory.NewOrderRepository()
	ingestor := NewIngestorWithoutMetrics(repo, testSecret, nil)

	payload, signature := signedCompletedEvent("ghost-order")
	if result := ingestor.Handle(context.Background(), payload, signature); result != ResultIgnored {
		t.Fatalf("missing order must be acknowledged, got %v", result)
	}
}

// failingOrderRepo имитирует временный сбой хранилища на MarkPaid.
type failingOrderRepo struct {
	domain.OrderRepository
}

func (r *failingOrderRepo) MarkPaid(string, domain.Payment) error {
	return errors.New("storage is down")
}

func TestIngestor_StorageFailureRequestsRedelivery(t *testing.T) {
	repo := &failingOrderRepo{OrderRepository: memory.NewOrderRepository()}
	ingestor := NewIngestorWithoutMetrics(repo, testSecret, nil)

	payload, signature := signedCompletedEvent("order-1")
	if result := ingestor.Handle(context.Background(), payload, signature); result != ResultRetry {
		t.Fatalf("storage failure must request redelivery, got %v", result)
	}
}
