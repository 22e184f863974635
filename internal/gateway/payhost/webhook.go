package payhost

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// SignatureHeader — заголовок, в котором провайдер передаёт HMAC подпись тела.
const SignatureHeader = "X-Payhost-Signature"

// EventType — тип webhook-события провайдера.
type EventType string

const (
	// EventCheckoutSessionCompleted — покупатель оплатил сессию; единственное
	// событие, меняющее состояние заказа.
	EventCheckoutSessionCompleted EventType = "checkout_session_completed"
	// EventCheckoutSessionExpired — сессия истекла без оплаты.
	EventCheckoutSessionExpired EventType = "checkout_session_expired"
	// EventPaymentFailed — провайдер отклонил оплату.
	EventPaymentFailed EventType = "payment.failed"
)

// Event — разобранное webhook-событие провайдера.
type Event struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	TransactionID string            `json:"transaction_id"`
	AmountMinor   int64             `json:"amount_minor"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// OrderID извлекает идентификатор заказа из metadata события.
func (e *Event) OrderID() string {
	return e.Metadata[metadataOrderID]
}

// SignPayload вычисляет hex-подпись HMAC-SHA256 тела общим секретом.
// Используется и провайдерной стороной в тестах, и проверкой ниже.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сверяет подпись тела константным по времени сравнением.
func VerifySignature(secret string, payload []byte, signature string) error {
	if signature == "" {
		return domain.ErrInvalidSignature
	}
	expected := SignPayload(secret, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// ParseEvent разбирает тело webhook-а. Неразборчивое тело — malformed:
// повторная доставка того же мусора ничего не исправит.
func ParseEvent(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("%w: %v", domain.ErrEventMalformed, err)
	}
	if event.Type == "" {
		return Event{}, fmt.Errorf("%w: missing event type", domain.ErrEventMalformed)
	}
	return event, nil
}
