package kafka

import "time"

// EventType определяет тип события checkout-потока.
type EventType string

const (
	EventTypeCheckoutStarted   EventType = "checkout.started"
	EventTypeCheckoutCompleted EventType = "checkout.completed"
	EventTypeCheckoutFailed    EventType = "checkout.failed"

	EventTypeOrderPaid EventType = "order.paid"

	// EventTypeCompensationDeferred сигнализирует, что возврат остатка ушёл
	// в dead-letter и будет добран фоновым reconciler-ом.
	EventTypeCompensationDeferred EventType = "compensation.deferred"
)

// Топики: события саги и события жизненного цикла заказа разведены,
// потребители paid-потока не читают служебный шум checkout-а.
const (
	TopicCheckoutEvents = "store.checkout.events"
	TopicOrderEvents    = "store.order.events"
)

// CheckoutEvent — событие жизненного цикла checkout-саги.
// Payload намеренно плоский: order_id + произвольные метаданные шага.
type CheckoutEvent struct {
	EventType EventType      `json:"event_type"`
	OrderID   string         `json:"order_id"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewCheckoutEvent создаёт событие с текущей меткой времени.
func NewCheckoutEvent(eventType EventType, orderID string, metadata map[string]any) *CheckoutEvent {
	return &CheckoutEvent{
		EventType: eventType,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}
