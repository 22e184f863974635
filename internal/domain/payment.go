package domain

import "time"

// PaymentStatus описывает состояние платежа в системе.
type PaymentStatus string

const (
	// PaymentStatusSucceeded — единственный статус, который создаёт webhook-поток:
	// запись появляется только после подтверждения провайдером.
	PaymentStatusSucceeded PaymentStatus = "succeeded"
)

// Payment описывает подтверждённый платёж, связанный с заказом.
// Создаётся ровно один раз на заказ; существование записи (вместе со статусом
// paid у заказа) служит idempotency-гардом против повторной доставки webhook.
type Payment struct {
	ID      string
	OrderID string
	// TransactionID — внешний идентификатор списания у провайдера,
	// глобально уникален на завершённый платёж.
	TransactionID string
	Status        PaymentStatus
	AmountMinor   int64
	Currency      string
	CreatedAt     time.Time
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.TransactionID == "" {
		errs = append(errs, ErrTransactionIDRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrPaymentAmountNegative)
	}

	return errs
}
