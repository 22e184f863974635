package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан оркестратором, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid — платёжный провайдер подтвердил оплату через webhook.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusShipped — заказ передан в доставку (внешний shipment-процесс).
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusFailed — checkout завершился откатом, заказ подлежит удалению.
	OrderStatusFailed OrderStatus = "failed"
)

// orderTransitions задаёт разрешённые переходы статусов.
// Из paid обратно в pending/failed пути нет: оплаченный заказ неизменяем.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusShipped},
	OrderStatusShipped: {OrderStatusDelivered},
}

// CanTransitionTo сообщает, допустим ли переход в статус next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Deletable сообщает, можно ли удалить заказ в данном статусе.
// Удаление легально только до подтверждения оплаты.
func (s OrderStatus) Deletable() bool {
	return s == OrderStatusPending || s == OrderStatusFailed
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// OrderLine представляет одну позицию заказа.
type OrderLine struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — внешний идентификатор товара в каталоге.
	ProductID string
	// Qty — количество единиц товара.
	Qty int32
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах,
	// зафиксированная в момент резервирования. После создания позиции не меняется.
	UnitPriceMinor int64
	// CreatedAt фиксирует момент резервирования позиции.
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID         string
	CustomerID string
	AddressID  string
	Status     OrderStatus
	Currency   string
	// TotalMinor всегда равен сумме qty*unit_price по всем позициям;
	// пересчитывается репозиторием при каждой мутации позиций.
	TotalMinor int64
	Lines      []OrderLine
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LinesTotalMinor возвращает сумму позиций заказа в минимальных единицах.
func (o *Order) LinesTotalMinor() int64 {
	var total int64
	for _, line := range o.Lines {
		total += int64(line.Qty) * line.UnitPriceMinor
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.AddressID == "" {
		errs = append(errs, ErrAddressRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrOrderStatusInvalid)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	for _, line := range o.Lines {
		if line.ProductID == "" {
			errs = append(errs, ErrLineProductRequired)
		}
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
	}
	// Сверяем сумму заказа с суммой позиций: qty * unit_price.
	if o.LinesTotalMinor() != o.TotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
