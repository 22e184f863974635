package domain

import "time"

// Reservation фиксирует факт списания qty единиц товара из каталога в пользу
// конкретной позиции заказа. Живёт только внутри одного вызова оркестратора:
// это локальный аккумулятор "что уже списано", по которому откатывается
// строго определённый префикс при частичном сбое.
type Reservation struct {
	LineID    string
	ProductID string
	Qty       int32
}

// CompensationStatus отражает состояние отложенной компенсации.
type CompensationStatus string

const (
	// CompensationStatusPending — возврат остатка ещё не выполнен.
	CompensationStatusPending CompensationStatus = "pending"
	// CompensationStatusResolved — каталог принял обратную корректировку.
	CompensationStatusResolved CompensationStatus = "resolved"
	// CompensationStatusFailed — попытки исчерпаны, требуется ручное вмешательство.
	CompensationStatusFailed CompensationStatus = "failed"
)

// Compensation — durable-запись о несостоявшемся возврате остатка.
// Появляется, когда AdjustStock(+qty) во время отката упал: вместо
// молчаливой потери инвентаря запись уходит в dead-letter и добирается
// фоновым reconciler-ом.
type Compensation struct {
	ID        string
	OrderID   string
	ProductID string
	Qty       int32
	Status    CompensationStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет, корректно ли заполнены ключевые поля компенсации.
func (c *Compensation) Validate() []error {
	var errs []error

	if c.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if c.ProductID == "" {
		errs = append(errs, ErrLineProductRequired)
	}
	if c.Qty <= 0 {
		errs = append(errs, ErrLineQtyInvalid)
	}

	return errs
}

// CompensationStats описывает текущий backlog отложенных компенсаций.
type CompensationStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
