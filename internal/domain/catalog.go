package domain

// Product — проекция товара из внешнего каталога.
// Не является локально авторитетной: остаток и цена живут на стороне каталога.
type Product struct {
	ID   string
	Name string
	// PriceMinor — цена в минимальных денежных единицах. Конвертация из
	// десятичного представления каталога выполняется ровно один раз в клиенте.
	PriceMinor int64
	// Stock — доступный остаток на момент чтения.
	Stock int32
}

// CartLine — позиция корзины, вход checkout-саги.
type CartLine struct {
	ID        string
	ProductID string
	Qty       int32
}

// Cart — read-only представление корзины из cart-сервиса.
type Cart struct {
	ID         string
	CustomerID string
	Lines      []CartLine
}

// Empty сообщает, что в корзине нет позиций.
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}
