package domain

import "context"

// CatalogClient описывает взаимодействие с сервисом каталога товаров.
type CatalogClient interface {
	// GetProduct возвращает товар или ErrProductNotFound.
	GetProduct(ctx context.Context, productID string) (Product, error)
	// AdjustStock атомарно меняет остаток на delta (отрицательная — резерв,
	// положительная — возврат). Каталог сам гарантирует неотрицательность
	// результата; при нарушении возвращается ErrInsufficientStock.
	AdjustStock(ctx context.Context, productID string, delta int32) (Product, error)
}

// CartClient описывает read-only доступ к корзине и её очистку.
type CartClient interface {
	// GetCart возвращает корзину или ErrCartNotFound.
	GetCart(ctx context.Context, cartID string) (Cart, error)
	// Clear очищает корзину после успешного создания платёжной сессии.
	// Сбой очистки некритичен: заказ уже создан, оплату блокировать нельзя.
	Clear(ctx context.Context, cartID string) error
}

// AccountClient проверяет существование пользователя и адреса доставки.
type AccountClient interface {
	// CheckUser возвращает nil или ErrUserNotFound.
	CheckUser(ctx context.Context, userID string) error
	// CheckAddress возвращает nil или ErrAddressNotFound.
	CheckAddress(ctx context.Context, addressID string) error
}

// SessionRequest — параметры hosted-checkout сессии у платёжного провайдера.
type SessionRequest struct {
	OrderID string
	// AmountMinor — сумма в минимальных единицах валюты; провайдер принимает
	// только целочисленное представление.
	AmountMinor int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// Session — внешний ресурс провайдера: непрозрачный идентификатор и URL.
// Единственная связь с заказом — order_id в metadata сессии.
type Session struct {
	ID  string
	URL string
}

// PaymentGateway оборачивает hosted-checkout API платёжного провайдера.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// OrderRepository описывает требования к хранилищу заказов.
// Хранилище владеет state machine статусов и инвариантом total = Σ qty*price.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderExists при конфликте ID.
	Create(order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(id string) (Order, error)
	// SetStatus переводит заказ в новый статус, отклоняя нелегальные переходы
	// ошибкой ErrIllegalTransition.
	SetStatus(id string, status OrderStatus) error
	// Delete удаляет заказ вместе с позициями; легально только из pending/failed.
	Delete(id string) error
	// AddLine добавляет позицию и пересчитывает total.
	AddLine(orderID string, line OrderLine) error
	// RemoveLine удаляет позицию и пересчитывает total.
	RemoveLine(orderID, lineID string) error
	// RecomputeTotal пересчитывает и сохраняет total, возвращая новое значение.
	RecomputeTotal(orderID string) (int64, error)
	// MarkPaid атомарно переводит pending-заказ в paid и создаёт платёж.
	// Если заказ уже оплачен — ErrOrderAlreadyPaid (дубликат webhook).
	// Проверка статуса и запись платежа выполняются в одной единице работы,
	// чтобы две конкурентные доставки не прошли гард одновременно.
	MarkPaid(orderID string, payment Payment) error
	// GetPayment возвращает платёж заказа или ErrPaymentNotFound.
	GetPayment(orderID string) (Payment, error)
}

// CompensationRepository хранит отложенные компенсации остатков.
type CompensationRepository interface {
	Enqueue(c Compensation) (Compensation, error)
	PullPending(limit int) ([]Compensation, error)
	MarkResolved(id string) error
	MarkFailed(id, lastError string) error
	Stats() (CompensationStats, error)
}
