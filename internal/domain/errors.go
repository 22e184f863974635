package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего идентификатора адреса доставки.
	ErrAddressRequired = errors.New("address_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_minor must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match lines sum")
	// Ошибка неизвестного статуса заказа.
	ErrOrderStatusInvalid = errors.New("order status is invalid")
	// Ошибка отсутствующего товара в позиции.
	ErrLineProductRequired = errors.New("line product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrLineQtyInvalid = errors.New("line qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("line unit price must be non-negative")

	// Ошибка отсутствующего идентификатора заказа в платежах/компенсациях.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего внешнего идентификатора транзакции.
	ErrTransactionIDRequired = errors.New("transaction_id is required")
	// Ошибка отрицательной суммы платежа.
	ErrPaymentAmountNegative = errors.New("payment amount must be non-negative")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists — заказ с таким ID уже есть в хранилище.
	ErrOrderExists = errors.New("order already exists")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrIllegalTransition — запрошенный переход статуса запрещён state machine.
	ErrIllegalTransition = errors.New("illegal order status transition")
	// ErrOrderNotDeletable — удаление возможно только из pending/failed.
	ErrOrderNotDeletable = errors.New("order is not deletable in current status")
	// ErrOrderAlreadyPaid — заказ уже оплачен; повторный webhook считается дубликатом.
	ErrOrderAlreadyPaid = errors.New("order already paid")
	// ErrLineNotFound — позиция заказа не найдена.
	ErrLineNotFound = errors.New("order line not found")
	// ErrPaymentNotFound — платёж по заказу отсутствует.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrCheckoutInvalid — входные параметры checkout не прошли валидацию.
	ErrCheckoutInvalid = errors.New("checkout request is invalid")
	// ErrCartNotFound — корзина не найдена в cart-сервисе.
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartEmpty — в корзине нет ни одной позиции.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrCartOwnerMismatch — корзина принадлежит другому пользователю.
	ErrCartOwnerMismatch = errors.New("cart does not belong to the user")
	// ErrUserNotFound — пользователь не найден в account-сервисе.
	ErrUserNotFound = errors.New("user not found")
	// ErrAddressNotFound — адрес доставки не найден.
	ErrAddressNotFound = errors.New("address not found")

	// ErrProductNotFound — товар отсутствует в каталоге (фатально для позиции).
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock — списание увело бы остаток в минус (бизнес-ошибка, без retry).
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrCatalogUnavailable — временная недоступность каталога, допускает retry.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrGateway — платёжный провайдер отклонил запрос на создание сессии.
	ErrGateway = errors.New("payment gateway error")
	// ErrGatewayUnavailable — временная ошибка провайдера/сети, допускает retry.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrInvalidSignature — подпись webhook не совпала с ожидаемой.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrEventMalformed — событие провайдера не содержит обязательных полей.
	ErrEventMalformed = errors.New("webhook event is malformed")

	// ErrCompensationNotFound — компенсационная запись отсутствует в хранилище.
	ErrCompensationNotFound = errors.New("compensation record not found")
)

// IsRetriable сообщает, имеет ли смысл повторять операцию при данной ошибке.
// Повторяются только транспортные сбои; бизнес-ошибки фатальны сразу.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrCatalogUnavailable) || errors.Is(err, ErrGatewayUnavailable)
}

// IsNotFound группирует все "сущность не найдена" ошибки checkout-потока.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCartNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrAddressNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
