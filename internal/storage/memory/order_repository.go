package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository.
// Один mutex на все заказы и платежи: MarkPaid обязан проверять статус и
// записывать платёж в одной критической секции.
type orderRepositoryInMemory struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	payments map[string]domain.Payment // ключ — order_id
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		orders:   make(map[string]domain.Order),
		payments: make(map[string]domain.Payment),
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrOrderExists
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// SetStatus меняет статус заказа, отклоняя нелегальные переходы.
func (r *orderRepositoryInMemory) SetStatus(id string, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(status) {
		return domain.ErrIllegalTransition
	}
	order.Status = status
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order
	return nil
}

// Delete удаляет заказ вместе с позициями; только из pending/failed.
func (r *orderRepositoryInMemory) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if !order.Status.Deletable() {
		return domain.ErrOrderNotDeletable
	}
	delete(r.orders, id)
	return nil
}

// AddLine добавляет позицию и пересчитывает total.
func (r *orderRepositoryInMemory) AddLine(orderID string, line domain.OrderLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	order.Lines = append(append([]domain.OrderLine(nil), order.Lines...), line)
	order.TotalMinor = order.LinesTotalMinor()
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = order
	return nil
}

// RemoveLine удаляет позицию и пересчитывает total.
func (r *orderRepositoryInMemory) RemoveLine(orderID, lineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}

	lines := make([]domain.OrderLine, 0, len(order.Lines))
	found := false
	for _, line := range order.Lines {
		if line.ID == lineID {
			found = true
			continue
		}
		lines = append(lines, line)
	}
	if !found {
		return domain.ErrLineNotFound
	}

	order.Lines = lines
	order.TotalMinor = order.LinesTotalMinor()
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = order
	return nil
}

// RecomputeTotal пересчитывает total по позициям и сохраняет его.
func (r *orderRepositoryInMemory) RecomputeTotal(orderID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return 0, domain.ErrOrderNotFound
	}
	order.TotalMinor = order.LinesTotalMinor()
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.orders[orderID] = order
	return order.TotalMinor, nil
}

// MarkPaid атомарно переводит pending-заказ в paid и создаёт платёж.
// Гард от дубликатов: проверка статуса выполняется под тем же lock-ом,
// что и запись, поэтому из двух конкурентных доставок выигрывает одна.
func (r *orderRepositoryInMemory) MarkPaid(orderID string, payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.Status == domain.OrderStatusPaid {
		return domain.ErrOrderAlreadyPaid
	}
	if !order.Status.CanTransitionTo(domain.OrderStatusPaid) {
		return domain.ErrIllegalTransition
	}

	now := time.Now().UTC()
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.OrderID = orderID
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}

	order.Status = domain.OrderStatusPaid
	order.Version++
	order.UpdatedAt = now
	r.orders[orderID] = order
	r.payments[orderID] = payment
	return nil
}

// GetPayment возвращает платёж заказа или ErrPaymentNotFound.
func (r *orderRepositoryInMemory) GetPayment(orderID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.payments[orderID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// cloneOrder копирует заказ вместе со слайсом позиций, чтобы избежать
// непредсказуемых мутаций извне.
func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Lines = append([]domain.OrderLine(nil), src.Lines...)
	return dst
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
