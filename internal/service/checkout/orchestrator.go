package checkout

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
)

// Input — параметры одного checkout-запроса.
type Input struct {
	CartID      string
	UserID      string
	AddressID   string
	RedirectURL string
}

// Result — успешный исход саги: заказ создан, сессия оплаты готова.
type Result struct {
	OrderID     string
	CheckoutURL string
}

// Orchestrator описывает интерфейс checkout-саги.
type Orchestrator interface {
	Checkout(ctx context.Context, in Input) (Result, error)
}

// orchestrator реализует последовательность шагов саги:
// резолв корзины → pending-заказ → построчный резерв остатков →
// платёжная сессия → очистка корзины, с компенсацией при любом сбое.
type orchestrator struct {
	orders        domain.OrderRepository
	compensations domain.CompensationRepository
	catalog       domain.CatalogClient
	carts         domain.CartClient
	accounts      domain.AccountClient
	gateway       domain.PaymentGateway
	currency      string
	retry         RetryConfig
	logger        *log.Entry
	metrics       *metrics.CheckoutMetrics
	kafkaProducer *kafka.Producer // опциональный producer для event-driven потребителей
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(
	orders domain.OrderRepository,
	compensations domain.CompensationRepository,
	catalog domain.CatalogClient,
	carts domain.CartClient,
	accounts domain.AccountClient,
	gateway domain.PaymentGateway,
	currency string,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &orchestrator{
		orders:        orders,
		compensations: compensations,
		catalog:       catalog,
		carts:         carts,
		accounts:      accounts,
		gateway:       gateway,
		currency:      currency,
		retry:         DefaultRetryConfig(),
		logger:        logger,
		metrics:       metrics.NewCheckoutMetrics(),
	}
}

// NewOrchestratorWithKafka создаёт оркестратор, публикующий события саги в Kafka.
func NewOrchestratorWithKafka(
	orders domain.OrderRepository,
	compensations domain.CompensationRepository,
	catalog domain.CatalogClient,
	carts domain.CartClient,
	accounts domain.AccountClient,
	gateway domain.PaymentGateway,
	currency string,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) Orchestrator {
	o := NewOrchestrator(orders, compensations, catalog, carts, accounts, gateway, currency, logger).(*orchestrator)
	o.kafkaProducer = kafkaProducer
	return o
}

// NewOrchestratorWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewOrchestratorWithoutMetrics(
	orders domain.OrderRepository,
	compensations domain.CompensationRepository,
	catalog domain.CatalogClient,
	carts domain.CartClient,
	accounts domain.AccountClient,
	gateway domain.PaymentGateway,
	currency string,
	logger *log.Entry,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &orchestrator{
		orders:        orders,
		compensations: compensations,
		catalog:       catalog,
		carts:         carts,
		accounts:      accounts,
		gateway:       gateway,
		currency:      currency,
		retry:         DefaultRetryConfig(),
		logger:        logger,
		metrics:       nil,
	}
}

// Checkout превращает корзину в pending-заказ с платёжной сессией.
// До шага резервирования все проверки fail-fast: ни одна единица остатка
// не трогается, пока корзина, пользователь и адрес не резолвятся.
func (o *orchestrator) Checkout(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	if o.metrics != nil {
		o.metrics.RecordCheckoutStarted()
	}
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordCheckoutDuration(time.Since(start))
		}
	}()

	if err := validateInput(in); err != nil {
		return Result{}, err
	}

	cart, err := o.resolveCart(ctx, in)
	if err != nil {
		o.recordFailed()
		return Result{}, err
	}

	// Pending-заказ создаётся пустым: его ID — якорь идемпотентности саги
	// и цель компенсации при любом дальнейшем сбое.
	order, err := o.createPendingOrder(in)
	if err != nil {
		o.recordFailed()
		return Result{}, err
	}
	logger := o.logger.WithField("order_id", order.ID)

	reserved, err := o.reserveLines(ctx, logger, order.ID, cart)
	if err != nil {
		o.compensate(ctx, logger, order.ID, reserved)
		o.recordFailed()
		o.publishEvent(kafka.EventTypeCheckoutFailed, order.ID, map[string]interface{}{
			"reason": err.Error(),
		})
		return Result{}, err
	}

	session, err := o.createSession(ctx, logger, order.ID, in.RedirectURL)
	if err != nil {
		// Весь сток уже зарезервирован: откат тот же, что при сбое резерва.
		o.compensate(ctx, logger, order.ID, reserved)
		o.recordFailed()
		o.publishEvent(kafka.EventTypeCheckoutFailed, order.ID, map[string]interface{}{
			"reason": err.Error(),
		})
		return Result{}, err
	}

	// Очистка корзины идемпотентна и некритична: заказ создан, сессия выдана,
	// блокировать оплату из-за cleanup-а нельзя.
	if err := o.carts.Clear(ctx, in.CartID); err != nil {
		logger.WithError(err).WithField("cart_id", in.CartID).Warn("failed to clear cart after checkout")
	}

	if o.metrics != nil {
		o.metrics.RecordCheckoutCompleted()
	}
	o.publishEvent(kafka.EventTypeCheckoutCompleted, order.ID, map[string]interface{}{
		"customer_id": in.UserID,
		"session_id":  session.ID,
	})
	logger.WithField("session_id", session.ID).Info("checkout completed, awaiting payment")

	return Result{OrderID: order.ID, CheckoutURL: session.URL}, nil
}

func validateInput(in Input) error {
	if strings.TrimSpace(in.CartID) == "" ||
		strings.TrimSpace(in.UserID) == "" ||
		strings.TrimSpace(in.AddressID) == "" ||
		strings.TrimSpace(in.RedirectURL) == "" {
		return domain.ErrCheckoutInvalid
	}
	return nil
}

func (o *orchestrator) resolveCart(ctx context.Context, in Input) (domain.Cart, error) {
	step := time.Now()
	defer o.recordStep("resolve", step)

	cart, err := o.carts.GetCart(ctx, in.CartID)
	if err != nil {
		return domain.Cart{}, err
	}
	if cart.CustomerID != in.UserID {
		return domain.Cart{}, domain.ErrCartOwnerMismatch
	}
	if cart.Empty() {
		return domain.Cart{}, domain.ErrCartEmpty
	}

	if err := o.accounts.CheckUser(ctx, in.UserID); err != nil {
		return domain.Cart{}, err
	}
	if err := o.accounts.CheckAddress(ctx, in.AddressID); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

func (o *orchestrator) createPendingOrder(in Input) (domain.Order, error) {
	now := time.Now().UTC()
	order := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: in.UserID,
		AddressID:  in.AddressID,
		Status:     domain.OrderStatusPending,
		Currency:   o.currency,
		TotalMinor: 0,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.orders.Create(order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// reserveLines резервирует позиции корзины строго последовательно, в
// фиксированном порядке (ID позиции корзины по возрастанию). Порядок важен:
// при частичном сбое откатывается точно известный префикс. Возвращаемый
// слайс резервов заполняется сразу после каждого успешного AdjustStock,
// поэтому он корректен и при ошибке.
func (o *orchestrator) reserveLines(ctx context.Context, logger *log.Entry, orderID string, cart domain.Cart) ([]domain.Reservation, error) {
	step := time.Now()
	defer o.recordStep("reserve", step)

	lines := append([]domain.CartLine(nil), cart.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })

	reserved := make([]domain.Reservation, 0, len(lines))
	for _, cartLine := range lines {
		if cartLine.Qty <= 0 {
			return reserved, domain.ErrLineQtyInvalid
		}

		var product domain.Product
		err := retryCall(ctx, o.retry, logger, "catalog.get_product", func() error {
			var callErr error
			product, callErr = o.catalog.GetProduct(ctx, cartLine.ProductID)
			return callErr
		})
		if err != nil {
			return reserved, err
		}
		if product.Stock < cartLine.Qty {
			return reserved, domain.ErrInsufficientStock
		}

		err = retryCall(ctx, o.retry, logger, "catalog.adjust_stock", func() error {
			_, callErr := o.catalog.AdjustStock(ctx, cartLine.ProductID, -cartLine.Qty)
			return callErr
		})
		if err != nil {
			// Эта позиция не была зарезервирована — откатывать по ней нечего.
			return reserved, err
		}

		line := domain.OrderLine{
			ID:        uuid.NewString(),
			ProductID: cartLine.ProductID,
			Qty:       cartLine.Qty,
			// Цена — снимок на момент резервирования, не живая ссылка.
			UnitPriceMinor: product.PriceMinor,
			CreatedAt:      time.Now().UTC(),
		}
		reserved = append(reserved, domain.Reservation{
			LineID:    line.ID,
			ProductID: cartLine.ProductID,
			Qty:       cartLine.Qty,
		})
		if err := o.orders.AddLine(orderID, line); err != nil {
			// Сток уже списан, резерв в аккумуляторе — компенсация его вернёт.
			return reserved, err
		}
	}

	if _, err := o.orders.RecomputeTotal(orderID); err != nil {
		return reserved, err
	}
	return reserved, nil
}

func (o *orchestrator) createSession(ctx context.Context, logger *log.Entry, orderID, redirectURL string) (domain.Session, error) {
	step := time.Now()
	defer o.recordStep("create_session", step)

	order, err := o.orders.Get(orderID)
	if err != nil {
		return domain.Session{}, err
	}

	var session domain.Session
	err = retryCall(ctx, o.retry, logger, "gateway.create_session", func() error {
		var callErr error
		session, callErr = o.gateway.CreateSession(ctx, domain.SessionRequest{
			OrderID:     order.ID,
			AmountMinor: order.TotalMinor,
			Currency:    order.Currency,
			SuccessURL:  redirectURL,
			CancelURL:   redirectURL,
		})
		return callErr
	})
	if err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// compensate возвращает каталогу всё, что успел списать reserveLines, в
// обратном порядке, и удаляет заказ вместе с позициями. Выполняется на
// отвязанном от запроса контексте: отказ клиента ждать не должен бросать
// резерв недооткаченным. Ошибки здесь не пробрасываются — вызывающему нужна
// исходная причина сбоя, а невозвращённый остаток уходит в dead-letter.
func (o *orchestrator) compensate(ctx context.Context, logger *log.Entry, orderID string, reserved []domain.Reservation) {
	step := time.Now()
	defer o.recordStep("compensate", step)

	detached := context.WithoutCancel(ctx)
	for i := len(reserved) - 1; i >= 0; i-- {
		res := reserved[i]
		err := retryCall(detached, o.retry, logger, "catalog.release_stock", func() error {
			_, callErr := o.catalog.AdjustStock(detached, res.ProductID, res.Qty)
			return callErr
		})
		if err == nil {
			continue
		}

		logger.WithError(err).WithFields(log.Fields{
			"product_id": res.ProductID,
			"qty":        res.Qty,
		}).Error("stock release failed during rollback, deferring to dead-letter")
		o.deferCompensation(logger, orderID, res)
	}
	if o.metrics != nil {
		o.metrics.RecordCompensatedLines(len(reserved))
	}

	if err := o.orders.Delete(orderID); err != nil {
		logger.WithError(err).Error("failed to delete order during rollback")
	}
}

// deferCompensation сохраняет невозвращённый резерв durable-записью,
// которую добирает фоновый reconciler.
func (o *orchestrator) deferCompensation(logger *log.Entry, orderID string, res domain.Reservation) {
	if o.compensations == nil {
		logger.WithFields(log.Fields{
			"product_id": res.ProductID,
			"qty":        res.Qty,
		}).Error("no dead-letter configured, stock stays under-counted")
		return
	}

	_, err := o.compensations.Enqueue(domain.Compensation{
		OrderID:   orderID,
		ProductID: res.ProductID,
		Qty:       res.Qty,
	})
	if err != nil {
		logger.WithError(err).WithFields(log.Fields{
			"product_id": res.ProductID,
			"qty":        res.Qty,
		}).Error("failed to enqueue compensation, stock stays under-counted")
		return
	}
	if o.metrics != nil {
		o.metrics.RecordCompensationEnqueued()
	}
	o.publishEvent(kafka.EventTypeCompensationDeferred, orderID, map[string]interface{}{
		"product_id": res.ProductID,
		"qty":        res.Qty,
	})
}

func (o *orchestrator) recordFailed() {
	if o.metrics != nil {
		o.metrics.RecordCheckoutFailed()
	}
}

func (o *orchestrator) recordStep(step string, started time.Time) {
	if o.metrics != nil {
		o.metrics.RecordStepDuration(step, time.Since(started))
	}
}

// publishEvent публикует событие саги в Kafka (если producer настроен).
func (o *orchestrator) publishEvent(eventType kafka.EventType, orderID string, metadata map[string]interface{}) {
	if o.kafkaProducer == nil {
		return
	}

	event := kafka.NewCheckoutEvent(eventType, orderID, metadata)
	if err := o.kafkaProducer.Publish(kafka.TopicCheckoutEvents, event); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   orderID,
		}).Warn("failed to publish checkout event to kafka")
	}
}

var _ Orchestrator = (*orchestrator)(nil)
