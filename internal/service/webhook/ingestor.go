// Package webhook обрабатывает асинхронные события платёжного провайдера.
// Это единственный путь, которым pending-заказ становится paid, и он живёт
// вне стека checkout-вызова: провайдер может доставлять события с задержкой,
// дубликатами и не по порядку.
package webhook

import (
	"context"
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/gateway/payhost"
	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
)

// Result сообщает транспорту, как ответить провайдеру.
type Result int

const (
	// ResultProcessed — событие применено, отвечаем 2xx.
	ResultProcessed Result = iota
	// ResultIgnored — событие распознано и сознательно пропущено
	// (дубликат, неизвестный тип, malformed metadata), отвечаем 2xx,
	// чтобы провайдер не ретраил то, что ретраем не лечится.
	ResultIgnored
	// ResultRejected — подпись не прошла проверку, отвечаем 4xx.
	ResultRejected
	// ResultRetry — временный сбой на нашей стороне, отвечаем 5xx,
	// провайдер доставит событие повторно.
	ResultRetry
)

// Ingestor проверяет подлинность входящих событий и ведёт терминальный
// переход заказа pending→paid ровно один раз.
type Ingestor struct {
	orders        domain.OrderRepository
	secret        string
	logger        *log.Entry
	metrics       *metrics.CheckoutMetrics
	kafkaProducer *kafka.Producer
}

// NewIngestor создаёт ingestor с общим секретом подписи.
func NewIngestor(orders domain.OrderRepository, secret string, logger *log.Entry) *Ingestor {
	if logger == nil {
		logger = log.New().WithField("component", "webhook")
	}
	return &Ingestor{
		orders:  orders,
		secret:  secret,
		logger:  logger,
		metrics: metrics.NewCheckoutMetrics(),
	}
}

// NewIngestorWithKafka создаёт ingestor, публикующий order.paid в Kafka.
func NewIngestorWithKafka(orders domain.OrderRepository, secret string, producer *kafka.Producer, logger *log.Entry) *Ingestor {
	i := NewIngestor(orders, secret, logger)
	i.kafkaProducer = producer
	return i
}

// NewIngestorWithoutMetrics создаёт ingestor без метрик (для тестов).
func NewIngestorWithoutMetrics(orders domain.OrderRepository, secret string, logger *log.Entry) *Ingestor {
	if logger == nil {
		logger = log.New().WithField("component", "webhook")
	}
	return &Ingestor{orders: orders, secret: secret, logger: logger}
}

// Handle обрабатывает сырое webhook-событие.
func (i *Ingestor) Handle(ctx context.Context, rawPayload []byte, signature string) Result {
	if err := payhost.VerifySignature(i.secret, rawPayload, signature); err != nil {
		i.logger.Warn("webhook rejected: invalid signature")
		i.recordEvent("rejected")
		return ResultRejected
	}

	event, err := payhost.ParseEvent(rawPayload)
	if err != nil {
		// Повторная доставка malformed-события ничего не исправит: ack.
		i.logger.WithError(err).Warn("webhook ignored: malformed event")
		i.recordEvent("malformed")
		return ResultIgnored
	}

	// Закрытый диспатч по типам: состояние меняет только завершение сессии,
	// остальные известные и неизвестные типы подтверждаются без эффекта.
	switch event.Type {
	case payhost.EventCheckoutSessionCompleted:
		return i.handleSessionCompleted(ctx, event)
	case payhost.EventCheckoutSessionExpired, payhost.EventPaymentFailed:
		i.logger.WithFields(log.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Debug("webhook acknowledged without state change")
		i.recordEvent("ignored")
		return ResultIgnored
	default:
		i.logger.WithFields(log.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Info("webhook ignored: unknown event type")
		i.recordEvent("unknown")
		return ResultIgnored
	}
}

func (i *Ingestor) handleSessionCompleted(_ context.Context, event payhost.Event) Result {
	logger := i.logger.WithField("event_id", event.ID)

	orderID := event.OrderID()
	if orderID == "" {
		// Единственный ключ корреляции отсутствует — постоянная ошибка данных.
		logger.Warn("webhook ignored: event metadata carries no order id")
		i.recordEvent("malformed")
		return ResultIgnored
	}
	if event.TransactionID == "" {
		logger.Warn("webhook ignored: event carries no transaction id")
		i.recordEvent("malformed")
		return ResultIgnored
	}
	logger = logger.WithField("order_id", orderID)

	// Сумма и валюта берутся из события как есть, без пересчёта:
	// авторитет по факту списания — провайдер.
	payment := domain.Payment{
		ID:            uuid.NewString(),
		OrderID:       orderID,
		TransactionID: event.TransactionID,
		Status:        domain.PaymentStatusSucceeded,
		AmountMinor:   event.AmountMinor,
		Currency:      event.Currency,
	}

	// Гард от дубликатов перепроверяется внутри той же единицы работы,
	// что и запись: две конкурентные доставки не создадут два платежа.
	err := i.orders.MarkPaid(orderID, payment)
	switch {
	case err == nil:
		logger.WithField("transaction_id", event.TransactionID).Info("order marked as paid")
		i.recordEvent("processed")
		i.publishPaid(orderID, event)
		return ResultProcessed
	case errors.Is(err, domain.ErrOrderAlreadyPaid):
		logger.Debug("duplicate webhook delivery acknowledged")
		if i.metrics != nil {
			i.metrics.RecordWebhookDuplicate()
		}
		i.recordEvent("duplicate")
		return ResultIgnored
	case errors.Is(err, domain.ErrOrderNotFound):
		// Заказ не существует (например, откачен до прихода события):
		// ретрай провайдера это не изменит.
		logger.Warn("webhook ignored: order not found")
		i.recordEvent("orphaned")
		return ResultIgnored
	default:
		// Временный сбой хранилища: non-2xx, провайдер повторит доставку,
		// а гард выше сделает повтор безопасным.
		logger.WithError(err).Error("failed to mark order paid, requesting redelivery")
		i.recordEvent("retry")
		return ResultRetry
	}
}

func (i *Ingestor) recordEvent(outcome string) {
	if i.metrics != nil {
		i.metrics.RecordWebhookEvent(outcome)
	}
}

func (i *Ingestor) publishPaid(orderID string, event payhost.Event) {
	if i.kafkaProducer == nil {
		return
	}

	paid := kafka.NewCheckoutEvent(kafka.EventTypeOrderPaid, orderID, map[string]interface{}{
		"transaction_id": event.TransactionID,
		"amount_minor":   event.AmountMinor,
		"currency":       event.Currency,
	})
	if err := i.kafkaProducer.Publish(kafka.TopicOrderEvents, paid); err != nil {
		i.logger.WithError(err).WithField("order_id", orderID).Warn("failed to publish order.paid event to kafka")
	}
}
