package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики checkout-саги и webhook-потока.
type CheckoutMetrics struct {
	// Счётчики саги
	checkoutStarted     prometheus.Counter
	checkoutCompleted   prometheus.Counter
	checkoutFailed      prometheus.Counter
	checkoutCompensated prometheus.Counter

	// Гистограммы времени выполнения
	checkoutDuration prometheus.Histogram
	stepDuration     *prometheus.HistogramVec

	// Webhook-поток
	webhookEvents     *prometheus.CounterVec
	webhookDuplicates prometheus.Counter

	// Dead-letter компенсаций
	compensationsEnqueued prometheus.Counter
}

// NewCheckoutMetrics создаёт новый экземпляр метрик checkout.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		checkoutStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_saga_started_total",
			Help: "Total number of checkout sagas started",
		}),
		checkoutCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_saga_completed_total",
			Help: "Total number of checkout sagas completed with a payment session",
		}),
		checkoutFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_saga_failed_total",
			Help: "Total number of checkout sagas that failed and rolled back",
		}),
		checkoutCompensated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_saga_compensated_lines_total",
			Help: "Total number of order lines whose stock reservation was reversed",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "checkout_saga_duration_seconds",
			Help:    "Duration of checkout sagas in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "checkout_saga_step_duration_seconds",
			Help:    "Duration of individual checkout saga steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		webhookEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_webhook_events_total",
			Help: "Total number of webhook events grouped by outcome",
		}, []string{"outcome"}),
		webhookDuplicates: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_webhook_duplicates_total",
			Help: "Total number of duplicate webhook deliveries acknowledged",
		}),
		compensationsEnqueued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_compensations_enqueued_total",
			Help: "Total number of stock compensations deferred to the dead-letter queue",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCheckoutStarted увеличивает счётчик запущенных саг.
func (m *CheckoutMetrics) RecordCheckoutStarted() {
	m.checkoutStarted.Inc()
}

// RecordCheckoutCompleted увеличивает счётчик завершённых саг.
func (m *CheckoutMetrics) RecordCheckoutCompleted() {
	m.checkoutCompleted.Inc()
}

// RecordCheckoutFailed увеличивает счётчик откаченных саг.
func (m *CheckoutMetrics) RecordCheckoutFailed() {
	m.checkoutFailed.Inc()
}

// RecordCompensatedLines учитывает количество откаченных позиций.
func (m *CheckoutMetrics) RecordCompensatedLines(n int) {
	m.checkoutCompensated.Add(float64(n))
}

// RecordCheckoutDuration записывает время выполнения саги.
func (m *CheckoutMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага саги.
func (m *CheckoutMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordWebhookEvent учитывает webhook-событие по исходу обработки.
func (m *CheckoutMetrics) RecordWebhookEvent(outcome string) {
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

// RecordWebhookDuplicate учитывает повторную доставку события.
func (m *CheckoutMetrics) RecordWebhookDuplicate() {
	m.webhookDuplicates.Inc()
}

// RecordCompensationEnqueued учитывает компенсацию, ушедшую в dead-letter.
func (m *CheckoutMetrics) RecordCompensationEnqueued() {
	m.compensationsEnqueued.Inc()
}
