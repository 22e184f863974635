// Package compensation добирает возвраты остатков, которые не удалось
// выполнить синхронно при откате саги. Запись в dead-letter означает,
// что инвентарь каталога временно занижен; worker возвращает его фоном.
package compensation

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultBatchSize      = 50
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 100 * time.Millisecond
)

var (
	compensationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_compensation_attempts_total",
		Help: "Total number of deferred stock restore attempts grouped by result.",
	}, []string{"result"})
	compensationPendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_compensation_pending_records",
		Help: "Current number of pending deferred compensations.",
	})
	compensationOldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_compensation_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending deferred compensation.",
	})
)

// WorkerOptions задаёт параметры reconciler-а компенсаций.
type WorkerOptions struct {
	Logger         *log.Entry
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) {
		opts.Logger = logger
	}
}

// WithPollInterval задаёт частоту опроса dead-letter.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.PollInterval = interval
	}
}

// WithBatchSize задаёт размер батча pending-компенсаций.
func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) {
		opts.BatchSize = batchSize
	}
}

// WithMaxAttempts задаёт число попыток возврата перед переводом в failed.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *WorkerOptions) {
		opts.MaxAttempts = maxAttempts
	}
}

// WithRetryBaseDelay задаёт базовый delay для exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.RetryBaseDelay = delay
	}
}

// Worker периодически возвращает каталогу остатки из отложенных компенсаций.
type Worker struct {
	repo           domain.CompensationRepository
	catalog        domain.CatalogClient
	logger         *log.Entry
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewWorker создаёт compensation worker.
func NewWorker(repo domain.CompensationRepository, catalog domain.CatalogClient, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "compensation-worker")
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}

	return &Worker{
		repo:           repo,
		catalog:        catalog,
		logger:         logger,
		pollInterval:   opts.PollInterval,
		batchSize:      opts.BatchSize,
		maxAttempts:    opts.MaxAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
	}
}

// Run запускает периодический polling dead-letter до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.catalog == nil {
		w.logger.Warn("compensation worker is disabled: repo or catalog client is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один polling-цикл.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.refreshBacklogMetrics()

	records, err := w.repo.PullPending(w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending compensations")
		return
	}
	if len(records) == 0 {
		return
	}

	for _, record := range records {
		if ctx.Err() != nil {
			return
		}

		if err := w.restoreWithRetry(ctx, record); err != nil {
			w.logger.WithError(err).WithFields(log.Fields{
				"compensation_id": record.ID,
				"order_id":        record.OrderID,
				"product_id":      record.ProductID,
				"qty":             record.Qty,
			}).Error("stock restore failed after retries")
			compensationAttempts.WithLabelValues("failed").Inc()

			if markErr := w.repo.MarkFailed(record.ID, err.Error()); markErr != nil {
				w.logger.WithError(markErr).WithField("compensation_id", record.ID).Warn("failed to mark compensation as failed")
			}
			continue
		}

		if err := w.repo.MarkResolved(record.ID); err != nil {
			w.logger.WithError(err).WithField("compensation_id", record.ID).Warn("failed to mark compensation as resolved")
			continue
		}
		w.logger.WithFields(log.Fields{
			"compensation_id": record.ID,
			"order_id":        record.OrderID,
			"product_id":      record.ProductID,
			"qty":             record.Qty,
		}).Info("deferred stock restore completed")
	}

	w.refreshBacklogMetrics()
}

func (w *Worker) restoreWithRetry(ctx context.Context, record domain.Compensation) error {
	var lastErr error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		// Возврат складывается с текущим остатком, поэтому сам по себе
		// конфликтовать не может; падает только транспорт.
		_, err := w.catalog.AdjustStock(ctx, record.ProductID, record.Qty)
		if err == nil {
			compensationAttempts.WithLabelValues("resolved").Inc()
			return nil
		}
		lastErr = err
		compensationAttempts.WithLabelValues("retry_error").Inc()

		if attempt >= w.maxAttempts {
			break
		}

		delay := w.retryBackoff(attempt)
		if delay <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("stock restore failed after %d attempts: %w", w.maxAttempts, lastErr)
}

func (w *Worker) refreshBacklogMetrics() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect compensation backlog stats")
		return
	}

	compensationPendingRecords.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		compensationOldestPendingAge.Set(0)
		return
	}

	age := time.Since(stats.OldestPendingAt).Seconds()
	if age < 0 {
		age = 0
	}
	compensationOldestPendingAge.Set(age)
}

func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return w.retryBaseDelay
	}

	const maxDuration = time.Duration(1<<63 - 1)
	delay := w.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > maxDuration/2 {
			return maxDuration
		}
		delay *= 2
	}
	return delay
}
