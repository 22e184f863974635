// Package app собирает сервис из частей: хранилище, клиенты, сага,
// webhook ingestor, фоновый reconciler и два HTTP-сервера (публичный
// API и служебный с метриками).
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/checkout/internal/health"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/compensation"
	"github.com/vladislavdragonenkov/checkout/internal/service/rest"
	"github.com/vladislavdragonenkov/checkout/internal/service/webhook"
	"github.com/vladislavdragonenkov/checkout/internal/version"
)

// Run запускает приложение и блокируется до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	kafkaProducer := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	var orchestrator checkout.Orchestrator
	var ingestor *webhook.Ingestor
	if kafkaProducer != nil {
		orchestrator = checkout.NewOrchestratorWithKafka(
			deps.Orders,
			deps.Compensations,
			deps.Catalog,
			deps.Carts,
			deps.Accounts,
			deps.Gateway,
			cfg.Currency,
			kafkaProducer,
			logger.WithField("component", "checkout"),
		)
		ingestor = webhook.NewIngestorWithKafka(
			deps.Orders,
			cfg.PayhostWebhookSecret,
			kafkaProducer,
			logger.WithField("component", "webhook"),
		)
	} else {
		orchestrator = checkout.NewOrchestrator(
			deps.Orders,
			deps.Compensations,
			deps.Catalog,
			deps.Carts,
			deps.Accounts,
			deps.Gateway,
			cfg.Currency,
			logger.WithField("component", "checkout"),
		)
		ingestor = webhook.NewIngestor(
			deps.Orders,
			cfg.PayhostWebhookSecret,
			logger.WithField("component", "webhook"),
		)
	}

	// Reconciler добирает возвраты остатков, отложенные при откате саги.
	worker := compensation.NewWorker(
		deps.Compensations,
		deps.Catalog,
		compensation.WithLogger(logger.WithField("component", "compensation-worker")),
		compensation.WithPollInterval(cfg.CompensationPollInterval),
		compensation.WithBatchSize(cfg.CompensationBatchSize),
		compensation.WithMaxAttempts(cfg.CompensationMaxAttempts),
		compensation.WithRetryBaseDelay(cfg.CompensationRetryDelay),
	)
	go worker.Run(ctx)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.Store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.Store.Ping(checkCtx)
		}))
	}

	opsSrv := startOpsServer(ctx, cfg.OpsAddr, logger, healthHandler)

	router := rest.NewRouter(orchestrator, ingestor, deps.Orders, logger.WithField("component", "rest"))
	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(opsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(opsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startOpsServer запускает служебный HTTP-сервер: метрики и health checks.
func startOpsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("ops server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
