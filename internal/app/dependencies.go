package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/client/account"
	"github.com/vladislavdragonenkov/checkout/internal/client/cart"
	"github.com/vladislavdragonenkov/checkout/internal/client/catalog"
	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/gateway/payhost"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
	"github.com/vladislavdragonenkov/checkout/internal/storage/postgres"
)

// Dependencies содержит внешние зависимости приложения: хранилище,
// клиенты сервисов и платёжный шлюз.
type Dependencies struct {
	Orders        domain.OrderRepository
	Compensations domain.CompensationRepository
	Catalog       domain.CatalogClient
	Carts         domain.CartClient
	Accounts      domain.AccountClient
	Gateway       domain.PaymentGateway
	// Store не nil только для postgres-драйвера.
	Store  *postgres.Store
	Logger *log.Entry
}

// NewDependencies создаёт зависимости согласно конфигурации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Catalog:  catalog.NewClient(cfg.CatalogBaseURL, logger.WithField("client", "catalog")),
		Carts:    cart.NewClient(cfg.CartBaseURL, logger.WithField("client", "cart")),
		Accounts: account.NewClient(cfg.AccountBaseURL, logger.WithField("client", "account")),
		Gateway:  payhost.NewGateway(cfg.PayhostBaseURL, cfg.PayhostAPIKey, logger.WithField("client", "payhost")),
		Logger:   logger,
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		deps.Store = store
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Compensations = postgres.NewCompensationRepository(store)
		logger.Info("using postgres storage")
	case StorageDriverMemory, "":
		deps.Orders = memory.NewOrderRepository()
		deps.Compensations = memory.NewCompensationRepository()
		logger.Info("using in-memory storage")
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}

	return deps, nil
}

// Close освобождает ресурсы зависимостей.
func (d *Dependencies) Close() {
	if d == nil || d.Store == nil {
		return
	}
	if err := d.Store.Close(); err != nil {
		d.Logger.WithError(err).Warn("failed to close postgres store")
	}
}
