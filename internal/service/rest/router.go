package rest

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/webhook"
)

// NewRouter собирает публичный API сервиса.
func NewRouter(
	orchestrator checkout.Orchestrator,
	ingestor *webhook.Ingestor,
	orders domain.OrderRepository,
	logger *log.Entry,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	checkoutHandler := NewCheckoutHandler(orchestrator, logger)
	webhookHandler := NewWebhookHandler(ingestor, logger)
	orderHandler := NewOrderHandler(orders, logger)

	r.Post("/orders/checkout", checkoutHandler.Checkout)
	r.Get("/orders/{id}", orderHandler.Get)
	r.Post("/webhooks/payment", webhookHandler.Handle)

	return r
}
