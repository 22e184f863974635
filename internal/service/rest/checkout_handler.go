package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
)

const checkoutTimeout = 30 * time.Second

// CheckoutRequest — тело POST /orders/checkout.
type CheckoutRequest struct {
	CartID      string `json:"cart_id"`
	UserID      string `json:"user_id"`
	AddressID   string `json:"address_id"`
	RedirectURL string `json:"redirect_url"`
}

// CheckoutResponse — успешный ответ: заказ создан, клиент уходит на оплату.
type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	CheckoutURL string `json:"checkout_url"`
}

// CheckoutHandler принимает запросы на оформление заказа.
type CheckoutHandler struct {
	orchestrator checkout.Orchestrator
	logger       *log.Entry
}

// NewCheckoutHandler создаёт обработчик checkout-запросов.
func NewCheckoutHandler(orchestrator checkout.Orchestrator, logger *log.Entry) *CheckoutHandler {
	if logger == nil {
		logger = log.New().WithField("component", "rest")
	}
	return &CheckoutHandler{orchestrator: orchestrator, logger: logger}
}

// Checkout обрабатывает POST /orders/checkout.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return
	}
	if req.CartID == "" || req.UserID == "" || req.AddressID == "" || req.RedirectURL == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "cart_id, user_id, address_id and redirect_url are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkoutTimeout)
	defer cancel()

	result, err := h.orchestrator.Checkout(ctx, checkout.Input{
		CartID:      req.CartID,
		UserID:      req.UserID,
		AddressID:   req.AddressID,
		RedirectURL: req.RedirectURL,
	})
	if err != nil {
		h.logger.WithError(err).WithField("cart_id", req.CartID).Warn("checkout request failed")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CheckoutResponse{
		OrderID:     result.OrderID,
		CheckoutURL: result.CheckoutURL,
	})
}
