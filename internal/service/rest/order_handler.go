package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// OrderLineView — позиция заказа в ответе API.
type OrderLineView struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	Qty            int32  `json:"qty"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

// OrderView — заказ в ответе API. Суммы отдаются в минимальных единицах.
type OrderView struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	AddressID  string          `json:"address_id"`
	Status     string          `json:"status"`
	Currency   string          `json:"currency"`
	TotalMinor int64           `json:"total_minor"`
	Lines      []OrderLineView `json:"lines"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// OrderHandler отдаёт состояние заказа.
type OrderHandler struct {
	orders domain.OrderRepository
	logger *log.Entry
}

// NewOrderHandler создаёт обработчик чтения заказов.
func NewOrderHandler(orders domain.OrderRepository, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.New().WithField("component", "rest")
	}
	return &OrderHandler{orders: orders, logger: logger}
}

// Get обрабатывает GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "order id is required")
		return
	}

	order, err := h.orders.Get(orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderView(order))
}

func toOrderView(order domain.Order) OrderView {
	lines := make([]OrderLineView, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, OrderLineView{
			ID:             line.ID,
			ProductID:      line.ProductID,
			Qty:            line.Qty,
			UnitPriceMinor: line.UnitPriceMinor,
		})
	}
	return OrderView{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		AddressID:  order.AddressID,
		Status:     string(order.Status),
		Currency:   order.Currency,
		TotalMinor: order.TotalMinor,
		Lines:      lines,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}
