package rest

import (
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/gateway/payhost"
	"github.com/vladislavdragonenkov/checkout/internal/service/webhook"
)

// Подпись считается по сырому телу, поэтому размер ограничен до разбора.
const maxWebhookBody = 1 << 20

// WebhookHandler принимает события платёжного провайдера.
type WebhookHandler struct {
	ingestor *webhook.Ingestor
	logger   *log.Entry
}

// NewWebhookHandler создаёт обработчик webhook-событий.
func NewWebhookHandler(ingestor *webhook.Ingestor, logger *log.Entry) *WebhookHandler {
	if logger == nil {
		logger = log.New().WithField("component", "rest")
	}
	return &WebhookHandler{ingestor: ingestor, logger: logger}
}

// Handle обрабатывает POST /webhooks/payment.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "failed to read body")
		return
	}

	result := h.ingestor.Handle(r.Context(), body, r.Header.Get(payhost.SignatureHeader))
	switch result {
	case webhook.ResultProcessed, webhook.ResultIgnored:
		// Провайдеру важен только класс статуса: 2xx останавливает redelivery.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case webhook.ResultRejected:
		writeError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "webhook signature verification failed")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "temporary failure, retry later")
	}
}
