// Package payhost оборачивает hosted-checkout API платёжного провайдера:
// создание сессии оплаты и разбор/проверку его webhook-событий.
package payhost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	defaultTimeout = 5 * time.Second

	sessionsPath = "/v1/checkout/sessions"

	// metadataOrderID — ключ, под которым orderId уезжает в непрозрачные
	// metadata сессии. Это единственная связь webhook-события с заказом:
	// внешнего ключа в нашу схему у провайдера нет.
	metadataOrderID = "order_id"
)

// Gateway — клиент hosted-checkout API провайдера.
type Gateway struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *log.Entry
}

// NewGateway создаёт клиент провайдера.
func NewGateway(baseURL, apiKey string, logger *log.Entry) *Gateway {
	if logger == nil {
		logger = log.WithField("component", "payhost-gateway")
	}
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

type createSessionRequest struct {
	// AmountMinor — сумма строго в минимальных единицах валюты (центах).
	AmountMinor int64             `json:"amount_minor"`
	Currency    string            `json:"currency"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata"`
}

type createSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateSession создаёт платёжную сессию, привязанную к заказу через metadata.
func (g *Gateway) CreateSession(ctx context.Context, req domain.SessionRequest) (domain.Session, error) {
	if req.AmountMinor <= 0 {
		return domain.Session{}, fmt.Errorf("%w: non-positive amount %d", domain.ErrGateway, req.AmountMinor)
	}
	if req.OrderID == "" {
		return domain.Session{}, fmt.Errorf("%w: order id is required", domain.ErrGateway)
	}

	body, err := json.Marshal(createSessionRequest{
		AmountMinor: req.AmountMinor,
		Currency:    strings.ToLower(req.Currency),
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
		Metadata:    map[string]string{metadataOrderID: req.OrderID},
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+sessionsPath, bytes.NewReader(body))
	if err != nil {
		return domain.Session{}, fmt.Errorf("build session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var payload createSessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return domain.Session{}, fmt.Errorf("decode session response: %w", err)
		}
		if payload.URL == "" {
			return domain.Session{}, fmt.Errorf("%w: provider returned empty session url", domain.ErrGateway)
		}
		return domain.Session{ID: payload.ID, URL: payload.URL}, nil
	case resp.StatusCode >= 500:
		return domain.Session{}, fmt.Errorf("%w: provider returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	default:
		return domain.Session{}, fmt.Errorf("%w: provider returned %d", domain.ErrGateway, resp.StatusCode)
	}
}

var _ domain.PaymentGateway = (*Gateway)(nil)
