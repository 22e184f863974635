package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const defaultTimeout = 3 * time.Second

// Client — HTTP-клиент cart-сервиса.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry
}

// NewClient создаёт клиент корзины.
func NewClient(baseURL string, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.WithField("component", "cart-client")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

type cartPayload struct {
	ID     string            `json:"id"`
	UserID string            `json:"user_id"`
	Lines  []cartLinePayload `json:"lines"`
}

type cartLinePayload struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
}

// GetCart возвращает корзину с позициями или ErrCartNotFound.
func (c *Client) GetCart(ctx context.Context, cartID string) (domain.Cart, error) {
	endpoint := c.baseURL + "/carts/" + url.PathEscape(cartID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("build get cart request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var payload cartPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return domain.Cart{}, fmt.Errorf("decode cart: %w", err)
		}
		cart := domain.Cart{ID: payload.ID, CustomerID: payload.UserID}
		for _, line := range payload.Lines {
			cart.Lines = append(cart.Lines, domain.CartLine{
				ID:        line.ID,
				ProductID: line.ProductID,
				Qty:       line.Qty,
			})
		}
		return cart, nil
	case resp.StatusCode == http.StatusNotFound:
		return domain.Cart{}, domain.ErrCartNotFound
	default:
		return domain.Cart{}, fmt.Errorf("cart service returned unexpected status %d", resp.StatusCode)
	}
}

// Clear очищает корзину. Вызывается только после успешного создания платёжной
// сессии: более ранняя очистка потеряла бы корзину при неудавшемся checkout.
func (c *Client) Clear(ctx context.Context, cartID string) error {
	endpoint := c.baseURL + "/carts/" + url.PathEscape(cartID) + "/clear"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build clear cart request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return domain.ErrCartNotFound
	default:
		return fmt.Errorf("cart service returned unexpected status %d", resp.StatusCode)
	}
}

var _ domain.CartClient = (*Client)(nil)
