package account

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const defaultTimeout = 3 * time.Second

// Client проверяет существование пользователя и адреса в user-сервисе.
// Саге не нужны сами профили — только факт, что сущности резолвятся.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry
}

// NewClient создаёт клиент account-сервиса.
func NewClient(baseURL string, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.WithField("component", "account-client")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// CheckUser возвращает nil, если пользователь существует.
func (c *Client) CheckUser(ctx context.Context, userID string) error {
	return c.checkExists(ctx, "/users/"+url.PathEscape(userID), domain.ErrUserNotFound)
}

// CheckAddress возвращает nil, если адрес доставки существует.
func (c *Client) CheckAddress(ctx context.Context, addressID string) error {
	return c.checkExists(ctx, "/addresses/"+url.PathEscape(addressID), domain.ErrAddressNotFound)
}

func (c *Client) checkExists(ctx context.Context, path string, notFound error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build account request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("account service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return notFound
	default:
		return fmt.Errorf("account service returned unexpected status %d", resp.StatusCode)
	}
}

var _ domain.AccountClient = (*Client)(nil)
