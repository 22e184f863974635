package catalog

import (
	"bytes"
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

// Client — HTTP-клиент сервиса каталога.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry
}

// NewClient создаёт клиент каталога с bounded-таймаутом на запрос.
func NewClient(baseURL string, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.WithField("component", "catalog-client")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// productPayload — wire-представление товара в каталоге. Цена приходит
// десятичным числом; в минимальные единицы она конвертируется здесь и
// больше нигде.
type productPayload struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
	Stock int32       `json:"stock"`
}

type adjustStockRequest struct {
	QuantityChange int32 `json:"quantityChange"`
}

// GetProduct возвращает товар каталога или ErrProductNotFound.
func (c *Client) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	endpoint := c.baseURL + "/products/" + url.PathEscape(productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("build get product request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return decodeProduct(resp)
	case resp.StatusCode == http.StatusNotFound:
		return domain.Product{}, domain.ErrProductNotFound
	case resp.StatusCode >= 500:
		return domain.Product{}, fmt.Errorf("%w: catalog returned %d", domain.ErrCatalogUnavailable, resp.StatusCode)
	default:
		return domain.Product{}, fmt.Errorf("catalog returned unexpected status %d", resp.StatusCode)
	}
}

// AdjustStock атомарно меняет остаток товара на delta. Сама корректировка
// (stock = stock + delta с проверкой неотрицательности) выполняется на
// стороне каталога одним UPDATE — другой страховки у саги нет.
func (c *Client) AdjustStock(ctx context.Context, productID string, delta int32) (domain.Product, error) {
	body, err := json.Marshal(adjustStockRequest{QuantityChange: delta})
	if err != nil {
		return domain.Product{}, fmt.Errorf("marshal stock adjustment: %w", err)
	}

	endpoint := c.baseURL + "/products/" + url.PathEscape(productID) + "/stock"
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Product{}, fmt.Errorf("build adjust stock request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return decodeProduct(resp)
	case resp.StatusCode == http.StatusNotFound:
		return domain.Product{}, domain.ErrProductNotFound
	case resp.StatusCode == http.StatusConflict:
		return domain.Product{}, domain.ErrInsufficientStock
	case resp.StatusCode >= 500:
		return domain.Product{}, fmt.Errorf("%w: catalog returned %d", domain.ErrCatalogUnavailable, resp.StatusCode)
	default:
		return domain.Product{}, fmt.Errorf("catalog returned unexpected status %d", resp.StatusCode)
	}
}

func decodeProduct(resp *http.Response) (domain.Product, error) {
	var payload productPayload
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return domain.Product{}, fmt.Errorf("decode product: %w", err)
	}

	priceMinor, err := PriceToMinor(payload.Price.String())
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", payload.ID, err)
	}

	return domain.Product{
		ID:         payload.ID,
		Name:       payload.Name,
		PriceMinor: priceMinor,
		Stock:      payload.Stock,
	}, nil
}

// PriceToMinor конвертирует десятичную цену каталога в минимальные единицы.
// Больше двух знаков после точки каталог не выдаёт; лишняя точность — ошибка
// данных, а не повод молча округлять деньги.
func PriceToMinor(price string) (int64, error) {
	price = strings.TrimSpace(price)
	if price == "" || strings.HasPrefix(price, "-") {
		return 0, fmt.Errorf("invalid price %q", price)
	}

	whole, frac, _ := strings.Cut(price, ".")
	if whole == "" {
		whole = "0"
	}
	switch {
	case len(frac) == 0:
		frac = "00"
	case len(frac) == 1:
		frac += "0"
	case len(frac) > 2:
		return 0, fmt.Errorf("price %q has more than two fractional digits", price)
	}

	var minor int64
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid price %q", price)
		}
		minor = minor*10 + int64(r-'0')
	}
	return minor, nil
}

var _ domain.CatalogClient = (*Client)(nil)
