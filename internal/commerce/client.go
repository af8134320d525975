// Package commerce integrates with the partner store's WooCommerce REST API
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/gradecart/gradecart/internal/config"
)

// Product is a catalog product as returned by the store API
type Product struct {
	ID         int                `json:"id"`
	Name       string             `json:"name"`
	Price      string             `json:"price"`
	Permalink  string             `json:"permalink"`
	Images     []ProductImage     `json:"images"`
	Attributes []ProductAttribute `json:"attributes"`
}

// ProductImage is one catalog image reference
type ProductImage struct {
	Src string `json:"src"`
}

// ProductAttribute is a catalog attribute such as Brand
type ProductAttribute struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

// PriceValue parses the store's string price, 0 when absent or malformed
func (p *Product) PriceValue() float64 {
	v, err := strconv.ParseFloat(p.Price, 64)
	if err != nil {
		return 0
	}
	return v
}

// Brand returns the product's Brand attribute, if any
func (p *Product) Brand() string {
	for _, attr := range p.Attributes {
		if attr.Name == "Brand" && len(attr.Options) > 0 {
			return attr.Options[0]
		}
	}
	return ""
}

// ImageURL returns the primary product image, if any
func (p *Product) ImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].Src
}

// Order is a remote order as returned by the store API
type Order struct {
	ID       int    `json:"id"`
	OrderKey string `json:"order_key"`
	Status   string `json:"status"`
}

// LineItem attaches a catalog product to an order
type LineItem struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// Client calls the partner store's REST API. Requests run through a
// circuit breaker so a struggling store fails fast instead of piling up.
type Client struct {
	cfg     config.CommerceConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

// NewClient creates a new store API client
func NewClient(cfg config.CommerceConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "store-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Store API circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
		breaker: breaker,
		logger:  logger,
	}
}

// doRequest performs one authenticated API round trip
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("consumer_key", c.cfg.ConsumerKey)
	query.Set("consumer_secret", c.cfg.ConsumerSecret)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path+"?"+query.Encode(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.breaker.Execute(func() ([]byte, error) {
		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("store API error (status %d): %s", resp.StatusCode, string(respBody))
		}

		c.logger.Debug("Store API call completed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
		)
		return respBody, nil
	})
}

// SearchProducts queries the published catalog by free-text term
func (c *Client) SearchProducts(ctx context.Context, term string) ([]Product, error) {
	perPage := c.cfg.SearchPerPage
	if perPage <= 0 {
		perPage = 5
	}

	query := url.Values{}
	query.Set("search", term)
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("status", "publish")

	body, err := c.doRequest(ctx, http.MethodGet, "/products", query, nil)
	if err != nil {
		return nil, err
	}

	var products []Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

// CreateOrder opens a pending guest order with no line items
func (c *Client) CreateOrder(ctx context.Context) (*Order, error) {
	payload := map[string]interface{}{
		"status":   "pending",
		"set_paid": false,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/orders", nil, payload)
	if err != nil {
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	return &order, nil
}

// AddLineItems attaches products to an existing order
func (c *Client) AddLineItems(ctx context.Context, orderID int, items []LineItem) (*Order, error) {
	payload := map[string]interface{}{
		"line_items": items,
	}

	body, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/orders/%d", orderID), nil, payload)
	if err != nil {
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	return &order, nil
}

// GetOrder fetches an order, primarily for its payment key
func (c *Client) GetOrder(ctx context.Context, orderID int) (*Order, error) {
	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, nil)
	if err != nil {
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	return &order, nil
}
