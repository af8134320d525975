package commerce

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gradecart/gradecart/internal/config"
	apperrors "github.com/gradecart/gradecart/internal/errors"
	"github.com/gradecart/gradecart/internal/metrics"
	"github.com/gradecart/gradecart/internal/scan"
)

// OrderAPI is the subset of the store API the checkout flow needs
type OrderAPI interface {
	CreateOrder(ctx context.Context) (*Order, error)
	AddLineItems(ctx context.Context, orderID int, items []LineItem) (*Order, error)
	GetOrder(ctx context.Context, orderID int) (*Order, error)
}

// CheckoutResult is the remote order projection handed back to the shopper
type CheckoutResult struct {
	OrderID   int    `json:"orderId"`
	OrderKey  string `json:"orderKey"`
	URL       string `json:"checkoutUrl"`
	ItemCount int    `json:"itemCount"`
}

// Checkout projects selected items onto a remote order
type Checkout struct {
	api    OrderAPI
	cfg    config.CommerceConfig
	logger *zap.Logger
}

// NewCheckout creates the checkout flow
func NewCheckout(api OrderAPI, cfg config.CommerceConfig, logger *zap.Logger) *Checkout {
	return &Checkout{
		api:    api,
		cfg:    cfg,
		logger: logger,
	}
}

// Run creates a pending order, attaches the selected items, and builds the
// hosted payment URL. The three remote steps run strictly in that order;
// validation failures reject the request before anything is sent to the
// store, and a remote failure surfaces the step that broke.
func (c *Checkout) Run(ctx context.Context, items []scan.CartItem) (*CheckoutResult, error) {
	if len(items) == 0 {
		metrics.CheckoutsTotal.WithLabelValues("empty").Inc()
		return nil, apperrors.ErrEmptySelection
	}

	var unmatched []string
	lineItems := make([]LineItem, 0, len(items))
	for _, item := range items {
		if item.ProductID == 0 {
			unmatched = append(unmatched, item.Name)
			continue
		}
		quantity := item.RequestedQuantity
		if quantity < 1 {
			quantity = 1
		}
		lineItems = append(lineItems, LineItem{
			ProductID: item.ProductID,
			Quantity:  quantity,
		})
	}
	if len(unmatched) > 0 {
		metrics.CheckoutsTotal.WithLabelValues("unmatched").Inc()
		return nil, apperrors.New(apperrors.ErrUnmatchedItems.Code,
			"items not matched to catalog products: "+strings.Join(unmatched, ", "))
	}

	order, err := c.api.CreateOrder(ctx)
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues("failed").Inc()
		return nil, apperrors.Wrap(err, apperrors.ErrCartCreate.Code, "failed to create remote order")
	}

	if _, err := c.api.AddLineItems(ctx, order.ID, lineItems); err != nil {
		metrics.CheckoutsTotal.WithLabelValues("failed").Inc()
		return nil, apperrors.Wrap(err, apperrors.ErrCartAttach.Code,
			fmt.Sprintf("failed to attach items to order %d", order.ID))
	}

	final, err := c.api.GetOrder(ctx, order.ID)
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues("failed").Inc()
		return nil, apperrors.Wrap(err, apperrors.ErrCartKeyLookup.Code,
			fmt.Sprintf("failed to fetch payment key for order %d", order.ID))
	}

	checkoutURL := fmt.Sprintf("%s/checkout/order-pay/%d?key=%s", c.cfg.StoreURL, final.ID, final.OrderKey)
	if c.cfg.AffiliateID != "" {
		checkoutURL += "&ref=" + c.cfg.AffiliateID
	}

	metrics.CheckoutsTotal.WithLabelValues("ok").Inc()
	c.logger.Info("Checkout order created",
		zap.Int("order_id", final.ID),
		zap.Int("items", len(lineItems)),
	)

	return &CheckoutResult{
		OrderID:   final.ID,
		OrderKey:  final.OrderKey,
		URL:       checkoutURL,
		ItemCount: len(lineItems),
	}, nil
}
