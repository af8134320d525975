package commerce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gradecart/gradecart/internal/config"
	apperrors "github.com/gradecart/gradecart/internal/errors"
	"github.com/gradecart/gradecart/internal/scan"
)

type fakeOrderAPI struct {
	createCalls int
	attachCalls int
	getCalls    int
	attached    []LineItem

	createErr error
	attachErr error
	getErr    error
}

func (f *fakeOrderAPI) CreateOrder(context.Context) (*Order, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &Order{ID: 555, Status: "pending"}, nil
}

func (f *fakeOrderAPI) AddLineItems(_ context.Context, orderID int, items []LineItem) (*Order, error) {
	f.attachCalls++
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	f.attached = items
	return &Order{ID: orderID, Status: "pending"}, nil
}

func (f *fakeOrderAPI) GetOrder(_ context.Context, orderID int) (*Order, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &Order{ID: orderID, OrderKey: "wc_order_abc123", Status: "pending"}, nil
}

func testCommerceConfig() config.CommerceConfig {
	return config.CommerceConfig{
		StoreURL:    "https://store.example",
		AffiliateID: "gradecart",
	}
}

func TestCheckoutBuildsPaymentURL(t *testing.T) {
	api := &fakeOrderAPI{}
	checkout := NewCheckout(api, testCommerceConfig(), zap.NewNop())

	result, err := checkout.Run(context.Background(), []scan.CartItem{
		{ID: "a", ProductID: 10, RequestedQuantity: 2, InCart: true},
		{ID: "b", ProductID: 11, RequestedQuantity: 0, InCart: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 555, result.OrderID)
	assert.Equal(t, "wc_order_abc123", result.OrderKey)
	assert.Equal(t, "https://store.example/checkout/order-pay/555?key=wc_order_abc123&ref=gradecart", result.URL)
	assert.Equal(t, 2, result.ItemCount)

	require.Len(t, api.attached, 2)
	assert.Equal(t, LineItem{ProductID: 10, Quantity: 2}, api.attached[0])
	assert.Equal(t, LineItem{ProductID: 11, Quantity: 1}, api.attached[1], "zero quantity clamps to one")
}

func TestCheckoutOmitsEmptyAffiliateRef(t *testing.T) {
	cfg := testCommerceConfig()
	cfg.AffiliateID = ""
	checkout := NewCheckout(&fakeOrderAPI{}, cfg, zap.NewNop())

	result, err := checkout.Run(context.Background(), []scan.CartItem{{ProductID: 10, RequestedQuantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, "https://store.example/checkout/order-pay/555?key=wc_order_abc123", result.URL)
}

func TestCheckoutRejectsEmptySelectionBeforeAnyRemoteCall(t *testing.T) {
	api := &fakeOrderAPI{}
	checkout := NewCheckout(api, testCommerceConfig(), zap.NewNop())

	_, err := checkout.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrEmptySelection.Code, apperrors.GetCode(err))
	assert.Zero(t, api.createCalls)
}

func TestCheckoutRejectsUnmatchedItemsBeforeAnyRemoteCall(t *testing.T) {
	api := &fakeOrderAPI{}
	checkout := NewCheckout(api, testCommerceConfig(), zap.NewNop())

	_, err := checkout.Run(context.Background(), []scan.CartItem{
		{ID: "a", ProductID: 10, Name: "Glue"},
		{ID: "b", Name: "Mystery Item"},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnmatchedItems.Code, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "Mystery Item")
	assert.Zero(t, api.createCalls)
}

func TestCheckoutCreateFailure(t *testing.T) {
	api := &fakeOrderAPI{createErr: errors.New("503")}
	checkout := NewCheckout(api, testCommerceConfig(), zap.NewNop())

	_, err := checkout.Run(context.Background(), []scan.CartItem{{ProductID: 10}})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCartCreate.Code, apperrors.GetCode(err))
	assert.Zero(t, api.attachCalls, "no attach after failed create")
}

func TestCheckoutAttachFailureYieldsNoURL(t *testing.T) {
	api := &fakeOrderAPI{attachErr: errors.New("timeout")}
	checkout := NewCheckout(api, testCommerceConfig(), zap.NewNop())

	result, err := checkout.Run(context.Background(), []scan.CartItem{{ProductID: 10}})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.ErrCartAttach.Code, apperrors.GetCode(err))
	assert.Zero(t, api.getCalls, "no key lookup after failed attach")
}

func TestCheckoutKeyLookupFailure(t *testing.T) {
	api := &fakeOrderAPI{getErr: errors.New("404")}
	checkout := NewCheckout(api, testCommerceConfig(), zap.NewNop())

	_, err := checkout.Run(context.Background(), []scan.CartItem{{ProductID: 10}})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCartKeyLookup.Code, apperrors.GetCode(err))
}
