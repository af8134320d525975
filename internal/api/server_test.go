package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gradecart/gradecart/internal/commerce"
	"github.com/gradecart/gradecart/internal/config"
	apperrors "github.com/gradecart/gradecart/internal/errors"
	"github.com/gradecart/gradecart/internal/imaging"
	"github.com/gradecart/gradecart/internal/scan"
	"github.com/gradecart/gradecart/internal/vision"
)

type stubExtractor struct {
	result *vision.ExtractionResult
	err    error
}

func (s *stubExtractor) Extract(context.Context, string) (*vision.ExtractionResult, error) {
	return s.result, s.err
}

type stubSearcher struct {
	products []commerce.Product
}

func (s *stubSearcher) SearchProducts(context.Context, string) ([]commerce.Product, error) {
	return s.products, nil
}

type stubOrderAPI struct{}

func (stubOrderAPI) CreateOrder(context.Context) (*commerce.Order, error) {
	return &commerce.Order{ID: 77, Status: "pending"}, nil
}

func (stubOrderAPI) AddLineItems(_ context.Context, orderID int, _ []commerce.LineItem) (*commerce.Order, error) {
	return &commerce.Order{ID: orderID}, nil
}

func (stubOrderAPI) GetOrder(_ context.Context, orderID int) (*commerce.Order, error) {
	return &commerce.Order{ID: orderID, OrderKey: "wc_order_test"}, nil
}

func newTestServer(t *testing.T, extractor scan.Extractor) *Server {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{}
	cfg.Security.JWTSecret = "test-secret"
	cfg.Commerce.StoreURL = "https://store.example"

	sessions := scan.NewManager(nil, nil, logger)
	aggregator := scan.NewAggregator(extractor, logger)
	optimizer := imaging.NewOptimizer(600, 50, logger)
	scans := scan.NewService(aggregator, optimizer, sessions, 10, logger)
	matcher := commerce.NewMatcher(&stubSearcher{products: []commerce.Product{
		{ID: 31, Name: "Ticonderoga Pencils", Price: "4.99"},
	}}, logger)
	checkout := commerce.NewCheckout(stubOrderAPI{}, cfg.Commerce, logger)

	return New(cfg, scans, sessions, matcher, checkout, logger)
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	resp := doJSON(t, s, "POST", "/api/auth/login", "", map[string]string{"password": "x"})
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func doJSON(t *testing.T, s *Server, method, path, token string, payload interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t, &stubExtractor{})
	resp := doJSON(t, s, "GET", "/api/health", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, &stubExtractor{})
	resp := doJSON(t, s, "GET", "/api/items", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)
}

func TestScanThroughCheckoutFlow(t *testing.T) {
	s := newTestServer(t, &stubExtractor{result: &vision.ExtractionResult{
		SchoolName: "Lincoln Elementary",
		GradeLists: []vision.GradeList{{
			Grade: "Grade 2",
			SupplyItems: []vision.SupplyItem{
				{Name: "Pencils", Quantity: 2, OriginalText: "2 packs of pencils"},
			},
		}},
	}})
	token := login(t, s)

	// Scan
	resp := doJSON(t, s, "POST", "/api/scan", token, map[string]string{"image": "AAAA"})
	require.Equal(t, 200, resp.StatusCode)
	var outcome scan.Outcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	resp.Body.Close()
	require.Len(t, outcome.Items, 1)
	assert.False(t, outcome.NeedsSelection)

	// Toggle the item out and back in
	itemID := outcome.Items[0].ID
	off := false
	resp = doJSON(t, s, "PATCH", "/api/items/"+itemID, token, scan.ItemPatch{InCart: &off})
	require.Equal(t, 200, resp.StatusCode)
	var updated scan.CartItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()
	assert.False(t, updated.InCart)

	on := true
	resp = doJSON(t, s, "PATCH", "/api/items/"+itemID, token, scan.ItemPatch{InCart: &on})
	require.Equal(t, 200, resp.StatusCode)
	resp.Body.Close()

	// Checkout matches items against the catalog, then builds the pay URL
	resp = doJSON(t, s, "POST", "/api/checkout", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	var result commerce.CheckoutResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.Equal(t, 77, result.OrderID)
	assert.Equal(t, "https://store.example/checkout/order-pay/77?key=wc_order_test", result.URL)
}

func TestCheckoutWithEmptySessionFails(t *testing.T) {
	s := newTestServer(t, &stubExtractor{})
	token := login(t, s)

	resp := doJSON(t, s, "POST", "/api/checkout", token, nil)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestGradeSelectionFlow(t *testing.T) {
	s := newTestServer(t, &stubExtractor{result: &vision.ExtractionResult{
		GradeLists: []vision.GradeList{
			{Grade: "Grade 1", SupplyItems: []vision.SupplyItem{{Name: "Crayons", Quantity: 1}}},
			{Grade: "Grade 2", SupplyItems: []vision.SupplyItem{{Name: "Markers", Quantity: 1}}},
		},
	}})
	token := login(t, s)

	resp := doJSON(t, s, "POST", "/api/scan", token, map[string]string{"image": "AAAA"})
	require.Equal(t, 200, resp.StatusCode)
	var outcome scan.Outcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	resp.Body.Close()
	require.True(t, outcome.NeedsSelection)
	require.Len(t, outcome.Grades, 2)

	// Options are available until a selection is made
	resp = doJSON(t, s, "GET", "/api/scan/grades", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	resp.Body.Close()

	// Out-of-range selection is rejected and the pending scan survives
	resp = doJSON(t, s, "POST", "/api/scan/grades/select", token, map[string]int{"index": 9})
	require.Equal(t, 400, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, s, "POST", "/api/scan/grades/select", token, map[string]int{"index": 1})
	require.Equal(t, 200, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	resp.Body.Close()
	assert.Equal(t, "Grade 2", outcome.School.Grade)

	// Selecting again conflicts: the pending scan was consumed
	resp = doJSON(t, s, "POST", "/api/scan/grades/select", token, map[string]int{"index": 1})
	require.Equal(t, 409, resp.StatusCode)
	resp.Body.Close()
}

func TestScanNotASupplyList(t *testing.T) {
	s := newTestServer(t, &stubExtractor{
		err: apperrors.New(apperrors.ErrNotSupplyList.Code, "This does not appear to be a school supply list."),
	})
	token := login(t, s)

	resp := doJSON(t, s, "POST", "/api/scan", token, map[string]string{"image": "AAAA"})
	defer resp.Body.Close()
	assert.Equal(t, 422, resp.StatusCode)
}
