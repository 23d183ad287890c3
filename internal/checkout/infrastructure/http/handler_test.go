package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	cartdomain "github.com/zerowastemarket/checkout/internal/cart/domain"
	"github.com/zerowastemarket/checkout/internal/checkout/application"
	invapp "github.com/zerowastemarket/checkout/internal/inventory/application"
	invmem "github.com/zerowastemarket/checkout/internal/inventory/infrastructure/memory"
	orderapp "github.com/zerowastemarket/checkout/internal/order/application"
	ordermem "github.com/zerowastemarket/checkout/internal/order/infrastructure/memory"
	paydomain "github.com/zerowastemarket/checkout/internal/payment/domain"
	"github.com/zerowastemarket/checkout/pkg/metrics"
)

type stubCarts map[string]cartdomain.Draft

func (s stubCarts) BuildDraft(_ context.Context, userID string) (cartdomain.Draft, error) {
	d, ok := s[userID]
	if !ok {
		return cartdomain.Draft{}, cartdomain.ErrEmptyCart
	}
	return d, nil
}

type stubGateway struct{}

func (stubGateway) CreateIntent(_ context.Context, orderID string, _ int64) (paydomain.Intent, error) {
	return paydomain.Intent{Reference: "pay-" + orderID, RedirectURL: "https://gateway.test/" + orderID}, nil
}

type mapSettlements map[string]string

func (s mapSettlements) Seen(_ context.Context, id string) (bool, error) {
	_, ok := s[id]
	return ok, nil
}

func (s mapSettlements) Record(_ context.Context, ev paydomain.SettlementEvent, orderID string) (bool, error) {
	if _, ok := s[ev.RawEventID]; ok {
		return false, nil
	}
	s[ev.RawEventID] = orderID
	return true, nil
}

type mapDups map[string]bool

func (d mapDups) Seen(_ context.Context, id string) (bool, error) { return d[id], nil }
func (d mapDups) Mark(_ context.Context, id string) error         { d[id] = true; return nil }

func newTestServer(t *testing.T) (*httptest.Server, *invmem.Repository) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	stock := invmem.NewRepository()
	stock.Seed("l-1", 2)

	carts := stubCarts{"u-1": {
		UserID:     "u-1",
		Lines:      []cartdomain.DraftLine{{ListingID: "l-1", Quantity: 2, UnitPriceCents: 100}},
		TotalCents: 200,
	}}

	orchestrator := application.NewOrchestrator(
		log,
		carts,
		invapp.NewService(log, stock, time.Minute),
		orderapp.NewService(log, ordermem.NewRepository()),
		stubGateway{},
		mapSettlements{},
		mapDups{},
		metrics.NewCheckoutMetrics(prometheus.NewRegistry()),
	)
	h := NewHandler(log, orchestrator, metrics.NewServerMetrics(prometheus.NewRegistry()))
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, stock
}

func doCheckout(t *testing.T, srv *httptest.Server, userID string) (*http.Response, map[string]string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/checkout", nil)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestCheckoutEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doCheckout(t, srv, "u-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, body["order_id"])
	require.Equal(t, "pay-"+body["order_id"], body["payment_reference"])
	require.NotEmpty(t, body["redirect_url"])
}

func TestCheckoutRequiresUser(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doCheckout(t, srv, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "missing_user", body["reason"])
}

func TestCheckoutEmptyCart(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doCheckout(t, srv, "u-9")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "empty_cart", body["reason"])
}

func TestCheckoutOutOfStock(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doCheckout(t, srv, "u-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Same cart again: the first checkout holds all the stock.
	resp, body := doCheckout(t, srv, "u-1")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "out_of_stock", body["reason"])
}

func postWebhook(t *testing.T, srv *httptest.Server, payload string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/webhooks/payment", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestWebhookSettlesOrder(t *testing.T) {
	srv, stock := newTestServer(t)

	resp, body := doCheckout(t, srv, "u-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	payload := `{"raw_event_id":"evt-1","payment_reference":"` + body["payment_reference"] + `","outcome":"succeeded","amount_cents":200}`
	require.Equal(t, http.StatusOK, postWebhook(t, srv, payload).StatusCode)
	// Gateway redelivery.
	require.Equal(t, http.StatusOK, postWebhook(t, srv, payload).StatusCode)

	orderResp, err := http.Get(srv.URL + "/orders/" + body["order_id"])
	require.NoError(t, err)
	defer orderResp.Body.Close()
	require.Equal(t, http.StatusOK, orderResp.StatusCode)

	var ord struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(orderResp.Body).Decode(&ord))
	require.Equal(t, "confirmed", ord.Status)

	s, err := stock.GetStock(context.Background(), "l-1")
	require.NoError(t, err)
	require.Zero(t, s.Available)
	require.Zero(t, s.Reserved)
}

func TestWebhookUnknownReferenceIsRetryable(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := `{"raw_event_id":"evt-x","payment_reference":"pay-ghost","outcome":"succeeded","amount_cents":200}`
	require.Equal(t, http.StatusInternalServerError, postWebhook(t, srv, payload).StatusCode)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	require.Equal(t, http.StatusBadRequest, postWebhook(t, srv, `{`).StatusCode)
	require.Equal(t, http.StatusBadRequest, postWebhook(t, srv, `{"outcome":"succeeded"}`).StatusCode)
}

func TestGetOrderNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/orders/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
